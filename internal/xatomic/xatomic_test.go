package xatomic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCasUintptrSucceeds(t *testing.T) {
	var v uintptr = 5
	old := CasUintptr(&v, 5, 9)
	assert.EqualValues(t, 5, old)
	assert.EqualValues(t, 9, v)
}

func TestCasUintptrFailsOnMismatch(t *testing.T) {
	var v uintptr = 5
	old := CasUintptr(&v, 1, 9)
	assert.EqualValues(t, 5, old, "CasUintptr should report the actual current value on failure")
	assert.EqualValues(t, 5, v, "v must be unchanged on a failed CAS")
}
