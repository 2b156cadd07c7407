package spinlist

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dgwynne-mtx/go-mtxbench/internal/mutextest"
)

func TestMutualExclusion(t *testing.T) {
	mutextest.MutualExclusion(t, New(), runtime.GOMAXPROCS(0), 2000)
}

func TestTryLockEmptyCriticalSection(t *testing.T) {
	mutextest.TryLockEmptyCriticalSection(t, New())
}

func TestHappensBefore(t *testing.T) {
	mutextest.HappensBefore(t, New(), 5000)
}

func TestTryLockFailsWhileHeld(t *testing.T) {
	m := New()
	require.True(t, m.TryLock(), "TryLock on a free mutex returned false")
	require.False(t, m.TryLock(), "TryLock succeeded while already held")
	m.Unlock()
}
