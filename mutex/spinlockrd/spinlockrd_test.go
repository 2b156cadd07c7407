package spinlockrd

import (
	"runtime"
	"testing"

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
