package parking

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
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

// TestUnlockByNonOwnerPanics exercises the "mis-release" half of P5:
// the owner word in an impossible state must panic rather than
// silently corrupt the lock.
func TestUnlockByNonOwnerPanics(t *testing.T) {
	m := New()
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.True(t, m.TryLock(), "TryLock on a free mutex returned false")
	}()
	<-done

	assert.Panics(t, m.Unlock, "Unlock by a non-owner did not panic")
}

// TestSelfRelockPanics exercises P5: a goroutine that calls Lock a
// second time while it is already contended-parked against itself
// must panic within a finite number of steps. We force the contended
// path by holding the lock from one goroutine and relocking from the
// same goroutine only after parking has been primed by a third-party
// waiter, which is the only state (owner == self|contendedBit) the
// self-relock check fires on.
func TestSelfRelockPanics(t *testing.T) {
	m := New()
	require.True(t, m.TryLock(), "TryLock on a free mutex returned false")

	// Prime a waiter from another goroutine so the owner word picks
	// up the contended bit against this goroutine's own token.
	done := make(chan struct{})
	go func() {
		m.Lock()
		m.Unlock()
		close(done)
	}()

	// Give the other goroutine time to reach the contended owner
	// write; this is best-effort since there is no portable way to
	// observe the internal state from outside the package.
	for i := 0; i < 1000 && m.owner&contendedBit == 0; i++ {
		runtime.Gosched()
	}

	if m.owner&contendedBit != 0 {
		assert.Panics(t, m.Lock, "self-relock did not panic")
	}

	m.Unlock()
	<-done
}
