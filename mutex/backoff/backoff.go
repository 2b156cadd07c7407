// Package backoff implements a CAS-based spinlock with exponential
// backoff between retries, reimplementing the mutex intended to model
// the kernel mutex from src/sys/kern/kern_lock.c r1.76/r1.79.
package backoff

import (
	"runtime"
	"sync/atomic"

	"github.com/dgwynne-mtx/go-mtxbench/internal/gid"
	"github.com/dgwynne-mtx/go-mtxbench/internal/xatomic"
	"github.com/dgwynne-mtx/go-mtxbench/mutex"
)

func init() {
	mutex.Register("backoff", func() mutex.Interface { return New() })
}

// Mutex is a test-and-set spinlock with no fairness guarantee:
// starvation is possible, and every waiter spins on the same owner
// word, so it is a poor choice under heavy contention.
type Mutex struct {
	owner uintptr
}

// New returns an unheld Mutex.
func New() *Mutex { return &Mutex{} }

// TryLock attempts a single CAS of the owner word from free to self.
func (m *Mutex) TryLock() bool {
	if atomic.CompareAndSwapUintptr(&m.owner, 0, gid.Self()) {
		xatomic.AcquireAfterAtomic()
		return true
	}
	return false
}

// Lock spins with exponential backoff, doubling the number of
// busy-cycle hints issued between retries while it is below
// runtime.NumCPU() (so it stops at the first power of two at or above
// that count), resetting to one hint per call.
func (m *Mutex) Lock() {
	ncycle := 1
	ncpu := runtime.NumCPU()

	for !m.TryLock() {
		for i := 0; i < ncycle; i++ {
			xatomic.Pause()
		}
		if ncycle < ncpu {
			ncycle += ncycle
		}
	}
}

// Unlock releases the lock. Must only be called by the current owner.
func (m *Mutex) Unlock() {
	xatomic.ReleaseBeforeAtomic()
	atomic.StoreUintptr(&m.owner, 0)
}
