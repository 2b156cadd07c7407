// Package spinlockrd implements a CAS-based spinlock whose busy loop
// retries by reading (not CAS'ing) the owner word until it settles on
// free, letting the cacheline sit in Shared state during contention
// instead of bouncing it Modified on every failed CAS attempt.
package spinlockrd

import (
	"sync/atomic"

	"github.com/dgwynne-mtx/go-mtxbench/internal/gid"
	"github.com/dgwynne-mtx/go-mtxbench/internal/xatomic"
	"github.com/dgwynne-mtx/go-mtxbench/mutex"
)

func init() {
	mutex.Register("spinlockrd", func() mutex.Interface { return New() })
}

// Mutex is a read-then-retry spinlock. Like backoff, it gives no
// fairness guarantee.
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

// Lock spins reading the owner word until it observes free, then
// retries the CAS, repeating until it wins.
func (m *Mutex) Lock() {
	for !m.TryLock() {
		for atomic.LoadUintptr(&m.owner) != 0 {
			xatomic.Pause()
		}
	}
}

// Unlock releases the lock. Must only be called by the current owner.
func (m *Mutex) Unlock() {
	xatomic.ReleaseBeforeAtomic()
	atomic.StoreUintptr(&m.owner, 0)
}
