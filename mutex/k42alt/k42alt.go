// Package k42alt implements the same K42 MCS queue lock as package
// k42, but resolves the tail hand-off with a single unconditional
// atomic swap instead of a CAS retry loop, per spec.md's alternative
// MCS variant. The two are semantically equivalent under the MCS
// invariants; try-lock and release are unchanged from k42.
package k42alt

import (
	"sync/atomic"
	"unsafe"

	"github.com/dgwynne-mtx/go-mtxbench/internal/xatomic"
	"github.com/dgwynne-mtx/go-mtxbench/mutex"
)

func init() {
	mutex.Register("k42alt", func() mutex.Interface { return New() })
}

// Mutex is an MCS queue lock, the atomic-swap variant. See k42.Mutex
// for field meanings.
type Mutex struct {
	next unsafe.Pointer
	tail unsafe.Pointer
}

// New returns an unheld Mutex.
func New() *Mutex { return &Mutex{} }

// TryLock attempts a single CAS of tail from free to the mutex's own
// sentinel address.
func (m *Mutex) TryLock() bool {
	if atomic.CompareAndSwapPointer(&m.tail, nil, unsafe.Pointer(m)) {
		xatomic.AcquireAfterAtomic()
		return true
	}
	return false
}

// Lock swaps itself to the tail unconditionally, then — if there was
// a predecessor — links in and waits to be woken.
func (m *Mutex) Lock() {
	self := new(Mutex)

	v := atomic.SwapPointer(&m.tail, unsafe.Pointer(self))
	if v != nil {
		atomic.StorePointer(&self.tail, unsafe.Pointer(self)) // mark ourselves locked
		pred := (*Mutex)(v)
		atomic.StorePointer(&pred.next, unsafe.Pointer(self))

		for atomic.LoadPointer(&self.tail) != nil {
			xatomic.Pause()
		}
		xatomic.Consumer()
	}

	succ := atomic.LoadPointer(&self.next)
	if succ == nil {
		if !atomic.CompareAndSwapPointer(&m.tail, unsafe.Pointer(self), unsafe.Pointer(m)) {
			for {
				succ = atomic.LoadPointer(&self.next)
				if succ != nil {
					break
				}
				xatomic.Pause()
			}
		}
	}
	atomic.StorePointer(&m.next, succ)

	xatomic.AcquireAfterAtomic()
}

// Unlock hands the lock off to the next queued waiter, if any, or
// clears tail back to free if the queue is empty.
func (m *Mutex) Unlock() {
	xatomic.ReleaseBeforeAtomic()

	v := atomic.LoadPointer(&m.next)
	if v == nil {
		if atomic.CompareAndSwapPointer(&m.tail, unsafe.Pointer(m), nil) {
			return
		}
		for {
			v = atomic.LoadPointer(&m.next)
			if v != nil {
				break
			}
			xatomic.Pause()
		}
	}

	succ := (*Mutex)(v)
	atomic.StorePointer(&succ.tail, nil)
}
