// Package k42 implements the K42 MCS queue lock, inlined so that a
// waiting thread's queue node reuses the mutex's own layout, per
// https://www.cs.rochester.edu/research/synchronization/pseudocode/ss.html.
//
// This variant resolves the race between a releasing tail-owner and a
// not-yet-linked-in newcomer with a CAS retry loop; see package k42alt
// for the atomic-swap variant of the same algorithm.
package k42

import (
	"sync/atomic"
	"unsafe"

	"github.com/dgwynne-mtx/go-mtxbench/internal/xatomic"
	"github.com/dgwynne-mtx/go-mtxbench/mutex"
)

func init() {
	mutex.Register("k42", func() mutex.Interface { return New() })
}

// Mutex is an MCS queue lock offering strict FIFO ordering among
// threads that reach the queue. next and tail are *Mutex values
// stored as unsafe.Pointer so they can be CAS'd; tail == unsafe.Pointer(m)
// is the sentinel meaning "held, queue empty".
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

// Lock queues the caller behind the current tail and spins on its own
// node's tail field until its predecessor hands off ownership.
func (m *Mutex) Lock() {
	self := new(Mutex)
	v := atomic.LoadPointer(&m.tail)

	for {
		if v == nil {
			if atomic.CompareAndSwapPointer(&m.tail, nil, unsafe.Pointer(m)) {
				xatomic.AcquireAfterAtomic()
				return
			}
			v = atomic.LoadPointer(&m.tail)
			continue
		}

		atomic.StorePointer(&self.tail, unsafe.Pointer(self))
		if !atomic.CompareAndSwapPointer(&m.tail, v, unsafe.Pointer(self)) {
			v = atomic.LoadPointer(&m.tail)
			continue
		}

		// We are in line: publish ourselves onto our predecessor,
		// then wait for it to null our tail field.
		pred := (*Mutex)(v)
		atomic.StorePointer(&pred.next, unsafe.Pointer(self))

		for atomic.LoadPointer(&self.tail) != nil {
			xatomic.Pause()
		}
		xatomic.Consumer()

		succ := atomic.LoadPointer(&self.next)
		if succ == nil {
			atomic.StorePointer(&m.next, nil)
			if !atomic.CompareAndSwapPointer(&m.tail, unsafe.Pointer(self), unsafe.Pointer(m)) {
				// Somebody got into the timing window linking in
				// after us; wait for them to publish themselves.
				for {
					succ = atomic.LoadPointer(&self.next)
					if succ != nil {
						break
					}
					xatomic.Pause()
				}
				atomic.StorePointer(&m.next, succ)
			}
		} else {
			atomic.StorePointer(&m.next, succ)
		}

		xatomic.AcquireAfterAtomic()
		return
	}
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
		// A successor is linking in; wait for it to publish itself.
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
