// Package spinlist implements a spinlock guarding an owner slot and an
// embedded FIFO of waiter descriptors: contended callers queue up and
// spin on their own wait flag rather than all hammering one owner
// word, giving approximately-FIFO ordering with occasional barging
// when a new entrant wins the inner spinlock between a handoff signal
// and the woken waiter's reacquisition.
package spinlist

import (
	"sync/atomic"

	"github.com/dgwynne-mtx/go-mtxbench/internal/gid"
	"github.com/dgwynne-mtx/go-mtxbench/internal/xatomic"
	"github.com/dgwynne-mtx/go-mtxbench/mutex"
)

func init() {
	mutex.Register("spinlist", func() mutex.Interface { return New() })
}

type waiter struct {
	wait       uint32 // atomic: 1 while still waiting
	next, prev *waiter
}

// Mutex is a spinlock-protected FIFO lock: spin holds the inner
// spinlock (0 free, 1 held), owner identifies the current holder (0
// means unheld), and head/tail form the waiter queue.
type Mutex struct {
	spin       uint32
	owner      uintptr
	head, tail *waiter
}

// New returns an unheld Mutex.
func New() *Mutex { return &Mutex{} }

func (m *Mutex) lockSpin() {
	for !atomic.CompareAndSwapUint32(&m.spin, 0, 1) {
		xatomic.Pause()
	}
	xatomic.AcquireAfterAtomic()
}

func (m *Mutex) unlockSpin() {
	xatomic.ReleaseBeforeAtomic()
	atomic.StoreUint32(&m.spin, 0)
}

func (m *Mutex) pushTail(w *waiter) {
	w.next = nil
	w.prev = m.tail
	if m.tail != nil {
		m.tail.next = w
	} else {
		m.head = w
	}
	m.tail = w
}

func (m *Mutex) remove(w *waiter) {
	if w.prev != nil {
		w.prev.next = w.next
	} else if m.head == w {
		m.head = w.next
	}
	if w.next != nil {
		w.next.prev = w.prev
	} else if m.tail == w {
		m.tail = w.prev
	}
	w.next, w.prev = nil, nil
}

// TryLock takes the inner spinlock, claims ownership if free, and
// releases the inner spinlock.
func (m *Mutex) TryLock() bool {
	m.lockSpin()
	acquired := m.owner == 0
	if acquired {
		m.owner = gid.Self()
	}
	m.unlockSpin()
	if acquired {
		xatomic.AcquireAfterAtomic()
	}
	return acquired
}

// Lock claims the lock immediately if free; otherwise it queues a
// waiter descriptor and spins on that waiter's own wait flag, only
// reacquiring the inner spinlock to check ownership once woken. A
// handoff can be interrupted by a barging thread that grabbed the
// inner spinlock first, in which case the waiter re-arms and waits
// again.
func (m *Mutex) Lock() {
	w := &waiter{wait: 1}

	m.lockSpin()
	held := m.owner != 0
	if !held {
		m.owner = gid.Self()
	} else {
		m.pushTail(w)
	}
	m.unlockSpin()

	for held {
		for atomic.LoadUint32(&w.wait) != 0 {
			xatomic.Pause()
		}

		m.lockSpin()
		if m.owner == 0 {
			m.owner = gid.Self()
			m.remove(w)
			held = false
		} else {
			atomic.StoreUint32(&w.wait, 1)
		}
		m.unlockSpin()
	}

	xatomic.AcquireAfterAtomic()
}

// Unlock clears ownership and, if a waiter is queued, signals the one
// at the head of the FIFO.
func (m *Mutex) Unlock() {
	m.lockSpin()
	m.owner = 0
	if w := m.head; w != nil {
		atomic.StoreUint32(&w.wait, 0)
	}
	m.unlockSpin()
}
