// Package parking implements a parking-lot mutex heavily inspired by
// WTF::Lock from "Locking in WebKit" (https://webkit.org/blog/6161/locking-in-webkit/):
// the mutex word itself stays small (ownership identity plus one
// contended bit), while the machinery for publishing and finding
// waiters lives in the external, shared park.Default registry.
//
// Unlike WTF::Lock, the mutex is still a spinning lock, and a woken
// goroutine is responsible for removing its own waiter descriptor
// from the park slot. Keeping a waiter parked until it actually
// acquires the lock amortises the cost of re-inserting it if it loses
// a barging race, and keeps its place in line, which is what gives
// this algorithm its approximate FIFO ordering.
package parking

import (
	"sync/atomic"
	"unsafe"

	"github.com/dgwynne-mtx/go-mtxbench/internal/gid"
	"github.com/dgwynne-mtx/go-mtxbench/internal/park"
	"github.com/dgwynne-mtx/go-mtxbench/internal/xatomic"
	"github.com/dgwynne-mtx/go-mtxbench/mutex"
)

func init() {
	mutex.Register("parking", func() mutex.Interface { return New() })
}

// contendedBit is the owner word's low bit: set whenever at least one
// goroutine is parked waiting for this mutex. gid.Self never sets
// this bit, so owner==self means "held, no known waiters" and
// owner==self|contendedBit means "held, at least one waiter parked".
const contendedBit uintptr = 1

// spinLimit bounds the adaptive spin phase between the fast path and
// parking, per spec.md's 40-iteration figure.
const spinLimit = 40

// Mutex is a parking-lot mutex: a single owner word plus the shared
// park.Default registry it publishes waiters into under contention.
type Mutex struct {
	owner uintptr
}

// New returns an unheld Mutex.
func New() *Mutex { return &Mutex{} }

// TryLock attempts the fast-path CAS only; it never spins or parks.
func (m *Mutex) TryLock() bool {
	if atomic.CompareAndSwapUintptr(&m.owner, 0, gid.Self()) {
		xatomic.AcquireAfterAtomic()
		return true
	}
	return false
}

// Lock takes the fast path if free, otherwise adaptively spins, then
// parks and waits to be handed the lock.
func (m *Mutex) Lock() {
	self := gid.Self()

	if atomic.CompareAndSwapUintptr(&m.owner, 0, self) {
		xatomic.AcquireAfterAtomic()
		return
	}

	owner := atomic.LoadUintptr(&m.owner)
	if owner == self|contendedBit {
		panic("parking: Lock called by the goroutine that already holds the mutex")
	}

	for i := 0; i < spinLimit; i++ {
		if owner&contendedBit != 0 {
			break
		}
		xatomic.Pause()
		owner = atomic.LoadUintptr(&m.owner)
		if owner == 0 {
			if atomic.CompareAndSwapUintptr(&m.owner, 0, self) {
				xatomic.AcquireAfterAtomic()
				return
			}
			owner = atomic.LoadUintptr(&m.owner)
		}
	}

	slot := park.Default.Slot(unsafe.Pointer(m))
	w := park.NewWaiter(unsafe.Pointer(m))

	slot.Acquire()
	slot.PushTail(w)
	slot.Release()

	for {
		o := xatomic.CasUintptr(&m.owner, owner, owner|contendedBit)
		if o == owner {
			for !w.Woken() {
				xatomic.Pause()
			}
		} else if o != 0 {
			owner = o
			w.Rearm(unsafe.Pointer(m))
			continue
		}

		// Either we were woken, or the CAS observed owner==0 (the
		// lock cleared between our read and the attempt to mark it
		// contended). Try to claim it
		// directly, preferring self|contendedBit per spec.md's
		// resolution of the self vs self|1 open question — this
		// preserves the contended flag for the next release, which
		// avoids a missed wakeup if another goroutine parks between
		// this release and a plain fast clear.
		owner = xatomic.CasUintptr(&m.owner, 0, self|contendedBit)
		if owner == 0 {
			break
		}
		w.Rearm(unsafe.Pointer(m))
	}

	slot.Acquire()
	slot.Remove(w)
	slot.Release()

	xatomic.AcquireAfterAtomic()
}

// Unlock releases the lock, waking one parked waiter if the contended
// bit was set. Panics if called by a goroutine other than the current
// owner, or if the owner word holds any value other than self or
// self|contendedBit.
func (m *Mutex) Unlock() {
	self := gid.Self()
	xatomic.ReleaseBeforeAtomic()

	prev := xatomic.CasUintptr(&m.owner, self, 0)
	if prev == self {
		return
	}
	if prev != self|contendedBit {
		panic("parking: Unlock called by a non-owner")
	}

	slot := park.Default.Slot(unsafe.Pointer(m))
	slot.Acquire()
	// Clear ownership while still holding the park slot: the woken
	// waiter's re-park loop retries claiming the lock via CAS(0 ->
	// self|contendedBit), which must see owner==0 to succeed.
	atomic.StoreUintptr(&m.owner, 0)
	xatomic.Producer()
	slot.FindAndWake(unsafe.Pointer(m))
	slot.Release()
}
