// Package wtflock implements WTF::Lock, the two-bit parking-lot mutex
// described in "Locking in WebKit" (https://webkit.org/blog/6161/locking-in-webkit/).
// Unlike mutex/parking and mutex/parkingfair, the releaser — not the
// woken waiter — unlinks the waiter from its park slot, and barging is
// explicitly re-enabled: a fresh acquirer can always CAS its way past
// a parked waiter before that waiter wakes up.
package wtflock

import (
	"sync/atomic"
	"unsafe"

	"github.com/dgwynne-mtx/go-mtxbench/internal/gid"
	"github.com/dgwynne-mtx/go-mtxbench/internal/park"
	"github.com/dgwynne-mtx/go-mtxbench/internal/xatomic"
	"github.com/dgwynne-mtx/go-mtxbench/mutex"
)

func init() {
	mutex.Register("wtflock", func() mutex.Interface { return New() })
}

const (
	locked uintptr = 1 << iota
	parked
)

const spinLimit = 40

// Mutex is a WTF::Lock-style mutex addressed into the single shared
// park.Single slot, rather than the 128-way park.Default registry the
// other parking variants use.
type Mutex struct {
	owner uintptr
}

// New returns an unheld Mutex.
func New() *Mutex { return &Mutex{} }

// self returns this goroutine's identity pre-tagged with the locked
// bit, matching the reference implementation's mtx_self helper.
func self() uintptr { return gid.Self() | locked }

// TryLock attempts the fast-path CAS only.
func (m *Mutex) TryLock() bool {
	if atomic.CompareAndSwapUintptr(&m.owner, 0, self()) {
		xatomic.AcquireAfterAtomic()
		return true
	}
	return false
}

// Lock takes the fast path if free, adaptively spins while no waiter
// is parked, then contends for the lock from inside the park slot:
// barging is always possible, so a parked waiter may lose to a fresh
// acquirer more than once before it is finally scheduled.
func (m *Mutex) Lock() {
	self := self()

	if atomic.CompareAndSwapUintptr(&m.owner, 0, self) {
		xatomic.AcquireAfterAtomic()
		return
	}

	if owner := atomic.LoadUintptr(&m.owner); owner&^(locked|parked) == gid.Self() {
		panic("wtflock: Lock called by the goroutine that already holds the mutex")
	}

	for i := 0; i < spinLimit; i++ {
		owner := atomic.LoadUintptr(&m.owner)
		if owner&parked != 0 {
			break
		}
		if atomic.CompareAndSwapUintptr(&m.owner, 0, self) {
			xatomic.AcquireAfterAtomic()
			return
		}
		xatomic.Pause()
	}

	slot := park.Single.Slot(unsafe.Pointer(m))
	w := park.NewWaiter(unsafe.Pointer(m))

	for {
		owner := atomic.LoadUintptr(&m.owner)

		if owner&locked == 0 {
			if atomic.CompareAndSwapUintptr(&m.owner, owner, owner|self) {
				break
			}
			continue
		}

		// Best-effort: mark the owner word as having a parked waiter.
		// If this races with a release or another parker, the outer
		// loop simply re-reads fresh state and tries again.
		atomic.CompareAndSwapUintptr(&m.owner, owner, owner|parked)

		w.Rearm(unsafe.Pointer(m))

		slot.Acquire()
		owner = atomic.LoadUintptr(&m.owner)
		cond := owner&(locked|parked) == locked|parked
		if cond {
			slot.PushTail(w)
		}
		slot.Release()

		if cond {
			for !w.Woken() {
				xatomic.Pause()
			}
		}
	}

	xatomic.AcquireAfterAtomic()
}

// Unlock releases the lock. If no waiter was parked, a single CAS
// suffices; otherwise it takes the slot, unlinks the head waiter
// queued for this mutex, wakes it, and leaves the parked bit set if
// any other waiter remains in the (shared, single) park slot.
func (m *Mutex) Unlock() {
	self := self()
	xatomic.ReleaseBeforeAtomic()

	prev := xatomic.CasUintptr(&m.owner, self, 0)
	if prev == self {
		return
	}
	if prev != self|parked {
		panic("wtflock: Unlock called by a non-owner")
	}

	slot := park.Single.Slot(unsafe.Pointer(m))
	slot.Acquire()
	slot.FindAndRemove(unsafe.Pointer(m))
	if slot.Empty() {
		atomic.StoreUintptr(&m.owner, 0)
	} else {
		atomic.StoreUintptr(&m.owner, parked)
	}
	xatomic.Producer()
	slot.Release()
}
