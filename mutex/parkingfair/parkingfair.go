// Package parkingfair extends the parking algorithm (see mutex/parking)
// with direct ownership transfer: a releaser that finds a waiter which
// has already lost more than Threshold races to barging threads hands the lock
// straight to that waiter instead of clearing the owner word, trading
// a little throughput for a starvation bound.
package parkingfair

import (
	"sync/atomic"
	"unsafe"

	"github.com/dgwynne-mtx/go-mtxbench/internal/gid"
	"github.com/dgwynne-mtx/go-mtxbench/internal/park"
	"github.com/dgwynne-mtx/go-mtxbench/internal/xatomic"
	"github.com/dgwynne-mtx/go-mtxbench/mutex"
)

func init() {
	mutex.Register("parkingfair", func() mutex.Interface { return New() })
}

const contendedBit uintptr = 1
const spinLimit = 40

// Threshold is the fairness cutoff: a waiter that has lost more than
// this many races to barging threads is handed the lock directly by the next
// release rather than left to re-race for it. It is a package-level
// global by design, mirroring the single process-wide tunable the
// reference implementation reads from -x; set it once before starting
// a benchmark run, not while mutexes built against it are contended.
var Threshold uint32 = 8

// SetThreshold updates the fairness cutoff used by every parkingfair
// mutex already constructed, since they all read Threshold directly
// rather than capturing a copy at New.
func SetThreshold(x uint32) {
	atomic.StoreUint32(&Threshold, x)
}

// Mutex is a fairness-extended parking-lot mutex.
type Mutex struct {
	owner uintptr
}

// New returns an unheld Mutex.
func New() *Mutex { return &Mutex{} }

// TryLock attempts the fast-path CAS only.
func (m *Mutex) TryLock() bool {
	if atomic.CompareAndSwapUintptr(&m.owner, 0, gid.Self()) {
		xatomic.AcquireAfterAtomic()
		return true
	}
	return false
}

// Lock takes the fast path if free, otherwise adaptively spins, then
// parks and races (or is directly handed the lock) until it owns it.
func (m *Mutex) Lock() {
	self := gid.Self()

	owner := xatomic.CasUintptr(&m.owner, 0, self)
	if owner == 0 {
		xatomic.AcquireAfterAtomic()
		return
	}
	if owner == self|contendedBit {
		panic("parkingfair: Lock called by the goroutine that already holds the mutex")
	}

	for i := 0; i < spinLimit; i++ {
		if owner&contendedBit != 0 {
			break
		}
		xatomic.Pause()
		owner = atomic.LoadUintptr(&m.owner)
		if owner == 0 {
			owner = xatomic.CasUintptr(&m.owner, 0, self)
			if owner == 0 {
				xatomic.AcquireAfterAtomic()
				return
			}
		}
	}

	slot := park.Default.Slot(unsafe.Pointer(m))
	w := park.NewWaiter(unsafe.Pointer(m))
	w.SetSelf(self)

	slot.Acquire()
	slot.PushTail(w)
	slot.Release()

	for {
		nowner := owner | contendedBit
		o := xatomic.CasUintptr(&m.owner, owner, nowner)
		if o == owner {
			o = nowner
		}
		if o&^contendedBit == self {
			// Either our own CAS above claimed the lock for us, or a
			// releaser performed a direct transfer while we weren't
			// looking; either way we now own it.
			break
		}
		if o&contendedBit != 0 {
			for !w.Woken() {
				xatomic.Pause()
			}
			w.AddSpin()
		}

		owner = xatomic.CasUintptr(&m.owner, 0, self)
		if owner == 0 {
			break
		}
		w.Rearm(unsafe.Pointer(m))
	}

	slot.Acquire()
	slot.Remove(w)
	if slot.HasWaiterFor(unsafe.Pointer(m)) {
		// Other waiters for this mutex remain queued: make sure the
		// owner word still carries the contended bit so the next
		// Unlock goes looking for them instead of taking the fast
		// path.
		atomic.StoreUintptr(&m.owner, self|contendedBit)
	}
	slot.Release()

	xatomic.AcquireAfterAtomic()
}

// Unlock releases the lock. If a waiter is parked and has lost more
// than Threshold races, ownership is transferred directly to it;
// otherwise the owner word is cleared and the waiter re-races for it.
func (m *Mutex) Unlock() {
	self := gid.Self()
	xatomic.ReleaseBeforeAtomic()

	prev := xatomic.CasUintptr(&m.owner, self, 0)
	if prev == self {
		return
	}
	if prev != self|contendedBit {
		panic("parkingfair: Unlock called by a non-owner")
	}

	slot := park.Default.Slot(unsafe.Pointer(m))
	slot.Acquire()
	w := slot.Find(unsafe.Pointer(m))
	if w == nil {
		atomic.StoreUintptr(&m.owner, 0)
		slot.Release()
		return
	}

	threshold := atomic.LoadUint32(&Threshold)
	if w.Spins() > threshold {
		atomic.StoreUintptr(&m.owner, w.Self())
	} else {
		atomic.StoreUintptr(&m.owner, 0)
	}
	xatomic.Producer()
	w.Wake()
	slot.Release()
}
