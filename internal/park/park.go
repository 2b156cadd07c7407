// Package park implements the parking-lot substructure shared by the
// parking, parkingfair, and wtflock mutex algorithms: a fixed-size
// array of cacheline-padded park slots, each a spin-lock-guarded FIFO
// of waiter descriptors, addressed by a hash of the contended mutex's
// address.
package park

import (
	"math/bits"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/cpu"

	"github.com/dgwynne-mtx/go-mtxbench/internal/xatomic"
)

// Waiter is the descriptor a goroutine publishes into a park slot
// while it waits for a contended mutex. Callers allocate one on entry
// to their slow path; Go's escape analysis will promote it to the
// heap for the duration it is visible to the releasing goroutine,
// which is the idiomatic replacement for the original's
// stack-allocated-but-pinned-by-convention node.
type Waiter struct {
	mtx   unsafe.Pointer // atomic: the mutex being waited for; nulled to wake
	self  uintptr        // parkingfair only: the waiter's own identity
	spins uint32         // parkingfair only: races lost to barging threads

	next, prev *Waiter
}

// NewWaiter returns a waiter already armed to wait for mtx.
func NewWaiter(mtx unsafe.Pointer) *Waiter {
	return &Waiter{mtx: mtx}
}

// Mtx returns the mutex this waiter is currently waiting for, or nil
// once it has been woken.
func (w *Waiter) Mtx() unsafe.Pointer { return atomic.LoadPointer(&w.mtx) }

// Rearm re-publishes mtx as the one this waiter is waiting for,
// used when a re-park loop needs to try again after losing a race.
func (w *Waiter) Rearm(mtx unsafe.Pointer) { atomic.StorePointer(&w.mtx, mtx) }

// Wake signals this waiter by nulling its mutex pointer. Called by
// the releaser while holding the waiter's park slot.
func (w *Waiter) Wake() {
	xatomic.Producer()
	atomic.StorePointer(&w.mtx, nil)
}

// Woken reports whether this waiter has been signalled.
func (w *Waiter) Woken() bool {
	woken := atomic.LoadPointer(&w.mtx) == nil
	if woken {
		xatomic.Consumer()
	}
	return woken
}

// Self and SetSelf carry the parkingfair waiter's own identity, used
// by the releaser to perform direct ownership transfer.
func (w *Waiter) Self() uintptr     { return w.self }
func (w *Waiter) SetSelf(v uintptr) { w.self = v }

// AddSpin records one more re-park cycle lost to a barging thread.
func (w *Waiter) AddSpin() { atomic.AddUint32(&w.spins, 1) }

// Spins returns the number of re-park cycles this waiter has lost.
func (w *Waiter) Spins() uint32 { return atomic.LoadUint32(&w.spins) }

// Next returns the next waiter in whatever slot list w is currently
// linked into, or nil at the tail. Caller must hold that slot.
func (w *Waiter) Next() *Waiter { return w.next }

// Slot is one park: an intrusive, spin-lock-guarded FIFO of waiters.
// Waiters for different mutexes may coexist in one slot; callers
// identify their own waiters by the mutex pointer stored in each one.
type Slot struct {
	lock       uint32
	head, tail *Waiter
	_          cpu.CacheLinePad
}

// Acquire takes the slot's inner spin-lock. Hold it only for bounded,
// list-traversal-only work: never call Lock/Unlock on a mutex while
// holding a park slot.
func (s *Slot) Acquire() {
	for !atomic.CompareAndSwapUint32(&s.lock, 0, 1) {
		xatomic.Pause()
	}
	xatomic.AcquireAfterAtomic()
}

// Release drops the slot's inner spin-lock.
func (s *Slot) Release() {
	xatomic.ReleaseBeforeAtomic()
	atomic.StoreUint32(&s.lock, 0)
}

// PushTail enqueues w at the tail of the slot's waitlist. Caller must
// hold the slot.
func (s *Slot) PushTail(w *Waiter) {
	w.next = nil
	w.prev = s.tail
	if s.tail != nil {
		s.tail.next = w
	} else {
		s.head = w
	}
	s.tail = w
}

// Remove unlinks w from the slot's waitlist. Caller must hold the
// slot. A no-op if w is not currently linked into this slot.
func (s *Slot) Remove(w *Waiter) {
	if w.prev != nil {
		w.prev.next = w.next
	} else if s.head == w {
		s.head = w.next
	}
	if w.next != nil {
		w.next.prev = w.prev
	} else if s.tail == w {
		s.tail = w.prev
	}
	w.next, w.prev = nil, nil
}

// First returns the head of the waitlist, or nil if empty. Caller
// must hold the slot.
func (s *Slot) First() *Waiter { return s.head }

// Empty reports whether the slot's waitlist has no waiters. Caller
// must hold the slot.
func (s *Slot) Empty() bool { return s.head == nil }

// FindAndWake scans the waitlist for the first waiter waiting on mtx
// and wakes it, without unlinking it: the woken waiter unlinks
// itself, amortising FIFO maintenance across lost barging races, per
// spec.md's parking release algorithm. Caller must hold the slot.
func (s *Slot) FindAndWake(mtx unsafe.Pointer) bool {
	for w := s.head; w != nil; w = w.next {
		if w.Mtx() == mtx {
			w.Wake()
			return true
		}
	}
	return false
}

// Find scans the waitlist for the first waiter waiting on mtx without
// waking or unlinking it, for callers that need to inspect a waiter
// (e.g. its Spins) before deciding how to release it. Caller must hold
// the slot.
func (s *Slot) Find(mtx unsafe.Pointer) *Waiter {
	for w := s.head; w != nil; w = w.next {
		if w.Mtx() == mtx {
			return w
		}
	}
	return nil
}

// FindAndRemove scans the waitlist for the first waiter waiting on
// mtx, unlinks it, wakes it, and returns it. Used by wtflock, where
// the releaser (not the woken waiter) owns dequeueing. Caller must
// hold the slot.
func (s *Slot) FindAndRemove(mtx unsafe.Pointer) *Waiter {
	for w := s.head; w != nil; w = w.next {
		if w.Mtx() == mtx {
			s.Remove(w)
			w.Wake()
			return w
		}
	}
	return nil
}

// HasWaiterFor reports whether any waiter in the slot is still
// waiting for mtx. Caller must hold the slot.
func (s *Slot) HasWaiterFor(mtx unsafe.Pointer) bool {
	for w := s.head; w != nil; w = w.next {
		if w.Mtx() == mtx {
			return true
		}
	}
	return false
}

// Registry is the fixed-size, power-of-two array of park slots shared
// by every mutex of a given algorithm. A one-slot registry models the
// single-lot variant wtflock uses.
type Registry struct {
	slots []Slot
	shift uint
	mask  uintptr
}

const cachelineShift = 6 // log2(64): matches spec.md's park-mapping hash

// NewRegistry allocates a registry of n park slots. n must be a power
// of two.
func NewRegistry(n int) *Registry {
	if n <= 0 || n&(n-1) != 0 {
		panic("park: registry size must be a power of two")
	}
	return &Registry{
		slots: make([]Slot, n),
		shift: uint(bits.Len(uint(n - 1))),
		mask:  uintptr(n - 1),
	}
}

// Slot returns the park slot the mutex at addr hashes to.
func (r *Registry) Slot(addr unsafe.Pointer) *Slot {
	a := uintptr(addr) >> cachelineShift
	a ^= a >> r.shift
	return &r.slots[a&r.mask]
}

// Default is the process-wide 128-slot parking lot used by the
// parking and parkingfair algorithms. It replaces the C original's
// __attribute__((constructor))-initialised array with ordinary Go
// static initialisation, per spec.md's design notes.
var Default = NewRegistry(128)

// Single is the one-slot parking lot used by wtflock.
var Single = NewRegistry(1)
