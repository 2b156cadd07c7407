// Package xatomic collects the handful of atomic primitives every mutex
// algorithm package in this module is built from: compare-and-swap,
// atomic swap, atomic increment, and the memory-ordering vocabulary used
// by the original kernel mutex implementations this module reimplements.
//
// Go's sync/atomic already gives every exported operation here the
// ordering a real CPU fence would: an atomic.CompareAndSwapX that
// succeeds behaves as an acquire, and the store half of an atomic op
// behaves as a release, on every platform the Go toolchain supports.
// The fence functions below are therefore no-ops; they exist so call
// sites can be annotated exactly where the reference C implementation
// issues membar_enter_after_atomic/membar_exit/membar_producer/
// membar_consumer, keeping the algorithms' shape legible against the
// original pseudocode.
package xatomic

import (
	"runtime"
	"sync/atomic"
)

// Pause is the busy-cycle hint issued inside every spin loop in this
// module, standing in for the architecture-specific CPU_BUSY_CYCLE
// (x86 PAUSE) instruction. runtime.Gosched is the idiomatic Go
// replacement used throughout the corpus's own spin locks (the MCS
// implementation this module's k42 package is grounded on calls it in
// exactly this position).
func Pause() {
	runtime.Gosched()
}

// AcquireAfterAtomic marks the point at which spec.md requires an
// acquire fence following a successful acquiring CAS or swap. No-op:
// see the package doc comment.
func AcquireAfterAtomic() {}

// ReleaseBeforeAtomic marks the point at which spec.md requires a
// release fence preceding the atomic write that publishes a release.
// No-op: see the package doc comment.
func ReleaseBeforeAtomic() {}

// Acquire marks a plain acquire fence (used where the original issues
// membar_enter outside of a CAS, e.g. the ticket lock's busy-wait
// exit). No-op: see the package doc comment.
func Acquire() {}

// Producer marks a producer fence (StoreStore) used by the parkingfair
// and wtflock releasers around waiter wake-up writes. No-op: see the
// package doc comment.
func Producer() {}

// Consumer marks a data-dependency consumer fence used by MCS waiters
// and wtflock's wake consumers. No-op: see the package doc comment.
func Consumer() {}

// CasUintptr emulates the C original's atomic_cas_ulong, which
// returns the value observed at addr rather than a bool: it CASes
// addr from old to new and reports what addr held just before the
// attempt. A returned value equal to old means the CAS succeeded, as
// in the original's "owner = atomic_cas_ulong(...); if (owner == old)"
// idiom the parking-style algorithms are built around.
func CasUintptr(addr *uintptr, old, new uintptr) uintptr {
	for {
		cur := atomic.LoadUintptr(addr)
		if cur != old {
			return cur
		}
		if atomic.CompareAndSwapUintptr(addr, old, new) {
			return old
		}
	}
}
