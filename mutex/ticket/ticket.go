// Package ticket implements a strict-FIFO ticket lock formed from two
// counters: tick (currently served) and next (next ticket to hand
// out).
package ticket

import (
	"sync/atomic"

	"github.com/dgwynne-mtx/go-mtxbench/internal/xatomic"
	"github.com/dgwynne-mtx/go-mtxbench/mutex"
)

func init() {
	mutex.Register("ticket", func() mutex.Interface { return New() })
}

// Mutex is a ticket lock: threads are served in exactly the order
// they call Lock, making it starvation-free and strictly fair, unlike
// backoff and spinlockrd.
type Mutex struct {
	tick uint32 // currently served ticket
	next uint32 // next ticket to hand out
}

// New returns an unheld Mutex. tick starts one ahead of next: Lock
// takes ticket next+1, so the lock is free whenever tick == next+1.
func New() *Mutex { return &Mutex{tick: 1, next: 0} }

// TryLock always returns false: atomically checking that the lock is
// free and taking a ticket in one step isn't implementable with two
// separate counters short of a double-wide CAS, so every caller must
// be prepared for TryLock to never succeed on this algorithm.
func (m *Mutex) TryLock() bool {
	return false
}

// Lock takes the next ticket and busy-waits until it is the one being
// served.
func (m *Mutex) Lock() {
	n := atomic.AddUint32(&m.next, 1)
	for atomic.LoadUint32(&m.tick) != n {
		xatomic.Pause()
	}
	xatomic.Acquire()
}

// Unlock advances the served ticket, letting the next waiter in line
// proceed. The increment need not be atomic: only the current owner
// ever writes m.tick.
func (m *Mutex) Unlock() {
	xatomic.ReleaseBeforeAtomic()
	atomic.StoreUint32(&m.tick, m.tick+1)
}
