// Package mutextest holds the mutual-exclusion, happens-before, and
// try-lock stress helpers reused by every algorithm package's tests
// (properties P1, P3, and P4 of spec.md), so each algorithm's own test
// file only has to supply the algorithm and any FIFO- or
// fairness-specific checks of its own.
package mutextest

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgwynne-mtx/go-mtxbench/mutex"
)

// MutualExclusion runs n goroutines that each take m and increment a
// plain, unsynchronised counter loops times. If m ever lets two
// goroutines in at once, either the inside guard below fires or
// (under go test -race) the race detector does.
func MutualExclusion(t *testing.T, m mutex.Interface, n, loops int) {
	t.Helper()

	var wg sync.WaitGroup
	var counter int
	var inside int32

	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < loops; j++ {
				m.Lock()
				assert.Equal(t, int32(1), atomic.AddInt32(&inside, 1), "mutual exclusion violated: more than one goroutine inside")
				counter++
				atomic.AddInt32(&inside, -1)
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, n*loops, counter)
}

// TryLockEmptyCriticalSection exercises P4: a returning-true TryLock
// immediately followed by Unlock must be a valid empty critical
// section, and must leave the lock free for a subsequent Lock.
func TryLockEmptyCriticalSection(t *testing.T, m mutex.Interface) {
	t.Helper()

	require.True(t, m.TryLock(), "TryLock on a free mutex returned false")
	m.Unlock()

	done := make(chan struct{})
	go func() {
		m.Lock()
		m.Unlock()
		close(done)
	}()
	<-done
}

// HappensBefore exercises P3: plain writes made before Unlock must be
// visible to the reads a subsequent successful Lock's holder makes.
// One goroutine writes an increasing sequence under the lock, the
// other reads it under the lock and fails the test if it ever
// observes the sequence go backwards.
func HappensBefore(t *testing.T, m mutex.Interface, rounds int) {
	t.Helper()

	var shared int
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 1; i <= rounds; i++ {
			m.Lock()
			shared = i
			m.Unlock()
		}
	}()
	go func() {
		defer wg.Done()
		last := 0
		for i := 0; i < rounds; i++ {
			m.Lock()
			assert.GreaterOrEqual(t, shared, last, "happens-before violated")
			last = shared
			m.Unlock()
		}
	}()
	wg.Wait()
}
