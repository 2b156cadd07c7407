package k42alt

import (
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dgwynne-mtx/go-mtxbench/internal/mutextest"
)

func TestMutualExclusion(t *testing.T) {
	mutextest.MutualExclusion(t, New(), runtime.GOMAXPROCS(0), 2000)
}

func TestTryLockEmptyCriticalSection(t *testing.T) {
	mutextest.TryLockEmptyCriticalSection(t, New())
}

func TestHappensBefore(t *testing.T) {
	mutextest.HappensBefore(t, New(), 5000)
}

// TestFIFO exercises P6 the same way k42's does: staggering goroutine
// starts gives each one time to link into the queue before the next
// is launched.
func TestFIFO(t *testing.T) {
	m := New()
	const n = 16

	var mu sync.Mutex
	order := make([]int, 0, n)

	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			m.Lock()
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
			m.Unlock()
		}(i)
		time.Sleep(2 * time.Millisecond)
	}
	wg.Wait()

	for i, v := range order {
		assert.Equal(t, i, v, "FIFO order violated: entered %v, want 0..%d in order", order, n-1)
	}
}
