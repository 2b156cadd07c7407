// Package bench implements the worker-barrier benchmark harness: start
// nthreads goroutines, release them together, have each increment a
// shared counter loops times under a configured mutex, and report
// wall-clock and user CPU time once every worker has finished.
package bench

import (
	"fmt"
	"runtime"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dgwynne-mtx/go-mtxbench/mutex"
)

// Result summarizes one completed benchmark run.
type Result struct {
	Algorithm string
	NThreads  int
	Loops     uint64
	Counter   uint64
	RealTime  time.Duration
	UserTime  time.Duration
}

// Run starts nthreads workers against m, each looping loops times, and
// blocks until they have all finished. It returns an error if the
// final counter does not equal nthreads*loops, or if the CPU-time
// measurement fails.
func Run(algorithm string, m mutex.Interface, nthreads int, loops uint64) (Result, error) {
	var barrier int32 = 1
	var counter uint64

	var g errgroup.Group
	for i := 0; i < nthreads; i++ {
		g.Go(func() error {
			for atomic.LoadInt32(&barrier) != 0 {
				runtime.Gosched()
			}
			for j := uint64(0); j < loops; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
			return nil
		})
	}

	tick := time.Now()
	atomic.StoreInt32(&barrier, 0)
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("bench: worker failed: %w", err)
	}
	real := time.Since(tick)

	var ru syscall.Rusage
	if err := syscall.Getrusage(syscall.RUSAGE_SELF, &ru); err != nil {
		return Result{}, fmt.Errorf("bench: getrusage: %w", err)
	}
	user := time.Duration(ru.Utime.Sec)*time.Second + time.Duration(ru.Utime.Usec)*time.Microsecond

	want := uint64(nthreads) * loops
	if counter != want {
		return Result{}, fmt.Errorf("bench: final counter %d, want %d", counter, want)
	}

	return Result{
		Algorithm: algorithm,
		NThreads:  nthreads,
		Loops:     loops,
		Counter:   counter,
		RealTime:  real,
		UserTime:  user,
	}, nil
}
