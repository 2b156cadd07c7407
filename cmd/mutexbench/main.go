// Command mutexbench runs the mutex benchmark harness against one
// registered algorithm and reports either a human-readable summary or
// a single JSON line.
package main

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"
	"github.com/spf13/pflag"

	"github.com/dgwynne-mtx/go-mtxbench/bench"
	"github.com/dgwynne-mtx/go-mtxbench/mutex"
	"github.com/dgwynne-mtx/go-mtxbench/mutex/parkingfair"

	_ "github.com/dgwynne-mtx/go-mtxbench/mutex/backoff"
	_ "github.com/dgwynne-mtx/go-mtxbench/mutex/k42"
	_ "github.com/dgwynne-mtx/go-mtxbench/mutex/k42alt"
	_ "github.com/dgwynne-mtx/go-mtxbench/mutex/parking"
	_ "github.com/dgwynne-mtx/go-mtxbench/mutex/spinlist"
	_ "github.com/dgwynne-mtx/go-mtxbench/mutex/spinlockrd"
	_ "github.com/dgwynne-mtx/go-mtxbench/mutex/ticket"
	_ "github.com/dgwynne-mtx/go-mtxbench/mutex/wtflock"
)

const maxLoopsHuman = 1_000_000

var log = logrus.New()

type jsonResult struct {
	Lock     string      `json:"lock"`
	Loops    uint64      `json:"loops"`
	NThreads int         `json:"nthreads"`
	Time     json.Number `json:"time"`
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags := pflag.NewFlagSet("mutexbench", pflag.ContinueOnError)

	nthreads := flags.IntP("nthreads", "n", runtime.NumCPU(), "number of worker goroutines")
	loops := flags.Uint64P("loops", "l", 1_000_000, "iterations per worker")
	fairThreshold := flags.UintP("fair-threshold", "x", 8, "parkingfair fairness threshold")
	algorithm := flags.StringP("algorithm", "a", "backoff", "mutex algorithm: "+joinNames())
	asJSON := flags.Bool("json", false, "emit a single JSON result line instead of human-readable text")

	if err := flags.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		log.WithError(err).Error("failed to parse flags")
		return 2
	}

	if *nthreads < 1 || *nthreads > 128 {
		log.WithField("nthreads", *nthreads).Error("nthreads out of range [1,128]")
		return 2
	}

	maxLoops := uint64(maxLoopsHuman)
	if *asJSON {
		maxLoops = math.MaxUint64 / uint64(*nthreads)
	}
	if *loops < 1 || *loops > maxLoops {
		log.WithFields(logrus.Fields{"loops": *loops, "max": maxLoops}).Error("loops out of range")
		return 2
	}

	if *fairThreshold > 128 {
		log.WithField("fair_threshold", *fairThreshold).Error("fair-threshold out of range [0,128]")
		return 2
	}
	parkingfair.SetThreshold(uint32(*fairThreshold))

	m, err := mutex.New(*algorithm)
	if err != nil {
		log.WithError(err).Error("unknown algorithm")
		return 2
	}

	log.WithFields(logrus.Fields{
		"algorithm": *algorithm,
		"nthreads":  *nthreads,
		"loops":     *loops,
	}).Info("starting benchmark")

	res, err := bench.Run(*algorithm, m, *nthreads, *loops)
	if err != nil {
		log.WithError(err).Error("benchmark run failed")
		return 1
	}

	if *asJSON {
		out := jsonResult{
			Lock:     res.Algorithm,
			Loops:    res.Loops,
			NThreads: res.NThreads,
			Time:     json.Number(fmt.Sprintf("%.3f", res.RealTime.Seconds())),
		}
		enc := json.NewEncoder(os.Stdout)
		if err := enc.Encode(out); err != nil {
			log.WithError(err).Error("failed to encode JSON result")
			return 1
		}
		return 0
	}

	fmt.Printf("real time: %s, user time: %s\n",
		bench.FormatInterval(res.RealTime), bench.FormatInterval(res.UserTime))
	return 0
}

func joinNames() string {
	names := mutex.Names()
	s := ""
	for i, n := range names {
		if i > 0 {
			s += ", "
		}
		s += n
	}
	return s
}
