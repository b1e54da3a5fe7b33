package pow

import (
	"errors"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/cpu"
	"go.uber.org/zap"
)

const (
	DefaultProgressInterval = 100_000
	DefaultCheckInterval    = 1 << 10
)

// Progress is a snapshot of a running search.
type Progress struct {
	Attempts uint64
	Elapsed  time.Duration
	Rate     float64 // hashes per second
}

type option struct {
	workers          int
	progress         func(Progress)
	progressInterval uint64
	checkInterval    uint64
	maxAttempts      uint64
	logger           *zap.Logger
}

func (o *option) validate() error {
	if o.workers < 1 {
		return errors.New("`workers` must be at least 1")
	}
	if o.checkInterval == 0 {
		return errors.New("`checkInterval` must be positive")
	}
	return nil
}

type OptionFunc func(*option) error

// WithWorkers sets the number of goroutines sharing the counter space.
// Worker k tests the counters congruent to k modulo n.
func WithWorkers(n int) OptionFunc {
	return func(o *option) error {
		if n < 1 {
			return errors.New("`workers` must be at least 1")
		}
		o.workers = n
		return nil
	}
}

// WithProgress registers a callback invoked roughly every progress interval attempts.
// The callback runs on its own goroutine; reports are dropped while it is busy.
func WithProgress(fn func(Progress)) OptionFunc {
	return func(o *option) error {
		o.progress = fn
		return nil
	}
}

// WithProgressInterval sets the number of attempts between progress reports. Zero disables them.
func WithProgressInterval(n uint64) OptionFunc {
	return func(o *option) error {
		o.progressInterval = n
		return nil
	}
}

// WithCheckInterval sets how many hashes a worker computes between cancellation checks.
func WithCheckInterval(n uint64) OptionFunc {
	return func(o *option) error {
		if n == 0 {
			return errors.New("`checkInterval` must be positive")
		}
		o.checkInterval = n
		return nil
	}
}

// WithMaxAttempts limits the search to counters below n. Zero means unbounded.
func WithMaxAttempts(n uint64) OptionFunc {
	return func(o *option) error {
		o.maxAttempts = n
		return nil
	}
}

func WithLogger(logger *zap.Logger) OptionFunc {
	return func(o *option) error {
		o.logger = logger
		return nil
	}
}

// DefaultWorkers returns the number of physical cores, falling back to the logical count.
func DefaultWorkers() int {
	n, err := cpu.Counts(false)
	if err != nil || n < 1 {
		return runtime.NumCPU()
	}
	return n
}
