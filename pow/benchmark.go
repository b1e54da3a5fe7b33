package pow

import (
	"context"
	"errors"
	"time"

	"github.com/spacemeshos/powgate/shared"
)

type BenchmarkResult struct {
	Workers  int
	Attempts uint64
	Elapsed  time.Duration
}

// Rate returns hashes per second.
func (r BenchmarkResult) Rate() float64 {
	return rate(r.Attempts, r.Elapsed)
}

// Benchmark runs the search loop with the given number of workers for roughly d
// against a challenge that can't be solved in practice.
func Benchmark(ctx context.Context, workers int, d time.Duration) (BenchmarkResult, error) {
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	start := time.Now()
	_, err := Solve(ctx, Challenge{Prefix: "benchmark", Difficulty: MaxDifficulty},
		WithWorkers(workers),
		WithProgressInterval(0),
	)
	elapsed := time.Since(start)

	var cancelled shared.CancelledError
	switch {
	case errors.As(err, &cancelled) && errors.Is(err, context.DeadlineExceeded):
		return BenchmarkResult{Workers: workers, Attempts: cancelled.Attempts, Elapsed: elapsed}, nil
	case err != nil:
		return BenchmarkResult{}, err
	default:
		return BenchmarkResult{}, errors.New("benchmark challenge was unexpectedly solved")
	}
}
