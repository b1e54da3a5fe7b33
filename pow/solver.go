package pow

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spacemeshos/powgate/shared"
)

const noSolution = math.MaxUint64

// search is the state shared by the workers of a single Solve call.
type search struct {
	ch      Challenge
	opts    option
	start   time.Time
	workers uint64

	best     atomic.Uint64
	attempts atomic.Uint64

	progressCh chan Progress
}

// Solve finds the lowest counter whose digest satisfies ch.
//
// The counter space is split across the configured workers. A worker that finds
// a solution publishes it, and every worker keeps going until its next counter
// is above the best one published, so the result does not depend on the number
// of workers or on scheduling.
//
// Solve returns shared.CancelledError (matching both shared.ErrCancelled and
// ctx.Err()) if ctx is done before the lowest solution is established, and
// shared.ErrAttemptsExhausted if a WithMaxAttempts ceiling was reached.
func Solve(ctx context.Context, ch Challenge, opts ...OptionFunc) (*Solution, error) {
	options := option{
		workers:          DefaultWorkers(),
		progressInterval: DefaultProgressInterval,
		checkInterval:    DefaultCheckInterval,
		logger:           zap.NewNop(),
	}
	for _, opt := range opts {
		if err := opt(&options); err != nil {
			return nil, err
		}
	}
	if err := options.validate(); err != nil {
		return nil, err
	}
	if err := ch.Validate(); err != nil {
		return nil, err
	}
	logger := options.logger

	if ch.Difficulty == 0 {
		return &Solution{Counter: 0, Digest: Digest(ch.Prefix, 0)}, nil
	}

	s := &search{
		ch:      ch,
		opts:    options,
		start:   time.Now(),
		workers: uint64(options.workers),
	}
	s.best.Store(noSolution)

	logger.Info("searching for proof of work solution",
		zap.String("prefix", ch.Prefix),
		zap.Int("difficulty", ch.Difficulty),
		zap.Int("workers", options.workers),
		zap.Uint64("maxAttempts", options.maxAttempts),
	)

	var reporter sync.WaitGroup
	if options.progressInterval > 0 {
		s.progressCh = make(chan Progress, 1)
		reporter.Add(1)
		go func() {
			defer reporter.Done()
			s.report()
		}()
	}

	eg, egCtx := errgroup.WithContext(ctx)
	for k := uint64(0); k < s.workers; k++ {
		k := k
		eg.Go(func() error {
			return s.work(egCtx, k)
		})
	}
	err := eg.Wait()

	if s.progressCh != nil {
		close(s.progressCh)
		reporter.Wait()
	}

	attempts := s.attempts.Load()
	elapsed := time.Since(s.start)
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		logger.Info("proof of work search interrupted",
			zap.Uint64("attempts", attempts),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, shared.CancelledError{Attempts: attempts, Cause: err}
	case err != nil:
		return nil, err
	}

	best := s.best.Load()
	if best == noSolution {
		return nil, fmt.Errorf("%w: no solution below counter %d", shared.ErrAttemptsExhausted, options.maxAttempts)
	}

	d := newHasher(ch.Prefix).sum(best)
	sol := &Solution{Counter: best, Digest: hex.EncodeToString(d[:])}
	logger.Info("proof of work solved",
		zap.Uint64("counter", sol.Counter),
		zap.String("digest", sol.Digest),
		zap.Uint64("attempts", attempts),
		zap.Duration("elapsed", elapsed),
		zap.Float64("rate", rate(attempts, elapsed)),
	)
	return sol, nil
}

// work tests the counters k, k+W, k+2W, ... until it either passes the best
// published solution, reaches the attempt ceiling or ctx is done.
func (s *search) work(ctx context.Context, k uint64) error {
	h := newHasher(s.ch.Prefix)
	difficulty := s.ch.Difficulty
	limit := s.opts.maxAttempts
	if limit == 0 {
		limit = noSolution
	}

	var local uint64
	defer func() { s.flush(local) }()

	for counter := k; counter < limit; counter += s.workers {
		if counter > s.best.Load() {
			return nil
		}

		d := h.sum(counter)
		local++
		if hasLeadingZeros(&d, difficulty) {
			s.publish(counter)
			return nil
		}

		if local == s.opts.checkInterval {
			s.flush(local)
			local = 0
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		if counter > noSolution-s.workers {
			break
		}
	}
	return nil
}

// publish lowers the best solution to counter if it improves on it.
func (s *search) publish(counter uint64) {
	for {
		cur := s.best.Load()
		if counter >= cur || s.best.CompareAndSwap(cur, counter) {
			return
		}
	}
}

func (s *search) flush(n uint64) {
	if n == 0 {
		return
	}
	total := s.attempts.Add(n)
	interval := s.opts.progressInterval
	if s.progressCh == nil || (total-n)/interval == total/interval {
		return
	}

	elapsed := time.Since(s.start)
	p := Progress{Attempts: total, Elapsed: elapsed, Rate: rate(total, elapsed)}
	select {
	case s.progressCh <- p:
	default:
	}
}

func (s *search) report() {
	for p := range s.progressCh {
		s.opts.logger.Debug("proof of work progress",
			zap.Uint64("attempts", p.Attempts),
			zap.Float64("rate", p.Rate),
		)
		if s.opts.progress != nil {
			s.opts.progress(p)
		}
	}
}

func rate(attempts uint64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(attempts) / elapsed.Seconds()
}
