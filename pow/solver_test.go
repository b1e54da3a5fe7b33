package pow

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/spacemeshos/powgate/shared"
)

// referenceSolve is a direct transcription of the search used to cross check Solve.
func referenceSolve(prefix string, difficulty int) (uint64, string) {
	target := strings.Repeat("0", difficulty)
	for counter := uint64(0); ; counter++ {
		sum := sha256.Sum256([]byte(prefix + strconv.FormatUint(counter, 10)))
		digest := hex.EncodeToString(sum[:])
		if strings.HasPrefix(digest, target) {
			return counter, digest
		}
	}
}

func TestSolveDifficultyZero(t *testing.T) {
	sol, err := Solve(context.Background(), Challenge{Prefix: "abc", Difficulty: 0})
	require.NoError(t, err)
	require.EqualValues(t, 0, sol.Counter)

	sum := sha256.Sum256([]byte("abc0"))
	require.Equal(t, hex.EncodeToString(sum[:]), sol.Digest)
}

func TestSolveIsMinimal(t *testing.T) {
	prefixes := []string{"", "abc", "xk29f", "a much longer prefix than usual"}
	for _, prefix := range prefixes {
		for difficulty := 1; difficulty <= 3; difficulty++ {
			counter, digest := referenceSolve(prefix, difficulty)
			for _, workers := range []int{1, 2, 3, 8} {
				sol, err := Solve(context.Background(), Challenge{Prefix: prefix, Difficulty: difficulty},
					WithWorkers(workers),
					WithCheckInterval(64),
				)
				require.NoError(t, err)
				require.Equal(t, counter, sol.Counter, "prefix %q difficulty %d workers %d", prefix, difficulty, workers)
				require.Equal(t, digest, sol.Digest)
			}
		}
	}
}

func TestSolveEndToEnd(t *testing.T) {
	ch := Challenge{Prefix: "xk29f", Difficulty: 4}
	sol, err := Solve(context.Background(), ch, WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(sol.Digest, "0000"), sol.Digest)

	sum := sha256.Sum256([]byte("xk29f" + strconv.FormatUint(sol.Counter, 10)))
	require.Equal(t, hex.EncodeToString(sum[:]), sol.Digest)
	require.NoError(t, Verify(ch, *sol))

	counter, _ := referenceSolve(ch.Prefix, ch.Difficulty)
	require.Equal(t, counter, sol.Counter)
}

func TestSolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sol, err := Solve(ctx, Challenge{Prefix: "abc", Difficulty: MaxDifficulty}, WithWorkers(2), WithCheckInterval(16))
	require.Nil(t, sol)
	require.ErrorIs(t, err, shared.ErrCancelled)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSolveTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	sol, err := Solve(ctx, Challenge{Prefix: "abc", Difficulty: MaxDifficulty}, WithWorkers(2))
	require.Nil(t, sol)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	var cancelled shared.CancelledError
	require.ErrorAs(t, err, &cancelled)
	require.Greater(t, cancelled.Attempts, uint64(0))
}

func TestSolveMaxAttempts(t *testing.T) {
	ch := Challenge{Prefix: "ceiling", Difficulty: 2}
	counter, _ := referenceSolve(ch.Prefix, ch.Difficulty)

	for _, workers := range []int{1, 4} {
		_, err := Solve(context.Background(), ch, WithWorkers(workers), WithMaxAttempts(counter))
		require.ErrorIs(t, err, shared.ErrAttemptsExhausted)

		sol, err := Solve(context.Background(), ch, WithWorkers(workers), WithMaxAttempts(counter+1))
		require.NoError(t, err)
		require.Equal(t, counter, sol.Counter)
	}
}

func TestSolveProgress(t *testing.T) {
	var (
		mu      sync.Mutex
		reports []Progress
	)
	_, err := Solve(context.Background(), Challenge{Prefix: "progress", Difficulty: MaxDifficulty},
		WithWorkers(1),
		WithMaxAttempts(50_000),
		WithCheckInterval(100),
		WithProgressInterval(1_000),
		WithProgress(func(p Progress) {
			mu.Lock()
			defer mu.Unlock()
			reports = append(reports, p)
		}),
	)
	require.ErrorIs(t, err, shared.ErrAttemptsExhausted)

	mu.Lock()
	defer mu.Unlock()
	require.NotEmpty(t, reports)
	for i, p := range reports {
		require.Zero(t, p.Attempts%1_000)
		require.LessOrEqual(t, p.Attempts, uint64(50_000))
		if i > 0 {
			require.Greater(t, p.Attempts, reports[i-1].Attempts)
		}
	}
}

func TestSolveProgressDoesNotChangeResult(t *testing.T) {
	ch := Challenge{Prefix: "steady", Difficulty: 3}
	plain, err := Solve(context.Background(), ch, WithWorkers(3), WithProgressInterval(0))
	require.NoError(t, err)

	reported, err := Solve(context.Background(), ch, WithWorkers(3), WithProgressInterval(10), WithCheckInterval(10),
		WithProgress(func(Progress) { time.Sleep(time.Millisecond) }))
	require.NoError(t, err)
	require.Equal(t, plain, reported)
}

func TestSolveInvalidChallenge(t *testing.T) {
	for _, d := range []int{-1, MaxDifficulty + 1} {
		_, err := Solve(context.Background(), Challenge{Prefix: "abc", Difficulty: d})
		var chErr shared.InvalidChallengeError
		require.ErrorAs(t, err, &chErr, "difficulty %d", d)
		require.Equal(t, "difficulty", chErr.Param)
	}
}

func TestSolveInvalidOptions(t *testing.T) {
	_, err := Solve(context.Background(), Challenge{Prefix: "abc", Difficulty: 1}, WithWorkers(0))
	require.Error(t, err)

	_, err = Solve(context.Background(), Challenge{Prefix: "abc", Difficulty: 1}, WithCheckInterval(0))
	require.Error(t, err)
}

func TestHasLeadingZeros(t *testing.T) {
	d := [DigestSize]byte{0x00, 0x00, 0x0f, 0xff}

	for n := 0; n <= 5; n++ {
		require.True(t, hasLeadingZeros(&d, n), "n=%d", n)
	}
	require.False(t, hasLeadingZeros(&d, 6))

	var zero [DigestSize]byte
	require.True(t, hasLeadingZeros(&zero, MaxDifficulty))
}

func TestDigest(t *testing.T) {
	sum := sha256.Sum256([]byte("prefix18446744073709551615"))
	require.Equal(t, hex.EncodeToString(sum[:]), Digest("prefix", 18446744073709551615))
}

func TestBenchmark(t *testing.T) {
	res, err := Benchmark(context.Background(), 2, 100*time.Millisecond)
	require.NoError(t, err)
	require.Equal(t, 2, res.Workers)
	require.Greater(t, res.Attempts, uint64(0))
	require.Greater(t, res.Rate(), 0.0)
}

func BenchmarkHasherSum(b *testing.B) {
	h := newHasher("xk29f")
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		h.sum(uint64(i))
	}
}
