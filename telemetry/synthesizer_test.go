package telemetry

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fixedClock time.Time

func (c fixedClock) Now() time.Time { return time.Time(c) }

var epoch = time.UnixMilli(1_700_000_000_000)

func newTestSynthesizer(seed int64, opts ...Option) *Synthesizer {
	opts = append([]Option{
		WithRand(rand.New(rand.NewSource(seed))),
		WithClock(fixedClock(epoch)),
	}, opts...)
	return NewSynthesizer(opts...)
}

func TestSynthesize(t *testing.T) {
	r := require.New(t)
	s := newTestSynthesizer(1)

	tr := s.Synthesize(50)
	r.Len(tr, 50)
	r.NoError(tr.Validate(s.Box()))
	r.Equal(epoch.UnixMilli(), tr[0].T)

	for i := 1; i < len(tr); i++ {
		dt := tr[i].T - tr[i-1].T
		r.GreaterOrEqual(dt, int64(1))
		r.LessOrEqual(dt, int64(5))

		r.LessOrEqual(abs(tr[i].X-tr[i-1].X), 3)
		dy := tr[i].Y - tr[i-1].Y
		r.GreaterOrEqual(dy, -1)
		r.LessOrEqual(dy, 2)
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	a := newTestSynthesizer(42).Synthesize(30)
	b := newTestSynthesizer(42).Synthesize(30)
	require.Equal(t, a, b)

	c := newTestSynthesizer(43).Synthesize(30)
	require.NotEqual(t, a, c)
}

func TestSynthesizeEmpty(t *testing.T) {
	s := newTestSynthesizer(1)
	require.Empty(t, s.Synthesize(0))
	require.Empty(t, s.Synthesize(-3))
}

func TestSynthesizeStaysInTightBox(t *testing.T) {
	box := Box{MinX: 10, MinY: 10, MaxX: 12, MaxY: 11}
	for seed := int64(0); seed < 20; seed++ {
		s := newTestSynthesizer(seed, WithBox(box), WithStart(Point{X: 0, Y: 500}))
		tr := s.Synthesize(200)
		require.NoError(t, tr.Validate(box), "seed %d", seed)
	}
}

func TestJitter(t *testing.T) {
	r := require.New(t)

	for seed := int64(0); seed < 50; seed++ {
		s := newTestSynthesizer(seed)
		orig := s.Synthesize(50)
		snapshot := append(Trajectory(nil), orig...)

		jittered := s.Jitter(orig, 3, 5)
		r.Len(jittered, len(orig))
		r.NoError(jittered.Validate(s.Box()), "seed %d", seed)
		r.Equal(snapshot, orig, "input must not be modified")
	}
}

func TestJitterZeroIsIdentity(t *testing.T) {
	s := newTestSynthesizer(7)
	orig := s.Synthesize(20)
	require.Equal(t, orig, s.Jitter(orig, 0, 0))
}

func TestJitterReordersByTime(t *testing.T) {
	r := require.New(t)
	s := newTestSynthesizer(3)

	// Samples 1ms apart with ±50ms of time noise. X identifies each sample.
	tr := make(Trajectory, 20)
	for i := range tr {
		tr[i] = Sample{X: 100 + i, Y: 100, T: 1000 + int64(i)}
	}
	out := s.Jitter(tr, 0, 50)
	r.Len(out, len(tr))
	r.NoError(out.Validate(s.Box()))

	seen := make(map[int]bool, len(out))
	inOrder := true
	for i, p := range out {
		seen[p.X] = true
		if p.X != tr[i].X {
			inOrder = false
		}
	}
	r.Len(seen, len(tr))
	r.False(inOrder, "time noise should have reordered samples")
}

func TestJitterNegativeAmplitude(t *testing.T) {
	r := require.New(t)
	tr := newTestSynthesizer(5).Synthesize(200)

	r.Equal(newTestSynthesizer(9).Jitter(tr, 2, 3), newTestSynthesizer(9).Jitter(tr, -2, -3))

	// Without time noise the order is kept, so offsets can be compared per sample.
	out := newTestSynthesizer(9).Jitter(tr, -2, 0)
	offsets := make(map[int]bool)
	for i := range tr {
		dx := out[i].X - tr[i].X
		r.LessOrEqual(abs(dx), 2)
		offsets[dx] = true
	}
	r.Greater(len(offsets), 1, "jitter must vary per sample")
}

func TestRebase(t *testing.T) {
	r := require.New(t)
	s := newTestSynthesizer(11)
	tr := s.Jitter(s.Synthesize(40), 2, 3)

	now := int64(1_800_000_000_000)
	rebased := Rebase(tr, now)
	r.Len(rebased, len(tr))
	r.Equal(now, rebased[0].T)
	for i := range tr {
		r.Equal(tr[i].X, rebased[i].X)
		r.Equal(tr[i].Y, rebased[i].Y)
		if i > 0 {
			r.Equal(tr[i].T-tr[i-1].T, rebased[i].T-rebased[i-1].T)
		}
	}
	r.Equal(tr.Duration(), rebased.Duration())
}

func TestRebaseEmpty(t *testing.T) {
	require.Empty(t, Rebase(nil, 5))
}

func TestRefresh(t *testing.T) {
	later := epoch.Add(time.Minute)
	tr := newTestSynthesizer(5).Synthesize(10)

	refreshed := newTestSynthesizer(5, WithClock(fixedClock(later))).Refresh(tr)
	require.Equal(t, later.UnixMilli(), refreshed[0].T)
	require.Equal(t, tr.Duration(), refreshed.Duration())
}

func TestValidate(t *testing.T) {
	box := Box{MinX: 0, MinY: 0, MaxX: 10, MaxY: 10}

	require.NoError(t, Trajectory{{1, 1, 5}, {2, 2, 5}, {3, 3, 6}}.Validate(box))
	require.ErrorIs(t, Trajectory{{1, 1, 5}, {2, 2, 4}}.Validate(box), ErrNotMonotonic)
	require.ErrorIs(t, Trajectory{{11, 1, 5}}.Validate(box), ErrOutOfBounds)
}
