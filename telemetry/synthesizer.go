package telemetry

import (
	"math/rand"
	"sort"
)

type options struct {
	rng   *rand.Rand
	clock Clock

	box   Box
	start Point
	step  StepRange

	tickMin int64
	tickMax int64
}

type Option func(*options)

// WithRand sets the random source. Tests pass a seeded source to get reproducible trajectories.
func WithRand(rng *rand.Rand) Option {
	return func(o *options) {
		o.rng = rng
	}
}

func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

func WithBox(box Box) Option {
	return func(o *options) {
		o.box = box
	}
}

func WithStart(p Point) Option {
	return func(o *options) {
		o.start = p
	}
}

func WithStep(step StepRange) Option {
	return func(o *options) {
		o.step = step
	}
}

// WithTick sets the inclusive range of the time increment between samples, in milliseconds.
func WithTick(minMs, maxMs int64) Option {
	return func(o *options) {
		o.tickMin = minMs
		o.tickMax = maxMs
	}
}

// Synthesizer generates pointer trajectories. It is not safe for concurrent use
// since it owns its random source.
type Synthesizer struct {
	options
}

func NewSynthesizer(opts ...Option) *Synthesizer {
	o := options{
		clock:   SystemClock,
		box:     Box{MinX: 50, MinY: 10, MaxX: 400, MaxY: 300},
		start:   Point{X: 200, Y: 50},
		step:    StepRange{XMin: -3, XMax: 3, YMin: -1, YMax: 2},
		tickMin: 1,
		tickMax: 5,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rng == nil {
		o.rng = rand.New(rand.NewSource(o.clock.Now().UnixNano()))
	}
	if o.tickMin < 1 {
		o.tickMin = 1
	}
	if o.tickMax < o.tickMin {
		o.tickMax = o.tickMin
	}
	return &Synthesizer{o}
}

func (s *Synthesizer) Box() Box { return s.box }

// Synthesize generates count samples with a bounded random walk starting at the
// configured start point. The first sample is stamped with the current time and
// every following one is 1 to 5ms (by default) later than its predecessor.
func (s *Synthesizer) Synthesize(count int) Trajectory {
	if count <= 0 {
		return Trajectory{}
	}

	tr := make(Trajectory, 0, count)
	x, y := s.box.clamp(s.start.X, s.start.Y)
	t := s.clock.Now().UnixMilli()

	for i := 0; i < count; i++ {
		x, y = s.box.clamp(
			x+s.intn(s.step.XMin, s.step.XMax),
			y+s.intn(s.step.YMin, s.step.YMax),
		)
		if i > 0 {
			t += s.int63n(s.tickMin, s.tickMax)
		}
		tr = append(tr, Sample{X: x, Y: y, T: t})
	}
	return tr
}

// Jitter returns a copy of tr with independent noise added to every coordinate
// (within ±xy) and timestamp (within ±tMs). Coordinates are clamped back into
// the bounding box and the result is re-sorted by time, since time noise can
// reorder neighbouring samples. Only the magnitude of xy and tMs is used.
func (s *Synthesizer) Jitter(tr Trajectory, xy int, tMs int64) Trajectory {
	xy, tMs = abs(xy), abs64(tMs)
	out := make(Trajectory, len(tr))
	for i, p := range tr {
		x, y := s.box.clamp(p.X+s.intn(-xy, xy), p.Y+s.intn(-xy, xy))
		out[i] = Sample{X: x, Y: y, T: p.T + s.int63n(-tMs, tMs)}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].T < out[j].T })
	return out
}

// Refresh rebases tr onto the synthesizer's clock.
func (s *Synthesizer) Refresh(tr Trajectory) Trajectory {
	return Rebase(tr, s.clock.Now().UnixMilli())
}

// Rebase moves tr to start at nowMs keeping all offsets from the first sample.
func Rebase(tr Trajectory, nowMs int64) Trajectory {
	out := make(Trajectory, len(tr))
	if len(tr) == 0 {
		return out
	}
	origin := tr[0].T
	for i, p := range tr {
		out[i] = Sample{X: p.X, Y: p.Y, T: nowMs + (p.T - origin)}
	}
	return out
}

// intn returns a uniform value in [lo, hi].
func (s *Synthesizer) intn(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Intn(hi-lo+1)
}

func (s *Synthesizer) int63n(lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.Int63n(hi-lo+1)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
