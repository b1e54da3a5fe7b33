package telemetry

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotMonotonic = errors.New("timestamps are not in ascending order")
	ErrOutOfBounds  = errors.New("sample outside of bounding box")
)

// Sample is a single pointer position. T is a unix timestamp in milliseconds.
type Sample struct {
	X int   `json:"x" cbor:"x"`
	Y int   `json:"y" cbor:"y"`
	T int64 `json:"t" cbor:"t"`
}

// Trajectory is a time ordered sequence of samples.
type Trajectory []Sample

// Duration is the time between the first and the last sample.
func (tr Trajectory) Duration() time.Duration {
	if len(tr) < 2 {
		return 0
	}
	return time.Duration(tr[len(tr)-1].T-tr[0].T) * time.Millisecond
}

// Validate checks that the samples are ordered by time and lie within box.
func (tr Trajectory) Validate(box Box) error {
	for i, s := range tr {
		if !box.Contains(s.X, s.Y) {
			return fmt.Errorf("%w: sample %d at (%d, %d), box %v", ErrOutOfBounds, i, s.X, s.Y, box)
		}
		if i > 0 && s.T < tr[i-1].T {
			return fmt.Errorf("%w: sample %d at %d precedes %d", ErrNotMonotonic, i, s.T, tr[i-1].T)
		}
	}
	return nil
}

// Box is an inclusive rectangle in screen coordinates.
type Box struct {
	MinX, MinY int
	MaxX, MaxY int
}

func (b Box) Contains(x, y int) bool {
	return x >= b.MinX && x <= b.MaxX && y >= b.MinY && y <= b.MaxY
}

func (b Box) clamp(x, y int) (int, int) {
	return clamp(x, b.MinX, b.MaxX), clamp(y, b.MinY, b.MaxY)
}

func (b Box) String() string {
	return fmt.Sprintf("[%d,%d]x[%d,%d]", b.MinX, b.MaxX, b.MinY, b.MaxY)
}

type Point struct {
	X, Y int
}

// StepRange bounds the per-sample movement of the random walk. Both ranges are inclusive.
type StepRange struct {
	XMin, XMax int
	YMin, YMax int
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
