package tracking

import (
	"errors"
	"fmt"
	"math"
)

// Default segment thresholds, in seconds of media time between two
// consecutive position updates.
const (
	DefaultMinSegment = 0.5
	DefaultMaxSegment = 2.0
)

// Thresholds bounds the position delta a recorder will credit as watched.
// Deltas below Min are jitter; deltas at or above Max are seeks or stalls.
type Thresholds struct {
	Min float64
	Max float64
}

// DefaultThresholds returns the standard 0.5s / 2s window.
func DefaultThresholds() Thresholds {
	return Thresholds{Min: DefaultMinSegment, Max: DefaultMaxSegment}
}

// Validate checks 0 < Min < Max.
func (t Thresholds) Validate() error {
	if math.IsNaN(t.Min) || math.IsNaN(t.Max) {
		return errors.New("segment thresholds must be numbers")
	}
	if t.Min <= 0 {
		return fmt.Errorf("min segment must be positive, got %v", t.Min)
	}
	if t.Max <= t.Min {
		return fmt.Errorf("max segment (%v) must be greater than min segment (%v)", t.Max, t.Min)
	}
	return nil
}

// accepts reports whether delta lies in [Min, Max).
func (t Thresholds) accepts(delta float64) bool {
	return delta >= t.Min && delta < t.Max
}

// Recorder converts a stream of playback positions into candidate intervals.
// It keeps the last seen position as its cursor. A Recorder is not safe for
// concurrent use; Session serializes access to it.
type Recorder struct {
	thresholds Thresholds
	cursor     float64
}

// NewRecorder creates a recorder with the cursor at 0. Invalid thresholds
// fall back to the defaults.
func NewRecorder(t Thresholds) *Recorder {
	if t.Validate() != nil {
		t = DefaultThresholds()
	}
	return &Recorder{thresholds: t}
}

// Thresholds returns the active thresholds.
func (r *Recorder) Thresholds() Thresholds {
	return r.thresholds
}

// Cursor returns the last observed position.
func (r *Recorder) Cursor() float64 {
	return r.cursor
}

// Observe processes one position update. When playing and the step from prev
// to cur is inside the threshold window it returns the outward-rounded
// candidate. The cursor moves to cur in every case.
func (r *Recorder) Observe(prev, cur float64, playing bool) (Interval, bool) {
	if math.IsNaN(cur) || math.IsInf(cur, 0) {
		return Interval{}, false
	}
	defer func() { r.cursor = cur }()

	if !playing || math.IsNaN(prev) || math.IsInf(prev, 0) {
		return Interval{}, false
	}
	if !r.thresholds.accepts(cur - prev) {
		return Interval{}, false
	}
	candidate := NewCandidate(prev, cur)
	if !candidate.Valid() {
		return Interval{}, false
	}
	return candidate, true
}

// Advance observes a move from the cursor to position.
func (r *Recorder) Advance(position float64, playing bool) (Interval, bool) {
	return r.Observe(r.cursor, position, playing)
}

// Flush closes the pending segment at position, as happens on pause or
// before a seek. The same threshold filter applies.
func (r *Recorder) Flush(position float64) (Interval, bool) {
	return r.Observe(r.cursor, position, true)
}

// Reanchor moves the cursor without emitting anything.
func (r *Recorder) Reanchor(position float64) {
	if math.IsNaN(position) || math.IsInf(position, 0) || position < 0 {
		position = 0
	}
	r.cursor = position
}
