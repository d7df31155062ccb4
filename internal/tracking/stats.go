package tracking

import (
	"math"
	"time"
)

// PlaybackState is the coarse player state tracked per session.
type PlaybackState string

// Playback states.
const (
	StateIdle    PlaybackState = "idle"
	StatePlaying PlaybackState = "playing"
	StatePaused  PlaybackState = "paused"
)

// DefaultPlaybackRate is the rate a fresh session starts with.
const DefaultPlaybackRate = 1.0

// Clock returns the current wall-clock time. Tests substitute a fake.
type Clock func() time.Time

// SessionStats are engagement counters for one viewing session.
// They are never persisted alongside the watched set.
type SessionStats struct {
	Pauses       int           `json:"pauses"`
	Seeks        int           `json:"seeks"`
	PlaybackRate float64       `json:"playbackRate"`
	WatchTime    time.Duration `json:"watchTimeNs"`
	State        PlaybackState `json:"state"`
}

// WatchTimeSeconds returns WatchTime as fractional seconds.
func (s SessionStats) WatchTimeSeconds() float64 {
	return s.WatchTime.Seconds()
}

// statsTracker owns SessionStats and the wall clock used for watch time.
type statsTracker struct {
	stats        SessionStats
	clock        Clock
	playingSince time.Time
}

func newStatsTracker(clock Clock) *statsTracker {
	if clock == nil {
		clock = time.Now
	}
	return &statsTracker{
		clock: clock,
		stats: initialStats(),
	}
}

func initialStats() SessionStats {
	return SessionStats{PlaybackRate: DefaultPlaybackRate, State: StateIdle}
}

// snapshot returns the stats with watch time accrued up to now.
func (t *statsTracker) snapshot() SessionStats {
	s := t.stats
	if s.State == StatePlaying && !t.playingSince.IsZero() {
		if d := t.clock().Sub(t.playingSince); d > 0 {
			s.WatchTime += d
		}
	}
	return s
}

// accrue folds elapsed playing time into WatchTime and restarts the span.
func (t *statsTracker) accrue() {
	if t.stats.State != StatePlaying {
		return
	}
	now := t.clock()
	if !t.playingSince.IsZero() {
		if d := now.Sub(t.playingSince); d > 0 {
			t.stats.WatchTime += d
		}
	}
	t.playingSince = now
}

func (t *statsTracker) play() {
	if t.stats.State == StatePlaying {
		return
	}
	t.stats.State = StatePlaying
	t.playingSince = t.clock()
}

// pause counts a pause only on a Playing to Paused transition.
func (t *statsTracker) pause() bool {
	if t.stats.State != StatePlaying {
		return false
	}
	t.accrue()
	t.stats.State = StatePaused
	t.playingSince = time.Time{}
	t.stats.Pauses++
	return true
}

// seek leaves a playing session playing; any other state lands in Paused.
func (t *statsTracker) seek() {
	t.accrue()
	t.stats.Seeks++
	if t.stats.State != StatePlaying {
		t.stats.State = StatePaused
	}
}

func (t *statsTracker) rateChange(rate float64) bool {
	if math.IsNaN(rate) || math.IsInf(rate, 0) || rate <= 0 {
		return false
	}
	t.stats.PlaybackRate = rate
	return true
}

// reset zeroes the counters but keeps the player state, since resetting
// progress does not stop playback.
func (t *statsTracker) reset() {
	state := t.stats.State
	t.stats = initialStats()
	t.stats.State = state
	t.playingSince = time.Time{}
	if state == StatePlaying {
		t.playingSince = t.clock()
	}
}

func (t *statsTracker) playing() bool {
	return t.stats.State == StatePlaying
}
