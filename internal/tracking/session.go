package tracking

import (
	"log/slog"
	"math"
	"sync"
)

// Snapshot is a consistent, copyable view of a session.
type Snapshot struct {
	WatchedSet           WatchedSet   `json:"watchedSet"`
	TotalUniqueSeconds   float64      `json:"totalUniqueSeconds"`
	CompletionPercentage int          `json:"completionPercentage"`
	SessionStats         SessionStats `json:"sessionStats"`
	LastPosition         float64      `json:"lastPosition"`
	Duration             float64      `json:"duration"`
	Revision             uint64       `json:"revision"`
}

// Options configures a Session. Zero values select the defaults.
type Options struct {
	Thresholds Thresholds
	Clock      Clock
	Logger     *slog.Logger
}

// Session is the tracker for one user watching one video. All mutations go
// through its methods, which serialize on an internal mutex, so the watched
// set and the statistics always change together. Subscribers are notified
// with the resulting snapshot after every mutation.
type Session struct {
	mu           sync.Mutex
	set          WatchedSet
	recorder     *Recorder
	stats        *statsTracker
	lastPosition float64
	duration     float64
	revision     uint64
	logger       *slog.Logger

	subMu   sync.Mutex
	subs    map[int]func(Snapshot)
	nextSub int
}

// NewSession returns an empty session.
func NewSession(opts Options) *Session {
	thresholds := opts.Thresholds
	if thresholds == (Thresholds{}) {
		thresholds = DefaultThresholds()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{
		set:      WatchedSet{},
		recorder: NewRecorder(thresholds),
		stats:    newStatsTracker(opts.Clock),
		logger:   logger,
		subs:     make(map[int]func(Snapshot)),
	}
}

// Subscribe registers fn to receive a snapshot after each mutation and
// returns a function that removes the subscription.
func (s *Session) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

// mutate runs fn under the session lock and, when fn reports a change,
// bumps the revision and notifies subscribers outside the lock.
func (s *Session) mutate(fn func() bool) {
	s.mu.Lock()
	changed := fn()
	var snap Snapshot
	if changed {
		s.revision++
		snap = s.snapshotLocked()
	}
	s.mu.Unlock()

	if changed {
		s.notify(snap)
	}
}

func (s *Session) notify(snap Snapshot) {
	s.subMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// RecordObservation feeds an explicit (prev, cur) position pair through the
// recorder and merges any emitted interval into the watched set.
func (s *Session) RecordObservation(prev, cur float64, playing bool) (Interval, bool) {
	var (
		emitted Interval
		ok      bool
	)
	s.mutate(func() bool {
		emitted, ok = s.recorder.Observe(prev, cur, playing)
		s.applyLocked(emitted, ok)
		return s.setPositionLocked(cur) || ok
	})
	return emitted, ok
}

// TimeUpdate records a periodic position report from the player.
func (s *Session) TimeUpdate(position float64) {
	s.mutate(func() bool {
		iv, ok := s.recorder.Advance(position, s.stats.playing())
		s.applyLocked(iv, ok)
		return s.setPositionLocked(position) || ok
	})
}

// Play moves the session to Playing and anchors the recorder at position.
func (s *Session) Play(position float64) {
	s.mutate(func() bool {
		if s.stats.playing() {
			return false
		}
		s.recorder.Reanchor(position)
		s.setPositionLocked(position)
		s.stats.play()
		return true
	})
}

// Pause flushes the pending segment up to position and counts a pause.
func (s *Session) Pause(position float64) {
	s.mutate(func() bool {
		if !s.stats.playing() {
			return false
		}
		iv, ok := s.recorder.Flush(position)
		s.applyLocked(iv, ok)
		s.setPositionLocked(position)
		s.stats.pause()
		return true
	})
}

// Seek flushes the pending segment at from, counts the seek and re-anchors
// the recorder at to so the jump itself is never credited.
func (s *Session) Seek(from, to float64) {
	s.mutate(func() bool {
		if s.stats.playing() {
			iv, ok := s.recorder.Flush(from)
			s.applyLocked(iv, ok)
		}
		s.stats.seek()
		s.recorder.Reanchor(to)
		s.setPositionLocked(to)
		return true
	})
}

// RateChange overwrites the playback rate. Non-positive rates are ignored.
func (s *Session) RateChange(rate float64) {
	s.mutate(func() bool {
		return s.stats.rateChange(rate)
	})
}

// DurationKnown records the media duration once the player has loaded metadata.
func (s *Session) DurationKnown(duration float64) {
	s.mutate(func() bool {
		if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 || duration == s.duration {
			return false
		}
		s.duration = duration
		return true
	})
}

// LoadSnapshot replaces the watched set with persisted data. The intervals
// are re-normalized so stale or hand-edited data cannot break the set.
func (s *Session) LoadSnapshot(intervals []Interval, lastPosition, duration float64) {
	s.mutate(func() bool {
		s.set = MergeAll(intervals)
		if dropped := len(intervals) - countValid(intervals); dropped > 0 {
			s.logger.Debug("dropped malformed intervals on load", "dropped", dropped)
		}
		if math.IsNaN(duration) || math.IsInf(duration, 0) || duration < 0 {
			duration = 0
		}
		s.duration = duration
		s.setPositionLocked(lastPosition)
		s.recorder.Reanchor(s.lastPosition)
		return true
	})
}

// Reset clears the watched set and the statistics in one step.
func (s *Session) Reset() {
	s.mutate(func() bool {
		s.set = WatchedSet{}
		s.lastPosition = 0
		s.stats.reset()
		return true
	})
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Revision increases by one on every mutation.
func (s *Session) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// Playing reports whether the session is in the Playing state.
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats.playing()
}

func (s *Session) snapshotLocked() Snapshot {
	progress := ComputeProgress(s.set, s.duration)
	return Snapshot{
		WatchedSet:           s.set.Clone(),
		TotalUniqueSeconds:   progress.TotalUniqueSeconds,
		CompletionPercentage: progress.CompletionPercentage,
		SessionStats:         s.stats.snapshot(),
		LastPosition:         s.lastPosition,
		Duration:             s.duration,
		Revision:             s.revision,
	}
}

func (s *Session) applyLocked(iv Interval, ok bool) {
	if ok {
		s.set = Merge(s.set, iv)
	}
}

func (s *Session) setPositionLocked(position float64) bool {
	if math.IsNaN(position) || math.IsInf(position, 0) || position < 0 {
		return false
	}
	if position == s.lastPosition {
		return false
	}
	s.lastPosition = position
	return true
}

func countValid(intervals []Interval) int {
	n := 0
	for _, iv := range intervals {
		if iv.Valid() {
			n++
		}
	}
	return n
}
