package tracking

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestSession(t *testing.T) (*Session, *fakeClock) {
	t.Helper()
	clock := newFakeClock()
	return NewSession(Options{Clock: clock.Now}), clock
}

// play drives the session through one-second time updates from start to end.
func play(s *Session, clock *fakeClock, start, end float64) {
	for pos := start + 1; pos <= end; pos++ {
		clock.Advance(time.Second)
		s.TimeUpdate(pos)
	}
}

func TestSession_InitialSnapshot(t *testing.T) {
	s, _ := newTestSession(t)
	snap := s.Snapshot()

	assert.Empty(t, snap.WatchedSet)
	assert.Zero(t, snap.TotalUniqueSeconds)
	assert.Zero(t, snap.CompletionPercentage)
	assert.Equal(t, StateIdle, snap.SessionStats.State)
	assert.Equal(t, DefaultPlaybackRate, snap.SessionStats.PlaybackRate)
}

func TestSession_ContinuousPlayback(t *testing.T) {
	s, clock := newTestSession(t)
	s.DurationKnown(100)
	s.Play(0)
	play(s, clock, 0, 10)

	snap := s.Snapshot()
	assert.Equal(t, WatchedSet{iv(0, 10)}, snap.WatchedSet)
	assert.InDelta(t, 10, snap.TotalUniqueSeconds, 1e-9)
	assert.Equal(t, 10, snap.CompletionPercentage)
	assert.Equal(t, 10*time.Second, snap.SessionStats.WatchTime)
	assert.Equal(t, 10.0, snap.LastPosition)
}

func TestSession_TimeUpdateWhilePausedCreditsNothing(t *testing.T) {
	s, clock := newTestSession(t)
	play(s, clock, 0, 5)

	assert.Empty(t, s.Snapshot().WatchedSet)
	assert.Equal(t, 5.0, s.Snapshot().LastPosition)
}

func TestSession_PauseFlushesAndCounts(t *testing.T) {
	s, clock := newTestSession(t)
	s.Play(0)
	play(s, clock, 0, 4)
	clock.Advance(500 * time.Millisecond)
	s.Pause(4.8)

	snap := s.Snapshot()
	assert.Equal(t, WatchedSet{iv(0, 5)}, snap.WatchedSet)
	assert.Equal(t, 1, snap.SessionStats.Pauses)
	assert.Equal(t, StatePaused, snap.SessionStats.State)
	assert.Equal(t, 4500*time.Millisecond, snap.SessionStats.WatchTime)

	// Paused time does not accrue, and a second pause is not counted.
	clock.Advance(time.Minute)
	s.Pause(4.8)
	snap = s.Snapshot()
	assert.Equal(t, 1, snap.SessionStats.Pauses)
	assert.Equal(t, 4500*time.Millisecond, snap.SessionStats.WatchTime)
}

func TestSession_SeekNeverCreditsTheJump(t *testing.T) {
	s, clock := newTestSession(t)
	s.DurationKnown(120)
	s.Play(0)
	play(s, clock, 0, 10)

	s.Seek(10, 60)
	play(s, clock, 60, 65)

	snap := s.Snapshot()
	assert.Equal(t, WatchedSet{iv(0, 10), iv(60, 65)}, snap.WatchedSet)
	assert.Equal(t, 1, snap.SessionStats.Seeks)
	assert.Equal(t, StatePlaying, snap.SessionStats.State)
	assert.InDelta(t, 15, snap.TotalUniqueSeconds, 1e-9)
}

func TestSession_SeekFlushesPendingSegment(t *testing.T) {
	s, _ := newTestSession(t)
	s.Play(30)
	s.Seek(31, 90)

	snap := s.Snapshot()
	assert.Equal(t, WatchedSet{iv(30, 31)}, snap.WatchedSet)
	assert.Equal(t, 90.0, snap.LastPosition)
}

func TestSession_SeekWhilePausedStaysPaused(t *testing.T) {
	s, clock := newTestSession(t)
	s.Play(0)
	play(s, clock, 0, 3)
	s.Pause(3)
	s.Seek(3, 50)

	snap := s.Snapshot()
	assert.Equal(t, StatePaused, snap.SessionStats.State)
	assert.Equal(t, 1, snap.SessionStats.Seeks)
	assert.Equal(t, WatchedSet{iv(0, 3)}, snap.WatchedSet)
}

func TestSession_SeekFromIdleLandsPaused(t *testing.T) {
	s, clock := newTestSession(t)
	s.Seek(0, 40)

	snap := s.Snapshot()
	assert.Equal(t, StatePaused, snap.SessionStats.State)
	assert.Equal(t, 1, snap.SessionStats.Seeks)
	assert.Zero(t, snap.SessionStats.Pauses)
	assert.Equal(t, 40.0, snap.LastPosition)

	clock.Advance(5 * time.Second)
	assert.Zero(t, s.Snapshot().SessionStats.WatchTime)

	s.Play(40)
	assert.Equal(t, StatePlaying, s.Snapshot().SessionStats.State)
}

func TestSession_SeekWhilePlayingStaysPlaying(t *testing.T) {
	s, clock := newTestSession(t)
	s.Play(0)
	play(s, clock, 0, 3)
	s.Seek(3, 50)

	snap := s.Snapshot()
	assert.Equal(t, StatePlaying, snap.SessionStats.State)
	assert.Equal(t, WatchedSet{iv(0, 3)}, snap.WatchedSet)
}

func TestSession_RecordObservation(t *testing.T) {
	s, _ := newTestSession(t)

	_, ok := s.RecordObservation(10.0, 10.3, true)
	assert.False(t, ok)

	_, ok = s.RecordObservation(10.0, 45.0, true)
	assert.False(t, ok)

	got, ok := s.RecordObservation(10.0, 11.0, true)
	assert.True(t, ok)
	assert.Equal(t, iv(10, 11), got)
	assert.Equal(t, WatchedSet{iv(10, 11)}, s.Snapshot().WatchedSet)
}

func TestSession_RateChange(t *testing.T) {
	s, _ := newTestSession(t)
	s.RateChange(1.5)
	s.RateChange(2)
	assert.Equal(t, 2.0, s.Snapshot().SessionStats.PlaybackRate)

	s.RateChange(0)
	s.RateChange(-1)
	assert.Equal(t, 2.0, s.Snapshot().SessionStats.PlaybackRate)
}

func TestSession_LoadSnapshotNormalizes(t *testing.T) {
	s, _ := newTestSession(t)
	s.LoadSnapshot([]Interval{iv(5, 3), iv(1, 2), iv(2, 4)}, 4, 10)

	snap := s.Snapshot()
	assert.Equal(t, WatchedSet{iv(1, 4)}, snap.WatchedSet)
	assert.InDelta(t, 3, snap.TotalUniqueSeconds, 1e-9)
	assert.Equal(t, 30, snap.CompletionPercentage)
	assert.Equal(t, 4.0, snap.LastPosition)
	assert.True(t, snap.WatchedSet.Normalized())
}

func TestSession_LoadSnapshotAnchorsRecorder(t *testing.T) {
	s, clock := newTestSession(t)
	s.LoadSnapshot([]Interval{iv(0, 20)}, 20, 60)
	s.Play(20)
	play(s, clock, 20, 25)

	assert.Equal(t, WatchedSet{iv(0, 25)}, s.Snapshot().WatchedSet)
}

func TestSession_ResetClearsSetAndStats(t *testing.T) {
	s, clock := newTestSession(t)
	s.DurationKnown(100)
	s.Play(0)
	play(s, clock, 0, 10)
	s.RateChange(1.75)
	s.Seek(10, 20)
	s.Pause(20)

	s.Reset()

	snap := s.Snapshot()
	assert.Empty(t, snap.WatchedSet)
	assert.Zero(t, snap.TotalUniqueSeconds)
	assert.Zero(t, snap.CompletionPercentage)
	assert.Zero(t, snap.SessionStats.Pauses)
	assert.Zero(t, snap.SessionStats.Seeks)
	assert.Zero(t, snap.SessionStats.WatchTime)
	assert.Equal(t, DefaultPlaybackRate, snap.SessionStats.PlaybackRate)
	assert.Equal(t, 100.0, snap.Duration, "duration is a property of the media and survives reset")
}

func TestSession_SubscribersSeeEveryMutation(t *testing.T) {
	s, clock := newTestSession(t)

	var got []Snapshot
	unsubscribe := s.Subscribe(func(snap Snapshot) {
		got = append(got, snap)
	})

	s.Play(0)
	play(s, clock, 0, 2)
	require.Len(t, got, 3)
	assert.Equal(t, WatchedSet{iv(0, 2)}, got[2].WatchedSet)
	assert.Less(t, got[0].Revision, got[2].Revision)

	unsubscribe()
	s.Reset()
	assert.Len(t, got, 3)
}

func TestSession_NoOpMutationsDoNotNotify(t *testing.T) {
	s, _ := newTestSession(t)
	calls := 0
	s.Subscribe(func(Snapshot) { calls++ })

	s.Pause(0)
	s.RateChange(-1)
	s.DurationKnown(-10)
	assert.Zero(t, calls)
	assert.Zero(t, s.Revision())
}

func TestSession_SnapshotIsACopy(t *testing.T) {
	s, _ := newTestSession(t)
	s.RecordObservation(0, 1, true)

	snap := s.Snapshot()
	snap.WatchedSet[0].End = 999

	assert.Equal(t, WatchedSet{iv(0, 1)}, s.Snapshot().WatchedSet)
}

func TestSession_ConcurrentUse(t *testing.T) {
	s, _ := newTestSession(t)
	s.Play(0)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Go(func() {
			base := float64(w * 100)
			for i := range 50 {
				s.RecordObservation(base+float64(i), base+float64(i)+1, true)
				_ = s.Snapshot()
			}
		})
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.True(t, snap.WatchedSet.Normalized())
	assert.InDelta(t, 200, snap.TotalUniqueSeconds, 1e-9)
}
