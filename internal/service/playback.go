package service

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/listenupapp/watchtrack/internal/domain"
	domainerrors "github.com/listenupapp/watchtrack/internal/errors"
	"github.com/listenupapp/watchtrack/internal/id"
	"github.com/listenupapp/watchtrack/internal/sse"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

// PlaybackEventType names a media element event.
type PlaybackEventType string

// Player events accepted by Apply.
const (
	EventPlay           PlaybackEventType = "play"
	EventPause          PlaybackEventType = "pause"
	EventTimeUpdate     PlaybackEventType = "timeupdate"
	EventSeeked         PlaybackEventType = "seeked"
	EventRateChange     PlaybackEventType = "ratechange"
	EventDurationChange PlaybackEventType = "durationchange"
)

// PlaybackEvent is one player event. Position is the playhead after the
// event; for seeked, From is where the seek started and defaults to the last
// known position.
type PlaybackEvent struct {
	Type     PlaybackEventType `json:"type"`
	Position float64           `json:"position"`
	From     *float64          `json:"from,omitempty"`
	Rate     float64           `json:"rate,omitempty"`
	Duration float64           `json:"duration,omitempty"`
}

// PlaybackOptions configures a PlaybackService.
type PlaybackOptions struct {
	Thresholds       tracking.Thresholds
	AutoSaveInterval time.Duration // 0 disables periodic saves
	IdleTimeout      time.Duration // 0 disables eviction
	Clock            tracking.Clock
}

// SessionInfo is what Start and Snapshot return.
type SessionInfo struct {
	SessionID string            `json:"sessionId"`
	UserID    string            `json:"userId"`
	VideoID   string            `json:"videoId"`
	Snapshot  tracking.Snapshot `json:"snapshot"`
}

type trackedSession struct {
	id      string
	userID  string
	videoID string
	session *tracking.Session

	lastActivity atomic.Int64 // unix nanos of the last mutation

	saveMu        sync.Mutex
	savedRevision uint64

	unsubscribe func()
}

func (t *trackedSession) dirty() bool {
	t.saveMu.Lock()
	defer t.saveMu.Unlock()
	return t.session.Revision() != t.savedRevision
}

// PlaybackService owns the in-memory tracking sessions and persists them
// through the ProgressService.
type PlaybackService struct {
	progress *ProgressService
	events   EventEmitter
	opts     PlaybackOptions
	logger   *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*trackedSession
}

// NewPlaybackService creates a PlaybackService. Invalid thresholds fall back
// to the defaults.
func NewPlaybackService(progress *ProgressService, emitter EventEmitter, opts PlaybackOptions, logger *slog.Logger) *PlaybackService {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	if opts.Thresholds.Validate() != nil {
		opts.Thresholds = tracking.DefaultThresholds()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	return &PlaybackService{
		progress: progress,
		events:   emitter,
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*trackedSession),
	}
}

// Start opens a session for userID watching videoID, seeded with any
// persisted progress.
func (s *PlaybackService) Start(ctx context.Context, userID, videoID string) (*SessionInfo, error) {
	if err := s.progress.validateKey(userID, videoID); err != nil {
		return nil, err
	}

	session := tracking.NewSession(tracking.Options{
		Thresholds: s.opts.Thresholds,
		Clock:      s.opts.Clock,
		Logger:     s.logger,
	})

	stored, err := s.progress.Get(ctx, userID, videoID)
	resumed := err == nil
	switch {
	case err == nil:
		session.LoadSnapshot(stored.Intervals, stored.LastPosition, stored.Duration)
	case domainerrors.Is(err, domainerrors.ErrNotFound):
	default:
		return nil, err
	}

	sessionID, err := id.Generate(id.PrefixSession)
	if err != nil {
		return nil, domainerrors.Internal("failed to generate session id").WithCause(err)
	}

	ts := &trackedSession{
		id:            sessionID,
		userID:        userID,
		videoID:       videoID,
		session:       session,
		savedRevision: session.Revision(),
	}
	ts.lastActivity.Store(s.opts.Clock().UnixNano())
	ts.unsubscribe = session.Subscribe(func(tracking.Snapshot) {
		ts.lastActivity.Store(s.opts.Clock().UnixNano())
	})

	s.mu.Lock()
	s.sessions[sessionID] = ts
	s.mu.Unlock()

	s.logger.Info("playback session started",
		"session_id", sessionID,
		"user_id", userID,
		"video_id", videoID,
		"resumed", resumed)

	info := s.info(ts)
	s.events.Emit(sse.NewSessionEvent(sse.EventSessionStarted, ts.id, userID, videoID, info.Snapshot))
	return info, nil
}

func (s *PlaybackService) lookup(sessionID string) (*trackedSession, error) {
	if !id.HasPrefix(sessionID, id.PrefixSession) {
		return nil, domainerrors.NotFoundf("session %s not found", sessionID)
	}
	s.mu.RLock()
	ts, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if !ok {
		return nil, domainerrors.NotFoundf("session %s not found", sessionID)
	}
	return ts, nil
}

func (s *PlaybackService) info(ts *trackedSession) *SessionInfo {
	return &SessionInfo{
		SessionID: ts.id,
		UserID:    ts.userID,
		VideoID:   ts.videoID,
		Snapshot:  ts.session.Snapshot(),
	}
}

// Snapshot returns the current state of a session.
func (s *PlaybackService) Snapshot(_ context.Context, sessionID string) (*SessionInfo, error) {
	ts, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return s.info(ts), nil
}

// Apply feeds player events into a session in order. Unknown event types are
// skipped.
func (s *PlaybackService) Apply(_ context.Context, sessionID string, evts []PlaybackEvent) (*SessionInfo, error) {
	ts, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	skipped := 0
	for _, ev := range evts {
		if !s.apply(ts.session, ev) {
			skipped++
		}
	}
	if skipped > 0 {
		s.logger.Debug("skipped unknown playback events",
			"session_id", sessionID,
			"skipped", skipped)
	}

	info := s.info(ts)
	s.events.Emit(sse.NewSessionEvent(sse.EventSessionUpdated, ts.id, ts.userID, ts.videoID, info.Snapshot))
	return info, nil
}

func (s *PlaybackService) apply(session *tracking.Session, ev PlaybackEvent) bool {
	switch ev.Type {
	case EventPlay:
		session.Play(ev.Position)
	case EventPause:
		session.Pause(ev.Position)
	case EventTimeUpdate:
		session.TimeUpdate(ev.Position)
	case EventSeeked:
		from := session.Snapshot().LastPosition
		if ev.From != nil && !math.IsNaN(*ev.From) {
			from = *ev.From
		}
		session.Seek(from, ev.Position)
	case EventRateChange:
		session.RateChange(ev.Rate)
	case EventDurationChange:
		session.DurationKnown(ev.Duration)
	default:
		return false
	}
	return true
}

// Save persists the session's snapshot. On failure the session is left as
// it was and the call can be retried.
func (s *PlaybackService) Save(ctx context.Context, sessionID string) (*domain.VideoProgress, error) {
	ts, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, ts)
}

func (s *PlaybackService) save(ctx context.Context, ts *trackedSession) (*domain.VideoProgress, error) {
	ts.saveMu.Lock()
	defer ts.saveMu.Unlock()

	snap := ts.session.Snapshot()
	saved, err := s.progress.persist(ctx, domain.FromSnapshot(ts.userID, ts.videoID, snap, s.opts.Clock().UTC()))
	if err != nil {
		s.logger.Warn("session save failed",
			"session_id", ts.id,
			"revision", snap.Revision,
			"error", err)
		return nil, err
	}
	ts.savedRevision = snap.Revision
	return saved, nil
}

// Reset clears the persisted record and then the session. If the store
// cannot be reached the session is not touched.
func (s *PlaybackService) Reset(ctx context.Context, sessionID string) (*SessionInfo, error) {
	ts, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	ts.saveMu.Lock()
	defer ts.saveMu.Unlock()

	if err := s.progress.Delete(ctx, ts.userID, ts.videoID); err != nil && !domainerrors.Is(err, domainerrors.ErrNotFound) {
		return nil, err
	}
	ts.session.Reset()
	ts.savedRevision = ts.session.Revision()

	info := s.info(ts)
	s.events.Emit(sse.NewSessionEvent(sse.EventSessionUpdated, ts.id, ts.userID, ts.videoID, info.Snapshot))
	return info, nil
}

// End flushes a session, saves it and forgets it. When the save fails the
// session stays open.
func (s *PlaybackService) End(ctx context.Context, sessionID string) (*domain.VideoProgress, error) {
	ts, err := s.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	snap := ts.session.Snapshot()
	if snap.SessionStats.State == tracking.StatePlaying {
		ts.session.Pause(snap.LastPosition)
	}

	saved, err := s.save(ctx, ts)
	if err != nil {
		return nil, err
	}
	s.remove(ts, "ended")
	return saved, nil
}

func (s *PlaybackService) remove(ts *trackedSession, reason string) {
	s.mu.Lock()
	if s.sessions[ts.id] != ts {
		s.mu.Unlock()
		return
	}
	delete(s.sessions, ts.id)
	s.mu.Unlock()

	ts.unsubscribe()
	s.logger.Info("playback session closed",
		"session_id", ts.id,
		"reason", reason)
	s.events.Emit(sse.NewSessionEvent(sse.EventSessionEnded, ts.id, ts.userID, ts.videoID, ts.session.Snapshot()))
}

// ActiveSessions returns the number of open sessions.
func (s *PlaybackService) ActiveSessions() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func (s *PlaybackService) all() []*trackedSession {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*trackedSession, 0, len(s.sessions))
	for _, ts := range s.sessions {
		out = append(out, ts)
	}
	return out
}

// Run saves playing sessions with unsaved changes every AutoSaveInterval and
// evicts sessions idle for longer than IdleTimeout. It returns when ctx is
// canceled.
func (s *PlaybackService) Run(ctx context.Context) {
	interval := s.opts.AutoSaveInterval
	if interval <= 0 {
		if s.opts.IdleTimeout <= 0 {
			return
		}
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

// sweep runs one auto-save and eviction pass.
func (s *PlaybackService) sweep(ctx context.Context) {
	now := s.opts.Clock()
	var saved, evicted int

	for _, ts := range s.all() {
		idle := now.Sub(time.Unix(0, ts.lastActivity.Load()))

		if s.opts.IdleTimeout > 0 && idle > s.opts.IdleTimeout {
			if ts.dirty() {
				if _, err := s.save(ctx, ts); err != nil {
					continue
				}
			}
			s.remove(ts, "idle")
			evicted++
			continue
		}

		if s.opts.AutoSaveInterval > 0 && ts.session.Playing() && ts.dirty() {
			if _, err := s.save(ctx, ts); err == nil {
				saved++
			}
		}
	}

	if saved > 0 || evicted > 0 {
		s.logger.Debug("session sweep", "saved", saved, "evicted", evicted)
	}
}

// Shutdown saves every session with unsaved changes. Sessions that fail to
// save are reported in the returned error.
func (s *PlaybackService) Shutdown(ctx context.Context) error {
	var errs []error
	for _, ts := range s.all() {
		if !ts.dirty() {
			continue
		}
		if _, err := s.save(ctx, ts); err != nil {
			errs = append(errs, err)
		}
	}
	return domainerrors.Join(errs...)
}
