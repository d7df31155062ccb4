package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/listenupapp/watchtrack/internal/domain"
	"github.com/listenupapp/watchtrack/internal/sse"
	"github.com/listenupapp/watchtrack/internal/store"
	badgerstore "github.com/listenupapp/watchtrack/internal/store/badger"
)

var errStoreDown = errors.New("connection refused")

// flakyStore wraps a real store and fails every call while down is set.
type flakyStore struct {
	store.Store
	down atomic.Bool
}

func (f *flakyStore) GetProgress(ctx context.Context, userID, videoID string) (*domain.VideoProgress, error) {
	if f.down.Load() {
		return nil, errStoreDown
	}
	return f.Store.GetProgress(ctx, userID, videoID)
}

func (f *flakyStore) ListProgress(ctx context.Context, userID string) ([]*domain.VideoProgress, error) {
	if f.down.Load() {
		return nil, errStoreDown
	}
	return f.Store.ListProgress(ctx, userID)
}

func (f *flakyStore) UpsertProgress(ctx context.Context, p *domain.VideoProgress) (*domain.VideoProgress, error) {
	if f.down.Load() {
		return nil, errStoreDown
	}
	return f.Store.UpsertProgress(ctx, p)
}

func (f *flakyStore) DeleteProgress(ctx context.Context, userID, videoID string) error {
	if f.down.Load() {
		return errStoreDown
	}
	return f.Store.DeleteProgress(ctx, userID, videoID)
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []sse.Event
}

func (r *recordingEmitter) Emit(e sse.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingEmitter) types() []sse.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]sse.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type recordingPublisher struct {
	mu     sync.Mutex
	saved  []*domain.VideoProgress
	resets []string
	err    error
}

func (r *recordingPublisher) PublishProgressSaved(_ context.Context, p *domain.VideoProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saved = append(r.saved, p)
	return r.err
}

func (r *recordingPublisher) PublishProgressReset(_ context.Context, userID, videoID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resets = append(r.resets, domain.ProgressID(userID, videoID))
	return r.err
}

type fixture struct {
	store     *flakyStore
	emitter   *recordingEmitter
	publisher *recordingPublisher
	progress  *ProgressService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.DiscardHandler)

	db, err := badgerstore.Open("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	f := &fixture{
		store:     &flakyStore{Store: db},
		emitter:   &recordingEmitter{},
		publisher: &recordingPublisher{},
	}
	f.progress = NewProgressService(f.store, f.emitter, f.publisher, logger)
	return f
}

// fakeClock is a manually advanced clock.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
