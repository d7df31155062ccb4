// Package service implements watch progress and playback session operations
// on top of the progress store.
package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/listenupapp/watchtrack/internal/domain"
	"github.com/listenupapp/watchtrack/internal/events"
	"github.com/listenupapp/watchtrack/internal/sse"
	"github.com/listenupapp/watchtrack/internal/store"
	"github.com/listenupapp/watchtrack/internal/tracking"
	"github.com/listenupapp/watchtrack/internal/validation"
)

// ProgressKey identifies one record. Keys are stored as "user:video", so
// neither part may contain ':' or '/'.
type ProgressKey struct {
	UserID  string `json:"userId" validate:"required,max=128,excludesall=:/"`
	VideoID string `json:"videoId" validate:"required,max=128,excludesall=:/"`
}

// SaveProgressRequest replaces a record. Malformed intervals are dropped
// and the unique total is always recomputed from the intervals.
type SaveProgressRequest struct {
	Intervals    []tracking.Interval `json:"intervals"`
	LastPosition float64             `json:"lastPosition" validate:"finite,gte=0"`
	Duration     float64             `json:"duration" validate:"finite,gte=0"`
	UpdatedAt    *time.Time          `json:"updatedAt,omitempty"`
}

// PatchProgressRequest updates the non-nil fields of an existing record.
type PatchProgressRequest struct {
	Intervals    []tracking.Interval `json:"intervals,omitempty"`
	LastPosition *float64            `json:"lastPosition,omitempty" validate:"omitnil,finite,gte=0"`
	Duration     *float64            `json:"duration,omitempty" validate:"omitnil,finite,gte=0"`
	UpdatedAt    *time.Time          `json:"updatedAt,omitempty"`
}

// ProgressService reads and writes persisted progress.
type ProgressService struct {
	store     store.Store
	events    EventEmitter
	publisher ProgressPublisher
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewProgressService creates a progress service. Nil emitters are replaced
// by no-ops.
func NewProgressService(st store.Store, emitter EventEmitter, publisher ProgressPublisher, logger *slog.Logger) *ProgressService {
	if emitter == nil {
		emitter = NoopEmitter{}
	}
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	return &ProgressService{
		store:     st,
		events:    emitter,
		publisher: publisher,
		validator: validation.New(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *ProgressService) validateKey(userID, videoID string) error {
	return s.validator.Validate(ProgressKey{UserID: userID, VideoID: videoID})
}

// Get returns the stored progress of userID for videoID.
func (s *ProgressService) Get(ctx context.Context, userID, videoID string) (*domain.VideoProgress, error) {
	if err := s.validateKey(userID, videoID); err != nil {
		return nil, err
	}
	p, err := s.store.GetProgress(ctx, userID, videoID)
	if err != nil {
		return nil, storeError(err, "failed to load progress")
	}
	return p, nil
}

// List returns every record of userID, most recently updated first.
func (s *ProgressService) List(ctx context.Context, userID string) ([]*domain.VideoProgress, error) {
	if err := s.validator.Validate(struct {
		UserID string `json:"userId" validate:"required,max=128,excludesall=:/"`
	}{userID}); err != nil {
		return nil, err
	}
	list, err := s.store.ListProgress(ctx, userID)
	if err != nil {
		return nil, storeError(err, "failed to list progress")
	}
	return list, nil
}

// ListPage is List split into pages of at most params.Limit records, most
// recently updated first with ties broken by video id. The cursor marks a
// position in that order, so a record saved while a client is paging moves
// to the front and does not shift or repeat the records still to come.
func (s *ProgressService) ListPage(ctx context.Context, userID string, params store.PaginationParams) (*store.PaginatedResult[*domain.VideoProgress], error) {
	list, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	page, err := store.Page(list, store.ProgressSortKey, params)
	if err != nil {
		return nil, storeError(err, "failed to page progress")
	}
	return page, nil
}

// Save creates or replaces a record. When the stored record is newer the
// stored one wins and is returned unchanged.
func (s *ProgressService) Save(ctx context.Context, userID, videoID string, req SaveProgressRequest) (*domain.VideoProgress, error) {
	if err := s.validateKey(userID, videoID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	p := &domain.VideoProgress{
		UserID:       userID,
		VideoID:      videoID,
		Intervals:    req.Intervals,
		LastPosition: req.LastPosition,
		Duration:     req.Duration,
		UpdatedAt:    s.now(),
	}
	if req.UpdatedAt != nil && !req.UpdatedAt.IsZero() {
		p.UpdatedAt = req.UpdatedAt.UTC()
	}
	p.Normalize()

	return s.persist(ctx, p)
}

// Patch applies req to an existing record.
func (s *ProgressService) Patch(ctx context.Context, userID, videoID string, req PatchProgressRequest) (*domain.VideoProgress, error) {
	if err := s.validateKey(userID, videoID); err != nil {
		return nil, err
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	p, err := s.store.GetProgress(ctx, userID, videoID)
	if err != nil {
		return nil, storeError(err, "failed to load progress")
	}

	p.ApplyPatch(domain.ProgressPatch{
		Intervals:    req.Intervals,
		LastPosition: req.LastPosition,
		Duration:     req.Duration,
		UpdatedAt:    req.UpdatedAt,
	}, s.now())

	return s.persist(ctx, p)
}

// Delete removes a record.
func (s *ProgressService) Delete(ctx context.Context, userID, videoID string) error {
	if err := s.validateKey(userID, videoID); err != nil {
		return err
	}
	if err := s.store.DeleteProgress(ctx, userID, videoID); err != nil {
		return storeError(err, "failed to delete progress")
	}

	s.logger.Info("progress reset", "user_id", userID, "video_id", videoID)
	s.events.Emit(sse.NewProgressResetEvent(userID, videoID))
	publish(ctx, s.logger, events.SubjectProgressReset, func(ctx context.Context) error {
		return s.publisher.PublishProgressReset(ctx, userID, videoID)
	})
	return nil
}

// persist upserts p and announces the winning record.
func (s *ProgressService) persist(ctx context.Context, p *domain.VideoProgress) (*domain.VideoProgress, error) {
	saved, err := s.store.UpsertProgress(ctx, p)
	if err != nil {
		s.logger.Error("failed to save progress",
			"user_id", p.UserID,
			"video_id", p.VideoID,
			"error", err)
		return nil, storeError(err, "failed to save progress")
	}

	if saved.UpdatedAt.After(p.UpdatedAt) {
		s.logger.Debug("stale progress write ignored",
			"user_id", p.UserID,
			"video_id", p.VideoID,
			"stored_at", saved.UpdatedAt)
		return saved, nil
	}

	s.events.Emit(sse.NewProgressUpdatedEvent(saved))
	publish(ctx, s.logger, events.SubjectProgressSaved, func(ctx context.Context) error {
		return s.publisher.PublishProgressSaved(ctx, saved)
	})
	return saved, nil
}
