// Package store defines persistence for watch progress records. Backends
// live in the sqlite, badger and postgres subpackages.
package store

import (
	"context"
	"math"
	"time"

	"github.com/listenupapp/watchtrack/internal/domain"
)

// Store persists VideoProgress records keyed by (user, video).
//
// UpsertProgress is last-write-wins on UpdatedAt: when the stored row is
// newer than the incoming one the stored row is kept and returned. Callers
// pass normalized records; backends normalize again before writing so an
// unmerged set can never reach disk.
type Store interface {
	GetProgress(ctx context.Context, userID, videoID string) (*domain.VideoProgress, error)
	ListProgress(ctx context.Context, userID string) ([]*domain.VideoProgress, error)
	UpsertProgress(ctx context.Context, p *domain.VideoProgress) (*domain.VideoProgress, error)
	DeleteProgress(ctx context.Context, userID, videoID string) error
	Ping(ctx context.Context) error
	Close() error
}

// Prepare validates and normalizes a record before it is written. Backends
// call it at the top of UpsertProgress.
func Prepare(p *domain.VideoProgress) (*domain.VideoProgress, error) {
	if p == nil || p.UserID == "" || p.VideoID == "" {
		return nil, ErrInvalidInput.WithMessage("user and video ids are required")
	}
	cp := *p
	cp.Intervals = p.Intervals.Clone()
	cp.Normalize()
	if cp.UpdatedAt.IsZero() {
		return nil, ErrInvalidInput.WithMessage("updatedAt is required")
	}
	if cp.UpdatedAt.Before(MinUpdatedAt) || cp.UpdatedAt.After(MaxUpdatedAt) {
		return nil, ErrInvalidInput.WithMessage("updatedAt must be between 1678 and 2262")
	}
	cp.UpdatedAt = cp.UpdatedAt.UTC()
	return &cp, nil
}

// The range of UpdatedAt values every backend can store and order. Later
// or earlier times do not fit in int64 nanoseconds.
var (
	MinUpdatedAt = time.Unix(0, math.MinInt64).UTC()
	MaxUpdatedAt = time.Unix(0, math.MaxInt64).UTC()
)
