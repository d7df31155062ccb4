package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/listenupapp/watchtrack/internal/domain"
	"github.com/listenupapp/watchtrack/internal/store"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

// progressColumns must match the scan order in scanProgress.
const progressColumns = `user_id, video_id, intervals, total_unique_seconds,
	last_position, duration, updated_at`

// scanProgress scans a sql.Row or sql.Rows into a domain.VideoProgress.
// Stored intervals are decoded leniently and re-merged.
func (s *Store) scanProgress(scanner interface{ Scan(dest ...any) error }) (*domain.VideoProgress, error) {
	var (
		p         domain.VideoProgress
		intervals string
		updatedAt int64
	)

	err := scanner.Scan(
		&p.UserID,
		&p.VideoID,
		&intervals,
		&p.TotalUniqueSeconds,
		&p.LastPosition,
		&p.Duration,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	set, dropped, err := tracking.DecodeWatchedSet([]byte(intervals))
	if err != nil {
		s.logger.Debug("unreadable intervals column, treating as empty",
			"user_id", p.UserID, "video_id", p.VideoID, "error", err)
		set = tracking.WatchedSet{}
	} else if dropped > 0 {
		s.logger.Debug("dropped malformed stored intervals",
			"user_id", p.UserID, "video_id", p.VideoID, "dropped", dropped)
	}
	p.Intervals = set
	p.UpdatedAt = fromUnixNano(updatedAt)
	p.Normalize()

	return &p, nil
}

// GetProgress returns the record for (userID, videoID).
// Returns store.ErrProgressNotFound if there is none.
func (s *Store) GetProgress(ctx context.Context, userID, videoID string) (*domain.VideoProgress, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+progressColumns+` FROM video_progress WHERE user_id = ? AND video_id = ?`,
		userID, videoID)

	p, err := s.scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

// ListProgress returns all records of a user, most recently updated first.
func (s *Store) ListProgress(ctx context.Context, userID string) ([]*domain.VideoProgress, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+progressColumns+` FROM video_progress WHERE user_id = ? ORDER BY updated_at DESC, video_id`,
		userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	defer rows.Close()

	list := []*domain.VideoProgress{}
	for rows.Next() {
		p, err := s.scanProgress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan progress: %w", err)
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return list, nil
}

// UpsertProgress inserts or replaces a record unless the stored row has a
// newer updated_at, in which case the stored row is returned unchanged.
func (s *Store) UpsertProgress(ctx context.Context, in *domain.VideoProgress) (*domain.VideoProgress, error) {
	p, err := store.Prepare(in)
	if err != nil {
		return nil, err
	}

	intervals, err := json.Marshal(p.Intervals)
	if err != nil {
		return nil, fmt.Errorf("marshal intervals: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `
		INSERT INTO video_progress (
			user_id, video_id, intervals, total_unique_seconds,
			last_position, duration, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, video_id) DO UPDATE SET
			intervals            = excluded.intervals,
			total_unique_seconds = excluded.total_unique_seconds,
			last_position        = excluded.last_position,
			duration             = excluded.duration,
			updated_at           = excluded.updated_at
		WHERE excluded.updated_at >= video_progress.updated_at
		RETURNING `+progressColumns,
		p.UserID,
		p.VideoID,
		string(intervals),
		p.TotalUniqueSeconds,
		p.LastPosition,
		p.Duration,
		toUnixNano(p.UpdatedAt),
	)

	saved, err := s.scanProgress(row)
	if errors.Is(err, sql.ErrNoRows) {
		// The WHERE clause kept a newer row.
		s.logger.Debug("stale progress write ignored", "user_id", p.UserID, "video_id", p.VideoID)
		return s.GetProgress(ctx, p.UserID, p.VideoID)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert progress: %w", err)
	}
	return saved, nil
}

// DeleteProgress removes a record.
// Returns store.ErrProgressNotFound if there was none.
func (s *Store) DeleteProgress(ctx context.Context, userID, videoID string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM video_progress WHERE user_id = ? AND video_id = ?`, userID, videoID)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	if n == 0 {
		return store.ErrProgressNotFound
	}
	return nil
}
