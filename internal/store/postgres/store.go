// Package postgres stores progress in PostgreSQL through a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/listenupapp/watchtrack/internal/domain"
	"github.com/listenupapp/watchtrack/internal/store"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

//go:embed schema.sql
var schemaSQL string

// Store is a PostgreSQL-backed store.Store.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

var _ store.Store = (*Store)(nil)

// Open connects to databaseURL, verifies the connection and applies the schema.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.MaxConns = 10
	cfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	logger.Info("postgres progress store opened", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	return &Store{pool: pool, logger: logger}, nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const progressColumns = `user_id, video_id, intervals, total_unique_seconds, last_position, duration, updated_at`

func (s *Store) scanProgress(row pgx.Row) (*domain.VideoProgress, error) {
	var (
		p         domain.VideoProgress
		intervals []byte
	)
	if err := row.Scan(
		&p.UserID,
		&p.VideoID,
		&intervals,
		&p.TotalUniqueSeconds,
		&p.LastPosition,
		&p.Duration,
		&p.UpdatedAt,
	); err != nil {
		return nil, err
	}

	set, dropped, err := tracking.DecodeWatchedSet(intervals)
	if err != nil {
		s.logger.Debug("unreadable intervals column, treating as empty",
			"user_id", p.UserID, "video_id", p.VideoID, "error", err)
		set = tracking.WatchedSet{}
	} else if dropped > 0 {
		s.logger.Debug("dropped malformed stored intervals",
			"user_id", p.UserID, "video_id", p.VideoID, "dropped", dropped)
	}
	p.Intervals = set
	p.UpdatedAt = p.UpdatedAt.UTC()
	p.Normalize()
	return &p, nil
}

// GetProgress returns the record for (userID, videoID).
func (s *Store) GetProgress(ctx context.Context, userID, videoID string) (*domain.VideoProgress, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+progressColumns+` FROM video_progress WHERE user_id = $1 AND video_id = $2`,
		userID, videoID)

	p, err := s.scanProgress(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrProgressNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get progress: %w", err)
	}
	return p, nil
}

// ListProgress returns all records of a user, most recently updated first.
func (s *Store) ListProgress(ctx context.Context, userID string) ([]*domain.VideoProgress, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+progressColumns+` FROM video_progress WHERE user_id = $1 ORDER BY updated_at DESC, video_id`,
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

// UpsertProgress inserts or replaces the record unless the stored row is
// newer. When the WHERE clause blocks the update the stored row is returned.
func (s *Store) UpsertProgress(ctx context.Context, in *domain.VideoProgress) (*domain.VideoProgress, error) {
	p, err := store.Prepare(in)
	if err != nil {
		return nil, err
	}

	intervals, err := json.Marshal(p.Intervals)
	if err != nil {
		return nil, fmt.Errorf("marshal intervals: %w", err)
	}

	row := s.pool.QueryRow(ctx, `
INSERT INTO video_progress (user_id, video_id, intervals, total_unique_seconds, last_position, duration, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (user_id, video_id)
DO UPDATE SET
  intervals            = EXCLUDED.intervals,
  total_unique_seconds = EXCLUDED.total_unique_seconds,
  last_position        = EXCLUDED.last_position,
  duration             = EXCLUDED.duration,
  updated_at           = EXCLUDED.updated_at
WHERE video_progress.updated_at <= EXCLUDED.updated_at
RETURNING `+progressColumns,
		p.UserID, p.VideoID, intervals, p.TotalUniqueSeconds, p.LastPosition, p.Duration, p.UpdatedAt,
	)

	saved, err := s.scanProgress(row)
	if errors.Is(err, pgx.ErrNoRows) {
		s.logger.Debug("stale progress write ignored", "user_id", p.UserID, "video_id", p.VideoID)
		return s.GetProgress(ctx, p.UserID, p.VideoID)
	}
	if err != nil {
		return nil, fmt.Errorf("upsert progress: %w", err)
	}
	return saved, nil
}

// DeleteProgress removes a record.
func (s *Store) DeleteProgress(ctx context.Context, userID, videoID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM video_progress WHERE user_id = $1 AND video_id = $2`, userID, videoID)
	if err != nil {
		return fmt.Errorf("delete progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrProgressNotFound
	}
	return nil
}
