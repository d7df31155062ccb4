// Package storetest holds the behavior every store.Store backend must share.
package storetest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/watchtrack/internal/domain"
	"github.com/listenupapp/watchtrack/internal/store"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

// Run exercises a backend. newStore must return an empty store and register
// its own cleanup.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Helper()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		_, err := s.GetProgress(context.Background(), "nobody", "nothing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})

	t.Run("UpsertThenGet", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		in := record("user-1", "video-1", at(0), tracking.WatchedSet{{Start: 2, End: 3}, {Start: 2.5, End: 4}, {Start: 10, End: 12}})
		in.LastPosition = 12
		in.Duration = 100

		saved, err := s.UpsertProgress(ctx, in)
		require.NoError(t, err)
		assert.Equal(t, tracking.WatchedSet{{Start: 2, End: 4}, {Start: 10, End: 12}}, saved.Intervals)
		assert.Equal(t, 4.0, saved.TotalUniqueSeconds)

		got, err := s.GetProgress(ctx, "user-1", "video-1")
		require.NoError(t, err)
		assert.Equal(t, saved.Intervals, got.Intervals)
		assert.Equal(t, 4.0, got.TotalUniqueSeconds)
		assert.Equal(t, 12.0, got.LastPosition)
		assert.Equal(t, 100.0, got.Duration)
		assert.True(t, at(0).Equal(got.UpdatedAt), "got %s", got.UpdatedAt)
		assert.True(t, got.Intervals.Normalized())
	})

	t.Run("UpsertReplaces", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertProgress(ctx, record("u", "v", at(0), tracking.WatchedSet{{Start: 0, End: 10}}))
		require.NoError(t, err)
		_, err = s.UpsertProgress(ctx, record("u", "v", at(1), tracking.WatchedSet{{Start: 50, End: 60}}))
		require.NoError(t, err)

		got, err := s.GetProgress(ctx, "u", "v")
		require.NoError(t, err)
		assert.Equal(t, tracking.WatchedSet{{Start: 50, End: 60}}, got.Intervals)
	})

	t.Run("LastWriteWins", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertProgress(ctx, record("u", "v", at(10), tracking.WatchedSet{{Start: 0, End: 30}}))
		require.NoError(t, err)

		kept, err := s.UpsertProgress(ctx, record("u", "v", at(5), tracking.WatchedSet{{Start: 0, End: 5}}))
		require.NoError(t, err)
		assert.Equal(t, tracking.WatchedSet{{Start: 0, End: 30}}, kept.Intervals, "stale write returns the stored row")

		got, err := s.GetProgress(ctx, "u", "v")
		require.NoError(t, err)
		assert.Equal(t, tracking.WatchedSet{{Start: 0, End: 30}}, got.Intervals)
	})

	t.Run("UnmergedInputIsNormalized", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		in := record("u", "v", at(0), tracking.WatchedSet{{Start: 5, End: 3}, {Start: 1, End: 2}, {Start: 2, End: 4}})
		in.TotalUniqueSeconds = 1000

		_, err := s.UpsertProgress(ctx, in)
		require.NoError(t, err)

		got, err := s.GetProgress(ctx, "u", "v")
		require.NoError(t, err)
		assert.Equal(t, tracking.WatchedSet{{Start: 1, End: 4}}, got.Intervals)
		assert.Equal(t, 3.0, got.TotalUniqueSeconds)
	})

	t.Run("InvalidInput", func(t *testing.T) {
		s := newStore(t)
		_, err := s.UpsertProgress(context.Background(), &domain.VideoProgress{VideoID: "v", UpdatedAt: at(0)})
		assert.ErrorIs(t, err, store.ErrInvalidInput)
	})

	t.Run("UpdatedAtOutOfRange", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertProgress(ctx, record("u", "v", time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC), tracking.WatchedSet{{Start: 0, End: 5}}))
		assert.ErrorIs(t, err, store.ErrInvalidInput)

		_, err = s.UpsertProgress(ctx, record("u", "v", time.Date(1600, 1, 1, 0, 0, 0, 0, time.UTC), nil))
		assert.ErrorIs(t, err, store.ErrInvalidInput)

		_, err = s.GetProgress(ctx, "u", "v")
		assert.ErrorIs(t, err, store.ErrNotFound, "rejected writes leave nothing behind")

		edge := store.MaxUpdatedAt.Add(-time.Second).Truncate(time.Microsecond)
		saved, err := s.UpsertProgress(ctx, record("u", "v", edge, nil))
		require.NoError(t, err)
		assert.True(t, edge.Equal(saved.UpdatedAt))
	})

	t.Run("Delete", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertProgress(ctx, record("u", "v", at(0), tracking.WatchedSet{{Start: 0, End: 1}}))
		require.NoError(t, err)

		require.NoError(t, s.DeleteProgress(ctx, "u", "v"))

		_, err = s.GetProgress(ctx, "u", "v")
		assert.ErrorIs(t, err, store.ErrNotFound)

		assert.ErrorIs(t, s.DeleteProgress(ctx, "u", "v"), store.ErrNotFound)
	})

	t.Run("ListIsScopedToUser", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		for _, r := range []*domain.VideoProgress{
			record("alice", "v1", at(1), tracking.WatchedSet{{Start: 0, End: 1}}),
			record("alice", "v2", at(3), tracking.WatchedSet{{Start: 0, End: 2}}),
			record("alicia", "v1", at(2), tracking.WatchedSet{{Start: 0, End: 3}}),
			record("bob", "v1", at(2), tracking.WatchedSet{{Start: 0, End: 4}}),
		} {
			_, err := s.UpsertProgress(ctx, r)
			require.NoError(t, err)
		}

		list, err := s.ListProgress(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, list, 2)
		assert.Equal(t, "v2", list[0].VideoID, "most recently updated first")
		assert.Equal(t, "v1", list[1].VideoID)

		empty, err := s.ListProgress(ctx, "carol")
		require.NoError(t, err)
		assert.Empty(t, empty)
	})

	t.Run("EmptyIntervals", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		_, err := s.UpsertProgress(ctx, record("u", "v", at(0), nil))
		require.NoError(t, err)

		got, err := s.GetProgress(ctx, "u", "v")
		require.NoError(t, err)
		assert.Empty(t, got.Intervals)
		assert.Zero(t, got.TotalUniqueSeconds)
	})

	t.Run("ConcurrentWriters", func(t *testing.T) {
		s := newStore(t)
		ctx := context.Background()

		var wg sync.WaitGroup
		for i := range 8 {
			wg.Go(func() {
				r := record("u", "v", at(i), tracking.WatchedSet{{Start: float64(i), End: float64(i + 1)}})
				_, err := s.UpsertProgress(ctx, r)
				assert.NoError(t, err)
			})
		}
		wg.Wait()

		got, err := s.GetProgress(ctx, "u", "v")
		require.NoError(t, err)
		assert.Equal(t, tracking.WatchedSet{{Start: 7, End: 8}}, got.Intervals, "newest write survives")
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(context.Background()))
	})
}

func record(userID, videoID string, updated time.Time, set tracking.WatchedSet) *domain.VideoProgress {
	return &domain.VideoProgress{
		UserID:    userID,
		VideoID:   videoID,
		Intervals: set,
		UpdatedAt: updated,
	}
}

var epoch = time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return epoch.Add(time.Duration(seconds) * time.Second)
}
