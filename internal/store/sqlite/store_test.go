package sqlite

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/watchtrack/internal/store"
	"github.com/listenupapp/watchtrack/internal/store/storetest"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestOpen(t *testing.T) {
	s := newTestStore(t)

	var journalMode string
	require.NoError(t, s.db.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	assert.Equal(t, "wal", journalMode)

	var name string
	require.NoError(t, s.db.QueryRow(
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'video_progress'`).Scan(&name))
	assert.Equal(t, "video_progress", name)
}

func TestOpen_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")

	s, err := Open(path, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path, nil)
	require.NoError(t, err, "schema is idempotent")
	require.NoError(t, s.Close())
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestStore(t)
	})
}

func TestStore_CorruptIntervalsAreRepaired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO video_progress (user_id, video_id, intervals, total_unique_seconds, last_position, duration, updated_at)
		VALUES ('u', 'v', '[[5,3],[1,2],[2,4],[9],"junk"]', 77, 4, 10, 1)`)
	require.NoError(t, err)

	got, err := s.GetProgress(ctx, "u", "v")
	require.NoError(t, err)
	assert.Equal(t, tracking.WatchedSet{{Start: 1, End: 4}}, got.Intervals)
	assert.Equal(t, 3.0, got.TotalUniqueSeconds)
	assert.Equal(t, 30, got.CompletionPercentage())

	_, err = s.db.ExecContext(ctx,
		`UPDATE video_progress SET intervals = 'not json' WHERE user_id = 'u'`)
	require.NoError(t, err)

	got, err = s.GetProgress(ctx, "u", "v")
	require.NoError(t, err)
	assert.Empty(t, got.Intervals)
}
