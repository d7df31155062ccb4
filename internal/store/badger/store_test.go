package badger

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/watchtrack/internal/store"
	"github.com/listenupapp/watchtrack/internal/store/storetest"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_Conformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return newTestStore(t)
	})
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open("", nil)
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))

	require.NoError(t, s.Close())
	assert.Error(t, s.Ping(context.Background()))
}

func TestStore_DamagedIntervalsAreRepaired(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	raw := `{"userId":"u","videoId":"v","intervals":[[5,3],[1,2],[2,4],[7]],"totalUniqueSeconds":50,"lastPosition":4,"duration":10,"updatedAt":"2025-01-01T00:00:00Z"}`
	require.NoError(t, s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(store.ProgressKey("u", "v"), []byte(raw))
	}))

	got, err := s.GetProgress(ctx, "u", "v")
	require.NoError(t, err)
	assert.Equal(t, tracking.WatchedSet{{Start: 1, End: 4}}, got.Intervals)
	assert.Equal(t, 3.0, got.TotalUniqueSeconds)
	assert.Equal(t, time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), got.UpdatedAt)
}
