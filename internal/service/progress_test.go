package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainerrors "github.com/listenupapp/watchtrack/internal/errors"
	"github.com/listenupapp/watchtrack/internal/sse"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

func TestProgressService_SaveNormalizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.progress.Save(ctx, "u1", "v1", SaveProgressRequest{
		Intervals: []tracking.Interval{
			{Start: 10, End: 20},
			{Start: 0, End: 5},
			{Start: 5, End: 8},
			{Start: 30, End: 30},
			{Start: 18, End: 25},
		},
		LastPosition: 25,
		Duration:     50,
	})
	require.NoError(t, err)

	assert.Equal(t, tracking.WatchedSet{{Start: 0, End: 8}, {Start: 10, End: 25}}, saved.Intervals)
	assert.Equal(t, 23.0, saved.TotalUniqueSeconds)
	assert.Equal(t, 46, saved.CompletionPercentage())

	got, err := f.progress.Get(ctx, "u1", "v1")
	require.NoError(t, err)
	assert.Equal(t, saved.Intervals, got.Intervals)

	assert.Equal(t, []sse.EventType{sse.EventProgressUpdated}, f.emitter.types())
	require.Len(t, f.publisher.saved, 1)
	assert.Equal(t, "v1", f.publisher.saved[0].VideoID)
}

func TestProgressService_GetMissing(t *testing.T) {
	f := newFixture(t)

	_, err := f.progress.Get(context.Background(), "u1", "nope")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
}

func TestProgressService_InvalidKeys(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, tc := range []struct{ user, video string }{
		{"", "v"},
		{"u", ""},
		{"a:b", "v"},
		{"u", "x/y"},
	} {
		_, err := f.progress.Get(ctx, tc.user, tc.video)
		assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation), "%q/%q", tc.user, tc.video)
	}
}

func TestProgressService_RejectsNegativeDuration(t *testing.T) {
	f := newFixture(t)

	_, err := f.progress.Save(context.Background(), "u", "v", SaveProgressRequest{Duration: -1})
	require.Error(t, err)

	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domainerrors.CodeValidation, de.Code)
	assert.Contains(t, de.Details, "duration")
}

func TestProgressService_RejectsUnstorableUpdatedAt(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err := f.progress.Save(ctx, "u", "v", SaveProgressRequest{
		Intervals: []tracking.Interval{{Start: 0, End: 10}},
		Duration:  100,
		UpdatedAt: &now,
	})
	require.NoError(t, err)

	future := time.Date(2300, 1, 1, 0, 0, 0, 0, time.UTC)
	_, err = f.progress.Save(ctx, "u", "v", SaveProgressRequest{Duration: 100, UpdatedAt: &future})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	_, err = f.progress.Patch(ctx, "u", "v", PatchProgressRequest{UpdatedAt: &future})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))

	got, err := f.progress.Get(ctx, "u", "v")
	require.NoError(t, err)
	assert.Equal(t, tracking.WatchedSet{{Start: 0, End: 10}}, got.Intervals)
}

func TestProgressService_StaleWriteKeepsNewer(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	newer := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	_, err := f.progress.Save(ctx, "u", "v", SaveProgressRequest{
		Intervals: []tracking.Interval{{Start: 0, End: 40}},
		Duration:  100,
		UpdatedAt: &newer,
	})
	require.NoError(t, err)

	got, err := f.progress.Save(ctx, "u", "v", SaveProgressRequest{
		Intervals: []tracking.Interval{{Start: 0, End: 5}},
		Duration:  100,
		UpdatedAt: &older,
	})
	require.NoError(t, err)

	assert.Equal(t, tracking.WatchedSet{{Start: 0, End: 40}}, got.Intervals)
	assert.Len(t, f.emitter.types(), 1, "stale write is not announced")
}

func TestProgressService_Patch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.progress.Patch(ctx, "u", "v", PatchProgressRequest{})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	_, err = f.progress.Save(ctx, "u", "v", SaveProgressRequest{
		Intervals: []tracking.Interval{{Start: 0, End: 10}},
		Duration:  100,
	})
	require.NoError(t, err)

	pos := 77.0
	patched, err := f.progress.Patch(ctx, "u", "v", PatchProgressRequest{LastPosition: &pos})
	require.NoError(t, err)
	assert.Equal(t, 77.0, patched.LastPosition)
	assert.Equal(t, tracking.WatchedSet{{Start: 0, End: 10}}, patched.Intervals)
	assert.Equal(t, 100.0, patched.Duration)
}

func TestProgressService_Delete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	err := f.progress.Delete(ctx, "u", "v")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))

	_, err = f.progress.Save(ctx, "u", "v", SaveProgressRequest{Duration: 10})
	require.NoError(t, err)
	require.NoError(t, f.progress.Delete(ctx, "u", "v"))

	_, err = f.progress.Get(ctx, "u", "v")
	assert.True(t, domainerrors.Is(err, domainerrors.ErrNotFound))
	assert.Equal(t, []string{"u:v"}, f.publisher.resets)
	assert.Equal(t, []sse.EventType{sse.EventProgressUpdated, sse.EventProgressReset}, f.emitter.types())
}

func TestProgressService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, v := range []string{"a", "b"} {
		_, err := f.progress.Save(ctx, "u", v, SaveProgressRequest{Duration: 10})
		require.NoError(t, err)
	}
	_, err := f.progress.Save(ctx, "other", "a", SaveProgressRequest{Duration: 10})
	require.NoError(t, err)

	list, err := f.progress.List(ctx, "u")
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestProgressService_StoreDownIsRetryable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.down.Store(true)

	_, err := f.progress.Save(ctx, "u", "v", SaveProgressRequest{Duration: 10})
	require.Error(t, err)

	var de *domainerrors.Error
	require.ErrorAs(t, err, &de)
	assert.Equal(t, domainerrors.CodeUnavailable, de.Code)
	assert.True(t, de.Retryable())
	assert.ErrorIs(t, err, errStoreDown)
	assert.Empty(t, f.emitter.types())
}

func TestProgressService_PublishFailureDoesNotFailSave(t *testing.T) {
	f := newFixture(t)
	f.publisher.err = assert.AnError

	_, err := f.progress.Save(context.Background(), "u", "v", SaveProgressRequest{Duration: 10})
	assert.NoError(t, err)
}

func TestMergeIntervals(t *testing.T) {
	res, err := MergeIntervals(MergeIntervalsRequest{
		Intervals: []tracking.Interval{{Start: 10, End: 20}, {Start: 0, End: 10}, {Start: 40, End: 35}},
		Duration:  40,
	})
	require.NoError(t, err)

	assert.Equal(t, tracking.WatchedSet{{Start: 0, End: 20}}, res.Intervals)
	assert.Equal(t, 1, res.Dropped)
	assert.Equal(t, []tracking.Interval{{Start: 20, End: 40}}, res.Gaps)
	assert.Equal(t, 20.0, res.TotalUniqueSeconds)
	assert.Equal(t, 50, res.CompletionPercentage)

	empty, err := MergeIntervals(MergeIntervalsRequest{})
	require.NoError(t, err)
	assert.Empty(t, empty.Intervals)
	assert.Empty(t, empty.Gaps)
	assert.Zero(t, empty.CompletionPercentage)

	_, err = MergeIntervals(MergeIntervalsRequest{Duration: -5})
	assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation))
}
