package store

import (
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/watchtrack/internal/domain"
)

func TestPaginationParams_Normalize(t *testing.T) {
	tests := []struct {
		name  string
		limit int
		want  int
	}{
		{"valid", 50, 50},
		{"zero", 0, DefaultPageSize},
		{"negative", -10, DefaultPageSize},
		{"over max", 5000, MaxPageSize},
		{"exactly max", MaxPageSize, MaxPageSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := PaginationParams{Limit: tt.limit}
			p.Normalize()
			assert.Equal(t, tt.want, p.Limit)
		})
	}
}

func TestCursorRoundTrip(t *testing.T) {
	assert.Empty(t, EncodeCursor(""))

	key, err := DecodeCursor(EncodeCursor("video:intro/2"))
	require.NoError(t, err)
	assert.Equal(t, "video:intro/2", key)

	_, err = DecodeCursor("!!!")
	assert.Error(t, err)
}

func TestPage_WalksAllItems(t *testing.T) {
	items := make([]string, 7)
	for i := range items {
		items[i] = "v" + strconv.Itoa(i)
	}
	ident := func(s string) string { return s }

	var seen []string
	params := PaginationParams{Limit: 3}
	for {
		page, err := Page(items, ident, params)
		require.NoError(t, err)
		assert.Equal(t, 7, page.Total)
		seen = append(seen, page.Items...)
		if !page.HasMore {
			assert.Empty(t, page.NextCursor)
			break
		}
		params.Cursor = page.NextCursor
	}
	assert.Equal(t, items, seen)
}

func TestPage_BadCursor(t *testing.T) {
	ident := func(s string) string { return s }

	_, err := Page([]string{"a"}, ident, PaginationParams{Cursor: "%%"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestPage_CursorSurvivesChanges(t *testing.T) {
	ident := func(s string) string { return s }

	first, err := Page([]string{"b", "d", "f", "h"}, ident, PaginationParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "d"}, first.Items)

	// "d" is gone and "a" plus "e" arrived before the next request.
	next, err := Page([]string{"a", "b", "e", "f", "h"}, ident, PaginationParams{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	assert.Equal(t, []string{"e", "f"}, next.Items)
	assert.True(t, next.HasMore)
}

func TestProgressKey_NewestFirst(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	older := &domain.VideoProgress{VideoID: "a", UpdatedAt: at}
	newer := &domain.VideoProgress{VideoID: "z", UpdatedAt: at.Add(time.Microsecond)}
	tie := &domain.VideoProgress{VideoID: "b", UpdatedAt: at}
	ancient := &domain.VideoProgress{VideoID: "c", UpdatedAt: time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)}

	page, err := Page([]*domain.VideoProgress{ancient, tie, older, newer}, ProgressSortKey, PaginationParams{})
	require.NoError(t, err)
	assert.Equal(t, []*domain.VideoProgress{newer, older, tie, ancient}, page.Items)
}

func TestPage_UpdatedRecordIsNotRepeated(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	list := make([]*domain.VideoProgress, 5)
	for i := range list {
		list[i] = &domain.VideoProgress{VideoID: "v" + strconv.Itoa(i), UpdatedAt: at.Add(-time.Duration(i) * time.Minute)}
	}

	first, err := Page(list, ProgressSortKey, PaginationParams{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, list[:2], first.Items)

	// v0 is saved again and v3 is saved later than everything else.
	list[0] = &domain.VideoProgress{VideoID: "v0", UpdatedAt: at.Add(time.Minute)}
	list[3] = &domain.VideoProgress{VideoID: "v3", UpdatedAt: at.Add(2 * time.Minute)}

	next, err := Page(list, ProgressSortKey, PaginationParams{Limit: 2, Cursor: first.NextCursor})
	require.NoError(t, err)
	assert.Equal(t, []*domain.VideoProgress{list[2], list[4]}, next.Items)
	assert.False(t, next.HasMore)
}

func TestPage_Empty(t *testing.T) {
	page, err := Page([]int{}, strconv.Itoa, PaginationParams{})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.False(t, page.HasMore)
	assert.Zero(t, page.Total)
}
