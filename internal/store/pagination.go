package store

import (
	"encoding/base64"
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/listenupapp/watchtrack/internal/domain"
)

// Page size bounds.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// PaginationParams selects one page of a listing.
type PaginationParams struct {
	Limit  int    // defaults to DefaultPageSize, capped at MaxPageSize
	Cursor string // opaque; empty for the first page
}

// PaginatedResult is one page of items.
type PaginatedResult[T any] struct {
	Items      []T
	NextCursor string // empty on the last page
	HasMore    bool
	Total      int
}

// Normalize clamps Limit into range.
func (p *PaginationParams) Normalize() {
	if p.Limit <= 0 {
		p.Limit = DefaultPageSize
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
}

// EncodeCursor makes an opaque cursor from the key of the last item on a page.
func EncodeCursor(key string) string {
	if key == "" {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// DecodeCursor reverses EncodeCursor.
func DecodeCursor(cursor string) (string, error) {
	if cursor == "" {
		return "", nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", fmt.Errorf("invalid cursor: %w", err)
	}
	return string(decoded), nil
}

// Page returns up to params.Limit items whose key sorts after the cursor.
// Items are ordered by key here and keys must be unique. The cursor holds
// the key of the last item served, so a record that changes between
// requests never shifts the rest of the listing. A record whose new key
// sorts before the cursor is not served again on later pages.
func Page[T any](items []T, key func(T) string, params PaginationParams) (*PaginatedResult[T], error) {
	params.Normalize()

	after, err := DecodeCursor(params.Cursor)
	if err != nil {
		return nil, ErrInvalidInput.WithMessage("invalid cursor").WithCause(err)
	}

	sorted := slices.Clone(items)
	slices.SortFunc(sorted, func(a, b T) int { return strings.Compare(key(a), key(b)) })

	start := 0
	if after != "" {
		var found bool
		start, found = slices.BinarySearchFunc(sorted, after, func(item T, k string) int {
			return strings.Compare(key(item), k)
		})
		if found {
			start++
		}
	}

	end := min(start+params.Limit, len(sorted))
	res := &PaginatedResult[T]{
		Items:   sorted[start:end],
		HasMore: end < len(sorted),
		Total:   len(sorted),
	}
	if res.HasMore {
		res.NextCursor = EncodeCursor(key(sorted[end-1]))
	}
	return res, nil
}

// ProgressSortKey orders records most recently updated first, then by video id.
func ProgressSortKey(p *domain.VideoProgress) string {
	// Inverting the nanosecond count in uint64 space makes newer times sort
	// first at a fixed width.
	inv := uint64(math.MaxInt64) - uint64(p.UpdatedAt.UnixNano())
	return fmt.Sprintf("%020d/%s", inv, p.VideoID)
}
