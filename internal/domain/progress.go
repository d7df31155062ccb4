// Package domain holds the persisted models of the watch tracking server.
package domain

import (
	"math"
	"time"

	"github.com/listenupapp/watchtrack/internal/tracking"
)

// VideoProgress is the stored watch record of one user for one video.
// Intervals always satisfy the WatchedSet invariant once Normalize has run,
// and every store write goes through Normalize.
type VideoProgress struct {
	UserID             string              `json:"userId"`
	VideoID            string              `json:"videoId"`
	Intervals          tracking.WatchedSet `json:"intervals"`
	TotalUniqueSeconds float64             `json:"totalUniqueSeconds"`
	LastPosition       float64             `json:"lastPosition"`
	Duration           float64             `json:"duration"`
	UpdatedAt          time.Time           `json:"updatedAt"`
}

// ProgressID generates the composite key "userID:videoID".
func ProgressID(userID, videoID string) string {
	return userID + ":" + videoID
}

// ID returns the composite key of p.
func (p *VideoProgress) ID() string {
	return ProgressID(p.UserID, p.VideoID)
}

// Normalize re-merges the intervals, recomputes the unique total from them
// and clamps the scalar fields to sane values. The client supplied total is
// never trusted.
func (p *VideoProgress) Normalize() {
	p.Intervals = tracking.MergeAll(p.Intervals)
	p.TotalUniqueSeconds = p.Intervals.TotalSeconds()
	p.LastPosition = nonNegative(p.LastPosition)
	p.Duration = nonNegative(p.Duration)
}

// CompletionPercentage derives the 0-100 completion from the intervals.
func (p *VideoProgress) CompletionPercentage() int {
	return tracking.CompletionPercentage(p.TotalUniqueSeconds, p.Duration)
}

// Progress returns the aggregate view of p.
func (p *VideoProgress) Progress() tracking.Progress {
	return tracking.ComputeProgress(p.Intervals, p.Duration)
}

// NewerThan reports whether p should win a last-write-wins race against other.
// Ties go to p so that a replayed write is idempotent.
func (p *VideoProgress) NewerThan(other *VideoProgress) bool {
	if other == nil {
		return true
	}
	return !p.UpdatedAt.Before(other.UpdatedAt)
}

// ProgressPatch is a partial update. Nil fields are left unchanged.
type ProgressPatch struct {
	Intervals    []tracking.Interval
	LastPosition *float64
	Duration     *float64
	UpdatedAt    *time.Time
}

// ApplyPatch copies the non-nil patch fields onto p and re-normalizes.
// Patched intervals replace the stored set rather than merging into it.
func (p *VideoProgress) ApplyPatch(patch ProgressPatch, now time.Time) {
	if patch.Intervals != nil {
		p.Intervals = patch.Intervals
	}
	if patch.LastPosition != nil {
		p.LastPosition = *patch.LastPosition
	}
	if patch.Duration != nil {
		p.Duration = *patch.Duration
	}
	p.UpdatedAt = now
	if patch.UpdatedAt != nil {
		p.UpdatedAt = *patch.UpdatedAt
	}
	p.Normalize()
}

// FromSnapshot builds the record persisted for a tracking session.
func FromSnapshot(userID, videoID string, snap tracking.Snapshot, now time.Time) *VideoProgress {
	p := &VideoProgress{
		UserID:       userID,
		VideoID:      videoID,
		Intervals:    snap.WatchedSet,
		LastPosition: snap.LastPosition,
		Duration:     snap.Duration,
		UpdatedAt:    now,
	}
	p.Normalize()
	return p
}

func nonNegative(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
