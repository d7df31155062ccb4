// Package dto provides the client-facing shapes of progress records and
// tracking sessions, shared by API responses and SSE events.
//
// Interval sets always travel as [[start, end], ...] arrays.
package dto

import (
	"time"

	"github.com/listenupapp/watchtrack/internal/domain"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

// Progress is the client-facing representation of a stored record.
type Progress struct {
	UserID               string      `json:"userId" doc:"User ID"`
	VideoID              string      `json:"videoId" doc:"Video ID"`
	Intervals            [][]float64 `json:"intervals" doc:"Merged watched intervals as [start, end] pairs in seconds"`
	TotalUniqueSeconds   float64     `json:"totalUniqueSeconds" doc:"Seconds covered by the intervals"`
	CompletionPercentage int         `json:"completionPercentage" doc:"Unique coverage of the video, 0-100"`
	LastPosition         float64     `json:"lastPosition" doc:"Resume position in seconds"`
	Duration             float64     `json:"duration" doc:"Video duration in seconds"`
	UpdatedAt            time.Time   `json:"updatedAt" doc:"Last write time"`
}

// FromProgress converts a stored record.
func FromProgress(p *domain.VideoProgress) Progress {
	return Progress{
		UserID:               p.UserID,
		VideoID:              p.VideoID,
		Intervals:            p.Intervals.Pairs(),
		TotalUniqueSeconds:   p.TotalUniqueSeconds,
		CompletionPercentage: p.CompletionPercentage(),
		LastPosition:         p.LastPosition,
		Duration:             p.Duration,
		UpdatedAt:            p.UpdatedAt,
	}
}

// FromProgressList converts a list of records.
func FromProgressList(list []*domain.VideoProgress) []Progress {
	out := make([]Progress, len(list))
	for i, p := range list {
		out[i] = FromProgress(p)
	}
	return out
}

// SessionStats mirrors tracking.SessionStats with watch time in seconds.
type SessionStats struct {
	Pauses           int     `json:"pauses"`
	Seeks            int     `json:"seeks"`
	PlaybackRate     float64 `json:"playbackRate"`
	WatchTimeSeconds float64 `json:"watchTimeSeconds"`
	State            string  `json:"state" enum:"idle,playing,paused"`
}

// Session is the client-facing view of a live tracking session.
type Session struct {
	SessionID            string       `json:"sessionId"`
	UserID               string       `json:"userId"`
	VideoID              string       `json:"videoId"`
	WatchedSet           [][]float64  `json:"watchedSet" doc:"Merged watched intervals as [start, end] pairs"`
	TotalUniqueSeconds   float64      `json:"totalUniqueSeconds"`
	CompletionPercentage int          `json:"completionPercentage"`
	LastPosition         float64      `json:"lastPosition"`
	Duration             float64      `json:"duration"`
	Revision             uint64       `json:"revision" doc:"Increases on every state change"`
	Stats                SessionStats `json:"stats"`
}

// FromSnapshot converts a session snapshot.
func FromSnapshot(sessionID, userID, videoID string, snap tracking.Snapshot) Session {
	return Session{
		SessionID:            sessionID,
		UserID:               userID,
		VideoID:              videoID,
		WatchedSet:           snap.WatchedSet.Pairs(),
		TotalUniqueSeconds:   snap.TotalUniqueSeconds,
		CompletionPercentage: snap.CompletionPercentage,
		LastPosition:         snap.LastPosition,
		Duration:             snap.Duration,
		Revision:             snap.Revision,
		Stats: SessionStats{
			Pauses:           snap.SessionStats.Pauses,
			Seeks:            snap.SessionStats.Seeks,
			PlaybackRate:     snap.SessionStats.PlaybackRate,
			WatchTimeSeconds: snap.SessionStats.WatchTimeSeconds(),
			State:            string(snap.SessionStats.State),
		},
	}
}
