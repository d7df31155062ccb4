// Package sse streams progress and session changes to connected clients
// as Server-Sent Events.
package sse

import (
	"time"

	"github.com/listenupapp/watchtrack/internal/domain"
	"github.com/listenupapp/watchtrack/internal/dto"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

// EventType names an SSE event.
type EventType string

const (
	// EventProgressUpdated is sent after a progress record is saved.
	EventProgressUpdated EventType = "progress.updated"
	// EventProgressReset is sent after a progress record is deleted.
	EventProgressReset EventType = "progress.reset"

	// EventSessionStarted is sent when a tracking session opens.
	EventSessionStarted EventType = "session.started"
	// EventSessionUpdated carries the snapshot after session events are applied.
	EventSessionUpdated EventType = "session.updated"
	// EventSessionEnded is sent when a session is closed or evicted.
	EventSessionEnded EventType = "session.ended"

	// EventHeartbeat keeps idle connections open.
	EventHeartbeat EventType = "heartbeat"
)

// Event is one message on the stream. UserID scopes delivery and is not
// serialized; an empty UserID reaches every client.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	UserID    string    `json:"-"`
}

// ResetEventData is the payload of progress.reset.
type ResetEventData struct {
	UserID  string `json:"userId"`
	VideoID string `json:"videoId"`
}

// NewProgressUpdatedEvent reports a saved record.
func NewProgressUpdatedEvent(p *domain.VideoProgress) Event {
	return Event{
		Type:      EventProgressUpdated,
		Timestamp: time.Now(),
		UserID:    p.UserID,
		Data:      dto.FromProgress(p),
	}
}

// NewProgressResetEvent reports a deleted record.
func NewProgressResetEvent(userID, videoID string) Event {
	return Event{
		Type:      EventProgressReset,
		Timestamp: time.Now(),
		UserID:    userID,
		Data:      ResetEventData{UserID: userID, VideoID: videoID},
	}
}

// NewSessionEvent wraps a session snapshot in an event of type t.
func NewSessionEvent(t EventType, sessionID, userID, videoID string, snap tracking.Snapshot) Event {
	return Event{
		Type:      t,
		Timestamp: time.Now(),
		UserID:    userID,
		Data:      dto.FromSnapshot(sessionID, userID, videoID, snap),
	}
}

// NewHeartbeatEvent creates a keepalive event.
func NewHeartbeatEvent() Event {
	return Event{Type: EventHeartbeat, Timestamp: time.Now()}
}
