package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/listenupapp/watchtrack/internal/dto"
	"github.com/listenupapp/watchtrack/internal/service"
)

func (s *Server) registerSessionRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "startSession",
		Method:        http.MethodPost,
		Path:          "/api/v1/sessions",
		Summary:       "Start tracking session",
		Description:   "Opens a server-side tracking session seeded with the stored progress",
		Tags:          []string{"Sessions"},
		DefaultStatus: http.StatusCreated,
	}, s.handleStartSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSession",
		Method:      http.MethodGet,
		Path:        "/api/v1/sessions/{sessionId}",
		Summary:     "Get session snapshot",
		Tags:        []string{"Sessions"},
	}, s.handleGetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "applySessionEvents",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{sessionId}/events",
		Summary:     "Apply player events",
		Description: "Feeds play, pause, timeupdate, seeked, ratechange and durationchange events into the session in order. Unknown event types are ignored.",
		Tags:        []string{"Sessions"},
	}, s.handleApplySessionEvents)

	huma.Register(s.api, huma.Operation{
		OperationID: "saveSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{sessionId}/save",
		Summary:     "Persist session",
		Description: "Writes the session's watched set to the store. A 503 leaves the session unchanged and can be retried.",
		Tags:        []string{"Sessions"},
	}, s.handleSaveSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "resetSession",
		Method:      http.MethodPost,
		Path:        "/api/v1/sessions/{sessionId}/reset",
		Summary:     "Reset session",
		Description: "Deletes the stored progress and clears the session",
		Tags:        []string{"Sessions"},
	}, s.handleResetSession)

	huma.Register(s.api, huma.Operation{
		OperationID: "endSession",
		Method:      http.MethodDelete,
		Path:        "/api/v1/sessions/{sessionId}",
		Summary:     "End session",
		Description: "Flushes and saves the session, then closes it",
		Tags:        []string{"Sessions"},
	}, s.handleEndSession)
}

// StartSessionInput names the user and video to track.
type StartSessionInput struct {
	Body struct {
		UserID  string `json:"userId" minLength:"1" doc:"User ID"`
		VideoID string `json:"videoId" minLength:"1" doc:"Video ID"`
	}
}

// SessionPathInput identifies a session.
type SessionPathInput struct {
	SessionID string `path:"sessionId" doc:"Session ID"`
}

// PlaybackEventBody is one player event.
type PlaybackEventBody struct {
	Type     string   `json:"type" doc:"play, pause, timeupdate, seeked, ratechange or durationchange"`
	Position float64  `json:"position,omitempty" doc:"Playhead after the event, in seconds"`
	From     *float64 `json:"from,omitempty" doc:"For seeked: where the seek started; defaults to the last known position"`
	Rate     float64  `json:"rate,omitempty" doc:"For ratechange: the new playback rate"`
	Duration float64  `json:"duration,omitempty" doc:"For durationchange: the media duration"`
}

// ApplySessionEventsInput carries a batch of player events.
type ApplySessionEventsInput struct {
	SessionPathInput
	Body struct {
		Events []PlaybackEventBody `json:"events" maxItems:"1000"`
	}
}

// SessionOutput wraps a session for Huma.
type SessionOutput struct {
	Body dto.Session
}

func sessionOutput(info *service.SessionInfo) *SessionOutput {
	return &SessionOutput{Body: dto.FromSnapshot(info.SessionID, info.UserID, info.VideoID, info.Snapshot)}
}

func (s *Server) handleStartSession(ctx context.Context, input *StartSessionInput) (*SessionOutput, error) {
	annotate(ctx, input.Body.UserID, input.Body.VideoID)
	info, err := s.services.Playback.Start(ctx, input.Body.UserID, input.Body.VideoID)
	if err != nil {
		return nil, err
	}
	annotateSession(ctx, info.SessionID)
	return sessionOutput(info), nil
}

func (s *Server) handleGetSession(ctx context.Context, input *SessionPathInput) (*SessionOutput, error) {
	annotateSession(ctx, input.SessionID)
	info, err := s.services.Playback.Snapshot(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	return sessionOutput(info), nil
}

func (s *Server) handleApplySessionEvents(ctx context.Context, input *ApplySessionEventsInput) (*SessionOutput, error) {
	annotateSession(ctx, input.SessionID)
	events := make([]service.PlaybackEvent, len(input.Body.Events))
	for i, ev := range input.Body.Events {
		events[i] = service.PlaybackEvent{
			Type:     service.PlaybackEventType(ev.Type),
			Position: ev.Position,
			From:     ev.From,
			Rate:     ev.Rate,
			Duration: ev.Duration,
		}
	}

	info, err := s.services.Playback.Apply(ctx, input.SessionID, events)
	if err != nil {
		return nil, err
	}
	return sessionOutput(info), nil
}

func (s *Server) handleSaveSession(ctx context.Context, input *SessionPathInput) (*ProgressOutput, error) {
	annotateSession(ctx, input.SessionID)
	p, err := s.services.Playback.Save(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	return &ProgressOutput{Body: dto.FromProgress(p)}, nil
}

func (s *Server) handleResetSession(ctx context.Context, input *SessionPathInput) (*SessionOutput, error) {
	annotateSession(ctx, input.SessionID)
	info, err := s.services.Playback.Reset(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	return sessionOutput(info), nil
}

func (s *Server) handleEndSession(ctx context.Context, input *SessionPathInput) (*ProgressOutput, error) {
	annotateSession(ctx, input.SessionID)
	p, err := s.services.Playback.End(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}
	return &ProgressOutput{Body: dto.FromProgress(p)}, nil
}
