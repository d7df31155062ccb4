// Package events publishes progress changes to NATS JetStream for
// downstream consumers.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/listenupapp/watchtrack/internal/domain"
	"github.com/listenupapp/watchtrack/internal/id"
)

// Subjects published under the stream.
const (
	SubjectProgressSaved = "watch.progress.saved"
	SubjectProgressReset = "watch.progress.reset"

	streamSubjects = "watch.>"
)

// ProgressEvent is the payload published to NATS.
type ProgressEvent struct {
	EventID              string      `json:"event_id"`
	EventType            string      `json:"event_type"`
	UserID               string      `json:"user_id"`
	VideoID              string      `json:"video_id"`
	Intervals            [][]float64 `json:"intervals,omitempty"`
	TotalUniqueSeconds   float64     `json:"total_unique_seconds"`
	CompletionPercentage int         `json:"completion_percentage"`
	LastPosition         float64     `json:"last_position"`
	Duration             float64     `json:"duration"`
	OccurredAt           time.Time   `json:"occurred_at"`
}

// Publisher publishes progress events. A Publisher created without a URL
// is a stub that only logs.
type Publisher struct {
	nc     *nats.Conn
	js     nats.JetStreamContext
	stream string
	log    *slog.Logger
}

// New connects to NATS and ensures the stream exists.
// If natsURL is empty, it returns a no-op publisher.
func New(natsURL, stream string, log *slog.Logger) (*Publisher, error) {
	if natsURL == "" {
		log.Warn("NATS_URL not set, progress events will not be published (stub mode)")
		return &Publisher{stream: stream, log: log}, nil
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("watchtrack"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream context: %w", err)
	}

	if _, err := js.AddStream(&nats.StreamConfig{
		Name:     stream,
		Subjects: []string{streamSubjects},
		Storage:  nats.FileStorage,
	}); err != nil {
		log.Warn("failed to create NATS stream (may already exist)",
			slog.String("stream", stream),
			slog.String("error", err.Error()))
	}

	log.Info("NATS publisher initialised", slog.String("stream", stream))
	return &Publisher{nc: nc, js: js, stream: stream, log: log}, nil
}

// Enabled reports whether events leave the process.
func (p *Publisher) Enabled() bool {
	return p.js != nil
}

// PublishProgressSaved announces a stored progress record.
func (p *Publisher) PublishProgressSaved(ctx context.Context, progress *domain.VideoProgress) error {
	return p.Publish(ctx, SubjectProgressSaved, ProgressEvent{
		EventID:              id.EventID(),
		EventType:            SubjectProgressSaved,
		UserID:               progress.UserID,
		VideoID:              progress.VideoID,
		Intervals:            progress.Intervals.Pairs(),
		TotalUniqueSeconds:   progress.TotalUniqueSeconds,
		CompletionPercentage: progress.CompletionPercentage(),
		LastPosition:         progress.LastPosition,
		Duration:             progress.Duration,
		OccurredAt:           progress.UpdatedAt,
	})
}

// PublishProgressReset announces a deleted progress record.
func (p *Publisher) PublishProgressReset(ctx context.Context, userID, videoID string) error {
	return p.Publish(ctx, SubjectProgressReset, ProgressEvent{
		EventID:    id.EventID(),
		EventType:  SubjectProgressReset,
		UserID:     userID,
		VideoID:    videoID,
		OccurredAt: time.Now().UTC(),
	})
}

// Publish sends evt to subject. The event ID doubles as the JetStream
// message ID so redelivered publishes are deduplicated.
func (p *Publisher) Publish(ctx context.Context, subject string, evt ProgressEvent) error {
	if p.js == nil {
		p.log.Debug("NATS stub: skipping publish",
			slog.String("subject", subject),
			slog.String("event_id", evt.EventID))
		return nil
	}

	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	ack, err := p.js.Publish(subject, data, nats.Context(ctx), nats.MsgId(evt.EventID))
	if err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}

	p.log.Debug("NATS event published",
		slog.String("subject", subject),
		slog.String("event_id", evt.EventID),
		slog.Uint64("seq", ack.Sequence))
	return nil
}

// Close drains the connection. It is a no-op in stub mode.
func (p *Publisher) Close() error {
	if p.nc == nil {
		return nil
	}
	return p.nc.Drain()
}
