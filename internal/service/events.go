package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/listenupapp/watchtrack/internal/domain"
	domainerrors "github.com/listenupapp/watchtrack/internal/errors"
	"github.com/listenupapp/watchtrack/internal/sse"
	"github.com/listenupapp/watchtrack/internal/store"
)

// publishTimeout bounds a NATS publish so a slow broker cannot stall a save.
const publishTimeout = 2 * time.Second

// EventEmitter fans events out to SSE clients.
type EventEmitter interface {
	Emit(event sse.Event)
}

// ProgressPublisher forwards progress changes to the message bus.
type ProgressPublisher interface {
	PublishProgressSaved(ctx context.Context, p *domain.VideoProgress) error
	PublishProgressReset(ctx context.Context, userID, videoID string) error
}

// NoopEmitter discards events.
type NoopEmitter struct{}

// Emit implements EventEmitter.
func (NoopEmitter) Emit(sse.Event) {}

// NoopPublisher discards progress changes.
type NoopPublisher struct{}

// PublishProgressSaved implements ProgressPublisher.
func (NoopPublisher) PublishProgressSaved(context.Context, *domain.VideoProgress) error { return nil }

// PublishProgressReset implements ProgressPublisher.
func (NoopPublisher) PublishProgressReset(context.Context, string, string) error { return nil }

// storeError translates a store failure into a domain error. Anything that
// is not a known store condition is reported as retryable.
func storeError(err error, msg string) error {
	var se *store.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		return domainerrors.NotFound("progress not found")
	case errors.Is(err, store.ErrInvalidInput) && errors.As(err, &se):
		return domainerrors.Validation(se.Message)
	default:
		return domainerrors.Unavailable(msg, err)
	}
}

// publish runs fn with a bounded, cancellation-detached context and logs
// failures. Bus errors never fail the caller.
func publish(ctx context.Context, logger *slog.Logger, subject string, fn func(context.Context) error) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := fn(pctx); err != nil {
		logger.Warn("failed to publish progress event",
			slog.String("subject", subject),
			slog.String("error", err.Error()))
	}
}
