package providers

import (
	"context"

	"github.com/samber/do/v2"

	"github.com/listenupapp/watchtrack/internal/config"
	"github.com/listenupapp/watchtrack/internal/logger"
	"github.com/listenupapp/watchtrack/internal/service"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

// ProvideProgressService provides the stored progress service.
func ProvideProgressService(i do.Injector) (*service.ProgressService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	publisher := do.MustInvoke[*PublisherHandle](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewProgressService(storeHandle.Store, sseHandle.Manager, publisher.Publisher, log.Logger), nil
}

// PlaybackServiceHandle wraps the playback service and its auto-save worker.
type PlaybackServiceHandle struct {
	*service.PlaybackService
	cancel context.CancelFunc
	done   chan struct{}
}

// Shutdown stops the worker, then saves every session with unsaved changes.
func (h *PlaybackServiceHandle) Shutdown() error {
	h.cancel()
	<-h.done

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.PlaybackService.Shutdown(ctx)
}

// ProvidePlaybackService provides the live session service and starts its
// auto-save and idle eviction worker.
func ProvidePlaybackService(i do.Injector) (*PlaybackServiceHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	sseHandle := do.MustInvoke[*SSEManagerHandle](i)
	progress := do.MustInvoke[*service.ProgressService](i)
	log := do.MustInvoke[*logger.Logger](i)

	svc := service.NewPlaybackService(progress, sseHandle.Manager, service.PlaybackOptions{
		Thresholds: tracking.Thresholds{
			Min: cfg.Tracking.MinSegment,
			Max: cfg.Tracking.MaxSegment,
		},
		AutoSaveInterval: cfg.Tracking.AutoSaveInterval,
		IdleTimeout:      cfg.Tracking.SessionIdleTimeout,
	}, log.Logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Run(ctx)
	}()

	log.Info("Playback service started",
		"autosave_interval", cfg.Tracking.AutoSaveInterval,
		"idle_timeout", cfg.Tracking.SessionIdleTimeout,
	)

	return &PlaybackServiceHandle{PlaybackService: svc, cancel: cancel, done: done}, nil
}
