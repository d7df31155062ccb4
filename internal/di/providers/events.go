package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/watchtrack/internal/config"
	"github.com/listenupapp/watchtrack/internal/events"
	"github.com/listenupapp/watchtrack/internal/logger"
)

// PublisherHandle wraps the NATS publisher with shutdown capability.
type PublisherHandle struct {
	*events.Publisher
}

// Shutdown implements do.Shutdownable.
func (h *PublisherHandle) Shutdown() error {
	return h.Close()
}

// ProvidePublisher connects to NATS when NATS_URL is set. Without it the
// publisher runs in stub mode and drops every event.
func ProvidePublisher(i do.Injector) (*PublisherHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	pub, err := events.New(cfg.Events.NATSURL, cfg.Events.Stream, log.Logger)
	if err != nil {
		return nil, err
	}
	return &PublisherHandle{Publisher: pub}, nil
}
