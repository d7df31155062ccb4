// Package di provides dependency injection configuration for the watchtrack server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/watchtrack/internal/config"
	"github.com/listenupapp/watchtrack/internal/di/providers"
	"github.com/listenupapp/watchtrack/internal/logger"
	"github.com/listenupapp/watchtrack/internal/service"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage and delivery
	do.Provide(injector, providers.ProvideSSEManager)
	do.Provide(injector, providers.ProvideStore)
	do.Provide(injector, providers.ProvidePublisher)
	do.Provide(injector, providers.ProvideRateLimiter)

	// Business services
	do.Provide(injector, providers.ProvideProgressService)
	do.Provide(injector, providers.ProvidePlaybackService)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services in dependency order. The HTTP server
// starts listening as the last step.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)
	_ = do.MustInvoke[*providers.SSEManagerHandle](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	if _, err := do.Invoke[*providers.PublisherHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*providers.RateLimiterHandle](injector)

	_ = do.MustInvoke[*service.ProgressService](injector)
	_ = do.MustInvoke[*providers.PlaybackServiceHandle](injector)

	if _, err := do.Invoke[*providers.HTTPServerHandle](injector); err != nil {
		return err
	}
	return nil
}
