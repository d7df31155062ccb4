// Package providers contains dependency injection providers for the watchtrack server.
package providers

import (
	"github.com/samber/do/v2"

	"github.com/listenupapp/watchtrack/internal/config"
	"github.com/listenupapp/watchtrack/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig()
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting watchtrack server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"storage", cfg.Storage.Backend,
		"min_segment", cfg.Tracking.MinSegment,
		"max_segment", cfg.Tracking.MaxSegment,
	)

	return log, nil
}
