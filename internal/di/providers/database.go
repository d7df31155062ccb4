package providers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/samber/do/v2"

	"github.com/listenupapp/watchtrack/internal/config"
	"github.com/listenupapp/watchtrack/internal/logger"
	"github.com/listenupapp/watchtrack/internal/sse"
	"github.com/listenupapp/watchtrack/internal/store"
	badgerstore "github.com/listenupapp/watchtrack/internal/store/badger"
	"github.com/listenupapp/watchtrack/internal/store/postgres"
	"github.com/listenupapp/watchtrack/internal/store/sqlite"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the progress store with shutdown capability.
type StoreHandle struct {
	store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore opens the configured progress store backend.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	st, location, err := OpenStore(context.Background(), cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	log.Info("Progress store initialized",
		"backend", cfg.Storage.Backend,
		"location", location,
	)

	return &StoreHandle{Store: st}, nil
}

// OpenStore opens the backend named by cfg and returns it along with a
// loggable location. Command-line tools share it with the server.
func OpenStore(ctx context.Context, cfg config.StorageConfig, log *logger.Logger) (store.Store, string, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		st, err := postgres.Open(ctx, cfg.PostgresURL, log.Logger)
		if err != nil {
			return nil, "", err
		}
		return st, "postgres", nil

	case config.BackendBadger:
		dir := filepath.Join(cfg.DataPath, "badger")
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, "", fmt.Errorf("create data dir: %w", err)
		}
		st, err := badgerstore.Open(dir, log.Logger)
		if err != nil {
			return nil, "", err
		}
		return st, dir, nil

	case config.BackendSQLite:
		if err := os.MkdirAll(cfg.DataPath, 0o750); err != nil {
			return nil, "", fmt.Errorf("create data dir: %w", err)
		}
		path := filepath.Join(cfg.DataPath, "watchtrack.db")
		st, err := sqlite.Open(path, log.Logger)
		if err != nil {
			return nil, "", err
		}
		return st, path, nil

	default:
		return nil, "", fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
