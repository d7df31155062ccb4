package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/listenupapp/watchtrack/internal/config"
	"github.com/listenupapp/watchtrack/internal/di/providers"
	"github.com/listenupapp/watchtrack/internal/logger"
	"github.com/listenupapp/watchtrack/internal/store"
)

// storeFlags selects a progress store the same way the server does.
type storeFlags struct {
	backend     string
	dataPath    string
	postgresURL string
	verbose     bool
}

func (f *storeFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.backend, "storage", config.BackendSQLite, "Progress store: sqlite, badger or postgres")
	cmd.Flags().StringVar(&f.dataPath, "data-path", "~/.watchtrack", "Directory for embedded stores")
	cmd.Flags().StringVar(&f.postgresURL, "postgres-url", "", "Postgres connection string")
	cmd.Flags().BoolVarP(&f.verbose, "verbose", "v", false, "Log store activity to stderr")
}

func (f *storeFlags) open(ctx context.Context, cmd *cobra.Command) (store.Store, *logger.Logger, error) {
	cfg := config.StorageConfig{
		Backend:     f.backend,
		DataPath:    f.dataPath,
		PostgresURL: f.postgresURL,
	}
	if err := cfg.Resolve(); err != nil {
		return nil, nil, err
	}

	log := logger.Discard()
	if f.verbose {
		log = logger.New(logger.Config{Writer: cmd.ErrOrStderr(), Level: logger.ParseLevel("debug")})
	}

	st, _, err := providers.OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return st, log, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "watchctl",
		Short: "Inspect and maintain watch progress",
		Long: `watchctl merges raw watched intervals, prints stored progress records
and resets progress for a user and video.`,
		SilenceUsage: true,
	}

	root.AddCommand(newMergeCmd(), newInspectCmd(), newResetCmd())
	return root
}
