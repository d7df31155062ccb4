package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/listenupapp/watchtrack/internal/events"
	"github.com/listenupapp/watchtrack/internal/service"
)

func newResetCmd() *cobra.Command {
	var (
		flags   storeFlags
		natsURL string
		stream  string
	)

	cmd := &cobra.Command{
		Use:   "reset <user-id> <video-id>",
		Short: "Delete stored progress for a video",
		Long: `Deletes the progress record of one user for one video. With --nats-url
the reset is also published so that downstream consumers see it.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, log, err := flags.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			pub, err := events.New(natsURL, stream, log.Logger)
			if err != nil {
				return err
			}
			defer pub.Close()

			progress := service.NewProgressService(st, service.NoopEmitter{}, pub, log.Logger)
			if err := progress.Delete(ctx, args[0], args[1]); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Reset progress for %s/%s\n", args[0], args[1])
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().StringVar(&natsURL, "nats-url", "", "NATS server URL for the reset event")
	cmd.Flags().StringVar(&stream, "nats-stream", "WATCH", "JetStream stream name")
	return cmd
}
