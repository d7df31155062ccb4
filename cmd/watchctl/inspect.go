package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/listenupapp/watchtrack/internal/domain"
	"github.com/listenupapp/watchtrack/internal/dto"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

func newInspectCmd() *cobra.Command {
	var (
		flags  storeFlags
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "inspect <user-id> [video-id]",
		Short: "Print stored progress",
		Long:  `Prints every progress record of a user, or a single record when a video ID is given.`,
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, _, err := flags.open(ctx, cmd)
			if err != nil {
				return err
			}
			defer st.Close()

			var records []*domain.VideoProgress
			if len(args) == 2 {
				p, err := st.GetProgress(ctx, args[0], args[1])
				if err != nil {
					return fmt.Errorf("get %s/%s: %w", args[0], args[1], err)
				}
				records = append(records, p)
			} else {
				records, err = st.ListProgress(ctx, args[0])
				if err != nil {
					return fmt.Errorf("list %s: %w", args[0], err)
				}
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(dto.FromProgressList(records))
			}
			printRecords(cmd.OutOrStdout(), records)
			return nil
		},
	}

	flags.register(cmd)
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func printRecords(w io.Writer, records []*domain.VideoProgress) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No progress recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "VIDEO\tWATCHED\tDURATION\tCOMPLETE\tPOSITION\tINTERVALS\tUPDATED")
	for _, p := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d%%\t%s\t%d\t%s\n",
			p.VideoID,
			tracking.FormatClockDetailed(p.TotalUniqueSeconds),
			tracking.FormatClockDetailed(p.Duration),
			p.CompletionPercentage(),
			tracking.FormatClockDetailed(p.LastPosition),
			len(p.Intervals),
			p.UpdatedAt.Local().Format(time.DateTime),
		)
	}
	_ = tw.Flush()
}
