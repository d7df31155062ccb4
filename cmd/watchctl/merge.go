package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/listenupapp/watchtrack/internal/service"
	"github.com/listenupapp/watchtrack/internal/tracking"
)

const timelineWidth = 60

// mergeInput is the object form accepted by merge. A bare array of pairs is
// accepted too.
type mergeInput struct {
	Intervals json.RawMessage `json:"intervals"`
	Duration  float64         `json:"duration"`
}

// mergeOutput is printed by merge --json.
type mergeOutput struct {
	Intervals            tracking.WatchedSet `json:"intervals"`
	Gaps                 tracking.WatchedSet `json:"gaps"`
	Dropped              int                 `json:"dropped"`
	TotalUniqueSeconds   float64             `json:"totalUniqueSeconds"`
	CompletionPercentage int                 `json:"completionPercentage"`
}

func newMergeCmd() *cobra.Command {
	var (
		file     string
		duration float64
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge raw watched intervals",
		Long: `Reads watched intervals as JSON, either [[start, end], ...] or
{"intervals": [...], "duration": seconds}, and prints the merged set,
the unique watched time and the unwatched gaps.`,
		Example: `  echo '[[10,20],[0,5],[4,8]]' | watchctl merge --duration 30
  watchctl merge -f progress.json --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := readInput(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}

			set, dropped, fileDuration, err := parseMergeInput(data)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("duration") {
				duration = fileDuration
			}

			res, err := service.MergeIntervals(service.MergeIntervalsRequest{
				Intervals: set,
				Duration:  duration,
			})
			if err != nil {
				return err
			}
			res.Dropped += dropped

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(mergeOutput{
					Intervals:            res.Intervals,
					Gaps:                 tracking.WatchedSet(res.Gaps),
					Dropped:              res.Dropped,
					TotalUniqueSeconds:   res.TotalUniqueSeconds,
					CompletionPercentage: res.CompletionPercentage,
				})
			}
			printMerge(cmd.OutOrStdout(), res, duration)
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "Input file, - for stdin")
	cmd.Flags().Float64VarP(&duration, "duration", "d", 0, "Video duration in seconds, overrides the input")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of text")
	return cmd
}

func readInput(stdin io.Reader, file string) ([]byte, error) {
	if file == "" || file == "-" {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(file) //#nosec G304 -- path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", file, err)
	}
	return data, nil
}

// parseMergeInput decodes either input form. Elements that are not
// [start, end] pairs are counted in dropped rather than failing the command.
func parseMergeInput(data []byte) (set tracking.WatchedSet, dropped int, duration float64, err error) {
	data = bytes.TrimSpace(data)
	raw := data
	if bytes.HasPrefix(data, []byte("{")) {
		var in mergeInput
		if err := json.Unmarshal(data, &in); err != nil {
			return nil, 0, 0, fmt.Errorf("decode input: %w", err)
		}
		raw, duration = in.Intervals, in.Duration
		if len(raw) == 0 || string(raw) == "null" {
			raw = []byte("[]")
		}
	}

	set, dropped, err = tracking.DecodeWatchedSet(raw)
	if err != nil {
		return nil, 0, 0, err
	}
	return set, dropped, duration, nil
}

func printMerge(w io.Writer, res *service.MergeIntervalsResult, duration float64) {
	fmt.Fprintf(w, "Intervals (%d):\n", len(res.Intervals))
	for _, iv := range res.Intervals {
		fmt.Fprintf(w, "  %s  %s\n", iv, tracking.FormatClockDetailed(iv.Length()))
	}
	if res.Dropped > 0 {
		fmt.Fprintf(w, "Dropped:  %d malformed\n", res.Dropped)
	}
	fmt.Fprintf(w, "Watched:  %s unique\n", tracking.FormatClockDetailed(res.TotalUniqueSeconds))

	if duration <= 0 {
		fmt.Fprintln(w, "Duration: unknown")
		return
	}
	fmt.Fprintf(w, "Duration: %s\n", tracking.FormatClockDetailed(duration))
	fmt.Fprintf(w, "Complete: %d%%\n", res.CompletionPercentage)
	fmt.Fprintf(w, "Timeline: |%s|\n", timeline(res.Intervals, duration, timelineWidth))

	if len(res.Gaps) > 0 {
		fmt.Fprintf(w, "Gaps (%d):\n", len(res.Gaps))
		for _, g := range res.Gaps {
			fmt.Fprintf(w, "  %s\n", g)
		}
	}
}

// timeline renders set over [0, duration] as width cells. A cell is marked
// when its midpoint was watched.
func timeline(set tracking.WatchedSet, duration float64, width int) string {
	var b strings.Builder
	cell := duration / float64(width)
	for i := range width {
		if set.Contains((float64(i) + 0.5) * cell) {
			b.WriteByte('#')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}
