package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var flagReplayAt string

var replayCmd = &cobra.Command{
	Use:   "replay <recording-id|file.jsonl>",
	Short: "Show the graph as it was at a point of a recorded session",
	Long: `Reconstructs the graph state at --at, either an RFC 3339 timestamp or a
duration offset from the first event such as 150ms. Without --at the final
state is shown.`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&flagReplayAt, "at", "", "RFC 3339 timestamp or offset from the first event")
}

// replayTime resolves the --at flag against the recorded range.
func replayTime(at string, first, last time.Time) (time.Time, error) {
	if at == "" {
		return last, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, at); err == nil {
		return ts, nil
	}
	offset, err := time.ParseDuration(at)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --at %q: want an RFC 3339 timestamp or a duration", at)
	}
	return first.Add(offset), nil
}

func runReplay(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	devtools, err := loadDevtools(ctx, args[0])
	if err != nil {
		return err
	}
	defer devtools.Close()

	events := devtools.Events()
	if len(events) == 0 {
		return errors.New("recording has no events")
	}

	ts, err := replayTime(flagReplayAt, events[0].Timestamp, events[len(events)-1].Timestamp)
	if err != nil {
		return err
	}
	return renderState(cmd.OutOrStdout(), devtools.ReconstructAt(ts))
}
