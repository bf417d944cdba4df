package main

import (
	"github.com/spf13/cobra"

	"github.com/AnatoleLucet/sigscope/internal/recording"
	"github.com/AnatoleLucet/sigscope/internal/tracker"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect event logs",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail <file.jsonl>",
	Short: "Print the events of a JSON lines file and follow new ones",
	Args:  cobra.ExactArgs(1),
	RunE:  runEventsTail,
}

func init() {
	eventsCmd.AddCommand(eventsTailCmd)
}

func runEventsTail(cmd *cobra.Command, args []string) error {
	var werr error
	err := recording.TailJSONL(cmd.Context(), args[0], func(e tracker.Event) {
		if werr == nil {
			werr = renderEvent(cmd.OutOrStdout(), e)
		}
	})
	if err != nil {
		return err
	}
	return werr
}
