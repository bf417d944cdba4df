package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var flagExpect []string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <recording-id|file.jsonl>",
	Short: "Detect patterns in a recorded session",
	Long: `Rebuilds the graph from a stored recording or a JSON lines file and runs
every pattern detector against it. Hot paths are measured as of the last event.

With --expect, the given pattern ids are marked as expected and saved to the
expectations file so later analyses flag them as such.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringSliceVar(&flagExpect, "expect", nil, "pattern ids to mark as expected")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if len(flagExpect) > 0 && settings.Analysis.ExpectationsFile == "" {
		return errors.New("--expect needs analysis.expectations_file to be set")
	}

	devtools, err := loadDevtools(ctx, args[0])
	if err != nil {
		return err
	}
	defer devtools.Close()

	if len(flagExpect) > 0 {
		for _, id := range flagExpect {
			devtools.Detector().MarkExpected(id)
		}
		if err := devtools.Detector().SaveExpected(settings.Analysis.ExpectationsFile); err != nil {
			return fmt.Errorf("save expectations: %w", err)
		}
	}

	return renderAnalysis(cmd.OutOrStdout(), devtools.Analyze(ctx))
}
