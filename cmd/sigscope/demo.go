package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AnatoleLucet/sigscope"
	"github.com/AnatoleLucet/sigscope/internal/ctxlog"
	"github.com/AnatoleLucet/sigscope/internal/runtime"
	"github.com/AnatoleLucet/sigscope/internal/scenario"
)

var (
	flagDemoSave string
	flagDemoOut  string
)

var demoCmd = &cobra.Command{
	Use:   "demo [scenario...]",
	Short: "Run demo scenarios and analyze the resulting graph",
	Long:  "Builds the named scenarios (all of them by default) on an instrumented runtime, prints the detected patterns and optionally keeps the recording.",
	RunE:  runDemo,
}

func init() {
	demoCmd.Flags().StringVar(&flagDemoSave, "save", "", "save the session to the recording store under this name")
	demoCmd.Flags().StringVar(&flagDemoOut, "out", "", "write the session events to this .jsonl file")
}

// pickScenarios resolves names, defaulting to every scenario.
func pickScenarios(names []string) ([]scenario.Scenario, error) {
	if len(names) == 0 {
		return scenario.All(), nil
	}
	out := make([]scenario.Scenario, 0, len(names))
	for _, name := range names {
		s, err := scenario.Lookup(name)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

func runDemo(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := ctxlog.FromContext(ctx)

	scenarios, err := pickScenarios(args)
	if err != nil {
		return err
	}

	devtools, err := sigscope.NewDevtools(devtoolsOptions(ctx)...)
	if err != nil {
		return err
	}
	defer devtools.Close()
	if err := loadExpected(devtools); err != nil {
		return err
	}

	for _, s := range scenarios {
		logger.Debug("running scenario", "name", s.Name)
		s.Run(runtime.Default())
	}

	if err := renderAnalysis(cmd.OutOrStdout(), devtools.Analyze(ctx)); err != nil {
		return err
	}

	if flagDemoOut != "" {
		if err := exportEvents(flagDemoOut, devtools.Events()); err != nil {
			return err
		}
		logger.Info("events written", "file", flagDemoOut)
	}

	if flagDemoSave != "" {
		rec, err := devtools.Snapshot(flagDemoSave)
		if err != nil {
			return err
		}
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Save(ctx, rec); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "saved", idStyle.Render(rec.ID))
	}
	return nil
}
