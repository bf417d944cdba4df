package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AnatoleLucet/sigscope"
	"github.com/AnatoleLucet/sigscope/internal/config"
	"github.com/AnatoleLucet/sigscope/internal/ctxlog"
	"github.com/AnatoleLucet/sigscope/internal/patterns"
	"github.com/AnatoleLucet/sigscope/internal/recording"
	"github.com/AnatoleLucet/sigscope/internal/runtime"
	"github.com/AnatoleLucet/sigscope/internal/server"
)

var (
	flagServeAddr      string
	flagServeScenarios []string
	flagServeTick      time.Duration
	flagServeRecord    string
)

var serveCmd = &cobra.Command{
	Use:   "serve [recording-id|file.jsonl]",
	Short: "Serve a session over HTTP and websocket",
	Long: `Without an argument, serve runs the given demo scenarios on a live runtime
and keeps a ticker signal changing every --tick. With an argument, the
recorded session is served read-only.

Analysis thresholds are reloaded whenever the config file changes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagServeAddr, "addr", "", "listen address (default server.addr)")
	serveCmd.Flags().StringSliceVar(&flagServeScenarios, "scenario", nil, "demo scenarios to run in live mode")
	serveCmd.Flags().DurationVar(&flagServeTick, "tick", time.Second, "ticker interval in live mode, 0 disables it")
	serveCmd.Flags().StringVar(&flagServeRecord, "record", "", "append live events to this .jsonl file")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	logger := ctxlog.FromContext(ctx)

	addr := settings.Server.Addr
	if flagServeAddr != "" {
		addr = flagServeAddr
	}

	var (
		devtools *sigscope.Devtools
		err      error
	)
	live := len(args) == 0
	if live {
		devtools, err = sigscope.NewDevtools(devtoolsOptions(ctx)...)
		if err == nil {
			err = loadExpected(devtools)
		}
	} else {
		devtools, err = loadDevtools(ctx, args[0])
	}
	if err != nil {
		return err
	}
	defer devtools.Close()

	if live && flagServeRecord != "" {
		w, err := recording.CreateJSONL(flagServeRecord)
		if err != nil {
			return err
		}
		unsubscribe := devtools.Subscribe(w.Write)
		defer func() {
			unsubscribe()
			if err := w.Close(); err != nil {
				logger.Warn("closing event log", "file", flagServeRecord, "error", err)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)

	srv := server.New(devtools, server.WithLogger(logger))
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr)
	})

	g.Go(func() error {
		return config.Watch(gctx, vcfg, logger, func(cfg config.Config) {
			if err := devtools.Detector().SetConfig(cfg.Analysis.Patterns()); err != nil {
				logger.Warn("analysis config rejected", "error", err)
			}
		})
	})

	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-devtools.Detector().Ready():
				reportPatterns(gctx, devtools)
			}
		}
	})

	if live {
		runLive(gctx, devtools)
	}
	return g.Wait()
}

// runLive drives the calling goroutine's runtime until ctx is done. The
// runtime is not shared with the server goroutines, which only read the
// tracker.
func runLive(ctx context.Context, devtools *sigscope.Devtools) {
	logger := ctxlog.FromContext(ctx)
	r := runtime.Default()

	scenarios, err := pickScenarios(flagServeScenarios)
	if err != nil {
		logger.Warn("skipping scenarios", "error", err)
	}
	for _, s := range scenarios {
		s.Run(r)
	}

	if flagServeTick <= 0 {
		<-ctx.Done()
		return
	}

	root := r.NewRoot("ticker")
	var tick *runtime.Signal
	root.Run(func() error {
		tick = r.NewSignal("tick", 0)
		r.NewEffect("tick-log", func() {
			logger.Debug("tick", "n", tick.Read())
		})
		return nil
	})
	defer root.Dispose()

	ticker := time.NewTicker(flagServeTick)
	defer ticker.Stop()
	for n := 1; ; n++ {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tick.Write(n)
		}
	}
}

func reportPatterns(ctx context.Context, devtools *sigscope.Devtools) {
	result := devtools.Analyze(ctx)

	var high int
	for _, p := range result.Patterns {
		if p.Severity == patterns.SeverityHigh && !p.IsExpected {
			high++
		}
	}
	ctxlog.FromContext(ctx).Info("analysis",
		"patterns", len(result.Patterns),
		"high", high,
		"nodes", result.NodesAnalyzed,
		"duration", result.Duration)
}
