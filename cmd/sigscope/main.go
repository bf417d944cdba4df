// Command sigscope records, analyzes and serves reactive graph sessions.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/AnatoleLucet/sigscope/internal/config"
	"github.com/AnatoleLucet/sigscope/internal/ctxlog"
)

var (
	flagConfig string
	flagFormat string
)

// loaded by the root PersistentPreRunE
var (
	settings config.Config
	vcfg     *viper.Viper
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "sigscope",
	Short:             "Inspect reactive signal graphs",
	Long:              "sigscope records the events of a signal runtime, detects problematic graph patterns and reconstructs past graph states.",
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: loadSettings,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&flagConfig, "config", "", "config file (default .sigscope.toml)")
	flags.StringVar(&flagFormat, "format", "text", "output format: text|json")
	flags.String("log-level", "info", "log level: debug|info|warn|error")
	flags.String("log-format", "text", "log format: text|json")
	flags.String("store", "", "recording store driver: badger|sqlite")
	flags.String("store-path", "", "recording store location")

	rootCmd.AddCommand(demoCmd, analyzeCmd, replayCmd, recordingsCmd, serveCmd, eventsCmd)
}

func loadSettings(cmd *cobra.Command, _ []string) error {
	if flagFormat != "text" && flagFormat != "json" {
		return fmt.Errorf("invalid format %q: must be text or json", flagFormat)
	}

	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	v := config.New(flagConfig, paths...)

	flags := cmd.Root().PersistentFlags()
	for key, flag := range map[string]string{
		"log_level":    "log-level",
		"log_format":   "log-format",
		"store.driver": "store",
		"store.path":   "store-path",
	} {
		f := flags.Lookup(flag)
		if !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if err := config.Read(v); err != nil {
		return err
	}
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger := ctxlog.New(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)
	cmd.SetContext(ctxlog.WithLogger(cmd.Context(), logger))
	if file := v.ConfigFileUsed(); file != "" {
		logger.Debug("config loaded", "file", file)
	}

	settings, vcfg = cfg, v
	return nil
}
