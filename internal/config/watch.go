package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watch re-reads the config file behind v whenever it is written and calls
// fn with every valid result. Invalid edits are logged and skipped. Watch
// blocks until ctx is done.
func Watch(ctx context.Context, v *viper.Viper, logger *slog.Logger, fn func(Config)) error {
	file := v.ConfigFileUsed()
	if file == "" {
		<-ctx.Done()
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("config: create watcher: %w", err)
	}
	defer watcher.Close()

	// editors replace files, so watch the directory
	if err := watcher.Add(filepath.Dir(file)); err != nil {
		return fmt.Errorf("config: watch %s: %w", file, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(file) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}

			if err := v.ReadInConfig(); err != nil {
				logger.Warn("config reload failed", "file", file, "error", err)
				continue
			}
			cfg, err := Load(v)
			if err != nil {
				logger.Warn("config reload rejected", "file", file, "error", err)
				continue
			}
			logger.Info("config reloaded", "file", file)
			fn(cfg)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("config watcher error", "error", err)
		}
	}
}
