package config

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnatoleLucet/sigscope/internal/patterns"
)

func writeConfig(t *testing.T, dir, body string) string {
	t.Helper()

	path := filepath.Join(dir, FileName+".toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		v := New("", t.TempDir())
		require.NoError(t, Read(v))

		cfg, err := Load(v)
		require.NoError(t, err)

		assert.Equal(t, "info", cfg.LogLevel)
		assert.Equal(t, patterns.DefaultConfig(), cfg.Analysis.Patterns())
		assert.Equal(t, 100, cfg.Replay.CacheCapacity)
		assert.Equal(t, "badger", cfg.Store.Driver)
		assert.Equal(t, "127.0.0.1:7777", cfg.Server.Addr)
	})

	t.Run("file", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, `
log_level = "debug"

[analysis]
deep_chain_threshold = 3
hot_path_window = "2s"
expectations_file = "expected.toml"

[store]
driver = "sqlite"
path = "rec.db"
`)
		v := New("", dir)
		require.NoError(t, Read(v))

		cfg, err := Load(v)
		require.NoError(t, err)

		assert.Equal(t, "debug", cfg.LogLevel)
		assert.Equal(t, 3, cfg.Analysis.DeepChainThreshold)
		assert.Equal(t, 2*time.Second, cfg.Analysis.HotPathWindow)
		assert.Equal(t, 2, cfg.Analysis.DiamondMinPaths)
		assert.Equal(t, "expected.toml", cfg.Analysis.ExpectationsFile)
		assert.Equal(t, "sqlite", cfg.Store.Driver)
	})

	t.Run("env overrides file", func(t *testing.T) {
		dir := t.TempDir()
		writeConfig(t, dir, "[replay]\ncache_capacity = 5\n")
		t.Setenv("SIGSCOPE_REPLAY_CACHE_CAPACITY", "7")
		t.Setenv("SIGSCOPE_ANALYSIS_DEBOUNCE", "1s")

		v := New("", dir)
		require.NoError(t, Read(v))

		cfg, err := Load(v)
		require.NoError(t, err)
		assert.Equal(t, 7, cfg.Replay.CacheCapacity)
		assert.Equal(t, time.Second, cfg.Analysis.Debounce)
	})

	t.Run("explicit missing file", func(t *testing.T) {
		v := New(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, Read(v))
	})

	t.Run("invalid values", func(t *testing.T) {
		for name, body := range map[string]string{
			"level":    `log_level = "loud"`,
			"format":   `log_format = "xml"`,
			"analysis": "[analysis]\ndiamond_min_paths = 1\n",
			"capacity": "[replay]\ncache_capacity = 0\n",
			"driver":   "[store]\ndriver = \"postgres\"\n",
		} {
			t.Run(name, func(t *testing.T) {
				dir := t.TempDir()
				writeConfig(t, dir, body)

				v := New("", dir)
				require.NoError(t, Read(v))

				_, err := Load(v)
				assert.ErrorIs(t, err, ErrInvalid)
			})
		}
	})

	t.Run("analysis errors keep the detector sentinel", func(t *testing.T) {
		cfg := Config{LogLevel: "info", LogFormat: "text"}
		assert.ErrorIs(t, cfg.Validate(), patterns.ErrInvalidConfig)
	})
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "[analysis]\ndeep_chain_threshold = 5\n")

	v := New(path)
	require.NoError(t, Read(v))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reloaded := make(chan Config, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, v, logger, func(cfg Config) {
			select {
			case reloaded <- cfg:
			default:
			}
		})
	}()

	require.Eventually(t, func() bool {
		// rewrite until the watcher is up and picks a change
		_ = os.WriteFile(path, []byte("[analysis]\ndeep_chain_threshold = 9\n"), 0o644)
		select {
		case cfg := <-reloaded:
			return cfg.Analysis.DeepChainThreshold == 9
		case <-time.After(100 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestWatchWithoutFile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Watch(ctx, New("", t.TempDir()), slog.Default(), func(Config) { t.Fatal("unexpected reload") })
	assert.NoError(t, err)
}
