package ctxlog

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("returns the stored logger", func(t *testing.T) {
		logger := slog.New(slog.DiscardHandler)
		ctx := WithLogger(context.Background(), logger)

		assert.Same(t, logger, FromContext(ctx))
	})

	t.Run("falls back to the default", func(t *testing.T) {
		assert.Same(t, slog.Default(), FromContext(context.Background()))
	})
}

func TestNew(t *testing.T) {
	t.Run("json output", func(t *testing.T) {
		var buf bytes.Buffer
		New("debug", "json", &buf).Debug("hello", "n", 1)

		var line map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
		assert.Equal(t, "hello", line["msg"])
		assert.Equal(t, "DEBUG", line["level"])
	})

	t.Run("level filters", func(t *testing.T) {
		var buf bytes.Buffer
		logger := New("warn", "text", &buf)
		logger.Info("dropped")
		logger.Warn("kept")

		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("unknown level is info", func(t *testing.T) {
		assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	})
}
