package ctxlog

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromContext(t *testing.T) {
	t.Run("returns attached logger", func(t *testing.T) {
		var buf bytes.Buffer
		logger := slog.New(slog.NewTextHandler(&buf, nil))

		ctx := WithLogger(context.Background(), logger)
		got := FromContext(ctx)
		require.Same(t, logger, got)

		got.Info("hello", "node", "a")
		assert.Contains(t, buf.String(), "node=a")
	})

	t.Run("falls back to discard logger", func(t *testing.T) {
		got := FromContext(context.Background())
		require.NotNil(t, got)
		assert.False(t, got.Enabled(context.Background(), slog.LevelError))
	})

	t.Run("nil logger falls back", func(t *testing.T) {
		ctx := WithLogger(context.Background(), nil)
		assert.NotNil(t, FromContext(ctx))
	})
}
