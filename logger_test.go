package briefing

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerLevel(t *testing.T) {
	ctx := context.Background()

	quiet := NewLogger(slog.LevelError)
	require.False(t, quiet.Enabled(ctx, slog.LevelInfo))
	require.True(t, quiet.Enabled(ctx, slog.LevelError))

	verbose := NewLogger(slog.LevelDebug)
	require.True(t, verbose.Enabled(ctx, slog.LevelDebug))
}
