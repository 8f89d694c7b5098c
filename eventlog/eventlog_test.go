package eventlog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func entry(sessionID, node string) *Entry {
	return &Entry{
		SessionID: sessionID,
		Node:      node,
		Status:    "searching",
		StartTime: time.Now(),
		Duration:  0.25,
	}
}

func testLogger(t *testing.T, logger Logger) {
	t.Helper()
	ctx := context.Background()

	t.Run("empty history for an unknown session", func(t *testing.T) {
		history, err := logger.StageHistory(ctx, "absent")
		require.NoError(t, err)
		require.Empty(t, history)
	})

	t.Run("entries come back oldest first", func(t *testing.T) {
		require.NoError(t, logger.LogStage(ctx, entry("s1", "input")))
		require.NoError(t, logger.LogStage(ctx, entry("s1", "search_plan")))
		require.NoError(t, logger.LogStage(ctx, entry("s2", "input")))

		history, err := logger.StageHistory(ctx, "s1")
		require.NoError(t, err)
		require.Len(t, history, 2)
		require.Equal(t, "input", history[0].Node)
		require.Equal(t, "search_plan", history[1].Node)

		history, err = logger.StageHistory(ctx, "s2")
		require.NoError(t, err)
		require.Len(t, history, 1)
	})
}

func TestMemoryLogger(t *testing.T) {
	logger := NewMemoryLogger()
	testLogger(t, logger)

	t.Run("delete drops the history", func(t *testing.T) {
		require.NoError(t, logger.DeleteHistory(context.Background(), "s1"))
		history, err := logger.StageHistory(context.Background(), "s1")
		require.NoError(t, err)
		require.Empty(t, history)

		require.NoError(t, logger.DeleteHistory(context.Background(), "s1"))
	})
}

func TestMemoryLoggerCopiesEntries(t *testing.T) {
	logger := NewMemoryLogger()
	ctx := context.Background()

	logged := entry("s1", "input")
	require.NoError(t, logger.LogStage(ctx, logged))
	logged.Node = "mutated"

	history, err := logger.StageHistory(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "input", history[0].Node)

	history[0].Node = "mutated again"
	history, err = logger.StageHistory(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, "input", history[0].Node)
}

func TestFileLogger(t *testing.T) {
	dir := t.TempDir()
	testLogger(t, NewFileLogger(dir))

	t.Run("one jsonl file per session", func(t *testing.T) {
		data, err := os.ReadFile(filepath.Join(dir, "s1.jsonl"))
		require.NoError(t, err)
		lines := strings.Split(strings.TrimSpace(string(data)), "\n")
		require.Len(t, lines, 2)
		require.Contains(t, lines[0], `"node":"input"`)
	})

	t.Run("a new logger reads existing files", func(t *testing.T) {
		history, err := NewFileLogger(dir).StageHistory(context.Background(), "s1")
		require.NoError(t, err)
		require.Len(t, history, 2)
	})

	t.Run("delete removes the session file", func(t *testing.T) {
		logger := NewFileLogger(dir)
		require.NoError(t, logger.DeleteHistory(context.Background(), "s1"))
		_, err := os.Stat(filepath.Join(dir, "s1.jsonl"))
		require.True(t, os.IsNotExist(err))

		history, err := logger.StageHistory(context.Background(), "s1")
		require.NoError(t, err)
		require.Empty(t, history)

		require.NoError(t, logger.DeleteHistory(context.Background(), "s1"))
	})
}

func TestNullLogger(t *testing.T) {
	logger := NewNullLogger()
	require.NoError(t, logger.LogStage(context.Background(), entry("s1", "input")))
	history, err := logger.StageHistory(context.Background(), "s1")
	require.NoError(t, err)
	require.Empty(t, history)
	require.NoError(t, logger.DeleteHistory(context.Background(), "s1"))
}
