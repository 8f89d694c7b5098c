package research

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/briefing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDefaultQueries(t *testing.T) {
	queries := DefaultQueries("fusion energy")
	require.Equal(t, []string{
		"fusion energy overview",
		"fusion energy key concepts",
		"fusion energy latest research",
	}, queries)
}

func TestRun(t *testing.T) {
	t.Run("deduplicates by url across queries", func(t *testing.T) {
		searcher := SearcherFunc(func(ctx context.Context, query string, maxResults int) ([]briefing.Source, error) {
			require.Equal(t, resultsPerQuery, maxResults)
			return []briefing.Source{
				{URL: "https://example.com/shared", Query: query},
				{URL: "https://example.com/" + query, Query: query},
			}, nil
		})

		sources, err := Run(context.Background(), searcher, []string{"a", "b", " ", ""}, discardLogger())
		require.NoError(t, err)
		require.Len(t, sources, 3)
		require.Equal(t, "https://example.com/shared", sources[0].URL)
		require.Equal(t, "a", sources[0].Query)
	})

	t.Run("caps the merged total", func(t *testing.T) {
		calls := 0
		searcher := SearcherFunc(func(ctx context.Context, query string, maxResults int) ([]briefing.Source, error) {
			calls++
			var batch []briefing.Source
			for i := 0; i < maxTotalSources; i++ {
				batch = append(batch, briefing.Source{URL: fmt.Sprintf("https://example.com/%s/%d", query, i)})
			}
			return batch, nil
		})

		sources, err := Run(context.Background(), searcher, []string{"a", "b"}, discardLogger())
		require.NoError(t, err)
		require.Len(t, sources, maxTotalSources)
		require.Equal(t, 1, calls)
	})

	t.Run("a failed query is skipped", func(t *testing.T) {
		searcher := SearcherFunc(func(ctx context.Context, query string, maxResults int) ([]briefing.Source, error) {
			if query == "bad" {
				return nil, fmt.Errorf("rate limited")
			}
			return []briefing.Source{{URL: "https://example.com/" + query}}, nil
		})

		sources, err := Run(context.Background(), searcher, []string{"bad", "good"}, discardLogger())
		require.NoError(t, err)
		require.Len(t, sources, 1)
	})

	t.Run("all queries failing is an error", func(t *testing.T) {
		searcher := SearcherFunc(func(ctx context.Context, query string, maxResults int) ([]briefing.Source, error) {
			return nil, fmt.Errorf("rate limited")
		})

		_, err := Run(context.Background(), searcher, []string{"a", "b"}, discardLogger())
		require.Error(t, err)
		require.Contains(t, err.Error(), "all queries failed")
	})

	t.Run("cancellation stops the run", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		searcher := SearcherFunc(func(ctx context.Context, query string, maxResults int) ([]briefing.Source, error) {
			cancel()
			return nil, ctx.Err()
		})

		_, err := Run(ctx, searcher, []string{"a", "b"}, discardLogger())
		require.ErrorIs(t, err, context.Canceled)
	})
}
