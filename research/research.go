// Package research gathers, fetches, and ranks web sources for a topic.
package research

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/deepnoodle-ai/briefing"
)

const (
	// MaxQueries caps how many search queries one session runs.
	MaxQueries = 5

	resultsPerQuery = 6
	maxTotalSources = 20
)

// DefaultQueries returns the baseline query set for a topic. Planned
// queries are appended on top of these.
func DefaultQueries(topic string) []string {
	return []string{
		fmt.Sprintf("%s overview", topic),
		fmt.Sprintf("%s key concepts", topic),
		fmt.Sprintf("%s latest research", topic),
	}
}

// Run executes every query against the searcher and merges the results,
// deduplicating by URL. Failed queries are logged and skipped so one bad
// query does not sink the session.
func Run(ctx context.Context, searcher Searcher, queries []string, logger *slog.Logger) ([]briefing.Source, error) {
	seen := map[string]bool{}
	var merged []briefing.Source
	var lastErr error
	failed := 0

	for _, query := range queries {
		query = strings.TrimSpace(query)
		if query == "" {
			continue
		}
		results, err := searcher.Search(ctx, query, resultsPerQuery)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Warn("search query failed", "query", query, "error", err)
			lastErr = err
			failed++
			continue
		}
		for _, source := range results {
			if source.URL == "" || seen[source.URL] {
				continue
			}
			seen[source.URL] = true
			merged = append(merged, source)
			if len(merged) >= maxTotalSources {
				return merged, nil
			}
		}
	}
	if len(merged) == 0 && failed > 0 {
		return nil, fmt.Errorf("research: all queries failed: %w", lastErr)
	}
	return merged, nil
}
