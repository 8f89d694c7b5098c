package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/deepnoodle-ai/briefing"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// Searcher runs one search query and returns ranked results.
type Searcher interface {
	Search(ctx context.Context, query string, maxResults int) ([]briefing.Source, error)
}

// SearcherFunc adapts a function to the Searcher interface.
type SearcherFunc func(ctx context.Context, query string, maxResults int) ([]briefing.Source, error)

func (f SearcherFunc) Search(ctx context.Context, query string, maxResults int) ([]briefing.Source, error) {
	return f(ctx, query, maxResults)
}

// TavilyClient is a Searcher backed by the Tavily search API.
type TavilyClient struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// TavilyOptions configures a Tavily search client.
type TavilyOptions struct {
	APIKey     string
	Endpoint   string
	HTTPClient *http.Client
}

// NewTavilyClient creates a Tavily search client.
func NewTavilyClient(opts TavilyOptions) (*TavilyClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("research: tavily api key is required")
	}
	if opts.Endpoint == "" {
		opts.Endpoint = tavilyEndpoint
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &TavilyClient{
		apiKey:     opts.APIKey,
		endpoint:   opts.Endpoint,
		httpClient: opts.HTTPClient,
	}, nil
}

type tavilyRequest struct {
	APIKey     string `json:"api_key"`
	Query      string `json:"query"`
	MaxResults int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search runs one Tavily query.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) ([]briefing.Source, error) {
	body, err := json.Marshal(tavilyRequest{
		APIKey:     c.apiKey,
		Query:      query,
		MaxResults: maxResults,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("research: tavily request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("research: tavily returned %d: %s", resp.StatusCode, data)
	}
	var decoded tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("research: tavily response decode failed: %w", err)
	}

	sources := make([]briefing.Source, 0, len(decoded.Results))
	for _, result := range decoded.Results {
		sources = append(sources, briefing.Source{
			Title:   result.Title,
			URL:     result.URL,
			Snippet: result.Content,
			Query:   query,
			Score:   result.Score,
		})
	}
	return sources, nil
}
