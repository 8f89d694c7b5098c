// Package llm provides the language model client used by pipeline stages.
package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

// Client generates a completion for a single prompt. Stages depend on this
// interface so tests can substitute deterministic fakes.
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// ClientFunc adapts a function to the Client interface.
type ClientFunc func(ctx context.Context, prompt string) (string, error)

func (f ClientFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// Options configures an OpenAI-backed client.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float32
	Seed        int64
}

// OpenAIClient is a Client backed by the OpenAI chat completions API. A
// fixed seed is passed through so repeated runs of the same session are
// reproducible where the provider supports it.
type OpenAIClient struct {
	client      *openai.Client
	model       string
	temperature float32
	seed        *int
}

// NewOpenAIClient creates an OpenAI-backed completion client.
func NewOpenAIClient(opts Options) (*OpenAIClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("llm: api key is required")
	}
	if opts.Model == "" {
		opts.Model = openai.GPT4oMini
	}
	config := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		config.BaseURL = opts.BaseURL
	}
	c := &OpenAIClient{
		client:      openai.NewClientWithConfig(config),
		model:       opts.Model,
		temperature: opts.Temperature,
	}
	if opts.Seed != 0 {
		seed := int(opts.Seed)
		c.seed = &seed
	}
	return c, nil
}

// Complete sends a single-turn chat completion request and returns the
// trimmed response text.
func (c *OpenAIClient) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Seed:        c.seed,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("llm: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
