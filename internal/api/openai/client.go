package openai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	httpClient "github.com/Alias1177/Aura/internal/platform/http"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
)

const (
	// DefaultBaseURL is Gemini's OpenAI-compatible endpoint
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultModel   = "gemini-1.5-flash"
)

// ErrNotConfigured is returned when no API key was provided
var ErrNotConfigured = errors.New("AI client is not configured")

// ErrEmptyResponse is returned when the model answers with no usable text
var ErrEmptyResponse = errors.New("model returned an empty response")

// Client wraps an OpenAI-compatible chat completion API
type Client struct {
	client *openai.Client
	model  string
	logger zerolog.Logger
}

// ClientOptions holds options for creating a new Client
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	Model           string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetries      int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new LLM client. A client without an API key is
// returned disabled rather than nil.
func NewClient(opts ClientOptions) *Client {
	c := &Client{
		model:  opts.Model,
		logger: log.With().Str("component", "openai_client").Logger(),
	}
	if c.model == "" {
		c.model = DefaultModel
	}
	if opts.APIKey == "" {
		return c
	}

	if opts.RequestTimeout == 0 {
		opts.RequestTimeout = 60 * time.Second
	}

	cfg := openai.DefaultConfig(opts.APIKey)
	cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.HTTPClient = httpClient.NewClient(httpClient.ClientOptions{
		Timeout:         opts.RequestTimeout,
		RequestsPerSec:  opts.RequestsPerSec,
		MaxRetries:      opts.MaxRetries,
		MaxRetryTimeout: opts.MaxRetryTimeout,
	})

	c.client = openai.NewClientWithConfig(cfg)
	return c
}

// Enabled reports whether the client can reach a model
func (c *Client) Enabled() bool {
	return c.client != nil
}

// Model returns the configured model name
func (c *Client) Model() string {
	return c.model
}

// GenerateCompletion sends a prompt and returns the completion
func (c *Client) GenerateCompletion(ctx context.Context, prompt string) (string, error) {
	if c.client == nil {
		return "", ErrNotConfigured
	}

	c.logger.Debug().Str("model", c.model).Int("prompt_len", len(prompt)).Msg("Sending prompt")

	resp, err := c.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: c.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		c.logger.Error().Err(err).Msg("Chat completion error")
		return "", err
	}

	if len(resp.Choices) == 0 {
		c.logger.Warn().Msg("Model returned empty choices")
		return "", fmt.Errorf("%w: no choices", ErrEmptyResponse)
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		c.logger.Warn().Str("finish_reason", string(resp.Choices[0].FinishReason)).Msg("Model returned blank content")
		return "", fmt.Errorf("%w: blank content", ErrEmptyResponse)
	}

	c.logger.Info().Str("model", c.model).Int("tokens", resp.Usage.TotalTokens).Msg("Content generation successful")
	return content, nil
}

// ListModels returns the model ids visible to the configured key
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	if c.client == nil {
		return nil, ErrNotConfigured
	}

	list, err := c.client.ListModels(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(list.Models))
	for _, m := range list.Models {
		ids = append(ids, m.ID)
	}
	return ids, nil
}
