// Package genai wraps the OpenAI chat-completions API behind a small
// interface the generation pipeline can mock. Every call carries a bounded
// timeout; failures are returned as errors for the caller's fallback path.
package genai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Defaults for client construction.
const (
	DefaultModel   = openai.ChatModelGPT4oMini
	DefaultTimeout = 30 * time.Second
)

// ErrEmptyCompletion indicates the API returned no choices.
var ErrEmptyCompletion = errors.New("genai: completion returned no choices")

// ClientInterface defines the operations the pipeline needs from a language
// model. Implementations must respect context cancellation.
type ClientInterface interface {
	// Generate produces text from a system and user prompt pair.
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
	// GenerateWithMessages produces text from a full message history.
	GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error)
	// Translate rewrites text into the target language, preserving meaning and tone.
	Translate(ctx context.Context, text, targetLang string) (string, error)
}

// Client is the OpenAI-backed implementation of ClientInterface.
type Client struct {
	api     openai.Client
	model   string
	timeout time.Duration
}

// Opts holds configuration options for the client.
type Opts struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Option defines a functional option for configuring the client.
type Option func(*Opts)

// WithAPIKey sets the OpenAI API key.
func WithAPIKey(key string) Option {
	return func(o *Opts) { o.APIKey = key }
}

// WithModel overrides the default chat model.
func WithModel(model string) Option {
	return func(o *Opts) { o.Model = model }
}

// WithTimeout overrides the default per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Opts) { o.Timeout = d }
}

// NewClient creates a new OpenAI-backed client.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("genai: API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	slog.Debug("GenAI client configured", "model", cfg.Model, "timeout", cfg.Timeout)
	return &Client{
		api:     openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:   cfg.Model,
		timeout: cfg.Timeout,
	}, nil
}

// Generate produces text from a system and user prompt pair.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	return c.GenerateWithMessages(ctx, []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(systemPrompt),
		openai.UserMessage(userPrompt),
	})
}

// GenerateWithMessages produces text from a full message history.
func (c *Client) GenerateWithMessages(ctx context.Context, messages []openai.ChatCompletionMessageParamUnion) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	slog.Debug("GenAI.GenerateWithMessages: calling completion API", "model", c.model, "messages", len(messages))
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		slog.Error("GenAI.GenerateWithMessages: completion failed", "error", err)
		return "", fmt.Errorf("genai: completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

// Translate rewrites text into the target language.
func (c *Client) Translate(ctx context.Context, text, targetLang string) (string, error) {
	system := fmt.Sprintf(
		"You are a translator. Translate the user's message into %s. "+
			"Preserve meaning, tone, emojis and any URLs exactly. Reply with the translation only.",
		targetLang)
	out, err := c.Generate(ctx, system, text)
	if err != nil {
		return "", fmt.Errorf("genai: translate failed: %w", err)
	}
	return out, nil
}
