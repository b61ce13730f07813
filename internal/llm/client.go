package llm

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Client is the generation client. It holds no per-call state and is safe for
// concurrent use.
type Client struct {
	config   *Config
	provider Provider
}

// NewClient creates a new generation client over provider.
func NewClient(config *Config, provider Provider) (*Client, error) {
	if provider == nil {
		return nil, fmt.Errorf("provider is required")
	}
	if config == nil {
		config = &Config{}
	}

	config.SetDefaults()

	if config.Timeout < 0 {
		return nil, fmt.Errorf("invalid config: Timeout must not be negative")
	}

	return &Client{
		config:   config,
		provider: provider,
	}, nil
}

// Model returns the model used when Params does not name one.
func (c *Client) Model() string {
	return c.config.DefaultModel
}

// Generate sends the shared system context and a section instruction as a
// two-message conversation and returns the trimmed completion.
func (c *Client) Generate(ctx context.Context, systemContext, instruction string, params Params) (string, error) {
	return c.complete(ctx, []Message{
		{Role: RoleSystem, Content: systemContext},
		{Role: RoleUser, Content: instruction},
	}, params)
}

// GenerateShort sends a single user prompt and returns the trimmed completion.
func (c *Client) GenerateShort(ctx context.Context, prompt string, params Params) (string, error) {
	return c.complete(ctx, []Message{
		{Role: RoleUser, Content: prompt},
	}, params)
}

// complete makes exactly one provider call. The call is detached from the
// caller's cancellation and bounded only by the configured timeout.
func (c *Client) complete(ctx context.Context, messages []Message, params Params) (string, error) {
	model := params.Model
	if model == "" {
		model = c.config.DefaultModel
	}

	req := ChatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.config.Timeout)
	defer cancel()

	start := time.Now()
	content, err := c.provider.Complete(callCtx, req)
	duration := time.Since(start)

	if err != nil {
		if callCtx.Err() == context.DeadlineExceeded {
			err = NewTimeoutError(err)
		}
		llmErr := Classify(err)
		slog.Error("LLM call failed",
			"model", model,
			"duration", duration,
			"kind", llmErr.Kind,
			"status_code", llmErr.StatusCode,
			"error", llmErr.Error(),
		)
		return "", llmErr
	}

	content = strings.TrimSpace(content)
	if content == "" {
		slog.Warn("LLM returned empty completion",
			"model", model,
			"duration", duration,
		)
		return "", NewInvalidResponseError("empty completion")
	}

	slog.Info("LLM call completed",
		"model", model,
		"duration", duration,
		"messages", len(messages),
		"response_length", len(content),
	)
	return content, nil
}
