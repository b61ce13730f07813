package llm

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIProvider talks to any OpenAI-compatible chat completions endpoint
// through the openai-go SDK.
type OpenAIProvider struct {
	client openai.Client
}

// NewOpenAIProvider creates a provider from config. The SDK's own retries are
// disabled; retry policy belongs to the caller.
func NewOpenAIProvider(config *Config, opts ...option.RequestOption) (*OpenAIProvider, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	config.SetDefaults()

	reqOpts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
		option.WithBaseURL(config.BaseURL),
		option.WithMaxRetries(0),
	}
	reqOpts = append(reqOpts, opts...)

	return &OpenAIProvider{client: openai.NewClient(reqOpts...)}, nil
}

// Complete implements Provider.
func (p *OpenAIProvider) Complete(ctx context.Context, req ChatRequest) (string, error) {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case RoleSystem:
			msgs = append(msgs, openai.SystemMessage(m.Content))
		default:
			msgs = append(msgs, openai.UserMessage(m.Content))
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: msgs,
	}
	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", NewAPIError(apiErr.StatusCode, apiErr.Error(), err)
		}
		return "", err
	}

	if len(resp.Choices) == 0 {
		return "", NewInvalidResponseError("no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}
