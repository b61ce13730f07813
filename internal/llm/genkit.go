package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// GenkitModelName is the registry name of the model GenkitProvider defines.
const GenkitModelName = "grantdraft/chat"

// GenkitProvider registers an inner provider as a Genkit model and routes
// every call through Genkit's model registry, so calls show up in Genkit
// traces and tooling.
type GenkitProvider struct {
	g            *genkit.Genkit
	model        ai.Model
	defaultModel string
}

// genkitCallConfig travels in ModelRequest.Config.
type genkitCallConfig struct {
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"maxOutputTokens,omitempty"`
}

// NewGenkitProvider initializes Genkit and defines a model backed by inner.
func NewGenkitProvider(ctx context.Context, inner Provider, defaultModel string) (*GenkitProvider, error) {
	if inner == nil {
		return nil, fmt.Errorf("inner provider is required")
	}

	g := genkit.Init(ctx)

	genkit.DefineModel(
		g,
		GenkitModelName,
		&ai.ModelOptions{
			Label: "Grant drafting chat model",
			Supports: &ai.ModelSupports{
				Multiturn:  true,
				SystemRole: true,
			},
		},
		func(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
			chat := fromGenkitRequest(req, defaultModel)
			text, err := inner.Complete(ctx, chat)
			if err != nil {
				return nil, Classify(err)
			}
			return &ai.ModelResponse{
				Request: req,
				Message: &ai.Message{
					Role:    ai.RoleModel,
					Content: []*ai.Part{ai.NewTextPart(text)},
				},
			}, nil
		},
	)

	model := genkit.LookupModel(g, GenkitModelName)
	if model == nil {
		return nil, fmt.Errorf("genkit model %s not registered", GenkitModelName)
	}

	return &GenkitProvider{g: g, model: model, defaultModel: defaultModel}, nil
}

// Complete implements Provider.
func (p *GenkitProvider) Complete(ctx context.Context, req ChatRequest) (string, error) {
	resp, err := p.model.Generate(ctx, toGenkitRequest(req), nil)
	if err != nil {
		return "", err
	}
	if resp == nil || resp.Message == nil {
		return "", NewInvalidResponseError("genkit returned no message")
	}

	var sb strings.Builder
	for _, part := range resp.Message.Content {
		if part.IsText() {
			sb.WriteString(part.Text)
		}
	}
	return sb.String(), nil
}

func toGenkitRequest(req ChatRequest) *ai.ModelRequest {
	msgs := make([]*ai.Message, 0, len(req.Messages))
	for _, m := range req.Messages {
		role := ai.RoleUser
		if m.Role == RoleSystem {
			role = ai.RoleSystem
		}
		msgs = append(msgs, &ai.Message{
			Role:    role,
			Content: []*ai.Part{ai.NewTextPart(m.Content)},
		})
	}

	return &ai.ModelRequest{
		Messages: msgs,
		Config: &genkitCallConfig{
			Model:       req.Model,
			Temperature: req.Temperature,
			MaxTokens:   req.MaxTokens,
		},
	}
}

func fromGenkitRequest(req *ai.ModelRequest, defaultModel string) ChatRequest {
	chat := ChatRequest{Model: defaultModel}
	if cfg, ok := req.Config.(*genkitCallConfig); ok && cfg != nil {
		if cfg.Model != "" {
			chat.Model = cfg.Model
		}
		chat.Temperature = cfg.Temperature
		chat.MaxTokens = cfg.MaxTokens
	}

	for _, m := range req.Messages {
		role := RoleUser
		if m.Role == ai.RoleSystem {
			role = RoleSystem
		}
		var sb strings.Builder
		for _, part := range m.Content {
			if part.IsText() {
				sb.WriteString(part.Text)
			}
		}
		chat.Messages = append(chat.Messages, Message{Role: role, Content: sb.String()})
	}
	return chat
}
