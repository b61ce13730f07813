package llm

import "context"

// Message roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat message.
type Message struct {
	Role    string
	Content string
}

// ChatRequest is a single chat completion request.
type ChatRequest struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// Provider is a chat-style text generation backend. Implementations return the
// raw completion text; classification and trimming happen in Client.
type Provider interface {
	Complete(ctx context.Context, req ChatRequest) (string, error)
}
