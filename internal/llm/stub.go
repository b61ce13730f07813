package llm

import (
	"context"
	"strings"
	"sync"
)

// StubProvider is a deterministic Provider for tests and offline runs.
type StubProvider struct {
	// Respond computes the completion for a request. When nil, the stub echoes
	// a short canned draft.
	Respond func(req ChatRequest) (string, error)

	mu       sync.Mutex
	requests []ChatRequest
}

// NewStubProvider creates a stub that answers with respond.
func NewStubProvider(respond func(req ChatRequest) (string, error)) *StubProvider {
	return &StubProvider{Respond: respond}
}

// Complete implements Provider.
func (s *StubProvider) Complete(ctx context.Context, req ChatRequest) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if s.Respond == nil {
		return "Draft text for: " + firstLine(req.Messages[len(req.Messages)-1].Content), nil
	}
	return s.Respond(req)
}

// Calls returns how many times Complete was called.
func (s *StubProvider) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

// Requests returns a copy of every request seen so far.
func (s *StubProvider) Requests() []ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ChatRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// Reset clears recorded requests.
func (s *StubProvider) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
