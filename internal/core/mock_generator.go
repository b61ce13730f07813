package core

import (
	"context"
	"sync"

	"github.com/tyloni/oregon-grant-automation/internal/llm"
)

// MockGenerator implements Generator for testing with canned responses.
type MockGenerator struct {
	// GenerateFunc answers Generate. Default: echoes the instruction.
	GenerateFunc func(systemContext, instruction string) (string, error)

	// GenerateShortFunc answers GenerateShort. Default: "suggested text".
	GenerateShortFunc func(prompt string) (string, error)

	mu                 sync.Mutex
	GenerateCalls      int
	GenerateShortCalls int
	Prompts            []string
	LastParams         llm.Params
}

// NewMockGenerator creates a mock with default successful responses.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{}
}

func (m *MockGenerator) Generate(ctx context.Context, systemContext, instruction string, params llm.Params) (string, error) {
	m.mu.Lock()
	m.GenerateCalls++
	m.Prompts = append(m.Prompts, instruction)
	m.LastParams = params
	fn := m.GenerateFunc
	m.mu.Unlock()

	if fn == nil {
		return "Generated: " + instruction, nil
	}
	return fn(systemContext, instruction)
}

func (m *MockGenerator) GenerateShort(ctx context.Context, prompt string, params llm.Params) (string, error) {
	m.mu.Lock()
	m.GenerateShortCalls++
	m.Prompts = append(m.Prompts, prompt)
	m.LastParams = params
	fn := m.GenerateShortFunc
	m.mu.Unlock()

	if fn == nil {
		return "suggested text", nil
	}
	return fn(prompt)
}

// Calls returns the total number of generation calls.
func (m *MockGenerator) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GenerateCalls + m.GenerateShortCalls
}
