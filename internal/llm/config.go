package llm

import (
	"fmt"
	"time"
)

// Defaults for an OpenAI-compatible endpoint.
const (
	DefaultBaseURL = "https://api.groq.com/openai/v1"
	DefaultModel   = "llama-3.3-70b-versatile"
	DefaultTimeout = 60 * time.Second
)

// Config contains configuration for the generation client.
type Config struct {
	// APIKey is the provider API key
	APIKey string

	// BaseURL is the OpenAI-compatible API base URL
	// Default: https://api.groq.com/openai/v1
	BaseURL string

	// DefaultModel is the model to use when Params does not name one
	DefaultModel string

	// Timeout bounds every provider call
	// Default: 60 seconds
	Timeout time.Duration
}

// Validate checks that required config fields are set.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("APIKey is required")
	}

	if c.Timeout < 0 {
		return fmt.Errorf("Timeout must not be negative")
	}

	return nil
}

// SetDefaults fills in default values for optional fields.
func (c *Config) SetDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}

	if c.DefaultModel == "" {
		c.DefaultModel = DefaultModel
	}

	if c.Timeout == 0 {
		c.Timeout = DefaultTimeout
	}
}

// Params tunes a single generation call.
type Params struct {
	// Model overrides Config.DefaultModel when set
	Model string

	Temperature float64
	MaxTokens   int
}

// Presets for the three kinds of calls the pipeline makes.
var (
	SectionParams    = Params{Temperature: 0.7, MaxTokens: 1024}
	RefineParams     = Params{Temperature: 0.7, MaxTokens: 1024}
	SuggestionParams = Params{Temperature: 0.8, MaxTokens: 300}
)
