package core

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/tyloni/oregon-grant-automation/internal/llm"
)

// Config holds the application configuration.
type Config struct {
	LogLevel   string // debug, info, warn, error
	LogBackend string // slog or zap

	LLMProvider string // openai or genkit
	LLM         llm.Config

	Concurrency  int    // Parallel section generations per document
	AllowPartial bool   // Persist documents that contain placeholders
	CatalogPath  string // Optional YAML catalog override

	StoreDriver string // file, sqlite, postgres
	StoreDSN    string
	DataDir     string

	RedisAddr string // Enables the redis document locker when set
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	logLevel := getEnvOrDefault("LOG_LEVEL", "info")

	// DEBUG flag overrides log level
	if os.Getenv("DEBUG") == "1" {
		logLevel = "debug"
	}

	apiKey := os.Getenv("LLM_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GROQ_API_KEY")
	}

	timeout, err := time.ParseDuration(getEnvOrDefault("LLM_TIMEOUT", "60s"))
	if err != nil {
		return nil, fmt.Errorf("LLM_TIMEOUT: %w", err)
	}

	concurrency, err := strconv.Atoi(getEnvOrDefault("GENERATION_CONCURRENCY", "3"))
	if err != nil || concurrency < 1 {
		return nil, fmt.Errorf("GENERATION_CONCURRENCY must be a positive integer")
	}

	allowPartial, err := strconv.ParseBool(getEnvOrDefault("ALLOW_PARTIAL", "true"))
	if err != nil {
		return nil, fmt.Errorf("ALLOW_PARTIAL: %w", err)
	}

	cfg := &Config{
		LogLevel:    logLevel,
		LogBackend:  getEnvOrDefault("LOG_BACKEND", "slog"),
		LLMProvider: getEnvOrDefault("LLM_PROVIDER", "openai"),
		LLM: llm.Config{
			APIKey:       apiKey,
			BaseURL:      getEnvOrDefault("LLM_BASE_URL", llm.DefaultBaseURL),
			DefaultModel: getEnvOrDefault("LLM_MODEL", llm.DefaultModel),
			Timeout:      timeout,
		},
		Concurrency:  concurrency,
		AllowPartial: allowPartial,
		CatalogPath:  os.Getenv("SECTION_CATALOG"),
		StoreDriver:  getEnvOrDefault("STORE_DRIVER", "file"),
		StoreDSN:     os.Getenv("STORE_DSN"),
		DataDir:      getEnvOrDefault("DATA_DIR", ".grantdraft"),
		RedisAddr:    os.Getenv("REDIS_ADDR"),
	}

	// Don't require API key for basic operations
	// This will be validated when LLM operations are attempted

	switch cfg.StoreDriver {
	case "file", "sqlite", "postgres":
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be file, sqlite or postgres, got %q", cfg.StoreDriver)
	}

	switch cfg.LLMProvider {
	case "openai", "genkit":
	default:
		return nil, fmt.Errorf("LLM_PROVIDER must be openai or genkit, got %q", cfg.LLMProvider)
	}

	return cfg, nil
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
