package core

import (
	"context"
	"fmt"

	"github.com/tyloni/oregon-grant-automation/internal/catalog"
	"github.com/tyloni/oregon-grant-automation/internal/llm"
	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

// Suggester drafts example text for the personalization fields of an
// organization profile.
type Suggester struct {
	catalog *catalog.Catalog
	gen     Generator
	logger  Logger
}

// NewSuggester creates a suggester.
func NewSuggester(cat *catalog.Catalog, gen Generator, logger Logger) *Suggester {
	if logger == nil {
		logger = NopLogger()
	}
	return &Suggester{catalog: cat, gen: gen, logger: logger}
}

// Suggest returns suggested text for field. Unknown fields fail without
// calling the provider; provider errors are returned with their kind intact.
func (s *Suggester) Suggest(ctx context.Context, field schema.PersonalizationField, org *schema.Organization) (string, error) {
	if !field.Valid() || !s.catalog.HasSuggestion(field) {
		return "", &UnknownFieldError{Field: string(field)}
	}

	prompt, err := s.catalog.RenderSuggestion(field, ComposeForSuggestion(org))
	if err != nil {
		return "", fmt.Errorf("render suggestion prompt: %w", err)
	}

	text, err := s.gen.GenerateShort(ctx, prompt, llm.SuggestionParams)
	if err != nil {
		s.logger.Warn("Suggestion failed", "field", field, "error", err)
		return "", fmt.Errorf("suggest %s: %w", field, err)
	}

	s.logger.Debug("Suggestion generated", "field", field, "length", len(text))
	return text, nil
}
