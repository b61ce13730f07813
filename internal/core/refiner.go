package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tyloni/oregon-grant-automation/internal/catalog"
	"github.com/tyloni/oregon-grant-automation/internal/llm"
	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

const refineNotePrefix = "\n\n[Note: Unable to refine section. Error: "

// RefineFailureNote is appended to a section whose refinement failed.
func RefineFailureNote(reason string) string {
	return refineNotePrefix + reason + "]"
}

// stripRefineNote removes a trailing refinement-failure note, if present.
func stripRefineNote(text string) string {
	i := strings.LastIndex(text, refineNotePrefix)
	if i < 0 || !strings.HasSuffix(text, "]") {
		return text
	}
	return text[:i]
}

// Refinement is the outcome of refining one section.
type Refinement struct {
	// Text is the new section text.
	Text string

	// Fallback is set when the provider failed and Text is the original
	// with a failure note appended.
	Fallback bool

	// Cause is the provider error behind a fallback.
	Cause error
}

// Refiner rewrites a single section from free-text feedback.
type Refiner struct {
	catalog *catalog.Catalog
	gen     Generator
	params  llm.Params
	logger  Logger
	tracer  trace.Tracer
}

// NewRefiner creates a refiner using llm.RefineParams.
func NewRefiner(cat *catalog.Catalog, gen Generator, logger Logger) *Refiner {
	return NewRefinerWithParams(cat, gen, llm.RefineParams, logger)
}

// NewRefinerWithParams creates a refiner with explicit generation params.
// A zero temperature falls back to the RefineParams temperature.
func NewRefinerWithParams(cat *catalog.Catalog, gen Generator, params llm.Params, logger Logger) *Refiner {
	if params.Temperature == 0 {
		params.Temperature = llm.RefineParams.Temperature
	}
	if params.MaxTokens == 0 {
		params.MaxTokens = llm.RefineParams.MaxTokens
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Refiner{
		catalog: cat,
		gen:     gen,
		params:  params,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}
}

// Refine produces new text for sectionName. It returns an error only for a
// missing section or invalid feedback; provider failures yield a fallback
// Refinement. doc is never modified.
func (r *Refiner) Refine(ctx context.Context, doc *schema.ApplicationDocument, sectionName, feedback string) (Refinement, error) {
	original, ok := doc.Sections.Get(sectionName)
	if !ok {
		return Refinement{}, &SectionNotFoundError{Section: sectionName, Available: doc.Sections.Names()}
	}
	if err := schema.ValidateFeedback(feedback); err != nil {
		return Refinement{}, newValidationError(err)
	}

	ctx, span := r.tracer.Start(ctx, "refiner.refine",
		trace.WithAttributes(
			attribute.String("application_id", doc.ID),
			attribute.String("section", sectionName),
		))
	defer span.End()

	base := stripRefineNote(original)

	prompt, err := r.catalog.RenderRefinement(base, feedback)
	if err == nil {
		var text string
		text, err = r.gen.GenerateShort(ctx, prompt, r.params)
		if err == nil {
			r.logger.Info("Section refined", "application_id", doc.ID, "section", sectionName)
			return Refinement{Text: text}, nil
		}
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, "refine")
	r.logger.Warn("Section refinement failed",
		"application_id", doc.ID,
		"section", sectionName,
		"error", err,
	)
	return Refinement{
		Text:     base + RefineFailureNote(err.Error()),
		Fallback: true,
		Cause:    err,
	}, nil
}

// Apply refines sectionName and returns a copy of doc with only that section
// replaced and UpdatedAt bumped.
func (r *Refiner) Apply(ctx context.Context, doc *schema.ApplicationDocument, sectionName, feedback string) (*schema.ApplicationDocument, Refinement, error) {
	ref, err := r.Refine(ctx, doc, sectionName, feedback)
	if err != nil {
		return nil, Refinement{}, fmt.Errorf("refine %s: %w", sectionName, err)
	}

	updated := doc.Clone()
	updated.Sections.Set(sectionName, ref.Text)
	updated.UpdatedAt = time.Now().UTC()
	return updated, ref, nil
}
