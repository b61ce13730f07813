package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/tyloni/oregon-grant-automation/internal/catalog"
	"github.com/tyloni/oregon-grant-automation/internal/llm"
	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

const tracerName = "github.com/tyloni/oregon-grant-automation/internal/core"

// DefaultConcurrency is the number of sections generated at once.
const DefaultConcurrency = 3

// FailureTemplate marks a section whose prompt could not be rendered.
const FailureTemplate = "template"

// Generator abstracts the generation client for testability.
type Generator interface {
	Generate(ctx context.Context, systemContext, instruction string, params llm.Params) (string, error)
	GenerateShort(ctx context.Context, prompt string, params llm.Params) (string, error)
}

// SectionFailure records why one section holds a placeholder.
type SectionFailure struct {
	Kind   string // llm error kind, or "template"
	Reason string
	Err    error `json:"-" yaml:"-"`
}

// Assembly is the outcome of generating every catalog section.
type Assembly struct {
	// Sections covers every catalog section, in catalog order.
	Sections schema.SectionMap

	// Failures has exactly one entry per section that holds a placeholder.
	Failures map[string]SectionFailure
}

// Failed reports whether any section failed.
func (a *Assembly) Failed() bool {
	return len(a.Failures) > 0
}

// PlaceholderText is the section text stored when generation fails.
func PlaceholderText(reason string) string {
	return fmt.Sprintf("[This section could not be generated. Error: %s]", reason)
}

// Assembler generates a whole document, one provider call per section.
type Assembler struct {
	catalog     *catalog.Catalog
	gen         Generator
	concurrency int
	logger      Logger
	tracer      trace.Tracer
}

// NewAssembler creates an assembler. concurrency < 1 uses DefaultConcurrency.
func NewAssembler(cat *catalog.Catalog, gen Generator, concurrency int, logger Logger) *Assembler {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Assembler{
		catalog:     cat,
		gen:         gen,
		concurrency: concurrency,
		logger:      logger,
		tracer:      otel.Tracer(tracerName),
	}
}

type sectionResult struct {
	text    string
	failure *SectionFailure
}

// Assemble generates every catalog section from sctx. Sections are generated
// independently; a failure in one never affects another. It never returns an
// error: failures are recorded in the Assembly and as placeholder text.
func (a *Assembler) Assemble(ctx context.Context, sctx schema.Context) *Assembly {
	ctx, span := a.tracer.Start(ctx, "assembler.assemble")
	defer span.End()

	specs := a.catalog.Sections()
	results := make([]sectionResult, len(specs))
	start := time.Now()

	systemText, sysErr := a.catalog.RenderSystem(sctx)
	if sysErr != nil {
		a.logger.Error("Failed to render system context", "error", sysErr)
	}

	var g errgroup.Group
	g.SetLimit(a.concurrency)

	for i, spec := range specs {
		if sysErr != nil {
			results[i] = failed(FailureTemplate, sysErr)
			continue
		}
		g.Go(func() error {
			results[i] = a.generateSection(ctx, spec.Name, systemText, sctx)
			return nil
		})
	}
	_ = g.Wait()

	out := &Assembly{Failures: make(map[string]SectionFailure)}
	for i, spec := range specs {
		r := results[i]
		if r.failure != nil {
			out.Sections.Set(spec.Name, PlaceholderText(r.failure.Reason))
			out.Failures[spec.Name] = *r.failure
			continue
		}
		out.Sections.Set(spec.Name, r.text)
	}

	span.SetAttributes(
		attribute.Int("sections", len(specs)),
		attribute.Int("failures", len(out.Failures)),
	)
	a.logger.Info("Document assembled",
		"sections", len(specs),
		"failures", len(out.Failures),
		"duration", time.Since(start),
	)
	return out
}

func (a *Assembler) generateSection(ctx context.Context, name, systemText string, sctx schema.Context) sectionResult {
	ctx, span := a.tracer.Start(ctx, "assembler.section",
		trace.WithAttributes(attribute.String("section", name)))
	defer span.End()

	instruction, err := a.catalog.RenderSection(name, sctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render")
		a.logger.Error("Failed to render section instruction", "section", name, "error", err)
		return failed(FailureTemplate, err)
	}

	text, err := a.gen.Generate(ctx, systemText, instruction, llm.SectionParams)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "generate")
		a.logger.Warn("Section generation failed", "section", name, "error", err)
		return failed(failureKind(err), err)
	}

	a.logger.Debug("Section generated", "section", name, "length", len(text))
	return sectionResult{text: text}
}

func failed(kind string, err error) sectionResult {
	return sectionResult{failure: &SectionFailure{Kind: kind, Reason: err.Error(), Err: err}}
}

func failureKind(err error) string {
	var llmErr *llm.Error
	if errors.As(err, &llmErr) {
		return string(llmErr.Kind)
	}
	return string(llm.KindProviderUnavailable)
}
