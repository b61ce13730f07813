package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tyloni/oregon-grant-automation/internal/catalog"
	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

// UnknownGrantTitle is shown when an application's grant no longer exists.
const UnknownGrantTitle = "Unknown Grant"

// Store persists application documents. Get and Delete return an error
// matching ErrNotFound for a missing ID. Put increments doc.Version.
type Store interface {
	Get(ctx context.Context, id string) (*schema.ApplicationDocument, error)
	Put(ctx context.Context, doc *schema.ApplicationDocument) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*schema.ApplicationDocument, error)
}

// GrantProvider is read-only access to grant records. GetGrant returns an
// error matching ErrNotFound for a missing ID.
type GrantProvider interface {
	GetGrant(ctx context.Context, id string) (*schema.Grant, error)
}

// ServiceDeps wires a Service.
type ServiceDeps struct {
	Store     Store
	Grants    GrantProvider
	Generator Generator
	Catalog   *catalog.Catalog

	// Optional
	Locker        Locker // Default: in-process MemoryLocker
	Logger        Logger
	Concurrency   int  // Default: DefaultConcurrency
	RejectPartial bool // Do not persist documents containing placeholders
}

// Service is the application layer: it looks up grants, serializes writes
// per application and persists every change.
type Service struct {
	store         Store
	grants        GrantProvider
	assembler     *Assembler
	refiner       *Refiner
	suggester     *Suggester
	locker        Locker
	logger        Logger
	rejectPartial bool
	now           func() time.Time
}

// NewService creates a Service from deps.
func NewService(deps ServiceDeps) (*Service, error) {
	if deps.Store == nil || deps.Grants == nil || deps.Generator == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("store, grants, generator and catalog are required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = NopLogger()
	}
	locker := deps.Locker
	if locker == nil {
		locker = NewMemoryLocker()
	}

	return &Service{
		store:         deps.Store,
		grants:        deps.Grants,
		assembler:     NewAssembler(deps.Catalog, deps.Generator, deps.Concurrency, logger),
		refiner:       NewRefiner(deps.Catalog, deps.Generator, logger),
		suggester:     NewSuggester(deps.Catalog, deps.Generator, logger),
		locker:        locker,
		logger:        logger,
		rejectPartial: deps.RejectPartial,
		now:           func() time.Time { return time.Now().UTC() },
	}, nil
}

// Generate drafts and stores a new application for grantID. The assembly is
// returned alongside the document so callers can report failed sections.
func (s *Service) Generate(ctx context.Context, grantID string, org *schema.Organization) (*schema.ApplicationDocument, *Assembly, error) {
	if err := schema.ValidateOrganization(org); err != nil {
		return nil, nil, newValidationError(err)
	}

	grant, err := s.lookupGrant(ctx, grantID)
	if err != nil {
		return nil, nil, err
	}

	assembly := s.assembler.Assemble(ctx, Compose(grant, org))
	if assembly.Failed() && s.rejectPartial {
		s.logger.Warn("Discarding partial application",
			"grant_id", grantID,
			"failures", len(assembly.Failures),
		)
		return nil, assembly, &AssemblyError{Assembly: assembly}
	}

	id, err := schema.NewApplicationID()
	if err != nil {
		return nil, assembly, fmt.Errorf("generate application ID: %w", err)
	}

	now := s.now()
	doc := &schema.ApplicationDocument{
		ID:        id,
		GrantID:   grantID,
		Status:    schema.StatusDraft,
		Sections:  assembly.Sections.Clone(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Put(ctx, doc); err != nil {
		return nil, assembly, fmt.Errorf("store application: %w", err)
	}

	s.logger.Info("Application generated",
		"application_id", doc.ID,
		"grant_id", grantID,
		"failures", len(assembly.Failures),
	)
	return doc, assembly, nil
}

// Refine rewrites one section from feedback and stores the result. A
// provider failure is not an error: the stored section carries a failure
// note and the returned Refinement has Fallback set.
func (s *Service) Refine(ctx context.Context, appID, sectionName, feedback string) (*schema.ApplicationDocument, Refinement, error) {
	unlock, err := s.locker.Lock(ctx, appID)
	if err != nil {
		return nil, Refinement{}, err
	}
	defer unlock()

	doc, err := s.get(ctx, appID)
	if err != nil {
		return nil, Refinement{}, err
	}

	updated, ref, err := s.refiner.Apply(ctx, doc, sectionName, feedback)
	if err != nil {
		return nil, Refinement{}, err
	}
	if err := s.store.Put(ctx, updated); err != nil {
		return nil, Refinement{}, fmt.Errorf("store application: %w", err)
	}
	return updated, ref, nil
}

// UpdateSections replaces the text of the given sections. Every key must
// already exist; otherwise nothing is changed.
func (s *Service) UpdateSections(ctx context.Context, appID string, sections schema.SectionMap) (*schema.ApplicationDocument, error) {
	return s.mutate(ctx, appID, func(doc *schema.ApplicationDocument) error {
		for _, name := range sections.Names() {
			if !doc.Sections.Has(name) {
				return &SectionNotFoundError{Section: name, Available: doc.Sections.Names()}
			}
		}
		for _, name := range sections.Names() {
			text, _ := sections.Get(name)
			doc.Sections.Set(name, text)
		}
		return nil
	})
}

// SetStatus moves an application to status.
func (s *Service) SetStatus(ctx context.Context, appID string, status schema.Status) (*schema.ApplicationDocument, error) {
	if !status.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown status %q", status)}
	}
	return s.mutate(ctx, appID, func(doc *schema.ApplicationDocument) error {
		doc.Status = status
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, appID string, fn func(doc *schema.ApplicationDocument) error) (*schema.ApplicationDocument, error) {
	unlock, err := s.locker.Lock(ctx, appID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	doc, err := s.get(ctx, appID)
	if err != nil {
		return nil, err
	}

	updated := doc.Clone()
	if err := fn(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.now()

	if err := s.store.Put(ctx, updated); err != nil {
		return nil, fmt.Errorf("store application: %w", err)
	}
	return updated, nil
}

// Get returns a stored application.
func (s *Service) Get(ctx context.Context, appID string) (*schema.ApplicationDocument, error) {
	return s.get(ctx, appID)
}

// View returns the presentation shape of an application.
func (s *Service) View(ctx context.Context, appID string) (schema.ApplicationView, error) {
	doc, err := s.get(ctx, appID)
	if err != nil {
		return schema.ApplicationView{}, err
	}

	title := UnknownGrantTitle
	grant, err := s.grants.GetGrant(ctx, doc.GrantID)
	switch {
	case err == nil:
		title = grant.Title
	case !errors.Is(err, ErrNotFound):
		s.logger.Warn("Grant lookup failed", "grant_id", doc.GrantID, "error", err)
	}

	return schema.NewApplicationView(doc, title), nil
}

// List returns every stored application, newest first.
func (s *Service) List(ctx context.Context) ([]*schema.ApplicationDocument, error) {
	docs, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return docs, nil
}

// Delete removes an application.
func (s *Service) Delete(ctx context.Context, appID string) error {
	unlock, err := s.locker.Lock(ctx, appID)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.store.Delete(ctx, appID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return &NotFoundError{Resource: "application", ID: appID, Err: err}
		}
		return fmt.Errorf("delete application: %w", err)
	}
	s.logger.Info("Application deleted", "application_id", appID)
	return nil
}

// Suggest drafts text for one personalization field.
func (s *Service) Suggest(ctx context.Context, field schema.PersonalizationField, org *schema.Organization) (string, error) {
	return s.suggester.Suggest(ctx, field, org)
}

func (s *Service) get(ctx context.Context, appID string) (*schema.ApplicationDocument, error) {
	doc, err := s.store.Get(ctx, appID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Resource: "application", ID: appID, Err: err}
		}
		return nil, fmt.Errorf("load application: %w", err)
	}
	return doc, nil
}

func (s *Service) lookupGrant(ctx context.Context, grantID string) (*schema.Grant, error) {
	grant, err := s.grants.GetGrant(ctx, grantID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Resource: "grant", ID: grantID, Err: err}
		}
		return nil, fmt.Errorf("load grant: %w", err)
	}
	return grant, nil
}
