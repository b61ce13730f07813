package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyloni/oregon-grant-automation/internal/catalog"
	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

const sectionMarker = "SECTION="

// testCatalog returns the default sections with a marker line prepended to
// each instruction so fakes can tell which section they are generating.
func testCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()

	def, err := catalog.Default()
	require.NoError(t, err)

	specs := def.Sections()
	for i := range specs {
		specs[i].Instruction = sectionMarker + "{{.Section.Name}}\n" + specs[i].Instruction
	}

	cat, err := catalog.New(&catalog.File{
		Version:    "test",
		System:     "Grant: {{.Grant.Title}} for {{.Organization.Name}}",
		Refinement: "ORIGINAL:\n{{.Original}}\nFEEDBACK:\n{{.Feedback}}\nReturn ONLY the revised text.",
		Sections:   specs,
	})
	require.NoError(t, err)
	return cat
}

// sectionOf extracts the section name from a marked instruction.
func sectionOf(instruction string) string {
	line, _, _ := strings.Cut(instruction, "\n")
	return strings.TrimPrefix(line, sectionMarker)
}

func qualityGrant() *schema.Grant {
	return &schema.Grant{
		ID:                  "GRANT-quality",
		SourceName:          "Oregon Early Learning Division",
		Title:               "Quality Improvement Grants",
		AmountMin:           schema.Ptr(5000.0),
		AmountMax:           schema.Ptr(25000.0),
		EligibilityCriteria: []string{"Licensed provider"},
		FundingPriorities:   []string{"Outdoor learning"},
	}
}

func sunnyDays() *schema.Organization {
	return &schema.Organization{
		Name:              "Sunny Days",
		Type:              "Preschool",
		City:              "Bend",
		MissionStatement:  "Play-based early learning for every child in Central Oregon.",
		CurrentEnrollment: schema.Ptr(40),
		OperatingBudget:   schema.Ptr(180000.0),
		StaffCount:        schema.Ptr(6),
	}
}

// memStore is an in-memory Store and GrantProvider.
type memStore struct {
	mu     sync.Mutex
	docs   map[string]*schema.ApplicationDocument
	grants map[string]*schema.Grant
	puts   int
}

func newMemStore(grants ...*schema.Grant) *memStore {
	s := &memStore{
		docs:   make(map[string]*schema.ApplicationDocument),
		grants: make(map[string]*schema.Grant),
	}
	for _, g := range grants {
		s.grants[g.ID] = g
	}
	return s
}

func (s *memStore) Get(ctx context.Context, id string) (*schema.ApplicationDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, &NotFoundError{Resource: "application", ID: id}
	}
	return doc.Clone(), nil
}

func (s *memStore) Put(ctx context.Context, doc *schema.ApplicationDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.Version++
	s.docs[doc.ID] = doc.Clone()
	s.puts++
	return nil
}

func (s *memStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.docs[id]; !ok {
		return &NotFoundError{Resource: "application", ID: id}
	}
	delete(s.docs, id)
	return nil
}

func (s *memStore) List(ctx context.Context) ([]*schema.ApplicationDocument, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*schema.ApplicationDocument, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) GetGrant(ctx context.Context, id string) (*schema.Grant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.grants[id]
	if !ok {
		return nil, &NotFoundError{Resource: "grant", ID: id}
	}
	return g, nil
}

func (s *memStore) putCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.puts
}
