// Package catalog holds the section catalog: the ordered list of document
// sections, their word targets and instruction templates, plus the framing,
// refinement and personalization templates. The catalog is data. Adding,
// removing or reordering sections is done in YAML, never in code.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"

	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

//go:embed default_catalog.yaml
var defaultCatalog []byte

// File is the on-disk shape of a catalog.
type File struct {
	Version     string                                 `yaml:"version"`
	System      string                                 `yaml:"system"`
	Refinement  string                                 `yaml:"refinement"`
	Sections    []schema.SectionSpec                   `yaml:"sections"`
	Suggestions map[schema.PersonalizationField]string `yaml:"suggestions"`
	Profile     string                                 `yaml:"profile"`
}

// Catalog is a parsed, validated section catalog. It is immutable and safe
// for concurrent use.
type Catalog struct {
	version     string
	system      *template.Template
	refinement  *template.Template
	sections    []section
	index       map[string]int
	suggestions map[schema.PersonalizationField]*template.Template
}

type section struct {
	spec schema.SectionSpec
	tmpl *template.Template
}

// sectionData is what a section instruction template is rendered against.
type sectionData struct {
	schema.Context
	Section schema.SectionSpec
}

// refinementData is what the refinement template is rendered against.
type refinementData struct {
	Original string
	Feedback string
}

// Default returns the catalog embedded in the binary.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads and parses a catalog file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

// Parse parses and validates catalog YAML. Every template is compiled here,
// so a malformed template is a load error rather than a generation error.
func Parse(data []byte) (*Catalog, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(&f)
}

// New builds a catalog from an in-memory File.
func New(f *File) (*Catalog, error) {
	if len(f.Sections) == 0 {
		return nil, fmt.Errorf("catalog has no sections")
	}

	c := &Catalog{
		version:     f.Version,
		index:       make(map[string]int, len(f.Sections)),
		suggestions: make(map[schema.PersonalizationField]*template.Template, len(f.Suggestions)),
	}

	var err error
	if c.system, err = compile("system", f.System); err != nil {
		return nil, err
	}
	if c.refinement, err = compile("refinement", f.Refinement); err != nil {
		return nil, err
	}

	for i := range f.Sections {
		spec := f.Sections[i]
		spec.Name = strings.TrimSpace(spec.Name)
		if err := schema.ValidateSectionSpec(&spec); err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		if _, dup := c.index[spec.Name]; dup {
			return nil, fmt.Errorf("duplicate section %q", spec.Name)
		}
		tmpl, err := compile(spec.Name, spec.Instruction)
		if err != nil {
			return nil, err
		}
		c.index[spec.Name] = len(c.sections)
		c.sections = append(c.sections, section{spec: spec, tmpl: tmpl})
	}

	for field, text := range f.Suggestions {
		if !field.Valid() {
			return nil, fmt.Errorf("unknown suggestion field %q", field)
		}
		tmpl := template.New(string(field)).Option("missingkey=error").Funcs(funcs())
		if _, err := tmpl.New("profile").Parse(f.Profile); err != nil {
			return nil, fmt.Errorf("parse profile template: %w", err)
		}
		if _, err := tmpl.Parse(text); err != nil {
			return nil, fmt.Errorf("parse suggestion template %s: %w", field, err)
		}
		c.suggestions[field] = tmpl
	}

	return c, nil
}

func compile(name, text string) (*template.Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("template %s is empty", name)
	}
	tmpl, err := template.New(name).Option("missingkey=error").Funcs(funcs()).Parse(text)
	if err != nil {
		return nil, fmt.Errorf("parse template %s: %w", name, err)
	}
	return tmpl, nil
}

// Version returns the catalog's version label.
func (c *Catalog) Version() string {
	return c.version
}

// Sections returns the section specs in catalog order.
func (c *Catalog) Sections() []schema.SectionSpec {
	out := make([]schema.SectionSpec, len(c.sections))
	for i, s := range c.sections {
		out[i] = s.spec
	}
	return out
}

// Names returns the section names in catalog order.
func (c *Catalog) Names() []string {
	out := make([]string, len(c.sections))
	for i, s := range c.sections {
		out[i] = s.spec.Name
	}
	return out
}

// Lookup returns the spec for name.
func (c *Catalog) Lookup(name string) (schema.SectionSpec, bool) {
	i, ok := c.index[name]
	if !ok {
		return schema.SectionSpec{}, false
	}
	return c.sections[i].spec, true
}

// RenderSystem renders the shared framing for every section prompt.
func (c *Catalog) RenderSystem(ctx schema.Context) (string, error) {
	return render(c.system, ctx)
}

// RenderSection renders the instruction for one section.
func (c *Catalog) RenderSection(name string, ctx schema.Context) (string, error) {
	i, ok := c.index[name]
	if !ok {
		return "", fmt.Errorf("unknown section %q", name)
	}
	s := c.sections[i]
	return render(s.tmpl, sectionData{Context: ctx, Section: s.spec})
}

// RenderRefinement renders the refinement prompt. Both texts are embedded verbatim.
func (c *Catalog) RenderRefinement(original, feedback string) (string, error) {
	return render(c.refinement, refinementData{Original: original, Feedback: feedback})
}

// HasSuggestion reports whether the catalog has a template for field.
func (c *Catalog) HasSuggestion(field schema.PersonalizationField) bool {
	_, ok := c.suggestions[field]
	return ok
}

// RenderSuggestion renders the suggestion prompt for field.
func (c *Catalog) RenderSuggestion(field schema.PersonalizationField, org schema.ExampleOrganization) (string, error) {
	tmpl, ok := c.suggestions[field]
	if !ok {
		return "", fmt.Errorf("no suggestion template for %q", field)
	}
	return render(tmpl, org)
}

func render(tmpl *template.Template, data any) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}
	return strings.TrimSpace(sb.String()), nil
}
