package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tyloni/oregon-grant-automation/internal/core"
	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

// usageError marks bad command-line input; it is printed verbatim.
type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

var stdout io.Writer = os.Stdout

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func parseFlags(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return usagef("%v", err)
	}
	if fs.NArg() > 0 {
		return usagef("unexpected arguments: %s", strings.Join(fs.Args(), " "))
	}
	return nil
}

func required(values map[string]string) error {
	var missing []string
	for name, value := range values {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, "-"+name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return usagef("missing required flag(s): %s", strings.Join(missing, ", "))
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type failureOutput struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason"`
}

func failuresOf(assembly *core.Assembly) map[string]failureOutput {
	if assembly == nil || len(assembly.Failures) == 0 {
		return nil
	}
	out := make(map[string]failureOutput, len(assembly.Failures))
	for name, f := range assembly.Failures {
		out[name] = failureOutput{Kind: f.Kind, Reason: f.Reason}
	}
	return out
}

func runGenerate(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("generate")
	grantID := fs.String("grant", "", "grant ID")
	orgPath := fs.String("org", "", "organization YAML or JSON file")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"grant": *grantID, "org": *orgPath}); err != nil {
		return err
	}

	org, err := readOrganization(*orgPath)
	if err != nil {
		return err
	}

	doc, assembly, err := a.service.Generate(ctx, *grantID, org)
	if err != nil {
		var assemblyErr *core.AssemblyError
		if errors.As(err, &assemblyErr) {
			_ = printJSON(map[string]any{"failures": failuresOf(assemblyErr.Assembly)})
		}
		return err
	}

	view, err := a.service.View(ctx, doc.ID)
	if err != nil {
		return err
	}
	return printJSON(struct {
		Application schema.ApplicationView  `json:"application"`
		Failures    map[string]failureOutput `json:"failures,omitempty"`
	}{view, failuresOf(assembly)})
}

func runRefine(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("refine")
	appID := fs.String("app", "", "application ID")
	section := fs.String("section", "", "section name")
	feedback := fs.String("feedback", "", "what to change (10-2000 characters)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"app": *appID, "section": *section}); err != nil {
		return err
	}

	_, refinement, err := a.service.Refine(ctx, *appID, *section, *feedback)
	if err != nil {
		return err
	}

	out := struct {
		Section  string `json:"section"`
		Text     string `json:"text"`
		Fallback bool   `json:"fallback"`
		Message  string `json:"message,omitempty"`
	}{Section: *section, Text: refinement.Text, Fallback: refinement.Fallback}
	if refinement.Fallback {
		out.Message = core.UserMessage(refinement.Cause)
	}
	return printJSON(out)
}

func runEdit(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("edit")
	appID := fs.String("app", "", "application ID")
	section := fs.String("section", "", "section name")
	text := fs.String("text", "", "new section text")
	file := fs.String("file", "", "read the new section text from a file ('-' for stdin)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"app": *appID, "section": *section}); err != nil {
		return err
	}
	if (*text == "") == (*file == "") {
		return usagef("exactly one of -text or -file is required")
	}

	body := *text
	if *file != "" {
		data, err := readInput(*file)
		if err != nil {
			return err
		}
		body = string(data)
	}

	doc, err := a.service.UpdateSections(ctx, *appID, schema.NewSectionMap(*section, body))
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"id": doc.ID, "version": doc.Version, "updated_at": doc.UpdatedAt})
}

func runStatus(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("status")
	appID := fs.String("app", "", "application ID")
	status := fs.String("set", "", "draft, in_review, submitted, won or lost")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"app": *appID, "set": *status}); err != nil {
		return err
	}

	doc, err := a.service.SetStatus(ctx, *appID, schema.Status(*status))
	if err != nil {
		return err
	}
	return printJSON(map[string]any{"id": doc.ID, "status": doc.Status, "version": doc.Version})
}

func runView(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("view")
	appID := fs.String("app", "", "application ID")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"app": *appID}); err != nil {
		return err
	}

	view, err := a.service.View(ctx, *appID)
	if err != nil {
		return err
	}
	return printJSON(view)
}

func runList(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("list"), args); err != nil {
		return err
	}

	docs, err := a.service.List(ctx)
	if err != nil {
		return err
	}

	type summary struct {
		ID       string        `json:"id"`
		GrantID  string        `json:"grant_id"`
		Status   schema.Status `json:"status"`
		Sections int           `json:"sections"`
		Version  int           `json:"version"`
		Updated  string        `json:"updated_at"`
	}
	out := make([]summary, 0, len(docs))
	for _, d := range docs {
		out = append(out, summary{
			ID:       d.ID,
			GrantID:  d.GrantID,
			Status:   d.Status,
			Sections: d.Sections.Len(),
			Version:  d.Version,
			Updated:  d.UpdatedAt.Format(time.RFC3339),
		})
	}
	return printJSON(out)
}

func runDelete(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("delete")
	appID := fs.String("app", "", "application ID")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"app": *appID}); err != nil {
		return err
	}

	if err := a.service.Delete(ctx, *appID); err != nil {
		return err
	}
	return printJSON(map[string]any{"id": *appID, "deleted": true})
}

func runSuggest(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("suggest")
	field := fs.String("field", "", "key_achievements, specific_needs, target_outcomes or community_impact")
	orgPath := fs.String("org", "", "organization YAML or JSON file (optional)")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"field": *field}); err != nil {
		return err
	}

	org := &schema.Organization{}
	if *orgPath != "" {
		loaded, err := readOrganization(*orgPath)
		if err != nil {
			return err
		}
		org = loaded
	}

	text, err := a.service.Suggest(ctx, schema.PersonalizationField(*field), org)
	if err != nil {
		return err
	}
	return printJSON(map[string]string{"field": *field, "suggestion": text})
}

func runSections(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("sections"), args); err != nil {
		return err
	}

	type section struct {
		Name     string `json:"name"`
		MinWords int    `json:"min_words"`
		MaxWords int    `json:"max_words"`
	}
	specs := a.catalog.Sections()
	out := make([]section, 0, len(specs))
	for _, s := range specs {
		out = append(out, section{Name: s.Name, MinWords: s.MinWords, MaxWords: s.MaxWords})
	}
	return printJSON(map[string]any{"version": a.catalog.Version(), "sections": out})
}

func runGrants(ctx context.Context, a *app, args []string) error {
	if err := parseFlags(newFlagSet("grants"), args); err != nil {
		return err
	}

	grants, err := a.store.ListGrants(ctx)
	if err != nil {
		return err
	}
	return printJSON(grants)
}

// seedFile is the layout of a grants seed file.
type seedFile struct {
	Grants []*schema.Grant `yaml:"grants"`
}

func runSeed(ctx context.Context, a *app, args []string) error {
	fs := newFlagSet("seed")
	path := fs.String("file", "", "YAML file with a top-level 'grants' list")
	if err := parseFlags(fs, args); err != nil {
		return err
	}
	if err := required(map[string]string{"file": *path}); err != nil {
		return err
	}

	data, err := readInput(*path)
	if err != nil {
		return err
	}
	var seed seedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return &core.ValidationError{Field: "file", Message: fmt.Sprintf("parse %s: %v", *path, err), Err: err}
	}

	ids := make([]string, 0, len(seed.Grants))
	for i, grant := range seed.Grants {
		if grant == nil || strings.TrimSpace(grant.Title) == "" {
			return &core.ValidationError{Field: "grants", Message: fmt.Sprintf("entry %d has no title", i)}
		}
		if grant.ID == "" {
			id, err := schema.NewGrantID()
			if err != nil {
				return fmt.Errorf("generate grant ID: %w", err)
			}
			grant.ID = id
		}
		if err := a.store.PutGrant(ctx, grant); err != nil {
			return err
		}
		ids = append(ids, grant.ID)
	}

	a.logger.Info("Grants seeded", "count", len(ids), "file", *path)
	return printJSON(map[string]any{"seeded": ids})
}

func readOrganization(path string) (*schema.Organization, error) {
	data, err := readInput(path)
	if err != nil {
		return nil, err
	}
	var org schema.Organization
	if err := yaml.Unmarshal(data, &org); err != nil {
		return nil, &core.ValidationError{Field: "organization", Message: fmt.Sprintf("parse %s: %v", path, err), Err: err}
	}
	return &org, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return data, nil
}
