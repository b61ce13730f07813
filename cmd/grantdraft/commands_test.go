package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tyloni/oregon-grant-automation/internal/catalog"
	"github.com/tyloni/oregon-grant-automation/internal/core"
	"github.com/tyloni/oregon-grant-automation/internal/llm"
	"github.com/tyloni/oregon-grant-automation/internal/repository"
)

const seedYAML = `grants:
  - id: GRANT-quality
    source_name: Oregon Early Learning Division
    title: Quality Improvement Grants
    amount_min: 5000
    amount_max: 25000
    eligibility_criteria:
      - Licensed provider
  - title: Rural Expansion Fund
    source_name: Ford Family Foundation
`

const orgYAML = `organization_name: Sunny Days
organization_type: Preschool
city: Bend
mission_statement: Play-based early learning for every child in Central Oregon.
current_enrollment: 40
operating_budget: 180000
staff_count: 6
`

// testApp wires a FileStore in a temp dir and a stub provider.
func testApp(t *testing.T) (*app, *llm.StubProvider) {
	t.Helper()

	cat, err := catalog.Default()
	require.NoError(t, err)

	stub := llm.NewStubProvider(nil)
	client, err := llm.NewClient(&llm.Config{}, stub)
	require.NoError(t, err)

	store, err := repository.NewFileStore(t.TempDir())
	require.NoError(t, err)

	service, err := core.NewService(core.ServiceDeps{
		Store:     store,
		Grants:    store,
		Generator: client,
		Catalog:   cat,
	})
	require.NoError(t, err)

	return &app{
		cfg:     &core.Config{},
		logger:  core.NopLogger(),
		catalog: cat,
		store:   store,
		service: service,
	}, stub
}

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCommandLifecycle(t *testing.T) {
	ctx := context.Background()
	a, stub := testApp(t)
	out := captureOutput(t)

	require.NoError(t, runSeed(ctx, a, []string{"-file", writeFile(t, "grants.yaml", seedYAML)}))
	var seeded struct {
		Seeded []string `json:"seeded"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &seeded))
	require.Len(t, seeded.Seeded, 2)
	assert.Equal(t, "GRANT-quality", seeded.Seeded[0])
	assert.Regexp(t, `^GRANT-`, seeded.Seeded[1])

	out.Reset()
	orgPath := writeFile(t, "org.yaml", orgYAML)
	require.NoError(t, runGenerate(ctx, a, []string{"-grant", "GRANT-quality", "-org", orgPath}))
	assert.Equal(t, len(a.catalog.Names()), stub.Calls())

	var generated struct {
		Application struct {
			ID         string            `json:"id"`
			GrantTitle string            `json:"grant_title"`
			Status     string            `json:"status"`
			Sections   map[string]string `json:"sections"`
		} `json:"application"`
		Failures map[string]any `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &generated))
	appID := generated.Application.ID
	assert.Regexp(t, `^APP-`, appID)
	assert.Equal(t, "Quality Improvement Grants", generated.Application.GrantTitle)
	assert.Equal(t, "draft", generated.Application.Status)
	assert.Len(t, generated.Application.Sections, len(a.catalog.Names()))
	assert.Empty(t, generated.Failures)

	out.Reset()
	require.NoError(t, runEdit(ctx, a, []string{"-app", appID, "-section", "need_statement", "-text", "Hand-written need."}))

	out.Reset()
	require.NoError(t, runStatus(ctx, a, []string{"-app", appID, "-set", "in_review"}))

	out.Reset()
	require.NoError(t, runRefine(ctx, a, []string{
		"-app", appID, "-section", "executive_summary", "-feedback", "Mention the outdoor classroom.",
	}))
	var refined struct {
		Text     string `json:"text"`
		Fallback bool   `json:"fallback"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &refined))
	assert.False(t, refined.Fallback)
	assert.NotEmpty(t, refined.Text)

	out.Reset()
	require.NoError(t, runView(ctx, a, []string{"-app", appID}))
	var view struct {
		Status   string            `json:"status"`
		Sections map[string]string `json:"sections"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &view))
	assert.Equal(t, "in_review", view.Status)
	assert.Equal(t, "Hand-written need.", view.Sections["need_statement"])
	assert.Equal(t, refined.Text, view.Sections["executive_summary"])

	out.Reset()
	require.NoError(t, runList(ctx, a, nil))
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, float64(4), listed[0]["version"])

	out.Reset()
	require.NoError(t, runDelete(ctx, a, []string{"-app", appID}))
	err := runView(ctx, a, []string{"-app", appID})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestCommandUsageErrors(t *testing.T) {
	ctx := context.Background()
	a, stub := testApp(t)
	captureOutput(t)

	tests := []struct {
		name string
		run  func(context.Context, *app, []string) error
		args []string
	}{
		{"generate without flags", runGenerate, nil},
		{"refine without section", runRefine, []string{"-app", "APP-x"}},
		{"edit with text and file", runEdit, []string{"-app", "APP-x", "-section", "s", "-text", "a", "-file", "b"}},
		{"view with stray argument", runView, []string{"-app", "APP-x", "extra"}},
		{"unknown flag", runList, []string{"-verbose"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run(ctx, a, tt.args)
			var usageErr *usageError
			assert.ErrorAs(t, err, &usageErr)
		})
	}
	assert.Zero(t, stub.Calls())
}

func TestSuggestCommand(t *testing.T) {
	ctx := context.Background()
	a, stub := testApp(t)
	out := captureOutput(t)

	stub.Respond = func(req llm.ChatRequest) (string, error) {
		return "Expanded outdoor learning to every classroom.", nil
	}
	require.NoError(t, runSuggest(ctx, a, []string{"-field", "key_achievements"}))

	var got map[string]string
	require.NoError(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "Expanded outdoor learning to every classroom.", got["suggestion"])

	err := runSuggest(ctx, a, []string{"-field", "favorite_color"})
	assert.ErrorIs(t, err, core.ErrUnknownField)
	assert.Equal(t, 1, stub.Calls())
}

func TestMissingKeyProvider(t *testing.T) {
	_, err := missingKeyProvider{}.Complete(context.Background(), llm.ChatRequest{})
	assert.ErrorIs(t, err, llm.ErrProviderUnavailable)
	assert.Contains(t, core.UserMessage(err), "temporarily unavailable")
}

func TestFindCommand(t *testing.T) {
	cmd, ok := findCommand("refine")
	require.True(t, ok)
	assert.Equal(t, "refine", cmd.name)

	_, ok = findCommand("publish")
	assert.False(t, ok)
}
