package core

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tyloni/oregon-grant-automation/internal/catalog"
	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

func TestCompose(t *testing.T) {
	grant := qualityGrant()
	org := sunnyDays()
	org.Personalization = &schema.Personalization{
		KeyAchievements: schema.Ptr("Five-star QRIS rating"),
	}

	ctx := Compose(grant, org)

	assert.Equal(t, "Quality Improvement Grants", ctx.Grant.Title)
	assert.Equal(t, 5000.0, *ctx.Grant.AmountMin)
	assert.Equal(t, []string{"Licensed provider"}, ctx.Grant.Eligibility)
	assert.Equal(t, 40, ctx.Organization.Enrollment)
	assert.Equal(t, 180000.0, ctx.Organization.Budget)
	assert.Equal(t, DefaultState, ctx.Organization.State)
	assert.Equal(t, "Five-star QRIS rating", ctx.Organization.Achievements)
	assert.Empty(t, ctx.Organization.Needs)

	t.Run("context does not alias inputs", func(t *testing.T) {
		grant.EligibilityCriteria[0] = "changed"
		*grant.AmountMin = 1
		assert.Equal(t, "Licensed provider", ctx.Grant.Eligibility[0])
		assert.Equal(t, 5000.0, *ctx.Grant.AmountMin)
	})

	t.Run("absent fields are empty or zero", func(t *testing.T) {
		ctx := Compose(&schema.Grant{Title: "Bare"}, &schema.Organization{Name: "X", State: "WA"})
		assert.Nil(t, ctx.Grant.AmountMin)
		assert.Nil(t, ctx.Grant.AmountMax)
		assert.Zero(t, ctx.Organization.Enrollment)
		assert.Zero(t, ctx.Organization.Budget)
		assert.Zero(t, ctx.Organization.Staff)
		assert.Empty(t, ctx.Organization.Mission)
		assert.Empty(t, ctx.Organization.Impact)
		assert.Equal(t, "WA", ctx.Organization.State)
	})
}

func TestComposeForSuggestion(t *testing.T) {
	ex := ComposeForSuggestion(nil)
	assert.Equal(t, "the organization", ex.Name)
	assert.Equal(t, "Child Care Center", ex.Type)
	assert.Equal(t, "Portland", ex.City)
	assert.Equal(t, catalog.NotSpecified, ex.Budget)
	assert.Equal(t, catalog.NotSpecified, ex.Enrollment)
	assert.Equal(t, catalog.NotSpecified, ex.Staff)

	ex = ComposeForSuggestion(sunnyDays())
	assert.Equal(t, "Sunny Days", ex.Name)
	assert.Equal(t, "Bend", ex.City)
	assert.Equal(t, "$180,000", ex.Budget)
	assert.Equal(t, "40 children", ex.Enrollment)
	assert.Equal(t, "6 staff members", ex.Staff)

	zero := sunnyDays()
	zero.OperatingBudget = schema.Ptr(0.0)
	assert.Equal(t, catalog.NotSpecified, ComposeForSuggestion(zero).Budget)
}
