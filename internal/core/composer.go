package core

import (
	"strings"

	"github.com/tyloni/oregon-grant-automation/internal/catalog"
	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

// DefaultState is used when the organization does not name one.
const DefaultState = "OR"

// Defaults for the example organization shown to the suggestion prompts.
const (
	suggestionName = "the organization"
	suggestionType = "Child Care Center"
	suggestionCity = "Portland"
)

// Compose builds the shared generation context from a grant and an
// organization. Absent descriptive fields become empty strings and absent
// numbers become zero; nothing is invented.
func Compose(grant *schema.Grant, org *schema.Organization) schema.Context {
	gc := schema.GrantContext{
		Title:       grant.Title,
		SourceName:  grant.SourceName,
		AmountMin:   copyFloat(grant.AmountMin),
		AmountMax:   copyFloat(grant.AmountMax),
		Description: grant.Description,
		Eligibility: copyStrings(grant.EligibilityCriteria),
		Priorities:  copyStrings(grant.FundingPriorities),
	}

	oc := schema.OrganizationContext{
		Name:    org.Name,
		Type:    org.Type,
		City:    org.City,
		State:   strings.TrimSpace(org.State),
		Mission: org.MissionStatement,
	}
	if oc.State == "" {
		oc.State = DefaultState
	}
	if org.CurrentEnrollment != nil {
		oc.Enrollment = *org.CurrentEnrollment
	}
	if org.OperatingBudget != nil {
		oc.Budget = *org.OperatingBudget
	}
	if org.StaffCount != nil {
		oc.Staff = *org.StaffCount
	}
	if p := org.Personalization; p != nil {
		oc.Achievements = deref(p.KeyAchievements)
		oc.Needs = deref(p.SpecificNeeds)
		oc.Outcomes = deref(p.TargetOutcomes)
		oc.Impact = deref(p.CommunityImpact)
	}

	return schema.Context{Grant: gc, Organization: oc}
}

// ComposeForSuggestion builds the display-ready profile used by suggestion
// prompts. org may be nil or partially filled in.
func ComposeForSuggestion(org *schema.Organization) schema.ExampleOrganization {
	if org == nil {
		org = &schema.Organization{}
	}

	ex := schema.ExampleOrganization{
		Name:       orDefault(org.Name, suggestionName),
		Type:       orDefault(org.Type, suggestionType),
		City:       orDefault(org.City, suggestionCity),
		State:      orDefault(org.State, DefaultState),
		Mission:    strings.TrimSpace(org.MissionStatement),
		Enrollment: catalog.NotSpecified,
		Budget:     catalog.NotSpecified,
		Staff:      catalog.NotSpecified,
	}
	if org.CurrentEnrollment != nil {
		ex.Enrollment = catalog.Count(*org.CurrentEnrollment) + " children"
	}
	// A zero budget reads as "not provided" in suggestion prompts.
	if org.OperatingBudget != nil && *org.OperatingBudget != 0 {
		ex.Budget = catalog.Dollars(*org.OperatingBudget)
	}
	if org.StaffCount != nil {
		ex.Staff = catalog.Count(*org.StaffCount) + " staff members"
	}
	return ex
}

func orDefault(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
