package schema

// Organization is the caller-supplied organization snapshot used for generation.
// Numeric fields are pointers so that "absent" and "zero" stay distinguishable.
type Organization struct {
	Name              string           `json:"organization_name" yaml:"organization_name"`
	Type              string           `json:"organization_type" yaml:"organization_type"`
	City              string           `json:"city" yaml:"city"`
	State             string           `json:"state,omitempty" yaml:"state,omitempty"`
	MissionStatement  string           `json:"mission_statement,omitempty" yaml:"mission_statement,omitempty"`
	CurrentEnrollment *int             `json:"current_enrollment,omitempty" yaml:"current_enrollment,omitempty"`
	OperatingBudget   *float64         `json:"operating_budget,omitempty" yaml:"operating_budget,omitempty"`
	StaffCount        *int             `json:"staff_count,omitempty" yaml:"staff_count,omitempty"`
	Personalization   *Personalization `json:"personalization,omitempty" yaml:"personalization,omitempty"`
}

// Personalization holds the optional free-text fields that sharpen a narrative.
type Personalization struct {
	KeyAchievements *string `json:"key_achievements,omitempty" yaml:"key_achievements,omitempty"`
	SpecificNeeds   *string `json:"specific_needs,omitempty" yaml:"specific_needs,omitempty"`
	TargetOutcomes  *string `json:"target_outcomes,omitempty" yaml:"target_outcomes,omitempty"`
	CommunityImpact *string `json:"community_impact,omitempty" yaml:"community_impact,omitempty"`
}

// OrganizationContext is the immutable organization half of a generation context.
// Descriptive fields are never absent; missing values are empty strings.
type OrganizationContext struct {
	Name         string
	Type         string
	City         string
	State        string
	Mission      string
	Enrollment   int
	Budget       float64
	Staff        int
	Achievements string
	Needs        string
	Outcomes     string
	Impact       string
}
