package schema

// Status represents the lifecycle state of an application document.
type Status string

const (
	StatusDraft     Status = "draft"     // Freshly assembled, editable
	StatusInReview  Status = "in_review" // Being reviewed before submission
	StatusSubmitted Status = "submitted" // Sent to the funder
	StatusWon       Status = "won"       // Funded
	StatusLost      Status = "lost"      // Declined
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusInReview, StatusSubmitted, StatusWon, StatusLost:
		return true
	}
	return false
}

// PersonalizationField names a free-text organization field the suggester can fill.
type PersonalizationField string

const (
	FieldKeyAchievements PersonalizationField = "key_achievements"
	FieldSpecificNeeds   PersonalizationField = "specific_needs"
	FieldTargetOutcomes  PersonalizationField = "target_outcomes"
	FieldCommunityImpact PersonalizationField = "community_impact"
)

// PersonalizationFields returns the fixed enumeration in display order.
func PersonalizationFields() []PersonalizationField {
	return []PersonalizationField{
		FieldKeyAchievements,
		FieldSpecificNeeds,
		FieldTargetOutcomes,
		FieldCommunityImpact,
	}
}

// Valid reports whether f belongs to the fixed enumeration.
func (f PersonalizationField) Valid() bool {
	for _, known := range PersonalizationFields() {
		if f == known {
			return true
		}
	}
	return false
}

// ValidationLimits defines the constraints for caller-supplied fields.
const (
	FeedbackMin         = 10
	FeedbackMax         = 2000
	OrganizationNameMin = 1
	OrganizationNameMax = 200
	CityMin             = 1
	CityMax             = 100
	MissionMin          = 10
	MissionMax          = 1000
)

// Ptr returns a pointer to v. Handy for the optional fields on Grant and Organization.
func Ptr[T any](v T) *T {
	return &v
}
