package schema

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// FieldError reports a single field failing its constraints.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateFeedback checks refinement feedback length after trimming.
func ValidateFeedback(feedback string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(feedback))
	if n < FeedbackMin || n > FeedbackMax {
		return &FieldError{
			Field:   "feedback",
			Message: fmt.Sprintf("must be %d-%d characters, got %d", FeedbackMin, FeedbackMax, n),
		}
	}
	return nil
}

// Validate checks the refinement request's own constraints. Whether the
// section exists is decided against a document, not here.
func (r *RefinementRequest) Validate() error {
	if strings.TrimSpace(r.SectionName) == "" {
		return &FieldError{Field: "section_name", Message: "is required"}
	}
	return ValidateFeedback(r.Feedback)
}

// ValidateOrganization checks the organization snapshot used for generation.
func ValidateOrganization(o *Organization) error {
	if o == nil {
		return &FieldError{Field: "organization", Message: "is required"}
	}
	if err := checkLength("organization_name", o.Name, OrganizationNameMin, OrganizationNameMax); err != nil {
		return err
	}
	if strings.TrimSpace(o.Type) == "" {
		return &FieldError{Field: "organization_type", Message: "is required"}
	}
	if err := checkLength("city", o.City, CityMin, CityMax); err != nil {
		return err
	}
	if err := checkLength("mission_statement", o.MissionStatement, MissionMin, MissionMax); err != nil {
		return err
	}
	if o.CurrentEnrollment != nil && *o.CurrentEnrollment < 0 {
		return &FieldError{Field: "current_enrollment", Message: "must be >= 0"}
	}
	if o.OperatingBudget != nil && *o.OperatingBudget < 0 {
		return &FieldError{Field: "operating_budget", Message: "must be >= 0"}
	}
	if o.StaffCount != nil && *o.StaffCount < 0 {
		return &FieldError{Field: "staff_count", Message: "must be >= 0"}
	}
	return nil
}

// ValidateSectionSpec validates a catalog entry.
func ValidateSectionSpec(s *SectionSpec) error {
	if strings.TrimSpace(s.Name) == "" {
		return &FieldError{Field: "name", Message: "is required"}
	}
	if s.MinWords < 0 || s.MaxWords < s.MinWords {
		return &FieldError{
			Field:   s.Name,
			Message: fmt.Sprintf("invalid word range %d-%d", s.MinWords, s.MaxWords),
		}
	}
	if strings.TrimSpace(s.Instruction) == "" {
		return &FieldError{Field: s.Name, Message: "instruction is required"}
	}
	return nil
}

func checkLength(field, value string, min, max int) error {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	if n < min || n > max {
		return &FieldError{
			Field:   field,
			Message: fmt.Sprintf("must be %d-%d characters", min, max),
		}
	}
	return nil
}
