package schema

import "time"

// Grant is the funding opportunity record as handed over by the grant provider.
// JSON-array columns are already decoded into ordered string slices.
type Grant struct {
	ID                    string     `json:"id" yaml:"id"`
	SourceName            string     `json:"source_name" yaml:"source_name"`
	SourceType            string     `json:"source_type,omitempty" yaml:"source_type,omitempty"`
	SourceURL             string     `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	Title                 string     `json:"title" yaml:"title"`
	Description           string     `json:"description,omitempty" yaml:"description,omitempty"`
	AmountMin             *float64   `json:"amount_min,omitempty" yaml:"amount_min,omitempty"`
	AmountMax             *float64   `json:"amount_max,omitempty" yaml:"amount_max,omitempty"`
	Deadline              *time.Time `json:"deadline,omitempty" yaml:"deadline,omitempty"`
	EligibilityCriteria   []string   `json:"eligibility_criteria,omitempty" yaml:"eligibility_criteria,omitempty"`
	FundingPriorities     []string   `json:"funding_priorities,omitempty" yaml:"funding_priorities,omitempty"`
	RequiredDocuments     []string   `json:"required_documents,omitempty" yaml:"required_documents,omitempty"`
	TargetPopulations     []string   `json:"target_populations,omitempty" yaml:"target_populations,omitempty"`
	GeographicRestriction string     `json:"geographic_restriction,omitempty" yaml:"geographic_restriction,omitempty"`
}

// GrantContext is the immutable grant half of a generation context.
//
// AmountMin and AmountMax are independently nullable display values. A range
// with min greater than max is carried through as-is.
type GrantContext struct {
	Title       string
	SourceName  string
	AmountMin   *float64
	AmountMax   *float64
	Description string
	Eligibility []string
	Priorities  []string
}
