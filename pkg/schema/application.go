package schema

import "time"

// ApplicationDocument is the living, partially generated, partially edited
// narrative for one grant application.
type ApplicationDocument struct {
	ID        string     `json:"id" yaml:"id"`
	GrantID   string     `json:"grant_id" yaml:"grant_id"`
	Status    Status     `json:"status" yaml:"status"`
	Sections  SectionMap `json:"sections" yaml:"sections"`
	Version   int        `json:"version" yaml:"version"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"updated_at"`
}

// Clone returns a deep copy of the document.
func (d *ApplicationDocument) Clone() *ApplicationDocument {
	if d == nil {
		return nil
	}
	clone := *d
	clone.Sections = d.Sections.Clone()
	return &clone
}

// ApplicationView is the shape handed to the presentation layer.
type ApplicationView struct {
	ID         string     `json:"id"`
	GrantID    string     `json:"grant_id"`
	GrantTitle string     `json:"grant_title"`
	Status     Status     `json:"status"`
	Sections   SectionMap `json:"sections"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewApplicationView builds the presentation shape of doc.
func NewApplicationView(doc *ApplicationDocument, grantTitle string) ApplicationView {
	return ApplicationView{
		ID:         doc.ID,
		GrantID:    doc.GrantID,
		GrantTitle: grantTitle,
		Status:     doc.Status,
		Sections:   doc.Sections.Clone(),
		CreatedAt:  doc.CreatedAt,
		UpdatedAt:  doc.UpdatedAt,
	}
}

// RefinementRequest asks for one section to be regenerated from feedback.
type RefinementRequest struct {
	SectionName string `json:"section_name" yaml:"section_name"`
	Feedback    string `json:"feedback" yaml:"feedback"`
}
