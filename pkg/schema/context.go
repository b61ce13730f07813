package schema

// Context is the immutable merged view of grant and organization data shared
// by every section prompt of one document.
type Context struct {
	Grant        GrantContext
	Organization OrganizationContext
}

// ExampleOrganization is the display-ready organization profile used when
// suggesting personalization text from partial data. Every field is already
// rendered, so absent values carry an explicit marker instead of a zero.
type ExampleOrganization struct {
	Name       string
	Type       string
	City       string
	State      string
	Mission    string
	Enrollment string
	Budget     string
	Staff      string
}
