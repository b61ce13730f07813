package catalog

import (
	"strings"
	"text/template"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// NotSpecified marks a value that is absent from the source data.
const NotSpecified = "Not specified"

var printer = message.NewPrinter(language.English)

// funcs are the helpers available to every catalog template.
func funcs() template.FuncMap {
	return template.FuncMap{
		"join":         join,
		"dollars":      Dollars,
		"count":        Count,
		"fundingRange": FundingRange,
		"location":     Location,
	}
}

// Dollars renders a whole-dollar amount with thousands separators.
func Dollars(v float64) string {
	return printer.Sprintf("$%.0f", v)
}

// Count renders an integer with thousands separators.
func Count(n int) string {
	return printer.Sprintf("%d", n)
}

// FundingRange renders a grant's amount bounds. Either bound may be absent;
// the bounds are display values and are not checked against each other.
func FundingRange(min, max *float64) string {
	switch {
	case min != nil && max != nil:
		return Dollars(*min) + " - " + Dollars(*max)
	case min != nil:
		return "From " + Dollars(*min)
	case max != nil:
		return "Up to " + Dollars(*max)
	default:
		return NotSpecified
	}
}

// Location joins city and state, skipping whichever is empty.
func Location(city, state string) string {
	parts := make([]string, 0, 2)
	if c := strings.TrimSpace(city); c != "" {
		parts = append(parts, c)
	}
	if s := strings.TrimSpace(state); s != "" {
		parts = append(parts, s)
	}
	if len(parts) == 0 {
		return NotSpecified
	}
	return strings.Join(parts, ", ")
}

func join(items []string, fallback string) string {
	if len(items) == 0 {
		return fallback
	}
	return strings.Join(items, ", ")
}
