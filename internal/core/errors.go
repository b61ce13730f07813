package core

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tyloni/oregon-grant-automation/internal/llm"
	"github.com/tyloni/oregon-grant-automation/pkg/schema"
)

// Error kinds matchable with errors.Is. Generation failures use the llm
// sentinels (llm.ErrRateLimited, llm.ErrProviderUnavailable,
// llm.ErrInvalidResponse).
var (
	ErrNotFound        = errors.New("not found")
	ErrSectionNotFound = errors.New("section not found")
	ErrUnknownField    = errors.New("unknown personalization field")
	ErrValidation      = errors.New("validation failed")
)

// ValidationError represents a validation failure.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Message)
	}
	return e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// newValidationError lifts a schema field error into a ValidationError.
func newValidationError(err error) *ValidationError {
	var fieldErr *schema.FieldError
	if errors.As(err, &fieldErr) {
		return &ValidationError{Field: fieldErr.Field, Message: fieldErr.Message, Err: err}
	}
	return &ValidationError{Message: err.Error(), Err: err}
}

// NotFoundError reports a missing application or grant.
type NotFoundError struct {
	Resource string
	ID       string
	Err      error
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// SectionNotFoundError reports a section key that is not in the document.
type SectionNotFoundError struct {
	Section   string
	Available []string
}

func (e *SectionNotFoundError) Error() string {
	return fmt.Sprintf("section %q not found (available: %s)", e.Section, strings.Join(e.Available, ", "))
}

func (e *SectionNotFoundError) Is(target error) bool {
	return target == ErrSectionNotFound
}

// UnknownFieldError reports a personalization field with no suggestion template.
type UnknownFieldError struct {
	Field string
}

func (e *UnknownFieldError) Error() string {
	return fmt.Sprintf("unknown personalization field %q", e.Field)
}

func (e *UnknownFieldError) Is(target error) bool {
	return target == ErrUnknownField
}

// LockError represents a failure to take or release a document lock.
type LockError struct {
	Operation string
	Message   string
	Err       error
}

func (e *LockError) Error() string {
	return fmt.Sprintf("lock %s: %s", e.Operation, e.Message)
}

func (e *LockError) Unwrap() error {
	return e.Err
}

// AssemblyError is returned when partial documents are not allowed and at
// least one section failed. The assembly is attached for inspection.
type AssemblyError struct {
	Assembly *Assembly
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("%d of %d sections failed to generate",
		len(e.Assembly.Failures), e.Assembly.Sections.Len())
}

// Unwrap exposes the first failure's cause so callers can test its kind.
func (e *AssemblyError) Unwrap() error {
	for _, name := range e.Assembly.Sections.Names() {
		if f, ok := e.Assembly.Failures[name]; ok && f.Err != nil {
			return f.Err
		}
	}
	return nil
}

// UserMessage maps an error to an explanation suitable for the person using
// the tool. Rate limits are reported separately from transient outages.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, llm.ErrRateLimited):
		return "The AI service's usage limit has been reached. Please wait a while before trying again."
	case errors.Is(err, llm.ErrProviderUnavailable):
		return "The AI service is temporarily unavailable. Please try again in a moment."
	case errors.Is(err, llm.ErrInvalidResponse):
		return "The AI service returned an unusable response. Please try again."
	case errors.Is(err, ErrSectionNotFound):
		return "That section does not exist in this application."
	case errors.Is(err, ErrUnknownField):
		return "Suggestions are not available for that field."
	case errors.Is(err, ErrNotFound):
		return "The requested application or grant could not be found."
	case errors.Is(err, ErrValidation):
		var vErr *ValidationError
		if errors.As(err, &vErr) {
			return "Invalid input: " + vErr.Error()
		}
		return "Invalid input."
	default:
		return "Something went wrong. Please try again."
	}
}
