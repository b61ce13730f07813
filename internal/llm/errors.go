package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind categorizes a generation failure.
type Kind string

// Error kinds.
const (
	KindRateLimited         Kind = "rate_limited"
	KindProviderUnavailable Kind = "provider_unavailable"
	KindInvalidResponse     Kind = "invalid_response"
)

// Sentinels for errors.Is. Every *Error matches the sentinel of its Kind.
var (
	ErrRateLimited         = errors.New("rate limited")
	ErrProviderUnavailable = errors.New("provider unavailable")
	ErrInvalidResponse     = errors.New("invalid response")
)

// Error is a classified failure from the generation provider.
type Error struct {
	// Kind categorizes the error
	Kind Kind

	// Message is a human-readable error message
	Message string

	// StatusCode is the HTTP status code (if applicable)
	StatusCode int

	// Err is the underlying error
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("LLM %s error (code %d): %s", e.Kind, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("LLM %s error: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// HTTPStatusCode returns the upstream status, or 0 when there was none.
func (e *Error) HTTPStatusCode() int {
	return e.StatusCode
}

func (k Kind) sentinel() error {
	switch k {
	case KindRateLimited:
		return ErrRateLimited
	case KindProviderUnavailable:
		return ErrProviderUnavailable
	case KindInvalidResponse:
		return ErrInvalidResponse
	}
	return nil
}

// NewRateLimitedError creates a rate limit or quota error.
func NewRateLimitedError(code int, message string, err error) *Error {
	return &Error{
		Kind:       KindRateLimited,
		StatusCode: code,
		Message:    fmt.Sprintf("Provider rate limit or quota exceeded: %s", message),
		Err:        err,
	}
}

// NewUnavailableError creates an error for a provider that could not serve the call.
func NewUnavailableError(code int, message string, err error) *Error {
	return &Error{
		Kind:       KindProviderUnavailable,
		StatusCode: code,
		Message:    message,
		Err:        err,
	}
}

// NewNetworkError creates a network error.
func NewNetworkError(err error) *Error {
	return NewUnavailableError(0, "Failed to connect to the provider. Check your network connection.", err)
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(err error) *Error {
	return NewUnavailableError(0, "Request timed out. The model may be under heavy load.", err)
}

// NewInvalidResponseError creates an error for an empty or malformed completion.
func NewInvalidResponseError(message string) *Error {
	return &Error{
		Kind:    KindInvalidResponse,
		Message: message,
	}
}

// NewAPIError classifies a non-2xx provider response. 429 and any message
// mentioning a quota are rate limits; everything else is unavailability.
func NewAPIError(code int, message string, err error) *Error {
	if code == http.StatusTooManyRequests || mentionsQuota(message) {
		return NewRateLimitedError(code, message, err)
	}
	return NewUnavailableError(code, fmt.Sprintf("Provider API error: %s", message), err)
}

// statusCoder is implemented by provider errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatusCode() int
}

// Classify maps any provider error onto the error taxonomy. Errors that are
// already classified pass through unchanged.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var llmErr *Error
	if errors.As(err, &llmErr) {
		return llmErr
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return NewTimeoutError(err)
	}

	var sc statusCoder
	if errors.As(err, &sc) && sc.HTTPStatusCode() > 0 {
		return NewAPIError(sc.HTTPStatusCode(), err.Error(), err)
	}

	if mentionsQuota(err.Error()) {
		return NewRateLimitedError(0, err.Error(), err)
	}

	return NewNetworkError(err)
}

func mentionsQuota(message string) bool {
	return strings.Contains(strings.ToLower(message), "quota")
}
