// Package domain provides canonical error types shared across the platform.
package domain

import (
	"fmt"
	"net/http"
)

// ErrorType represents the category of a platform error.
type ErrorType string

const (
	// ErrorTypeClient indicates a malformed or invalid request.
	ErrorTypeClient ErrorType = "client"

	// ErrorTypeAuthentication indicates a missing or invalid token.
	ErrorTypeAuthentication ErrorType = "authentication"

	// ErrorTypeNotFound indicates a resource or service was not found.
	ErrorTypeNotFound ErrorType = "not_found"

	// ErrorTypeRateLimit indicates rate limiting was triggered.
	ErrorTypeRateLimit ErrorType = "rate_limit"

	// ErrorTypeDependency indicates a downstream service is unreachable,
	// timed out, or its circuit is open. Never retried automatically.
	ErrorTypeDependency ErrorType = "dependency"

	// ErrorTypeTransaction indicates a local write failed and was rolled
	// back before any event was published.
	ErrorTypeTransaction ErrorType = "transaction"

	// ErrorTypeMessaging indicates a publish-after-commit failure. The
	// local write stands; the event is lost.
	ErrorTypeMessaging ErrorType = "messaging"
)

// Error is a canonical platform error carrying the category, a
// human-readable message and optional context fields that are serialized
// into the JSON error body.
type Error struct {
	// Type is the category of error.
	Type ErrorType `json:"type"`

	// Message is the human-readable error message.
	Message string `json:"message"`

	// Service names the backend involved, when relevant.
	Service string `json:"service,omitempty"`

	// RetryAfter is the number of seconds until the caller may retry,
	// for rate-limit and circuit-open responses.
	RetryAfter int `json:"retry_after,omitempty"`

	// Details carries structured context (e.g. unavailable items).
	Details any `json:"details,omitempty"`

	// StatusCode overrides the default HTTP status for the type.
	StatusCode int `json:"-"`

	// Err is the wrapped cause, never exposed to callers verbatim.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatusCode returns the appropriate HTTP status code for this error.
func (e *Error) HTTPStatusCode() int {
	if e.StatusCode != 0 {
		return e.StatusCode
	}

	switch e.Type {
	case ErrorTypeClient:
		return http.StatusBadRequest
	case ErrorTypeAuthentication:
		return http.StatusUnauthorized
	case ErrorTypeNotFound:
		return http.StatusNotFound
	case ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case ErrorTypeDependency:
		return http.StatusServiceUnavailable
	case ErrorTypeTransaction, ErrorTypeMessaging:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// WithService attaches the backend service name.
func (e *Error) WithService(service string) *Error {
	e.Service = service
	return e
}

// WithRetryAfter attaches a retry-after hint in seconds.
func (e *Error) WithRetryAfter(seconds int) *Error {
	e.RetryAfter = seconds
	return e
}

// WithDetails attaches structured context to the error body.
func (e *Error) WithDetails(details any) *Error {
	e.Details = details
	return e
}

// WithStatusCode sets a specific HTTP status code.
func (e *Error) WithStatusCode(code int) *Error {
	e.StatusCode = code
	return e
}

// Wrap attaches the underlying cause.
func (e *Error) Wrap(err error) *Error {
	e.Err = err
	return e
}

// Convenience constructors for common errors.

// ErrClient creates an invalid-request error.
func ErrClient(message string) *Error {
	return &Error{Type: ErrorTypeClient, Message: message}
}

// ErrAuthentication creates an authentication error.
func ErrAuthentication(message string) *Error {
	return &Error{Type: ErrorTypeAuthentication, Message: message}
}

// ErrNotFound creates a not-found error.
func ErrNotFound(message string) *Error {
	return &Error{Type: ErrorTypeNotFound, Message: message}
}

// ErrRateLimit creates a rate-limit error.
func ErrRateLimit(message string) *Error {
	return &Error{Type: ErrorTypeRateLimit, Message: message}
}

// ErrDependency creates a dependency error.
func ErrDependency(message string) *Error {
	return &Error{Type: ErrorTypeDependency, Message: message}
}

// ErrTransaction creates a transaction-failure error.
func ErrTransaction(message string) *Error {
	return &Error{Type: ErrorTypeTransaction, Message: message}
}

// ErrMessaging creates a messaging-failure error.
func ErrMessaging(message string) *Error {
	return &Error{Type: ErrorTypeMessaging, Message: message}
}
