package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/ahrav/go-procure/internal/ports"
)

// Errors returned by providers before a request is sent or when the
// response carries no text.
var (
	ErrEmptyAPIKey   = errors.New("API key cannot be empty")
	ErrEmptyResponse = errors.New("empty response from provider")
)

// ErrorType classifies provider failures.
type ErrorType int

// Provider failure classes.
const (
	ErrorTypeUnknown ErrorType = iota
	ErrorTypeAuthentication
	ErrorTypeRateLimit
	ErrorTypeBadRequest
	ErrorTypeNotFound
	ErrorTypeServerError
	ErrorTypeContentPolicy
	ErrorTypeNetwork
	ErrorTypeTimeout
)

var errorTypeNames = map[ErrorType]string{
	ErrorTypeAuthentication: "authentication",
	ErrorTypeRateLimit:      "rate_limit",
	ErrorTypeBadRequest:     "bad_request",
	ErrorTypeNotFound:       "not_found",
	ErrorTypeServerError:    "server_error",
	ErrorTypeContentPolicy:  "content_policy",
	ErrorTypeNetwork:        "network",
	ErrorTypeTimeout:        "timeout",
}

// String returns the snake_case name of t, or "unknown".
func (t ErrorType) String() string {
	if s, ok := errorTypeNames[t]; ok {
		return s
	}
	return "unknown"
}

// ProviderError normalises a provider SDK error. It matches the ports
// sentinels with errors.Is so callers never import provider packages.
type ProviderError struct {
	Type       ErrorType
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	msg := e.Provider + " error"
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Type != ErrorTypeUnknown {
		msg += " [" + e.Type.String() + "]"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// Is maps the error class onto the ports sentinels.
func (e *ProviderError) Is(target error) bool {
	switch target {
	case ports.ErrRateLimited:
		return e.Type == ErrorTypeRateLimit
	case ports.ErrServiceUnavailable:
		return e.Type == ErrorTypeServerError || e.Type == ErrorTypeNetwork
	case ports.ErrTimeout:
		return e.Type == ErrorTypeTimeout
	case ports.ErrAuthenticationFailed:
		return e.Type == ErrorTypeAuthentication
	case ports.ErrInvalidResponse:
		return e.Type == ErrorTypeContentPolicy
	}
	return false
}

// IsRetryable reports whether the failure is transient.
func (e *ProviderError) IsRetryable() bool {
	switch e.Type {
	case ErrorTypeRateLimit, ErrorTypeServerError, ErrorTypeNetwork, ErrorTypeTimeout:
		return true
	}
	return false
}

// classifyStatus builds a ProviderError from an HTTP status code.
func classifyStatus(provider string, status int, message string, err error) *ProviderError {
	t := ErrorTypeUnknown
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		t = ErrorTypeAuthentication
	case status == http.StatusTooManyRequests:
		t = ErrorTypeRateLimit
	case status == http.StatusNotFound:
		t = ErrorTypeNotFound
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		t = ErrorTypeTimeout
	case status >= 500:
		t = ErrorTypeServerError
	case status >= 400:
		t = ErrorTypeBadRequest
	}
	return &ProviderError{Type: t, Provider: provider, StatusCode: status, Message: message, Err: err}
}

// classifyContext builds a ProviderError for a context failure, or returns
// nil when err is not one.
func classifyContext(provider string, err error) *ProviderError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &ProviderError{Type: ErrorTypeTimeout, Provider: provider, Message: "deadline exceeded", Err: err}
	case errors.Is(err, context.Canceled):
		return &ProviderError{Type: ErrorTypeNetwork, Provider: provider, Message: "request canceled", Err: err}
	}
	return nil
}

// IsRetryable reports whether err is worth retrying. Circuit-open and
// cancellation errors are not; unclassified errors are.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrCircuitOpen) || errors.Is(err, context.Canceled) {
		return false
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.IsRetryable()
	}
	return true
}
