package ports

import (
	"errors"
	"fmt"
)

// Provider failures are classified onto these sentinels so callers can
// branch with errors.Is without knowing which LLM backend answered.
var (
	ErrRateLimited          = errors.New("rate limited")
	ErrServiceUnavailable   = errors.New("service unavailable")
	ErrTimeout              = errors.New("operation timed out")
	ErrInvalidResponse      = errors.New("invalid response")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// LLMError ties a provider failure to the model and advisor operation that
// triggered it.
type LLMError struct {
	Model     string
	Operation string
	Err       error
}

func (e *LLMError) Error() string {
	return fmt.Sprintf("llm %s: %s: %v", e.Model, e.Operation, e.Err)
}

func (e *LLMError) Unwrap() error { return e.Err }

// NewLLMError wraps err with the model and operation it came from.
func NewLLMError(model, operation string, err error) *LLMError {
	return &LLMError{Model: model, Operation: operation, Err: err}
}
