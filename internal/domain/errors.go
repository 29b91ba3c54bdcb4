package domain

import (
	"errors"
	"fmt"
	"strings"
)

// Common domain errors that can occur during decision operations.
var (
	// ErrInvalidState indicates that a State operation received invalid input.
	ErrInvalidState = errors.New("invalid state")

	// ErrKeyNotFound indicates that a requested state key does not exist.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidConfiguration indicates that configuration is invalid or incomplete.
	ErrInvalidConfiguration = errors.New("invalid configuration")

	// ErrUnknownSKU indicates that a SKU is not part of the quote it was
	// looked up in.
	ErrUnknownSKU = errors.New("unknown sku")
)

// StateError represents an error that occurred during State operations.
// It provides context about which key and operation caused the error.
type StateError struct {
	// Key is the state key that was involved in the failed operation.
	Key string

	// Operation describes what operation was being performed when the error occurred.
	Operation string

	// Err is the underlying error that caused the operation to fail.
	Err error
}

// Error implements the error interface for StateError.
func (e *StateError) Error() string {
	return fmt.Sprintf("state error: operation=%s, key=%s, err=%v", e.Operation, e.Key, e.Err)
}

// Unwrap returns the underlying error, supporting Go 1.13+ error unwrapping.
func (e *StateError) Unwrap() error { return e.Err }

// NewStateError creates a new StateError with the given details.
func NewStateError(key string, operation string, err error) *StateError {
	return &StateError{
		Key:       key,
		Operation: operation,
		Err:       err,
	}
}

// MissingKey returns the error a unit reports when a required key is absent.
func MissingKey[T any](key Key[T], operation string) *StateError {
	return NewStateError(key.name, operation, ErrKeyNotFound)
}

// ValidationError represents an error that occurred during validation.
// It can contain multiple validation failures.
type ValidationError struct {
	// Entity is the name of the entity that failed validation.
	Entity string

	// Errors contains the list of validation error messages.
	Errors []string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("validation error for %s: %s", e.Entity, e.Errors[0])
	}
	return fmt.Sprintf("validation errors for %s: %s", e.Entity, strings.Join(e.Errors, "; "))
}

// AddError adds a new error message to the validation error.
func (e *ValidationError) AddError(msg string) { e.Errors = append(e.Errors, msg) }

// HasErrors returns true if there are any validation errors.
func (e *ValidationError) HasErrors() bool { return len(e.Errors) > 0 }

// NewValidationError creates a new ValidationError for the given entity.
func NewValidationError(entity string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Errors: make([]string, 0),
	}
}

// Stage names a step of the quote pipeline.
type Stage string

// Pipeline stages, in execution order.
const (
	StageRetrieve  Stage = "retrieve"
	StageNormalize Stage = "normalize"
	StageEvidence  Stage = "evidence"
	StageRules     Stage = "rules"
	StageScoring   Stage = "scoring"
	StageSelect    Stage = "select"
	StageExplain   Stage = "explain"
)

// PipelineError reports a failed pipeline stage. It is the error half of
// the quote result; empty retrieval is not an error.
type PipelineError struct {
	Stage Stage
	Err   error
}

// Error implements the error interface for PipelineError.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline stage %s: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying error.
func (e *PipelineError) Unwrap() error { return e.Err }

// NewPipelineError wraps err with the stage it occurred in.
func NewPipelineError(stage Stage, err error) *PipelineError {
	return &PipelineError{Stage: stage, Err: err}
}
