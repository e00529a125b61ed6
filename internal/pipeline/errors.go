package pipeline

import (
	"errors"
	"fmt"
)

// ErrCapabilityUnavailable marks a provider or model call failure (timeout,
// auth, rate limit, non-2xx). Callers catch it at the call site and apply the
// stage's documented fallback; it is never propagated raw out of a stage.
var ErrCapabilityUnavailable = errors.New("capability unavailable")

// ErrTaskNotFound is returned by status/cancel lookups for unknown request ids.
var ErrTaskNotFound = errors.New("task not found")

// ValidationError marks malformed input. Surfaced immediately; no stage runs.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for a named field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// ParseError marks a model response that failed to parse as the expected
// schema. Always recoverable via a documented fallback, never fatal.
type ParseError struct {
	Phase string
	Err   error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse failure in %s: %v", e.Phase, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StageFailure reports that a whole stage errored. Fatal for the request:
// the orchestrator stops and records which phase failed.
type StageFailure struct {
	Phase   string
	Message string
}

func (e *StageFailure) Error() string {
	return fmt.Sprintf("%s phase failed: %s", e.Phase, e.Message)
}
