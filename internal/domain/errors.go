// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Error taxonomy roots. Every error the orchestrator returns to a caller wraps
// exactly one of these so the API layer can map it with errors.Is.
var (
	// ErrValidation is returned when caller input is missing or malformed.
	// Validation failures are rejected synchronously and never create a task.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned for unknown task ids and for resource keys the
	// external source does not recognise.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when an operation does not fit the task's
	// current state, e.g. an answer for a task that is not waiting for one.
	ErrConflict = errors.New("conflict")

	// ErrTransientExternal wraps network and upstream site failures.
	// They surface as a failed task and are never retried automatically.
	ErrTransientExternal = errors.New("external source error")

	// ErrStateCorruption marks an internal consistency violation between the
	// task store and the challenge registry.
	ErrStateCorruption = errors.New("internal state corruption")
)

// Specific errors wrapping the taxonomy roots.
var (
	ErrInvalidResourceKey      = fmt.Errorf("%w: invalid resource key", ErrValidation)
	ErrEmptyResourceKey        = fmt.Errorf("%w: resource key cannot be empty", ErrValidation)
	ErrEmptyAnswer             = fmt.Errorf("%w: challenge answer cannot be empty", ErrValidation)
	ErrEmptyTaskID             = fmt.Errorf("%w: task id cannot be empty", ErrValidation)
	ErrTaskNotFound            = fmt.Errorf("%w: task", ErrNotFound)
	ErrResourceNotFound        = fmt.Errorf("%w: resource", ErrNotFound)
	ErrArtifactNotFound        = fmt.Errorf("%w: artifact", ErrNotFound)
	ErrNotAwaitingChallenge    = fmt.Errorf("%w: task not awaiting challenge", ErrConflict)
	ErrAlreadyProcessing       = fmt.Errorf("%w: answer already being processed", ErrConflict)
	ErrArtifactNotReady        = fmt.Errorf("%w: artifact not ready", ErrConflict)
	ErrStaleChallenge          = fmt.Errorf("%w: challenge image has changed", ErrConflict)
	ErrChallengeSessionMissing = fmt.Errorf("%w: challenge session missing", ErrStateCorruption)
	ErrInvalidTransition       = errors.New("invalid status transition")
)

// ValidationError describes a single invalid input field.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// NewValidationError creates a ValidationError. A nil err defaults to ErrValidation.
func NewValidationError(field, message string, err error) *ValidationError {
	if err == nil {
		err = ErrValidation
	}
	return &ValidationError{Field: field, Message: message, Err: err}
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// Unwrap returns the wrapped sentinel so errors.Is(err, ErrValidation) holds.
func (e *ValidationError) Unwrap() error {
	return e.Err
}
