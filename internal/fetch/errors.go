package fetch

import (
	"errors"
	"fmt"

	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/store"
)

var (
	// ErrBusy is returned when the job queue cannot take more work.
	ErrBusy = errors.New("fetch service busy")

	// ErrInvalidDependency is returned by New when a required dependency is nil.
	ErrInvalidDependency = errors.New("invalid dependency")

	errSkip = errors.New("skip update")
)

// ServiceError wraps errors from the orchestrator with context.
type ServiceError struct {
	// Operation is the operation that failed (e.g., "start_fetch", "submit_answer")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for ServiceError.
func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("fetch %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *ServiceError) Unwrap() error {
	return e.Err
}

// NewServiceError creates a ServiceError. Domain sentinels callers branch on
// are returned directly without wrapping.
func NewServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, store.ErrTaskNotFound):
		return domain.ErrTaskNotFound
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, ErrBusy):
		return err
	}

	return &ServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
