package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/phrazzld/patentgate/internal/api/shared"
	"github.com/phrazzld/patentgate/internal/domain"
	"github.com/phrazzld/patentgate/internal/fetch"
	"github.com/phrazzld/patentgate/internal/sharelink"
	"github.com/phrazzld/patentgate/internal/task"
)

// MapErrorToStatusCode maps internal errors to appropriate HTTP status codes
// based on the error type. This prevents leaking internal error types or
// messages to clients.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, sharelink.ErrExpiredLink):
		return http.StatusGone

	case errors.Is(err, sharelink.ErrInvalidLink):
		return http.StatusForbidden

	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound

	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict

	case errors.Is(err, fetch.ErrBusy),
		errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return http.StatusServiceUnavailable

	// StateCorruption and everything unexpected
	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns a sanitized, user-friendly error message
// based on the error type. This prevents leaking sensitive internal details.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	var vErr *domain.ValidationError
	switch {
	case errors.As(err, &vErr):
		return "Invalid request: " + vErr.Error()

	case errors.Is(err, domain.ErrEmptyResourceKey):
		return "Resource key is required"
	case errors.Is(err, domain.ErrInvalidResourceKey):
		return "Invalid resource key"
	case errors.Is(err, domain.ErrEmptyAnswer):
		return "Challenge answer is required"
	case errors.Is(err, domain.ErrValidation):
		return "Invalid request"

	case errors.Is(err, domain.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, domain.ErrArtifactNotFound):
		return "File not found"
	case errors.Is(err, domain.ErrNotFound):
		return "Not found"

	case errors.Is(err, domain.ErrAlreadyProcessing):
		return "Answer already being processed"
	case errors.Is(err, domain.ErrNotAwaitingChallenge):
		return "Task not awaiting challenge"
	case errors.Is(err, domain.ErrArtifactNotReady):
		return "Artifact not ready"
	case errors.Is(err, domain.ErrConflict):
		return "Request conflicts with task state"

	case errors.Is(err, fetch.ErrBusy),
		errors.Is(err, task.ErrQueueFull),
		errors.Is(err, task.ErrQueueClosed):
		return "Server busy, try again later"

	case errors.Is(err, sharelink.ErrExpiredLink):
		return "Download link has expired"
	case errors.Is(err, sharelink.ErrInvalidLink):
		return "Invalid download link"

	case errors.Is(err, domain.ErrStateCorruption):
		return "Internal state error"

	default:
		return "An unexpected error occurred"
	}
}

// SanitizeValidationError turns a validator error into a short message that
// names the failing field without exposing struct names.
func SanitizeValidationError(err error) string {
	errMsg := err.Error()

	// e.g. "Key: 'SubmitAnswerRequest.Code' Error:Field validation for 'Code' failed on the 'required' tag"
	if strings.Contains(errMsg, "Field validation") {
		parts := strings.Split(errMsg, "Error:")
		if len(parts) >= 2 {
			fieldParts := strings.Split(parts[1], "'")
			if len(fieldParts) >= 3 {
				field := fieldParts[1]
				if len(fieldParts) >= 5 {
					return fmt.Sprintf("Invalid %s: %s", field, validationTagMessage(fieldParts[3]))
				}
				return fmt.Sprintf("Invalid %s", field)
			}
		}
	}

	return "Validation error"
}

func validationTagMessage(tag string) string {
	switch tag {
	case "required":
		return "required field"
	case "min":
		return "too short"
	case "max":
		return "too long"
	case "alphanum":
		return "letters and digits only"
	default:
		return "validation failed"
	}
}

// HandleAPIError writes the mapped status and safe message for err.
// A non-empty message overrides the safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	status := MapErrorToStatusCode(err)
	if message == "" {
		message = GetSafeErrorMessage(err)
	}

	var opts []shared.ResponseOption
	if errors.Is(err, sharelink.ErrExpiredLink) || errors.Is(err, sharelink.ErrInvalidLink) {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, status, message, err, opts...)
}
