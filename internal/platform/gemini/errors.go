package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrInvalidConfig is returned when the solver cannot be constructed.
	ErrInvalidConfig = errors.New("invalid gemini configuration")

	// ErrEmptyImage is returned when there is no image to solve.
	ErrEmptyImage = errors.New("captcha image cannot be empty")

	// ErrNoSuggestion is returned when the model produced no usable answer.
	ErrNoSuggestion = errors.New("model returned no suggestion")
)
