package domain

import (
	"regexp"
	"strings"
)

// resourceKeyPattern accepts patent publication numbers such as CN1234567A or
// CN202310123456.7: office prefix, digits, optional check digit, optional kind code.
var resourceKeyPattern = regexp.MustCompile(`^[A-Z]{2}\d{5,13}(\.[0-9X])?[A-Z]?\d?$`)

// NormalizeResourceKey upper-cases the key and strips all whitespace.
func NormalizeResourceKey(raw string) string {
	return strings.ToUpper(strings.Join(strings.Fields(raw), ""))
}

// ValidateResourceKey checks the syntax of an already normalised key.
func ValidateResourceKey(key string) error {
	if key == "" {
		return ErrEmptyResourceKey
	}
	if !resourceKeyPattern.MatchString(key) {
		return NewValidationError("resource_key", "has invalid format", ErrInvalidResourceKey)
	}
	return nil
}

// ArtifactFileName is the local file name an artifact for key is stored under.
func ArtifactFileName(key string) string {
	return key + ".pdf"
}
