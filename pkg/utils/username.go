package utils

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MinDisplayNameLength = 1
	MaxDisplayNameLength = 32
	MinAge               = 13
	MaxAge               = 120
	maxFilterLength      = 64
)

var displayNameRegex = regexp.MustCompile(`^[\p{L}\p{N}_ .'-]+$`)

// ValidateDisplayName validates the name shown to partners.
// Rules: 1-32 characters, letters, numbers, spaces and _ . ' - only.
func ValidateDisplayName(name string) error {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)

	if n < MinDisplayNameLength {
		return &ValidationError{Field: "display_name", Message: "Display name is required"}
	}
	if n > MaxDisplayNameLength {
		return &ValidationError{Field: "display_name", Message: "Display name must be at most 32 characters"}
	}
	if !displayNameRegex.MatchString(name) {
		return &ValidationError{Field: "display_name", Message: "Display name contains unsupported characters"}
	}
	return nil
}

// ValidateAge accepts zero (not given yet) or an age in [13, 120].
func ValidateAge(age int) error {
	if age == 0 {
		return nil
	}
	if age < MinAge || age > MaxAge {
		return &ValidationError{Field: "age", Message: "Age must be between 13 and 120"}
	}
	return nil
}

// ValidateProfileField bounds free-form profile values such as language and country.
func ValidateProfileField(field, value string) error {
	if utf8.RuneCountInString(strings.TrimSpace(value)) > maxFilterLength {
		return &ValidationError{Field: field, Message: field + " is too long"}
	}
	return nil
}

// NormalizeProfileValue lowercases and trims a profile value for storage and matching.
func NormalizeProfileValue(v string) string {
	return strings.ToLower(strings.TrimSpace(v))
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
