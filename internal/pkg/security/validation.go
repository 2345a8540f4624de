// Package security provides security utilities for input validation,
// sanitization, and sensitive data masking.
package security

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Validation limits for product queries.
const (
	MinQueryLength = 1

	// DefaultMaxQueryLength is the query length cap applied when the
	// caller does not supply a configured limit.
	DefaultMaxQueryLength = 100
)

// ValidationError represents a field validation error.
type ValidationError struct {
	Field      string
	Value      interface{}
	Constraint string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation failed for %s: %s (got: %v)", e.Field, e.Constraint, e.Value)
	}
	return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Constraint)
}

// denyListedPrefixes are script-protocol markers that must never appear in
// a product query. Matched case-insensitively anywhere in the text.
var denyListedPrefixes = []string{
	"javascript:",
	"vbscript:",
	"data:",
}

// eventHandlerRegex matches HTML event-handler attribute prefixes (onload=,
// onerror =, ...).
var eventHandlerRegex = regexp.MustCompile(`(?i)\bon[a-z]+\s*=`)

// ValidateQuery validates a product query string before any cache lookup or
// outbound call is made. maxLen <= 0 falls back to DefaultMaxQueryLength.
// Requirements: required, valid UTF-8, at most maxLen runes, and free of
// markup/script markers.
func ValidateQuery(query string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = DefaultMaxQueryLength
	}

	if query == "" {
		return &ValidationError{
			Field:      "product",
			Constraint: "required",
		}
	}

	if !utf8.ValidString(query) {
		return &ValidationError{
			Field:      "product",
			Constraint: "must be valid UTF-8",
		}
	}

	length := utf8.RuneCountInString(query)
	if length < MinQueryLength {
		return &ValidationError{
			Field:      "product",
			Value:      length,
			Constraint: fmt.Sprintf("minimum length is %d characters", MinQueryLength),
		}
	}

	if length > maxLen {
		return &ValidationError{
			Field:      "product",
			Value:      length,
			Constraint: fmt.Sprintf("maximum length is %d characters", maxLen),
		}
	}

	if strings.ContainsAny(query, "<>") {
		return &ValidationError{
			Field:      "product",
			Value:      SanitizeForLog(query),
			Constraint: "must not contain markup characters",
		}
	}

	lower := strings.ToLower(query)
	for _, prefix := range denyListedPrefixes {
		if strings.Contains(lower, prefix) {
			return &ValidationError{
				Field:      "product",
				Value:      SanitizeForLog(query),
				Constraint: "must not contain script markers",
			}
		}
	}

	if eventHandlerRegex.MatchString(query) {
		return &ValidationError{
			Field:      "product",
			Value:      SanitizeForLog(query),
			Constraint: "must not contain event-handler markers",
		}
	}

	return nil
}

// SanitizeQuery reduces a query to its allow-listed character class:
// letters of any script, digits, whitespace, and hyphen. Runs of whitespace
// collapse to a single space and the result is trimmed. Idempotent.
func SanitizeQuery(query string) string {
	if query == "" {
		return ""
	}

	stripped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) || r == '-' {
			return r
		}
		return -1
	}, query)

	return strings.Join(strings.Fields(stripped), " ")
}
