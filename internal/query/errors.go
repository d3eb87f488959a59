package query

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrDatabaseQuery wraps storage errors the engine does not recognize.
// Callers decide retry policy; the engine never retries.
var ErrDatabaseQuery = errors.New("database query error")

type (
	// ConfigError reports a broken filter or planner configuration. It is a
	// programmer error in the calling code, never user input, and must not be
	// retried.
	ConfigError struct {
		Message string
	}

	// ValidationError reports malformed caller input (bad range shape,
	// missing order or pagination config). Maps to HTTP 400.
	ValidationError struct {
		Field   string
		Message string
	}

	// PolicyError reports a request that is well formed but refused by an
	// engine policy, carrying the HTTP status the caller should surface.
	PolicyError struct {
		StatusCode int
		Message    string
	}
)

func (e *ConfigError) Error() string { return e.Message }

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}

	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *PolicyError) Error() string { return e.Message }

func newConfigError(format string, args ...any) *ConfigError {
	return &ConfigError{Message: fmt.Sprintf(format, args...)}
}

func newValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func newPolicyError(status int, format string, args ...any) *PolicyError {
	return &PolicyError{StatusCode: status, Message: fmt.Sprintf(format, args...)}
}

func newRetentionError(format string, args ...any) *PolicyError {
	return newPolicyError(http.StatusBadRequest, format, args...)
}

func newUnprocessableError(format string, args ...any) *PolicyError {
	return newPolicyError(http.StatusUnprocessableEntity, format, args...)
}
