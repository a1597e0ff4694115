// Package fault defines the shared error taxonomy used across the engine,
// extraction pipeline, and table writer. Callers classify failures with
// errors.Is against the sentinels below and select user-facing behavior by
// kind, never by implementation type.
package fault

import (
	"errors"
	"fmt"
)

// ErrNotConfigured marks a silently-degradable condition: the dependent
// feature (destination table, generation backend, transcription key) is
// absent and the step should be skipped, not failed.
var ErrNotConfigured = errors.New("not configured")

// ErrTimeout marks an external call that did not complete in time. The
// operation is retryable by the user; session state must not advance past
// the point of failure.
var ErrTimeout = errors.New("external timeout")

// ErrBadResponse marks a malformed or non-object response from an external
// service. Not retryable without new input.
var ErrBadResponse = errors.New("invalid external response")

// ErrAccessDenied marks a table write rejected for missing permission. The
// remediation (grant write access) is actionable by the user.
var ErrAccessDenied = errors.New("access denied")

// ErrWriteFailed marks a generic table write failure that is neither a
// timeout nor a permission problem.
var ErrWriteFailed = errors.New("write failed")

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError is a local, user-correctable input problem (schema field
// conflict, bad numeric bounds, malformed date). It re-prompts in place and
// never surfaces as a system error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Reason)
	}
	return fmt.Sprintf("validation: field %q: %s", e.Field, e.Reason)
}

// Validation builds a ValidationError for the given field.
func Validation(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
