// Package domainerrors provides coded errors for the service layer.
//
// Stores return sentinel errors (pkg/platform/sentinel) describing
// infrastructure facts; services translate those into coded domain errors
// that the transport layer can map onto HTTP responses. The code travels
// with the error through wrapping, so callers check codes rather than
// matching on message text.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for transport mapping and operator triage.
type Code string

const (
	// CodeValidation marks semantically invalid input (well-formed but wrong).
	CodeValidation Code = "validation"
	// CodeBadRequest marks malformed requests (unparseable body, missing body).
	CodeBadRequest Code = "bad_request"
	// CodeInvalidInput marks inputs rejected at a trust boundary (ID parsing).
	CodeInvalidInput Code = "invalid_input"
	// CodeInvariantViolation marks model constructor invariant failures.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeNotFound marks a missing entity.
	CodeNotFound Code = "not_found"
	// CodeConflict marks uniqueness and scheduling-slot violations.
	CodeConflict Code = "conflict"
	// CodePartialWrite marks an aggregate write left inconsistent after a
	// best-effort compensation attempt. Requires operator attention; must
	// stay distinguishable from plain conflicts and not-founds.
	CodePartialWrite Code = "partial_write"
	// CodeUnavailable marks storage connectivity failures.
	CodeUnavailable Code = "unavailable"
	// CodeTimeout marks cancelled or deadline-exceeded operations.
	CodeTimeout Code = "timeout"
	// CodeInternal marks everything else. Descriptions are suppressed at the
	// transport layer for this code.
	CodeInternal Code = "internal"
)

// Error is a coded domain error. It optionally wraps a cause.
type Error struct {
	Code    Code
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New constructs a coded error without a cause.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Wrap attaches a code and message to an underlying cause.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// HasCode reports whether err (or anything it wraps) carries the given code.
func HasCode(err error, code Code) bool {
	var domainErr *Error
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == code
}

// Is is a readability alias for HasCode used heavily in tests.
func Is(err error, code Code) bool {
	return HasCode(err, code)
}

// CodeOf returns the code of the outermost coded error, or CodeInternal when
// err carries no code.
func CodeOf(err error) Code {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return CodeInternal
}
