// Package domainerrors defines the coded error taxonomy shared by services
// and transports. Services attach a Code to every business-rule failure so
// handlers can map errors to responses without string matching, and so tests
// can assert on the class of failure rather than its message.
//
// Stores do not use this package; they return pkg/platform/sentinel errors
// which services translate into coded errors at the domain boundary.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. The string values double as wire-level
// error identifiers in HTTP responses.
type Code string

const (
	// CodeValidation marks malformed or missing caller input.
	CodeValidation Code = "validation_error"
	// CodeInvalidInput marks input that fails parsing at a trust boundary
	// (e.g. an identifier that is not a UUID).
	CodeInvalidInput Code = "invalid_input"
	// CodeBadRequest marks requests that are structurally unprocessable.
	CodeBadRequest Code = "bad_request"
	// CodeNotFound marks references to records that do not exist.
	CodeNotFound Code = "not_found"
	// CodeConflict marks business-rule violations: self-targeting writes,
	// double-claimed ownership, transitions out of terminal states, and
	// optimistic-concurrency losses surfaced to a request caller.
	CodeConflict Code = "conflict"
	// CodeInvariantViolation marks model-level invariant breaches detected
	// by constructors and transition guards.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeForbidden marks authorization failures.
	CodeForbidden Code = "forbidden"
	// CodeInternal marks infrastructure failures the caller cannot act on.
	CodeInternal Code = "internal_error"
)

// Error is a domain error with a classification code and optional cause.
type Error struct {
	Code    Code
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// New creates a coded domain error.
func New(code Code, message string) error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded domain error with a formatted message.
func Newf(code Code, format string, args ...any) error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while preserving the cause
// chain for errors.Is/errors.As.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether any error in err's chain carries the given code.
func HasCode(err error, code Code) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the outermost domain error in err's chain,
// or CodeInternal when err carries no code.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}
