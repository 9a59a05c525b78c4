// Package domainerrors provides coded errors shared by every layer. Services
// create or wrap errors with a Code; transport translates codes to HTTP
// status; callers branch on HasCode instead of string matching.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error. Values double as the wire-level error code
// in JSON error envelopes, so they stay snake_case.
type Code string

const (
	CodeBadRequest         Code = "bad_request"
	CodeInvalidInput       Code = "invalid_input"
	CodeValidation         Code = "validation_failed"
	CodeNotFound           Code = "not_found"
	CodeConflict           Code = "conflict"
	CodeInvariantViolation Code = "invariant_violation"
	CodeTimeout            Code = "timeout"
	CodeInternal           Code = "internal_error"
)

// DomainError carries a code, a human-readable message, an optional cause,
// and optional structured details (e.g. the authoritative current state
// attached to a conflict so the caller can retry against fresh data).
type DomainError struct {
	Code    Code
	Message string
	Err     error
	details map[string]any
}

func New(code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message}
}

func Wrap(err error, code Code, message string) *DomainError {
	return &DomainError{Code: code, Message: message, Err: err}
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error { return e.Err }

// Is makes two DomainErrors equivalent when their codes match, so
// errors.Is(err, dErrors.New(dErrors.CodeConflict, "")) works through wraps.
func (e *DomainError) Is(target error) bool {
	var de *DomainError
	if errors.As(target, &de) {
		return e.Code == de.Code
	}
	return false
}

// HasCode reports whether err (or anything it wraps) is a DomainError with
// the given code.
func HasCode(err error, code Code) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf extracts the code from err, defaulting to CodeInternal for plain
// errors so transport never leaks internals.
func CodeOf(err error) Code {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// MessageOf extracts the message from err when it is a DomainError.
func MessageOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Message
	}
	return ""
}

// Add attaches a structured detail to a DomainError and returns it. Non-domain
// errors are returned unchanged.
func Add(err error, key string, value any) error {
	var de *DomainError
	if errors.As(err, &de) {
		if de.details == nil {
			de.details = make(map[string]any)
		}
		de.details[key] = value
	}
	return err
}

// Load returns the structured details attached to err, or nil.
func Load(err error) map[string]any {
	var de *DomainError
	if errors.As(err, &de) {
		return de.details
	}
	return nil
}

// Is re-exports errors.Is so call sites need a single errors import.
func Is(err, target error) bool { return errors.Is(err, target) }
