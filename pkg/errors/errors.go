// Package errors provides structured error types for the hirecs tools.
//
// The package defines error codes and types that enable:
//   - Consistent error handling across CLI and server
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Error codes follow the clustering failure taxonomy: domain errors are
// invariant violations by the caller, parse errors come from the adjacency
// file front end, and I/O errors from the file layer. Numeric saturation is
// not an error and has no code: it is reported through the engine's sentinel
// weight.
//
// # Usage
//
//	err := errors.New(errors.ErrCodeParse, "invalid value at offset %d", pos)
//	if errors.Is(err, errors.ErrCodeParse) {
//	    // handle parse error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeIO, origErr, "read %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for the failure categories of a clustering run.
const (
	// Domain errors: caller-side invariant violations.
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeDuplicateNode Code = "DUPLICATE_NODE"
	ErrCodeUnknownNode   Code = "UNKNOWN_NODE"
	ErrCodeFinalized     Code = "FINALIZED_GRAPH"
	ErrCodeInvalidRange  Code = "INVALID_RANGE"
	ErrCodeAsymmetric    Code = "ASYMMETRIC_GRAPH"
	ErrCodeSelfLink      Code = "SELF_LINK"
	ErrCodeInvalidOption Code = "INVALID_OPTION"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"

	// Parse errors: adjacency file front end.
	ErrCodeParse          Code = "PARSE_ERROR"
	ErrCodeUnknownSection Code = "UNKNOWN_SECTION"
	ErrCodeEmptySection   Code = "EMPTY_SECTION"

	// Resource errors.
	ErrCodeNotFound Code = "NOT_FOUND"
	ErrCodeIO       Code = "IO_ERROR"

	// Internal errors: engine invariant violations, which are bugs.
	ErrCodeInternal Code = "INTERNAL_ERROR"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err carries the given error code.
// It unwraps the error chain to the first *Error and compares its code;
// codes of *Error values nested deeper in the chain are not examined.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
