package errors

import (
	"errors"
	"fmt"
)

// Error is a structured error carrying an ErrorCode alongside a message and an
// optional wrapped cause. It participates in the standard errors.Is/errors.As
// chains so callers can classify failures without string matching.
type Error struct {
	// Code classifies the failure.
	Code ErrorCode

	// Message is a human-readable description. It must never contain secret values.
	Message string

	// Err is the wrapped cause, if any.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap annotates err with a code and message while preserving the chain.
// Returns nil if err is nil.
func Wrap(code ErrorCode, err error, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// Wrapf annotates err with a code and a formatted message.
func Wrapf(code ErrorCode, err error, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Err: err}
}

// Code extracts the ErrorCode from an error chain.
// Returns CodeUnknown when the chain contains no *Error.
func Code(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// HasCode reports whether the error chain contains an *Error with the given code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var e *Error
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}

// Is re-exports errors.Is so callers do not need to import both packages.
func Is(err, target error) bool { return errors.Is(err, target) }

// As re-exports errors.As so callers do not need to import both packages.
func As(err error, target any) bool { return errors.As(err, target) }
