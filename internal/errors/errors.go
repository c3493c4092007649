// Package errors defines the structured error type connmon surfaces to users.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes. Each maps to a failure category the monitor can report.
const (
	ErrConfig    = "CONFIG"
	ErrConnect   = "CONNECT"
	ErrTransport = "TRANSPORT"
	ErrHealth    = "HEALTH"
	ErrCycle     = "CYCLE"
	ErrServer    = "SERVER"
)

// Error is a user-facing failure. Rendered as:
//
//	✗ <What failed>
//
//	  <Cause>
//
//	  <How to fix it>
type Error struct {
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

// New creates a structured error with the given code, message, and suggestion.
func New(code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}
}

// Wrap wraps err under the transport code, which is where most
// unexpected I/O failures originate.
func Wrap(err error, message string) *Error {
	return &Error{
		Code:    ErrTransport,
		Message: message,
		Cause:   err,
	}
}

// WrapWithCode wraps err with a specific code, message, and suggestion.
func WrapWithCode(err error, code, message, suggestion string) *Error {
	return &Error{
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
		Cause:      err,
	}
}

func (e *Error) Error() string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("✗ %s\n", e.Message))

	if e.Cause != nil {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Cause.Error()))
	}

	if e.Suggestion != "" {
		b.WriteString(fmt.Sprintf("\n  %s\n", e.Suggestion))
	}

	return b.String()
}

// Summary returns the message and cause on one line, for logs and records
// where the multi-line terminal rendering does not fit.
func (e *Error) Summary() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + Summarize(e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsCode reports whether err is a structured Error with the given code.
func IsCode(err error, code string) bool {
	if err == nil {
		return false
	}
	var cmErr *Error
	if errors.As(err, &cmErr) {
		return cmErr.Code == code
	}
	return false
}

// Summarize returns a single-line description of any error.
func Summarize(err error) string {
	if err == nil {
		return ""
	}
	var cmErr *Error
	if errors.As(err, &cmErr) {
		return cmErr.Summary()
	}
	return err.Error()
}
