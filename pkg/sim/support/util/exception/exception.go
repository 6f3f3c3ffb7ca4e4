// Package exception provides custom error types and error handling utilities for ForgeSim.
// The simulation distinguishes exactly two error severities: fatal configuration/IO
// failures that must terminate the run, and recoverable conditions that are handled
// locally and surfaced only through diagnostics. Resource shortfalls and job health
// failures are not errors at all; they propagate as quantities and status flags.
package exception

import (
	"fmt"
	"runtime"
)

// SimError is a custom error type for failures inside the simulation runtime.
// It holds the module where the error occurred, a message, the wrapped original
// error, and a flag indicating whether the error must terminate the run.
type SimError struct {
	// Module indicates the module where the error occurred (e.g., "config", "telemetry", "plume").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped original error.
	OriginalErr error
	// fatal indicates whether the run must terminate (configuration/IO taxonomy).
	fatal bool
	// StackTrace is the stack trace at the time of the error (for debugging).
	StackTrace string
}

// NewSimError creates a new SimError instance.
//
// module: The module where the error occurred.
// message: The error message.
// originalErr: The original error to wrap (may be nil).
// fatal: Whether the run must terminate because of this error.
func NewSimError(module, message string, originalErr error, fatal bool) *SimError {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)

	return &SimError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		fatal:       fatal,
		StackTrace:  string(buf[:n]),
	}
}

// NewFatalError creates a SimError for the configuration/IO failure taxonomy:
// the run cannot continue without silently desynchronizing external collaborators.
func NewFatalError(module, message string, originalErr error) *SimError {
	return NewSimError(module, message, originalErr, true)
}

// NewSimErrorf creates a non-fatal SimError using a format string.
func NewSimErrorf(module, format string, a ...interface{}) *SimError {
	return NewSimError(module, fmt.Sprintf(format, a...), nil, false)
}

// Error implements the error interface.
// It returns the error's module, message, and the string representation of the original error.
func (e *SimError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the original error for errors.Unwrap.
func (e *SimError) Unwrap() error {
	return e.OriginalErr
}

// IsFatal returns whether this error must terminate the run.
func (e *SimError) IsFatal() bool {
	return e.fatal
}

// IsFatal determines if an error must terminate the run.
// Non-SimError values are treated as recoverable; the caller decides locally.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if se, ok := err.(*SimError); ok {
		return se.IsFatal()
	}
	return false
}

// ExtractErrorMessage extracts the error message string from an error.
// For SimError, it returns the cleaner Message field.
// Otherwise, it returns the standard Error() string.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if se, ok := err.(*SimError); ok {
		return se.Message
	}
	return err.Error()
}
