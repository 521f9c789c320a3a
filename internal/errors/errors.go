// Package apperrors defines structured application error types,
// allowing for a clear distinction between error classes (configuration,
// input, calculation, etc.) and for carrying the underlying cause.
//
// Error Wrapping Guidelines:
// This package follows Go's error wrapping conventions using fmt.Errorf with %w.
// All error types implement the Unwrap() method where they carry a cause, to
// support errors.Is() and errors.As().
package apperrors

import (
	"context"
	"errors"
	"fmt"
)

// Application exit codes define the standard exit statuses for the application.
// These codes are used to signal the outcome of the program execution to the OS.
const (
	ExitSuccess           = 0   // Indicates successful execution.
	ExitErrorGeneric      = 1   // Indicates an IO, calculation or worker failure.
	ExitErrorTimeout      = 2   // Indicates the operation timed out.
	ExitErrorMismatch     = 3   // Indicates the verify pass found inconsistent payoffs.
	ExitErrorConfig       = 4   // Indicates a configuration or parameter-domain error.
	ExitErrorUsage        = 5   // Indicates a wrong number of positional arguments.
	ExitErrorEmptyInput   = 17  // Indicates an empty parameter array.
	ExitErrorSizeMismatch = 18  // Indicates parameter arrays of different lengths.
	ExitErrorCanceled     = 130 // Indicates the operation was canceled (e.g., SIGINT).
)

// ExitCoder is implemented by errors that carry their own exit status.
// Packages that cannot be imported here (the parameter grid, for instance)
// use it to take part in ExitCodeFor.
type ExitCoder interface {
	ExitCode() int
}

// ConfigError represents a user configuration error, such as invalid flags or
// values. It indicates that the application cannot proceed due to incorrect user input.
type ConfigError struct {
	// Message explains the specific configuration error.
	Message string
}

// Error returns the error message for a ConfigError.
//
// Returns:
//   - string: The error message string.
func (e ConfigError) Error() string { return e.Message }

// NewConfigError creates a new ConfigError with a formatted message.
//
// Parameters:
//   - format: A format string (see fmt.Sprintf).
//   - a: Arguments to be formatted into the string.
//
// Returns:
//   - error: A new ConfigError instance containing the formatted message.
func NewConfigError(format string, a ...any) error {
	return ConfigError{Message: fmt.Sprintf(format, a...)}
}

// ArgumentCountError reports a command line with the wrong number of
// positional arguments.
type ArgumentCountError struct {
	// Got is the number of positionals received.
	Got int
	// Usage is the expected synopsis.
	Usage string
}

func (e ArgumentCountError) Error() string {
	return fmt.Sprintf("expected 0 or 5 positional arguments, got %d\nusage: %s", e.Got, e.Usage)
}

// IOError reports a file that could not be read or written.
type IOError struct {
	// Op is the failed operation ("open", "read", "parse", "write").
	Op string
	// Path is the file involved.
	Path string
	// Cause is the underlying error.
	Cause error
}

func (e IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Cause)
}

// Unwrap returns the underlying error.
func (e IOError) Unwrap() error { return e.Cause }

// NewIOError creates an IOError. It returns nil when cause is nil.
//
// Parameters:
//   - op: The failed operation.
//   - path: The file path.
//   - cause: The underlying error.
//
// Returns:
//   - error: The IOError, or nil.
func NewIOError(op, path string, cause error) error {
	if cause == nil {
		return nil
	}
	return IOError{Op: op, Path: path, Cause: cause}
}

// CalculationError encapsulates a pricing-run failure while preserving the
// original cause.
type CalculationError struct {
	// Cause is the underlying error that triggered this calculation error.
	Cause error
}

// Error returns the error message from the underlying cause.
//
// Returns:
//   - string: The error message string from the wrapped error.
func (e CalculationError) Error() string { return e.Cause.Error() }

// Unwrap returns the original wrapped error, allowing for error chain
// inspection (e.g., using errors.Is or errors.As).
//
// Returns:
//   - error: The underlying cause of the CalculationError.
func (e CalculationError) Unwrap() error { return e.Cause }

// WorkerPanicError carries a panic recovered inside a Monte-Carlo worker.
type WorkerPanicError struct {
	// Worker is the index of the worker that panicked.
	Worker int
	// Value is the recovered panic value.
	Value any
	// Stack is the goroutine stack at the time of the panic.
	Stack []byte
}

func (e *WorkerPanicError) Error() string {
	return fmt.Sprintf("worker %d panicked: %v", e.Worker, e.Value)
}

// Unwrap exposes the panic value when it is itself an error.
func (e *WorkerPanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// ConsistencyError reports payoffs on which the incremental evaluator and a
// full-recompute evaluator disagreed.
type ConsistencyError struct {
	// Mismatches is the number of (sample, row) pairs that disagreed.
	Mismatches int64
	// Sample and Row locate the first mismatch.
	Sample int64
	Row    int
	// Got is the incremental payoff, Want the full-recompute one.
	Got, Want float64
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("%d payoff mismatches between incremental and full recompute (first: sample %d row %d, got %.17g want %.17g)",
		e.Mismatches, e.Sample, e.Row, e.Got, e.Want)
}

// ServerError represents errors that occur in the HTTP server component.
// It wraps an underlying error with additional context specific to the server operation.
type ServerError struct {
	// Message is a descriptive message about the server error.
	Message string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the error message for a ServerError.
// It combines the descriptive message and the underlying cause if present.
func (e ServerError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e ServerError) Unwrap() error { return e.Cause }

// NewServerError creates a new ServerError with a message and optional cause.
//
// Parameters:
//   - message: A description of the error context.
//   - cause: The underlying error that occurred (can be nil).
//
// Returns:
//   - error: A new ServerError instance.
func NewServerError(message string, cause error) error {
	return ServerError{Message: message, Cause: cause}
}

// IsContextError reports whether err is a cancellation or an expired
// deadline rather than a failure of the run itself.
func IsContextError(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ValidationError represents an error due to invalid input validation.
// It is used for API request validation and parameter-domain checks.
type ValidationError struct {
	// Field is the name of the field that failed validation.
	Field string
	// Message describes why validation failed.
	Message string
	// Value is the invalid value (optional, may be nil).
	Value any
}

// Error returns the error message for a ValidationError.
func (e ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation error for '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation error: %s", e.Message)
}

// NewValidationError creates a new ValidationError.
//
// Parameters:
//   - field: The name of the field that failed validation.
//   - message: A description of why validation failed.
//   - value: The invalid value (optional).
//
// Returns:
//   - error: A new ValidationError instance.
func NewValidationError(field, message string, value any) error {
	return ValidationError{Field: field, Message: message, Value: value}
}

// ExitCodeFor maps an error to the process exit status.
//
// Parameters:
//   - err: The error returned by a run, possibly wrapped.
//
// Returns:
//   - int: The exit code; ExitSuccess for a nil error.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var (
		coder       ExitCoder
		argErr      ArgumentCountError
		cfgErr      ConfigError
		valErr      ValidationError
		consistency *ConsistencyError
	)
	switch {
	case errors.Is(err, context.Canceled):
		return ExitErrorCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return ExitErrorTimeout
	case errors.As(err, &argErr):
		return ExitErrorUsage
	case errors.As(err, &coder):
		return coder.ExitCode()
	case errors.As(err, &cfgErr), errors.As(err, &valErr):
		return ExitErrorConfig
	case errors.As(err, &consistency):
		return ExitErrorMismatch
	default:
		return ExitErrorGeneric
	}
}
