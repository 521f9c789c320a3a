package apperrors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

// ColorProvider defines the interface for obtaining terminal color codes.
// This abstraction breaks the import cycle with cli.
type ColorProvider interface {
	Yellow() string
	Reset() string
}

// DefaultColorProvider provides no color codes (for non-terminal output).
type DefaultColorProvider struct{}

func (d DefaultColorProvider) Yellow() string { return "" }
func (d DefaultColorProvider) Reset() string  { return "" }

// HandleRunError formats and prints the status line of a failed run.
// It distinguishes between timeouts, cancellations, usage and input errors
// to give the user specific feedback.
//
// Parameters:
//   - err: The error that occurred.
//   - duration: How long the run lasted before it failed.
//   - out: The io.Writer to which the error message will be written.
//   - colors: Provider for terminal color codes (can be nil for no colors).
//
// Returns:
//   - int: The exit code for the error, see ExitCodeFor.
func HandleRunError(err error, duration time.Duration, out io.Writer, colors ColorProvider) int {
	if err == nil {
		return ExitSuccess
	}

	if colors == nil {
		colors = DefaultColorProvider{}
	}

	msgSuffix := ""
	if duration > 0 {
		msgSuffix = fmt.Sprintf(" after %s%s%s", colors.Yellow(), duration, colors.Reset())
	}

	code := ExitCodeFor(err)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fmt.Fprintf(out, "Status: Failure (Timeout). The execution limit was reached%s.\n", msgSuffix)
	case errors.Is(err, context.Canceled):
		fmt.Fprintf(out, "%sStatus: Canceled%s.%s\n", colors.Yellow(), msgSuffix, colors.Reset())
	case code == ExitErrorUsage, code == ExitErrorConfig:
		fmt.Fprintf(out, "Error: %v\n", err)
	case code == ExitErrorEmptyInput, code == ExitErrorSizeMismatch:
		fmt.Fprintf(out, "Status: Failure (invalid input). %v\n", err)
	case code == ExitErrorMismatch:
		fmt.Fprintf(out, "Status: Failure (inconsistent results). %v\n", err)
	default:
		fmt.Fprintf(out, "Status: Failure. An unexpected error occurred%s: %v\n", msgSuffix, err)
	}
	return code
}
