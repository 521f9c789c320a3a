// Package apperrors provides tests for application error types.
package apperrors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestConfigError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		err         error
		expected    string
		checkTypeAs bool
	}{
		{
			name:     "Error returns message",
			err:      ConfigError{Message: "invalid flag value"},
			expected: "invalid flag value",
		},
		{
			name:     "NewConfigError creates formatted error",
			err:      NewConfigError("invalid value %d for flag %s", 42, "--threshold"),
			expected: "invalid value 42 for flag --threshold",
		},
		{
			name:        "ConfigError type assertion",
			err:         NewConfigError("test error"),
			expected:    "test error",
			checkTypeAs: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if tt.err.Error() != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, tt.err.Error())
			}
			if tt.checkTypeAs {
				var configErr ConfigError
				if !errors.As(tt.err, &configErr) {
					t.Error("expected error to be ConfigError type")
				}
			}
		})
	}
}

func TestCalculationError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		cause       error
		expectedMsg string
		checkIs     error
		checkUnwrap bool
	}{
		{
			name:        "Error returns cause message",
			cause:       errors.New("division by zero"),
			expectedMsg: "division by zero",
		},
		{
			name:        "Unwrap returns cause",
			cause:       errors.New("original error"),
			expectedMsg: "original error",
			checkUnwrap: true,
		},
		{
			name:        "errors.Is works with wrapped error",
			cause:       context.Canceled,
			expectedMsg: "context canceled",
			checkIs:     context.Canceled,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := CalculationError{Cause: tt.cause}

			if err.Error() != tt.expectedMsg {
				t.Errorf("expected %q, got %q", tt.expectedMsg, err.Error())
			}

			if tt.checkUnwrap && err.Unwrap() != tt.cause {
				t.Error("Unwrap should return the original cause")
			}

			if tt.checkIs != nil && !errors.Is(err, tt.checkIs) {
				t.Errorf("errors.Is should find %v in the chain", tt.checkIs)
			}
		})
	}
}

func TestServerError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		message     string
		cause       error
		expectedMsg string
		checkUnwrap bool
		expectNil   bool
		checkTypeAs bool
	}{
		{
			name:        "Error with cause",
			message:     "failed to start",
			cause:       errors.New("connection refused"),
			expectedMsg: "failed to start: connection refused",
		},
		{
			name:        "Error without cause",
			message:     "server stopped",
			cause:       nil,
			expectedMsg: "server stopped",
		},
		{
			name:        "Unwrap returns cause",
			message:     "test",
			cause:       errors.New("network error"),
			expectedMsg: "test: network error",
			checkUnwrap: true,
		},
		{
			name:        "Unwrap returns nil when no cause",
			message:     "test",
			cause:       nil,
			expectedMsg: "test",
			checkUnwrap: true,
			expectNil:   true,
		},
		{
			name:        "NewServerError creates error",
			message:     "cannot listen on port 8080",
			cause:       errors.New("bind failed"),
			expectedMsg: "cannot listen on port 8080: bind failed",
			checkTypeAs: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var err error
			if tt.checkTypeAs {
				err = NewServerError(tt.message, tt.cause)
			} else {
				err = ServerError{Message: tt.message, Cause: tt.cause}
			}

			if err.Error() != tt.expectedMsg {
				t.Errorf("expected %q, got %q", tt.expectedMsg, err.Error())
			}

			if tt.checkTypeAs {
				var serverErr ServerError
				if !errors.As(err, &serverErr) {
					t.Error("expected error to be ServerError type")
				}
				if serverErr.Message != tt.message {
					t.Errorf("unexpected message: %s", serverErr.Message)
				}
			}

			if tt.checkUnwrap {
				serverErr := err.(ServerError)
				unwrapped := serverErr.Unwrap()
				if tt.expectNil && unwrapped != nil {
					t.Error("Unwrap should return nil when there's no cause")
				}
				if !tt.expectNil && unwrapped == nil {
					t.Error("Unwrap should return the cause")
				}
			}
		})
	}
}

func TestValidationError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name        string
		field       string
		message     string
		value       any
		expectedMsg string
		checkTypeAs bool
	}{
		{
			name:        "Error with field",
			field:       "n",
			message:     "must be positive",
			expectedMsg: "validation error for 'n': must be positive",
		},
		{
			name:        "Error without field",
			field:       "",
			message:     "invalid input",
			expectedMsg: "validation error: invalid input",
		},
		{
			name:        "NewValidationError creates error",
			field:       "algo",
			message:     "unknown algorithm",
			value:       "invalid",
			expectedMsg: "validation error for 'algo': unknown algorithm",
			checkTypeAs: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			var err error
			if tt.checkTypeAs {
				err = NewValidationError(tt.field, tt.message, tt.value)
			} else {
				err = ValidationError{Field: tt.field, Message: tt.message, Value: tt.value}
			}

			if err.Error() != tt.expectedMsg {
				t.Errorf("expected %q, got %q", tt.expectedMsg, err.Error())
			}

			if tt.checkTypeAs {
				var valErr ValidationError
				if !errors.As(err, &valErr) {
					t.Error("expected error to be ValidationError type")
				}
				if valErr.Field != tt.field || valErr.Value != tt.value {
					t.Errorf("unexpected validation error: %+v", valErr)
				}
			}
		})
	}
}

func TestIsContextError(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"context.Canceled", context.Canceled, true},
		{"context.DeadlineExceeded", context.DeadlineExceeded, true},
		{"wrapped context.Canceled", fmt.Errorf("simulation: %w", context.Canceled), true},
		{"regular error", errors.New("some error"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			result := IsContextError(tt.err)
			if result != tt.expected {
				t.Errorf("IsContextError(%v) = %v, expected %v", tt.err, result, tt.expected)
			}
		})
	}
}

func TestExitCodes(t *testing.T) {
	t.Parallel()
	codes := map[string]int{
		"ExitSuccess":           ExitSuccess,
		"ExitErrorGeneric":      ExitErrorGeneric,
		"ExitErrorTimeout":      ExitErrorTimeout,
		"ExitErrorMismatch":     ExitErrorMismatch,
		"ExitErrorConfig":       ExitErrorConfig,
		"ExitErrorUsage":        ExitErrorUsage,
		"ExitErrorEmptyInput":   ExitErrorEmptyInput,
		"ExitErrorSizeMismatch": ExitErrorSizeMismatch,
		"ExitErrorCanceled":     ExitErrorCanceled,
	}

	if ExitSuccess != 0 {
		t.Errorf("ExitSuccess should be 0, got %d", ExitSuccess)
	}
	if ExitErrorCanceled != 130 {
		t.Errorf("ExitErrorCanceled should be 130 (SIGINT convention), got %d", ExitErrorCanceled)
	}
	if ExitErrorUsage != 5 || ExitErrorEmptyInput != 17 || ExitErrorSizeMismatch != 18 {
		t.Errorf("input exit codes changed: usage=%d empty=%d size=%d", ExitErrorUsage, ExitErrorEmptyInput, ExitErrorSizeMismatch)
	}

	seen := make(map[int]string)
	for name, code := range codes {
		if existing, ok := seen[code]; ok {
			t.Errorf("duplicate exit code %d: %s and %s", code, existing, name)
		}
		seen[code] = name
	}
}

type codedError struct{ code int }

func (e codedError) Error() string { return fmt.Sprintf("coded %d", e.code) }
func (e codedError) ExitCode() int { return e.code }

func TestExitCodeFor(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"canceled", fmt.Errorf("run: %w", context.Canceled), ExitErrorCanceled},
		{"deadline", context.DeadlineExceeded, ExitErrorTimeout},
		{"argument count", ArgumentCountError{Got: 2, Usage: "rbergomi N M path outfile stem"}, ExitErrorUsage},
		{"exit coder", fmt.Errorf("load: %w", codedError{code: 17}), 17},
		{"config", NewConfigError("bad flag"), ExitErrorConfig},
		{"validation", NewValidationError("H", "must lie in (0, 1)", 1.5), ExitErrorConfig},
		{"consistency", &ConsistencyError{Mismatches: 1}, ExitErrorMismatch},
		{"io", NewIOError("open", "/nope", errors.New("no such file")), ExitErrorGeneric},
		{"worker panic", CalculationError{Cause: &WorkerPanicError{Worker: 2, Value: "boom"}}, ExitErrorGeneric},
		{"generic", errors.New("x"), ExitErrorGeneric},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := ExitCodeFor(tt.err); got != tt.want {
				t.Errorf("Expected exit code %d, got %d", tt.want, got)
			}
		})
	}
}

func TestIOError(t *testing.T) {
	t.Parallel()
	cause := errors.New("permission denied")
	err := NewIOError("write", "/tmp/out.txt", cause)
	if err.Error() != "write /tmp/out.txt: permission denied" {
		t.Errorf("Expected formatted message, got %q", err.Error())
	}
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
	if NewIOError("open", "x", nil) != nil {
		t.Error("Expected nil for a nil cause")
	}
}

func TestWorkerPanicError(t *testing.T) {
	t.Parallel()
	sentinel := errors.New("index out of range")
	err := &WorkerPanicError{Worker: 3, Value: sentinel}
	if !strings.Contains(err.Error(), "worker 3 panicked") {
		t.Errorf("Expected worker index in message, got %q", err.Error())
	}
	if !errors.Is(err, sentinel) {
		t.Error("Expected error panic values to unwrap")
	}
	if (&WorkerPanicError{Value: 42}).Unwrap() != nil {
		t.Error("Expected non-error panic values not to unwrap")
	}
}

func TestConsistencyError(t *testing.T) {
	t.Parallel()
	err := &ConsistencyError{Mismatches: 4, Sample: 7, Row: 1, Got: 0.5, Want: 0.25}
	msg := err.Error()
	for _, want := range []string{"4 payoff mismatches", "sample 7 row 1"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Expected %q in %q", want, msg)
		}
	}
}
