package app

import (
	"context"
	"os/signal"
	"syscall"
	"time"
)

// CancelFuncs holds the release functions of a run context.
type CancelFuncs struct {
	// CancelTimeout releases the deadline timer.
	CancelTimeout context.CancelFunc
	// StopSignals stops listening for SIGINT and SIGTERM.
	StopSignals context.CancelFunc
}

// Cleanup calls both functions. It is meant to be deferred.
func (c *CancelFuncs) Cleanup() {
	if c.StopSignals != nil {
		c.StopSignals()
	}
	if c.CancelTimeout != nil {
		c.CancelTimeout()
	}
}

// SetupLifecycle derives the context of a pricing run: it is canceled when
// timeout elapses or when the process receives SIGINT or SIGTERM, whichever
// comes first. A canceled run exits with 130, a timed-out one with 2.
//
// Parameters:
//   - ctx: The parent context.
//   - timeout: The run deadline.
//
// Returns:
//   - context.Context: The run context.
//   - *CancelFuncs: Release functions; defer Cleanup.
func SetupLifecycle(ctx context.Context, timeout time.Duration) (context.Context, *CancelFuncs) {
	ctx, cancelTimeout := context.WithTimeout(ctx, timeout)
	ctx, stopSignals := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	return ctx, &CancelFuncs{CancelTimeout: cancelTimeout, StopSignals: stopSignals}
}
