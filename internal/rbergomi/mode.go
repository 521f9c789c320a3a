// Package rbergomi prices European calls under the rough Bergomi model by
// Monte-Carlo. It builds variance paths with the hybrid kernel scheme,
// sweeps a parameter grid per sample with incremental recomputation, and
// reduces per-worker sums into prices, standard errors and implied
// volatilities.
package rbergomi

import (
	"fmt"
	"strings"
)

// PayoffMode selects how one sample's payoff is computed.
type PayoffMode int

const (
	// PayoffConditional prices the call in closed form conditional on the
	// variance path. It has much lower variance and is the default.
	PayoffConditional PayoffMode = iota
	// PayoffTerminal simulates the terminal spot and takes max(S-K, 0).
	PayoffTerminal
)

// String returns the flag spelling of the mode.
func (m PayoffMode) String() string {
	switch m {
	case PayoffConditional:
		return "conditional"
	case PayoffTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("PayoffMode(%d)", int(m))
	}
}

// NeedsSpotDriver reports whether the mode consumes the third Gaussian
// vector.
func (m PayoffMode) NeedsSpotDriver() bool { return m == PayoffTerminal }

// ParsePayoffMode accepts "conditional" (alias "rv") and "terminal"
// (alias "full").
func ParsePayoffMode(s string) (PayoffMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "conditional", "rv", "":
		return PayoffConditional, nil
	case "terminal", "full":
		return PayoffTerminal, nil
	default:
		return 0, fmt.Errorf("unknown payoff mode %q", s)
	}
}
