// Package blackscholes holds the zero-rate Black–Scholes call formula and
// its inversion to implied volatility.
package blackscholes

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat/distuv"
)

// ErrNoConvergence is returned when no volatility reproduces the price,
// either because the price is outside the no-arbitrage bounds or because
// the solver ran out of iterations.
var ErrNoConvergence = errors.New("implied volatility did not converge")

const (
	// MaxIterations bounds the safeguarded Newton solver.
	MaxIterations = 100
	// PriceTolerance is the absolute pricing error at which the solver stops.
	PriceTolerance = 1e-13
	maxVol         = 20.0
)

// Call prices a European call with zero rates. sigma is the annualized
// volatility; the total standard deviation is sigma*sqrt(t).
func Call(spot, strike, t, sigma float64) float64 {
	if spot <= 0 {
		return 0
	}
	if strike <= 0 {
		return spot
	}
	sd := sigma * math.Sqrt(t)
	if sd <= 0 || math.IsNaN(sd) {
		return math.Max(spot-strike, 0)
	}
	d1 := (math.Log(spot/strike) + 0.5*sd*sd) / sd
	d2 := d1 - sd
	return spot*distuv.UnitNormal.CDF(d1) - strike*distuv.UnitNormal.CDF(d2)
}

// Vega is dCall/dsigma.
func Vega(spot, strike, t, sigma float64) float64 {
	sd := sigma * math.Sqrt(t)
	if spot <= 0 || strike <= 0 || sd <= 0 {
		return 0
	}
	d1 := (math.Log(spot/strike) + 0.5*sd*sd) / sd
	return spot * distuv.UnitNormal.Prob(d1) * math.Sqrt(t)
}

// ImpliedVol inverts Call for sigma with a Newton iteration kept inside a
// shrinking bisection bracket.
//
// Parameters:
//   - price: Observed call price.
//   - spot, strike, t: Contract terms.
//
// Returns:
//   - float64: The implied volatility, or NaN on failure.
//   - error: Wraps ErrNoConvergence on failure.
func ImpliedVol(price, spot, strike, t float64) (float64, error) {
	intrinsic := math.Max(spot-strike, 0)
	if math.IsNaN(price) || price <= intrinsic || price >= spot || t <= 0 {
		return math.NaN(), fmt.Errorf("%w: price %g outside (%g, %g)", ErrNoConvergence, price, intrinsic, spot)
	}

	lo, hi := 0.0, 1.0
	for Call(spot, strike, t, hi) < price {
		lo = hi
		hi *= 2
		if hi > maxVol {
			return math.NaN(), fmt.Errorf("%w: volatility above %g", ErrNoConvergence, maxVol)
		}
	}

	sigma := initialGuess(spot, strike, t)
	if sigma <= lo || sigma >= hi {
		sigma = 0.5 * (lo + hi)
	}
	for range MaxIterations {
		diff := Call(spot, strike, t, sigma) - price
		if math.Abs(diff) < PriceTolerance {
			return sigma, nil
		}
		if diff > 0 {
			hi = sigma
		} else {
			lo = sigma
		}
		next := sigma
		if v := Vega(spot, strike, t, sigma); v > 0 {
			next = sigma - diff/v
		}
		if next <= lo || next >= hi || next == sigma {
			next = 0.5 * (lo + hi)
		}
		if hi-lo < 1e-15*hi {
			return sigma, nil
		}
		sigma = next
	}
	return math.NaN(), fmt.Errorf("%w: %d iterations", ErrNoConvergence, MaxIterations)
}

// initialGuess is the Manaster–Koehler starting point, which makes the call
// price convex in sigma on the Newton path.
func initialGuess(spot, strike, t float64) float64 {
	m := math.Abs(math.Log(spot / strike))
	if m == 0 {
		return 0.2
	}
	return math.Sqrt(2 * m / t)
}
