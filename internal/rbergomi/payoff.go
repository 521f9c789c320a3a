package rbergomi

import (
	"math"

	"github.com/agbru/rbergomi/internal/blackscholes"
)

// conditionalPayoff is E[(S_T - K)^+ | variance path]. Given the path, log
// S_T is Gaussian: the W1 part is known and the orthogonal part has total
// variance (1-rho^2) int v dt. Spot starts at 1 and rates are zero.
func conditionalPayoff(rho, strike, ivdt, isvdw float64) float64 {
	vol := math.Sqrt(math.Max((1-rho*rho)*ivdt, 0))
	spot := math.Exp(-0.5*rho*rho*ivdt + rho*isvdw)
	// vol is already the total standard deviation, hence maturity 1.
	return blackscholes.Call(spot, strike, 1, vol)
}

func terminalPayoff(logSpot, strike float64) float64 {
	return math.Max(math.Exp(logSpot)-strike, 0)
}
