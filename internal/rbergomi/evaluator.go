package rbergomi

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/agbru/rbergomi/internal/arena"
	"github.com/agbru/rbergomi/internal/entropy"
	"github.com/agbru/rbergomi/internal/grid"
	"github.com/agbru/rbergomi/internal/kernel"
	"github.com/agbru/rbergomi/internal/spectral"
)

// Evaluator turns one sample's Gaussian increments into one payoff per grid
// row. Between rows it keeps the intermediate path quantities and redoes
// only the stages the grid marks dirty.
//
// An Evaluator belongs to one worker: its buffers are overwritten on every
// call.
type Evaluator struct {
	n       int
	grid    *grid.Grid
	kernels *kernel.Cache
	conv    spectral.Convolver
	mode    PayoffMode
	full    bool

	// Path state. volterra[j] and scaled[j] are the driver at t_{j+1};
	// u[k] is the variance at t_k per unit of forward variance.
	y        []float64
	volterra []float64
	scaled   []float64
	u        []float64
	sqrtU    []float64

	h, dt, sdt float64
	// spotDiffusion is sum_k sqrt(u_k) sdt Z_k for the current rho.
	spotDiffusion float64
}

// EvaluatorFloats is the arena capacity NewEvaluator needs.
func EvaluatorFloats(n int) int { return 5 * n }

// NewEvaluator carves the path buffers of an n-step evaluator from a.
// With fullRecompute set, every row is treated as if H had changed.
func NewEvaluator(n int, g *grid.Grid, kernels *kernel.Cache, conv spectral.Convolver, mode PayoffMode, fullRecompute bool, a *arena.Bump[float64]) *Evaluator {
	return &Evaluator{
		n:        n,
		grid:     g,
		kernels:  kernels,
		conv:     conv,
		mode:     mode,
		full:     fullRecompute,
		y:        a.Alloc(n),
		volterra: a.Alloc(n),
		scaled:   a.Alloc(n),
		u:        a.Alloc(n),
		sqrtU:    a.Alloc(n),
	}
}

// Payoff returns the payoff of grid row i for sample s. Rows of one sample
// must be visited in increasing order starting at 0, which is what the
// dirty stages are relative to.
func (e *Evaluator) Payoff(i int, s *entropy.Sample) float64 {
	p := e.grid.At(i)
	stage := e.grid.Stage(i)
	if e.full {
		stage = grid.StageH
	}

	if stage >= grid.StageH {
		e.buildVolterra(p.H, s)
	}
	if stage >= grid.StageT {
		e.rescale(p.T)
	}
	if stage >= grid.StageEta {
		e.buildVariance(p.Eta)
	}
	if stage >= grid.StageRho && e.mode == PayoffTerminal {
		e.mixSpot(p.Rho, s)
	}

	ivdt, isvdw := e.integrals(p.Xi, s)
	return e.payoff(p, ivdt, isvdw)
}

// buildVolterra is the hybrid scheme on the unit interval:
//
//	volterra[j] = sqrt(2H) N^-H (conv(W1, kernel)[j] + What[j])
//	What = (rhoH W1 + sqrt(1-rhoH^2) W1perp) / sqrt(2H),  rhoH = sqrt(2H)/(H+1/2)
//
// What is the exact integral over the most recent step, correlated with
// that step's Brownian increment.
func (e *Evaluator) buildVolterra(h float64, s *entropy.Sample) {
	e.h = h
	e.conv.Convolve(e.y, s.W1, e.kernels.MustKernel(h))

	s2h := math.Sqrt(2 * h)
	rhoH := s2h / (h + 0.5)
	perp := math.Sqrt(math.Max(1-rhoH*rhoH, 0)) / s2h

	floats.AddScaledTo(e.volterra, e.y, rhoH/s2h, s.W1)
	floats.AddScaled(e.volterra, perp, s.W1Perp)
	floats.Scale(s2h*math.Pow(float64(e.n), -h), e.volterra)
}

// rescale maps the unit-interval driver to [0, T] by self-similarity.
func (e *Evaluator) rescale(t float64) {
	floats.ScaleTo(e.scaled, math.Pow(t, e.h), e.volterra)
	e.dt = t / float64(e.n)
	e.sdt = math.Sqrt(e.dt)
}

// buildVariance fills u[k] = exp(eta X(t_k) - eta^2 t_k^(2H) / 2) with
// X(t_0) = 0, so the variance path starts at exactly xi.
func (e *Evaluator) buildVariance(eta float64) {
	e.u[0], e.sqrtU[0] = 1, 1
	halfEta2 := 0.5 * eta * eta
	twoH := 2 * e.h
	for k := 1; k < e.n; k++ {
		x := eta*e.scaled[k-1] - halfEta2*math.Pow(float64(k)*e.dt, twoH)
		e.u[k] = math.Exp(x)
		e.sqrtU[k] = math.Exp(0.5 * x)
	}
}

func (e *Evaluator) mixSpot(rho float64, s *entropy.Sample) {
	e.spotDiffusion = e.sdt * (rho*floats.Dot(e.sqrtU, s.W1) +
		math.Sqrt(math.Max(1-rho*rho, 0))*floats.Dot(e.sqrtU, s.WPerp))
}

// integrals returns int v dt and int sqrt(v) dW1 for v = xi*u.
func (e *Evaluator) integrals(xi float64, s *entropy.Sample) (ivdt, isvdw float64) {
	ivdt = xi * e.dt * floats.Sum(e.u)
	isvdw = math.Sqrt(xi) * e.sdt * floats.Dot(e.sqrtU, s.W1)
	return ivdt, isvdw
}

func (e *Evaluator) payoff(p grid.Params, ivdt, isvdw float64) float64 {
	switch e.mode {
	case PayoffTerminal:
		return terminalPayoff(math.Sqrt(p.Xi)*e.spotDiffusion-0.5*ivdt, p.K)
	default:
		return conditionalPayoff(p.Rho, p.K, ivdt, isvdw)
	}
}

// VarianceAt returns v(t_k) = xi*u[k] for the last evaluated row.
func (e *Evaluator) VarianceAt(k int, xi float64) float64 { return xi * e.u[k] }
