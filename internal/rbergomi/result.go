package rbergomi

import (
	"context"
	"encoding/json"
	"math"

	"github.com/agbru/rbergomi/internal/blackscholes"
	"github.com/agbru/rbergomi/internal/entropy"
	"github.com/agbru/rbergomi/internal/grid"
)

// Result is the priced outcome of one grid row.
type Result struct {
	grid.Params
	// Price is the Monte-Carlo estimate of the call price.
	Price float64 `json:"price"`
	// IV is the Black-Scholes implied volatility of Price, NaN when the
	// root-finder failed.
	IV float64 `json:"iv"`
	// IVErr explains a NaN IV. It wraps blackscholes.ErrNoConvergence.
	IVErr error `json:"-"`
	// Variance is the sample variance of the payoff.
	Variance float64 `json:"variance"`
	// StdErr is the Monte-Carlo standard error of Price.
	StdErr float64 `json:"stat"`
}

// MarshalJSON encodes a non-converged IV as null, since JSON has no NaN.
func (r Result) MarshalJSON() ([]byte, error) {
	type row struct {
		grid.Params
		Price    float64  `json:"price"`
		IV       *float64 `json:"iv"`
		IVError  string   `json:"iv_error,omitempty"`
		Variance float64  `json:"variance"`
		StdErr   float64  `json:"stat"`
	}
	out := row{Params: r.Params, Price: r.Price, Variance: r.Variance, StdErr: r.StdErr}
	if !math.IsNaN(r.IV) {
		out.IV = &r.IV
	}
	if r.IVErr != nil {
		out.IVError = r.IVErr.Error()
	}
	return json.Marshal(out)
}

// Aggregate turns summed payoffs into per-row statistics and restores the
// input order of the grid.
//
// Parameters:
//   - g: The grid the estimate was simulated on.
//   - est: Payoff sums in grid order.
//
// Returns:
//   - []Result: One result per input row, in input order.
func Aggregate(g *grid.Grid, est *Estimate) []Result {
	m := float64(est.Samples)
	rows := make([]Result, g.Len())
	for i := range rows {
		p := g.At(i)
		price := est.Sum[i] / m
		variance := math.Max(est.SumSq[i]/m-price*price, 0)
		iv, ivErr := blackscholes.ImpliedVol(price, 1, p.K, p.T)
		rows[i] = Result{
			Params:   p,
			Price:    price,
			IV:       iv,
			IVErr:    ivErr,
			Variance: variance,
			StdErr:   math.Sqrt(variance / m),
		}
	}
	out := make([]Result, len(rows))
	grid.Restore(g, out, rows)
	return out
}

// Price simulates g and aggregates the estimate.
//
// Parameters:
//   - ctx: Cancels the run.
//   - g: The parameter grid.
//   - src: The entropy source, with a stream per worker.
//   - opts: Run options.
//
// Returns:
//   - []Result: One result per input row, in input order.
//   - error: Any error from Simulate.
func Price(ctx context.Context, g *grid.Grid, src entropy.Source, opts Options) ([]Result, error) {
	est, err := Simulate(ctx, g, src, opts)
	if err != nil {
		return nil, err
	}
	return Aggregate(g, est), nil
}

// NewSource builds the entropy source of a run.
//
// Parameters:
//   - sampler: "prng" or "halton".
//   - opts: The run options; Steps, Workers and Mode size the source.
//   - seed: Master seed; for Halton it seeds the digit scrambling.
//
// Returns:
//   - entropy.Source: The source.
//   - error: For an unknown sampler name.
func NewSource(sampler string, opts Options, seed uint64) (entropy.Source, error) {
	opts = opts.withDefaults()
	switch sampler {
	case "", "prng":
		return entropy.NewPseudoRandom(opts.Workers, seed), nil
	case "halton":
		return entropy.NewQuasiRandom(opts.Steps, opts.Mode.NeedsSpotDriver(), seed), nil
	default:
		return nil, &UnknownSamplerError{Name: sampler}
	}
}

// UnknownSamplerError reports an unsupported -sampler value.
type UnknownSamplerError struct {
	Name string
}

func (e *UnknownSamplerError) Error() string {
	return "unknown sampler " + `"` + e.Name + `" (want prng or halton)`
}
