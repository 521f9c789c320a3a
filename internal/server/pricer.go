package server

import (
	"context"

	"github.com/agbru/rbergomi/internal/grid"
	"github.com/agbru/rbergomi/internal/rbergomi"
)

// Job is a validated pricing request.
type Job struct {
	// Sampler is "prng" or "halton".
	Sampler string
	// Seed is the master seed of the entropy source.
	Seed uint64
	// Options are the run options.
	Options rbergomi.Options
}

// Pricer prices a grid. It is the seam tests replace with a stub.
type Pricer interface {
	Price(ctx context.Context, g *grid.Grid, job Job) ([]rbergomi.Result, error)
}

// EnginePricer prices with the Monte-Carlo engine.
type EnginePricer struct{}

// Price builds the entropy source of the job and runs rbergomi.Price.
func (EnginePricer) Price(ctx context.Context, g *grid.Grid, job Job) ([]rbergomi.Result, error) {
	src, err := rbergomi.NewSource(job.Sampler, job.Options, job.Seed)
	if err != nil {
		return nil, err
	}
	return rbergomi.Price(ctx, g, src, job.Options)
}
