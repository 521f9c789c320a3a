package rbergomi

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/agbru/rbergomi/internal/arena"
	"github.com/agbru/rbergomi/internal/entropy"
	apperrors "github.com/agbru/rbergomi/internal/errors"
	"github.com/agbru/rbergomi/internal/grid"
	"github.com/agbru/rbergomi/internal/kernel"
	"github.com/agbru/rbergomi/internal/spectral"
)

const (
	// DefaultSteps is the number of time steps per path.
	DefaultSteps = 100
	// DefaultSamples is the number of Monte-Carlo paths.
	DefaultSamples = 100_000
	// DefaultVerifyTolerance bounds the relative payoff difference accepted
	// by the verify pass.
	DefaultVerifyTolerance = 1e-12

	// progressUpdates is roughly how many progress reports a run emits.
	progressUpdates = 200
)

var tracer = otel.Tracer("github.com/agbru/rbergomi/internal/rbergomi")

// Options configures a pricing run.
type Options struct {
	// Steps is the number of time steps N of every path.
	Steps int
	// Samples is the number of Monte-Carlo paths M.
	Samples int64
	// Workers is the pool size. Zero means GOMAXPROCS. The entropy source
	// must provide a stream for every worker.
	Workers int
	// Mode selects the payoff.
	Mode PayoffMode
	// Backend selects the FFT implementation.
	Backend spectral.Backend
	// FullRecompute makes every grid row rebuild the whole path.
	FullRecompute bool
	// Verify runs a full-recompute shadow evaluator on every sample and
	// fails the run with an *apperrors.ConsistencyError on disagreement.
	Verify bool
	// VerifyTolerance is the accepted relative difference in verify mode.
	// Zero means DefaultVerifyTolerance.
	VerifyTolerance float64
	// Observer receives progress updates. Nil disables reporting.
	Observer ProgressObserver
	// Logger receives run-level events. The zero value is disabled.
	Logger zerolog.Logger
}

// withDefaults fills unset fields.
func (o Options) withDefaults() Options {
	if o.Steps <= 0 {
		o.Steps = DefaultSteps
	}
	if o.Samples <= 0 {
		o.Samples = DefaultSamples
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.Backend == "" {
		o.Backend = spectral.Gonum
	}
	if o.VerifyTolerance <= 0 {
		o.VerifyTolerance = DefaultVerifyTolerance
	}
	if o.Observer == nil {
		o.Observer = NoOpObserver{}
	}
	return o
}

// Accumulator holds the private running sums of one worker, indexed like
// the grid it was built for.
type Accumulator struct {
	Sum   []float64
	SumSq []float64
}

// NewAccumulator creates zeroed sums for a grid of the given length.
func NewAccumulator(rows int) *Accumulator {
	return &Accumulator{Sum: make([]float64, rows), SumSq: make([]float64, rows)}
}

// Add records one payoff for row i.
func (a *Accumulator) Add(i int, payoff float64) {
	a.Sum[i] += payoff
	a.SumSq[i] += payoff * payoff
}

// Merge adds the sums of b into a.
func (a *Accumulator) Merge(b *Accumulator) {
	for i := range a.Sum {
		a.Sum[i] += b.Sum[i]
		a.SumSq[i] += b.SumSq[i]
	}
}

// Estimate is the reduced output of a simulation, in grid order.
type Estimate struct {
	Samples int64
	Accumulator
}

// worker owns everything one goroutine touches while simulating.
type worker struct {
	id        int
	floats    *arena.Bump[float64]
	complexes *arena.Bump[complex128]
	sample    *entropy.Sample
	eval      *Evaluator
	shadow    *Evaluator
	stream    entropy.Stream
	acc       *Accumulator
	lo, hi    int64

	mismatches int64
	first      *apperrors.ConsistencyError
}

// Simulate runs the Monte-Carlo loop and returns the summed payoffs of every
// grid row. Sums are reduced in worker order once all workers are done, so
// a fixed seed and worker count give bit-identical estimates.
//
// Parameters:
//   - ctx: Cancels the run; checked at every progress stride.
//   - g: The parameter grid; Validate is the caller's responsibility.
//   - src: The entropy source, with a stream per worker.
//   - opts: Run options.
//
// Returns:
//   - *Estimate: Sums in grid order.
//   - error: A context error, a *apperrors.WorkerPanicError or a
//     *apperrors.ConsistencyError, possibly wrapped.
func Simulate(ctx context.Context, g *grid.Grid, src entropy.Source, opts Options) (est *Estimate, err error) {
	opts = opts.withDefaults()
	ctx, span := tracer.Start(ctx, "rbergomi.Simulate")
	span.SetAttributes(
		attribute.Int("rbergomi.steps", opts.Steps),
		attribute.Int64("rbergomi.samples", opts.Samples),
		attribute.Int("rbergomi.workers", opts.Workers),
		attribute.Int("rbergomi.rows", g.Len()),
		attribute.String("rbergomi.payoff", opts.Mode.String()),
		attribute.String("rbergomi.sampler", src.Name()),
		attribute.String("rbergomi.fft", string(opts.Backend)),
	)
	start := time.Now()
	defer func() {
		outcome := "success"
		if err != nil {
			outcome = "failure"
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		runsTotal.WithLabelValues(opts.Mode.String(), src.Name(), outcome).Inc()
		runDuration.WithLabelValues(opts.Mode.String()).Observe(time.Since(start).Seconds())
		span.End()
	}()

	kernels := kernel.NewCache(opts.Steps, g.DistinctH())
	workers, err := newWorkers(g, kernels, src, opts)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, w := range workers {
			w.floats.Release()
			w.complexes.Release()
		}
	}()

	opts.Logger.Debug().
		Int("workers", len(workers)).
		Int("kernels", kernels.Size()).
		Int("fft_size", opts.Backend.Size(opts.Steps)).
		Msg("simulation starting")

	var done atomic.Int64
	stride := max(opts.Samples/progressUpdates, 1)
	eg, egCtx := errgroup.WithContext(ctx)
	for _, w := range workers {
		eg.Go(func() (err error) {
			activeWorkers.Inc()
			defer activeWorkers.Dec()
			defer func() {
				if r := recover(); r != nil {
					err = &apperrors.WorkerPanicError{Worker: w.id, Value: r, Stack: debug.Stack()}
				}
			}()
			return w.run(egCtx, g, opts, stride, &done)
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, fmt.Errorf("simulation: %w", err)
	}
	opts.Observer.Update(opts.Samples, opts.Samples)
	samplesTotal.Add(float64(opts.Samples))

	if est, err = collect(g, workers, opts.Samples); err != nil {
		return nil, err
	}
	opts.Logger.Debug().Dur("elapsed", time.Since(start)).Msg("simulation finished")
	return est, nil
}

// collect merges the worker sums in worker order. A verify mismatch is
// reported by the first worker that saw one, with its row mapped back to
// input order and the counts of all workers summed.
func collect(g *grid.Grid, workers []*worker, samples int64) (*Estimate, error) {
	est := &Estimate{Samples: samples, Accumulator: *NewAccumulator(g.Len())}
	var (
		consistency *apperrors.ConsistencyError
		mismatches  int64
	)
	for _, w := range workers {
		est.Merge(w.acc)
		mismatches += w.mismatches
		if consistency == nil {
			consistency = w.first
		}
	}
	if consistency != nil {
		consistency.Row = g.Original(consistency.Row)
		consistency.Mismatches = mismatches
		return nil, consistency
	}
	return est, nil
}

// newWorkers sizes each worker's arenas for exactly the buffers it carves,
// pins every kernel spectrum and assigns contiguous sample blocks.
func newWorkers(g *grid.Grid, kernels *kernel.Cache, src entropy.Source, opts Options) ([]*worker, error) {
	n := opts.Steps
	withSpot := opts.Mode.NeedsSpotDriver()
	evaluators := 1
	if opts.Verify {
		evaluators = 2
	}
	floatCap := entropy.SampleFloats(n, withSpot) + evaluators*EvaluatorFloats(n)
	complexCap := spectral.ArenaComplexes(opts.Backend, n, kernels.Size())
	hs := g.DistinctH()

	workers := make([]*worker, opts.Workers)
	for id := range workers {
		w := &worker{
			id:        id,
			floats:    arena.New[float64](floatCap),
			complexes: arena.New[complex128](complexCap),
			stream:    src.Stream(id),
			acc:       NewAccumulator(g.Len()),
			lo:        opts.Samples * int64(id) / int64(opts.Workers),
			hi:        opts.Samples * int64(id+1) / int64(opts.Workers),
		}
		engine := spectral.NewEngine(opts.Backend, n, w.complexes, kernels.Size())
		for _, h := range hs {
			if err := engine.Pin(kernels.MustKernel(h)); err != nil {
				return nil, err
			}
		}
		w.sample = entropy.NewSample(w.floats, n, withSpot)
		w.eval = NewEvaluator(n, g, kernels, engine, opts.Mode, opts.FullRecompute, w.floats)
		if opts.Verify {
			w.shadow = NewEvaluator(n, g, kernels, engine, opts.Mode, true, w.floats)
		}
		workers[id] = w
	}
	return workers, nil
}

// run simulates samples [lo, hi).
func (w *worker) run(ctx context.Context, g *grid.Grid, opts Options, stride int64, done *atomic.Int64) error {
	rows := g.Len()
	pending := int64(0)
	for j := w.lo; j < w.hi; j++ {
		w.stream.Draw(j, w.sample)
		for i := 0; i < rows; i++ {
			payoff := w.eval.Payoff(i, w.sample)
			if w.shadow != nil {
				w.check(j, i, payoff, w.shadow.Payoff(i, w.sample), opts.VerifyTolerance)
			}
			w.acc.Add(i, payoff)
		}

		if pending++; pending == stride {
			opts.Observer.Update(done.Add(pending), opts.Samples)
			pending = 0
			if err := ctx.Err(); err != nil {
				return err
			}
		}
	}
	done.Add(pending)
	return ctx.Err()
}

func (w *worker) check(sample int64, row int, got, want, tol float64) {
	if math.Abs(got-want) <= tol*math.Max(1, math.Abs(want)) {
		return
	}
	if math.IsNaN(got) && math.IsNaN(want) {
		return
	}
	w.mismatches++
	if w.first == nil {
		w.first = &apperrors.ConsistencyError{Sample: sample, Row: row, Got: got, Want: want}
	}
}
