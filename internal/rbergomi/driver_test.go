package rbergomi

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/exp/rand"

	"github.com/agbru/rbergomi/internal/arena"
	"github.com/agbru/rbergomi/internal/blackscholes"
	"github.com/agbru/rbergomi/internal/entropy"
	apperrors "github.com/agbru/rbergomi/internal/errors"
	"github.com/agbru/rbergomi/internal/grid"
	"github.com/agbru/rbergomi/internal/kernel"
	"github.com/agbru/rbergomi/internal/spectral"
)

// indexSource derives every sample from its index alone, so the increments
// a sample sees do not depend on which worker draws it.
type indexSource struct {
	panicAt int64
}

func (s indexSource) Stream(int) entropy.Stream { return indexStream(s) }
func (indexSource) Name() string                { return "index" }

type indexStream indexSource

func (s indexStream) Draw(index int64, dst *entropy.Sample) {
	if s.panicAt > 0 && index == s.panicAt {
		panic("injected failure")
	}
	rng := rand.New(rand.NewSource(uint64(index)*0x9e3779b97f4a7c15 + 1))
	for _, v := range [][]float64{dst.W1, dst.W1Perp, dst.WPerp} {
		for k := range v {
			v[k] = rng.NormFloat64()
		}
	}
}

// progressSpy records the last update it received.
type progressSpy struct {
	mu          sync.Mutex
	calls       int
	done, total int64
}

func (s *progressSpy) Update(done, total int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if done > s.done {
		s.done = done
	}
	s.total = total
}

func mixedGrid(t *testing.T, ordered bool) *grid.Grid {
	t.Helper()
	h := []float64{0.2, 0.05, 0.2, 0.05, 0.2, 0.1}
	eta := []float64{1.5, 1, 1.5, 2, 1.9, 1}
	rho := []float64{-0.7, -0.9, -0.7, -0.9, 0, -0.5}
	tt := []float64{1, 0.5, 1, 0.5, 0.25, 1}
	k := []float64{1, 0.9, 1.2, 1.1, 1, 1}
	xi := []float64{0.04, 0.04, 0.09, 0.04, 0.05, 0.04}
	build := grid.New
	if ordered {
		build = grid.NewOrdered
	}
	g, err := build(h, eta, rho, tt, k, xi)
	if err != nil {
		t.Fatalf("Expected a valid grid, got %v", err)
	}
	return g
}

func assertClose(t *testing.T, what string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol*math.Max(1, math.Abs(want)) {
		t.Errorf("Expected %s %.17g, got %.17g", what, want, got)
	}
}

func TestWorkerCountInvariance(t *testing.T) {
	t.Parallel()
	for _, mode := range []PayoffMode{PayoffConditional, PayoffTerminal} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()
			g := mixedGrid(t, true)
			opts := Options{Steps: 32, Samples: 400, Mode: mode}

			opts.Workers = 1
			one, err := Simulate(context.Background(), g, indexSource{}, opts)
			if err != nil {
				t.Fatalf("Simulate with 1 worker failed: %v", err)
			}
			opts.Workers = 4
			four, err := Simulate(context.Background(), g, indexSource{}, opts)
			if err != nil {
				t.Fatalf("Simulate with 4 workers failed: %v", err)
			}
			for i := range one.Sum {
				assertClose(t, "sum", four.Sum[i], one.Sum[i], 1e-10)
				assertClose(t, "sum of squares", four.SumSq[i], one.SumSq[i], 1e-10)
			}
		})
	}
}

func TestSingleWorkerMatchesSequentialLoop(t *testing.T) {
	t.Parallel()
	const n, m = 16, 50
	g := mixedGrid(t, false)
	src := entropy.NewPseudoRandom(1, 7)

	est, err := Simulate(context.Background(), g, src, Options{Steps: n, Samples: m, Workers: 1})
	if err != nil {
		t.Fatalf("Simulate failed: %v", err)
	}

	w, err := newWorkers(g, kernelCacheFor(g, n), src, Options{Steps: n, Samples: m, Workers: 1}.withDefaults())
	if err != nil {
		t.Fatalf("newWorkers failed: %v", err)
	}
	want := NewAccumulator(g.Len())
	for j := int64(0); j < m; j++ {
		w[0].stream.Draw(j, w[0].sample)
		for i := 0; i < g.Len(); i++ {
			want.Add(i, w[0].eval.Payoff(i, w[0].sample))
		}
	}
	for i := range want.Sum {
		if est.Sum[i] != want.Sum[i] || est.SumSq[i] != want.SumSq[i] {
			t.Errorf("row %d: Expected bit-identical sums (%v, %v), got (%v, %v)",
				i, want.Sum[i], want.SumSq[i], est.Sum[i], est.SumSq[i])
		}
	}
}

func TestDirtyTriggersMatchFullRecompute(t *testing.T) {
	t.Parallel()
	for _, mode := range []PayoffMode{PayoffConditional, PayoffTerminal} {
		t.Run(mode.String(), func(t *testing.T) {
			t.Parallel()
			base := Options{Steps: 24, Samples: 300, Workers: 3, Mode: mode}
			price := func(g *grid.Grid, opts Options) []Result {
				t.Helper()
				res, err := Price(context.Background(), g, indexSource{}, opts)
				if err != nil {
					t.Fatalf("Price failed: %v", err)
				}
				return res
			}

			unordered := price(mixedGrid(t, false), base)
			ordered := price(mixedGrid(t, true), base)
			full := base
			full.FullRecompute = true
			reference := price(mixedGrid(t, false), full)

			for i := range reference {
				if unordered[i].Params != reference[i].Params || ordered[i].Params != reference[i].Params {
					t.Fatalf("row %d: results are not in input order", i)
				}
				assertClose(t, "unordered price", unordered[i].Price, reference[i].Price, 1e-12)
				assertClose(t, "ordered price", ordered[i].Price, reference[i].Price, 1e-12)
				assertClose(t, "ordered stderr", ordered[i].StdErr, reference[i].StdErr, 1e-9)
			}
		})
	}
}

func TestVerifyPasses(t *testing.T) {
	t.Parallel()
	g := mixedGrid(t, true)
	for _, b := range spectral.Backends() {
		_, err := Simulate(context.Background(), g, entropy.NewPseudoRandom(2, 11), Options{
			Steps: 20, Samples: 60, Workers: 2, Mode: PayoffTerminal, Backend: b, Verify: true,
		})
		if err != nil {
			t.Errorf("%s: Expected incremental and full recompute to agree, got %v", b, err)
		}
	}
}

func TestVerifyReportsMismatch(t *testing.T) {
	t.Parallel()
	g := mixedGrid(t, true)
	opts := Options{
		Steps: 16, Samples: 30, Workers: 3, Mode: PayoffTerminal, Backend: spectral.Gonum, Verify: true,
	}.withDefaults()
	kernels := kernel.NewCache(opts.Steps, g.DistinctH())
	workers, err := newWorkers(g, kernels, entropy.NewPseudoRandom(opts.Workers, 5), opts)
	if err != nil {
		t.Fatalf("newWorkers failed: %v", err)
	}

	// A conditional shadow disagrees with the terminal payoff on every path.
	for _, w := range workers {
		engine := spectral.NewEngine(opts.Backend, opts.Steps,
			arena.New[complex128](spectral.ArenaComplexes(opts.Backend, opts.Steps, kernels.Size())), kernels.Size())
		for _, h := range g.DistinctH() {
			if err := engine.Pin(kernels.MustKernel(h)); err != nil {
				t.Fatalf("Pin failed: %v", err)
			}
		}
		w.shadow = NewEvaluator(opts.Steps, g, kernels, engine, PayoffConditional, true,
			arena.New[float64](EvaluatorFloats(opts.Steps)))
	}

	var done atomic.Int64
	var total int64
	for _, w := range workers {
		if err := w.run(context.Background(), g, opts, opts.Samples, &done); err != nil {
			t.Fatalf("worker %d failed: %v", w.id, err)
		}
		if w.mismatches == 0 {
			t.Fatalf("worker %d: Expected mismatches, got none", w.id)
		}
		total += w.mismatches
	}
	first := *workers[0].first

	est, err := collect(g, workers, opts.Samples)
	if est != nil {
		t.Error("Expected no estimate for an inconsistent run")
	}
	var consistency *apperrors.ConsistencyError
	if !errors.As(err, &consistency) {
		t.Fatalf("Expected *ConsistencyError, got %v", err)
	}
	if consistency.Sample != first.Sample {
		t.Errorf("Expected the first mismatch at sample %d, got %d", first.Sample, consistency.Sample)
	}
	if want := g.Original(first.Row); consistency.Row != want {
		t.Errorf("Expected row %d in input order, got %d", want, consistency.Row)
	}
	if consistency.Mismatches != total {
		t.Errorf("Expected %d mismatches summed over workers, got %d", total, consistency.Mismatches)
	}
	if code := apperrors.ExitCodeFor(err); code != apperrors.ExitErrorMismatch {
		t.Errorf("Expected exit code %d, got %d", apperrors.ExitErrorMismatch, code)
	}
}

func TestStandardErrorScaling(t *testing.T) {
	t.Parallel()
	g, err := grid.New([]float64{0.1}, []float64{1.5}, []float64{-0.7}, []float64{1}, []float64{1}, []float64{0.04})
	if err != nil {
		t.Fatal(err)
	}
	run := func(m int64) Result {
		res, err := Price(context.Background(), g, entropy.NewPseudoRandom(4, 2024), Options{Steps: 32, Samples: m, Workers: 4})
		if err != nil {
			t.Fatalf("Price failed: %v", err)
		}
		return res[0]
	}
	small, large := run(4000), run(16000)
	ratio := small.StdErr / large.StdErr
	if ratio < 1.6 || ratio > 2.5 {
		t.Errorf("Expected stderr(M)/stderr(4M) near 2, got %.3f", ratio)
	}
	if math.Abs(small.Price-large.Price) > 5*small.StdErr {
		t.Errorf("Expected prices within 5 standard errors, got %v and %v", small.Price, large.Price)
	}
}

func TestFlatVarianceMatchesBlackScholes(t *testing.T) {
	t.Parallel()
	// With eta = 0 the variance is constant; with rho = 0 the conditional
	// payoff no longer depends on the sample at all.
	g, err := grid.New([]float64{0.3, 0.3}, []float64{0, 0}, []float64{0, 0}, []float64{0.5, 2}, []float64{1, 1.2}, []float64{0.04, 0.09})
	if err != nil {
		t.Fatal(err)
	}
	res, err := Price(context.Background(), g, entropy.NewPseudoRandom(2, 1), Options{Steps: 10, Samples: 100, Workers: 2})
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}
	for _, r := range res {
		want := blackscholes.Call(1, r.K, r.T, math.Sqrt(r.Xi))
		assertClose(t, "price", r.Price, want, 1e-12)
		assertClose(t, "implied vol", r.IV, math.Sqrt(r.Xi), 1e-8)
		if r.Variance > 1e-15 {
			t.Errorf("Expected zero payoff variance, got %g", r.Variance)
		}
	}
}

func TestDefaultScenario(t *testing.T) {
	t.Parallel()
	m := int64(DefaultSamples)
	if testing.Short() {
		m = 20_000
	}
	g, err := grid.NewOrdered(
		[]float64{0.05, 0.2}, []float64{1, 3}, []float64{-0.98, -0.8},
		[]float64{0.05, 2}, []float64{1, 1.3}, []float64{0.04, 0.04},
	)
	if err != nil {
		t.Fatal(err)
	}
	res, err := Price(context.Background(), g, entropy.NewPseudoRandom(4, 42), Options{Samples: m, Workers: 4})
	if err != nil {
		t.Fatalf("Price failed: %v", err)
	}
	for i, r := range res {
		if !(r.Price > 0) || math.IsInf(r.Price, 0) {
			t.Errorf("row %d: Expected a finite positive price, got %v", i, r.Price)
		}
		if r.IVErr != nil || !(r.IV > 0 && r.IV < 3) {
			t.Errorf("row %d: Expected IV in (0, 3), got %v (%v)", i, r.IV, r.IVErr)
		}
		if r.StdErr > 0.2*r.Price {
			t.Errorf("row %d: Expected stderr small relative to price %v, got %v", i, r.Price, r.StdErr)
		}
	}
}

func TestWorkerPanicIsReturned(t *testing.T) {
	t.Parallel()
	g := mixedGrid(t, false)
	_, err := Simulate(context.Background(), g, indexSource{panicAt: 7}, Options{Steps: 8, Samples: 40, Workers: 4})
	var panicErr *apperrors.WorkerPanicError
	if !errors.As(err, &panicErr) {
		t.Fatalf("Expected a WorkerPanicError, got %v", err)
	}
	if panicErr.Worker != 0 {
		t.Errorf("Expected sample 7 to belong to worker 0, got worker %d", panicErr.Worker)
	}
	if apperrors.ExitCodeFor(err) != apperrors.ExitErrorGeneric {
		t.Errorf("Expected exit code %d, got %d", apperrors.ExitErrorGeneric, apperrors.ExitCodeFor(err))
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Simulate(ctx, mixedGrid(t, false), indexSource{}, Options{Steps: 8, Samples: 1000, Workers: 2})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestProgressReachesTotal(t *testing.T) {
	t.Parallel()
	spy := &progressSpy{}
	_, err := Simulate(context.Background(), mixedGrid(t, false), indexSource{}, Options{
		Steps: 8, Samples: 1000, Workers: 3, Observer: spy,
	})
	if err != nil {
		t.Fatal(err)
	}
	if spy.done != 1000 || spy.total != 1000 {
		t.Errorf("Expected final progress 1000/1000, got %d/%d", spy.done, spy.total)
	}
	if spy.calls < 2 {
		t.Errorf("Expected intermediate updates, got %d calls", spy.calls)
	}
}

func TestNewSource(t *testing.T) {
	t.Parallel()
	for _, name := range []string{"prng", "halton"} {
		src, err := NewSource(name, Options{Workers: 2}, 3)
		if err != nil || src.Name() != name {
			t.Errorf("Expected %s source, got %v (%v)", name, src, err)
		}
	}
	if _, err := NewSource("sobol", Options{}, 0); err == nil {
		t.Error("Expected an error for an unknown sampler")
	}
}

func TestAccumulatorMerge(t *testing.T) {
	t.Parallel()
	a, b := NewAccumulator(2), NewAccumulator(2)
	a.Add(0, 2)
	b.Add(0, 3)
	b.Add(1, -1)
	a.Merge(b)
	if a.Sum[0] != 5 || a.SumSq[0] != 13 || a.Sum[1] != -1 || a.SumSq[1] != 1 {
		t.Errorf("Expected merged sums [5 -1] / [13 1], got %v / %v", a.Sum, a.SumSq)
	}
}
