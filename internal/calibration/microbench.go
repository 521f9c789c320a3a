package calibration

import (
	"context"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/agbru/rbergomi/internal/spectral"
)

// ─────────────────────────────────────────────────────────────────────────────
// Micro-benchmark Configuration
// ─────────────────────────────────────────────────────────────────────────────

const (
	// MicroBenchIterations is the number of iterations per test for averaging.
	MicroBenchIterations = 5

	// MicroBenchTimeout is the maximum time for the entire micro-benchmark suite.
	MicroBenchTimeout = 150 * time.Millisecond
)

// ─────────────────────────────────────────────────────────────────────────────
// Micro-benchmark Types
// ─────────────────────────────────────────────────────────────────────────────

// MicroBenchmark performs fast tests to pick an FFT backend for one step
// count.
type MicroBenchmark struct {
	// Steps is the number of time steps N to benchmark.
	Steps int
	// Iterations is the number of iterations per test (default: MicroBenchIterations)
	Iterations int
	// Timeout is the maximum duration for the entire benchmark
	Timeout time.Duration
	// Backends are the candidates (default: spectral.Backends())
	Backends []spectral.Backend
}

// BackendResults contains the outcome of a micro-benchmark.
type BackendResults struct {
	// Backend is the fastest backend, spectral.Gonum when nothing was measured
	Backend spectral.Backend
	// Speedup is the time of the slowest backend over the fastest one
	Speedup float64
	// Confidence is a score from 0-1 indicating result reliability
	Confidence float64
	// Timings holds the mean convolution time per measured backend
	Timings map[spectral.Backend]time.Duration
	// Duration is how long the micro-benchmark took
	Duration time.Duration
}

// testResult holds timing data for a single backend test.
type testResult struct {
	backend  spectral.Backend
	duration time.Duration
	err      error
}

// ─────────────────────────────────────────────────────────────────────────────
// Micro-benchmark Implementation
// ─────────────────────────────────────────────────────────────────────────────

// NewMicroBenchmark creates a new MicroBenchmark with default settings.
func NewMicroBenchmark(steps int) *MicroBenchmark {
	return &MicroBenchmark{
		Steps:      steps,
		Iterations: MicroBenchIterations,
		Timeout:    MicroBenchTimeout,
		Backends:   spectral.Backends(),
	}
}

// RunQuick times one convolution per backend at the configured step count.
//
// Returns:
//   - BackendResults: The chosen backend and its reliability
//   - error: An error if the parent context was already done
func (mb *MicroBenchmark) RunQuick(ctx context.Context) (BackendResults, error) {
	if err := ctx.Err(); err != nil {
		return BackendResults{Backend: spectral.Gonum}, err
	}
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, mb.Timeout)
	defer cancel()

	results := mb.runParallelTests(ctx)

	br := analyzeResults(results)
	br.Duration = time.Since(start)
	return br, nil
}

// runParallelTests executes the backend tests concurrently, at most one per
// CPU so the timings do not compete for cores.
func (mb *MicroBenchmark) runParallelTests(ctx context.Context) []testResult {
	var (
		results []testResult
		mu      sync.Mutex
		g       errgroup.Group
	)
	g.SetLimit(max(runtime.NumCPU(), 1))

	for _, b := range mb.Backends {
		g.Go(func() error {
			dur, err := timeConvolution(ctx, b, mb.Steps, mb.Iterations)
			mu.Lock()
			results = append(results, testResult{backend: b, duration: dur, err: err})
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// analyzeResults picks the fastest backend. Confidence starts at 0.5 for a
// complete comparison and grows with the margin between the backends: a
// near tie is a coin flip that later runs should be free to revisit.
func analyzeResults(results []testResult) BackendResults {
	br := BackendResults{
		Backend: spectral.Gonum,
		Timings: make(map[spectral.Backend]time.Duration),
	}

	var fastest, slowest time.Duration
	for _, r := range results {
		if r.err != nil {
			continue
		}
		br.Timings[r.backend] = r.duration
		if fastest == 0 || r.duration < fastest {
			fastest, br.Backend = r.duration, r.backend
		}
		slowest = max(slowest, r.duration)
	}

	switch {
	case len(br.Timings) == 0:
		br.Backend = spectral.Gonum
		return br
	case len(br.Timings) == 1 || fastest == 0:
		br.Speedup = 1
		br.Confidence = 0.3
		return br
	}

	br.Speedup = float64(slowest) / float64(fastest)
	br.Confidence = min(0.5+(br.Speedup-1), 1.0)
	return br
}

// ─────────────────────────────────────────────────────────────────────────────
// Quick Calibration Function
// ─────────────────────────────────────────────────────────────────────────────

// QuickCalibrate performs a fast calibration using micro-benchmarks.
//
// Parameters:
//   - ctx: The context for cancellation
//   - steps: The number of time steps N
//
// Returns:
//   - BackendResults: The chosen backend
//   - error: An error if calibration failed
func QuickCalibrate(ctx context.Context, steps int) (BackendResults, error) {
	return NewMicroBenchmark(steps).RunQuick(ctx)
}
