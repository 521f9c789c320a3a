package calibration

import (
	"context"
	"time"

	"github.com/agbru/rbergomi/internal/arena"
	"github.com/agbru/rbergomi/internal/kernel"
	"github.com/agbru/rbergomi/internal/spectral"
)

// benchHurst is the Hurst exponent of the kernel convolved during trials.
const benchHurst = 0.1

// calibrationRunner encapsulates the trial run logic for calibration.
type calibrationRunner struct {
	ctx      context.Context
	perTrial time.Duration
}

// newCalibrationRunner creates a new calibration runner.
func newCalibrationRunner(ctx context.Context, timeout time.Duration) *calibrationRunner {
	perTrial := timeout / 6
	if perTrial < 2*time.Second {
		perTrial = 2 * time.Second
	}
	return &calibrationRunner{ctx: ctx, perTrial: perTrial}
}

// runTrial times the convolution of one backend at n steps.
//
// Parameters:
//   - b: The FFT backend.
//   - n: The number of time steps.
//   - iterations: The number of timed convolutions.
//
// Returns:
//   - time.Duration: The mean time of one convolution.
//   - error: An error if the trial was canceled or timed out.
func (r *calibrationRunner) runTrial(b spectral.Backend, n, iterations int) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.perTrial)
	defer cancel()
	return timeConvolution(ctx, b, n, iterations)
}

// findBestBackend times every backend at n steps.
//
// Returns:
//   - spectral.Backend: The fastest backend, empty when every trial failed.
//   - []calibrationResult: One result per backend.
func (r *calibrationRunner) findBestBackend(n int) (spectral.Backend, []calibrationResult) {
	var best spectral.Backend
	bestDur := time.Duration(1<<63 - 1)
	results := make([]calibrationResult, 0, len(spectral.Backends()))

	for _, b := range spectral.Backends() {
		dur, err := r.runTrial(b, n, TrialIterations(n))
		results = append(results, calibrationResult{Steps: n, Backend: b, Duration: dur, Err: err})
		if err == nil && dur < bestDur {
			best, bestDur = b, dur
		}
	}
	return best, results
}

// timeConvolution builds an engine exactly as a pricing worker does, with
// its kernel pinned, and measures the mean time of one Convolve call.
func timeConvolution(ctx context.Context, b spectral.Backend, n, iterations int) (time.Duration, error) {
	a := arena.New[complex128](spectral.ArenaComplexes(b, n, 1))
	defer a.Release()

	eng := spectral.NewEngine(b, n, a, 1)
	g := make([]float64, n)
	kernel.Fill(g, benchHurst)
	if err := eng.Pin(g); err != nil {
		return 0, err
	}

	x := make([]float64, n)
	for i := range x {
		// Deterministic pattern with both signs.
		x[i] = float64((i*7919)%201-100) / 100
	}
	dst := make([]float64, n)

	// Warm up
	eng.Convolve(dst, x, g)

	iterations = max(iterations, 1)
	var total time.Duration
	for i := 0; i < iterations; i++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		start := time.Now()
		eng.Convolve(dst, x, g)
		total += time.Since(start)
	}
	return total / time.Duration(iterations), nil
}
