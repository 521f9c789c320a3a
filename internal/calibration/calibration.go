package calibration

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agbru/rbergomi/internal/cli"
	apperrors "github.com/agbru/rbergomi/internal/errors"
	"github.com/agbru/rbergomi/internal/spectral"
	"github.com/agbru/rbergomi/internal/ui"
)

// CalibrationOptions configures the calibration process.
type CalibrationOptions struct {
	// Steps is the number of time steps N of the runs to calibrate for.
	Steps int
	// ProfilePath is the path to save/load the calibration profile.
	// If empty, uses the default path.
	ProfilePath string
	// SaveProfile indicates whether to save the calibration results.
	SaveProfile bool
	// LoadProfile indicates whether to try loading an existing profile.
	LoadProfile bool
	// Timeout bounds the whole calibration; each trial gets a sixth of it.
	Timeout time.Duration
	// Quiet disables the progress display.
	Quiet bool
}

// calibrationResult holds the result of a single backend trial.
type calibrationResult struct {
	Steps    int
	Backend  spectral.Backend
	Duration time.Duration
	Err      error
}

// RunCalibration benchmarks every FFT backend at the configured N and at
// one representative N per step range, prints the table, and saves the
// choices as a profile.
//
// Parameters:
//   - ctx: The context for managing cancellation and deadlines.
//   - out: The io.Writer to which progress and results will be written.
//   - opts: The calibration options.
//
// Returns:
//   - int: The exit code (0 for success, non-zero for errors).
func RunCalibration(ctx context.Context, out io.Writer, opts CalibrationOptions) int {
	t := ui.Current()
	fmt.Fprintf(out, "--- Calibration Mode: Finding the Fastest FFT Backend ---\n")

	if opts.LoadProfile {
		profile, loaded := LoadOrCreateProfile(opts.ProfilePath)
		if loaded && profile.HasRangeFor(opts.Steps) {
			b, _ := profile.BackendForSteps(opts.Steps)
			fmt.Fprintf(out, "%sLoaded existing calibration profile%s\n", t.Success, t.Reset)
			fmt.Fprintf(out, "Profile: %s\n", profile.String())
			printRecommendation(out, opts.Steps, b)
			return apperrors.ExitSuccess
		}
	}

	sizes := GenerateStepSizes(opts.Steps)
	backends := spectral.Backends()
	fmt.Fprintf(out, "%sBenchmarking %d backends at %d step counts%s\n",
		t.Primary, len(backends), len(sizes), t.Reset)

	runner := newCalibrationRunner(ctx, opts.Timeout)
	results := make([]calibrationResult, 0, len(sizes)*len(backends))
	best := make(map[int]spectral.Backend, len(sizes))
	calibrationStart := time.Now()

	var wg sync.WaitGroup
	progressChan := make(chan float64, len(sizes))
	if !opts.Quiet {
		wg.Add(1)
		go cli.DisplayProgress(&wg, progressChan, out)
	}
	finish := func() {
		close(progressChan)
		wg.Wait()
	}

	for i, n := range sizes {
		if err := ctx.Err(); err != nil {
			finish()
			fmt.Fprintf(out, "\n%sCalibration interrupted.%s\n", t.Warning, t.Reset)
			return apperrors.HandleRunError(err, time.Since(calibrationStart), out, ui.ColorProvider{})
		}
		b, trial := runner.findBestBackend(n)
		results = append(results, trial...)
		if b != "" {
			best[n] = b
		}
		if !opts.Quiet {
			progressChan <- float64(i+1) / float64(len(sizes))
		}
	}
	finish()

	chosen, ok := best[max(opts.Steps, 1)]
	if !ok {
		if err := ctx.Err(); err != nil {
			return apperrors.HandleRunError(err, time.Since(calibrationStart), out, ui.ColorProvider{})
		}
		fmt.Fprintf(out, "\n%sCalibration failed: no valid results obtained.%s\n", t.Error, t.Reset)
		return apperrors.ExitErrorGeneric
	}

	printCalibrationResults(out, results, best)
	printRecommendation(out, opts.Steps, chosen)

	if opts.SaveProfile {
		profile := buildProfile(opts.Steps, chosen, results, best)
		profile.CalibrationTime = time.Since(calibrationStart).String()
		path := opts.ProfilePath
		if path == "" {
			path = GetDefaultProfilePath()
		}
		if err := profile.SaveProfile(path); err != nil {
			fmt.Fprintf(out, "%sWarning: failed to save profile: %v%s\n", t.Warning, err, t.Reset)
		} else {
			fmt.Fprintf(out, "%sCalibration profile saved to %s%s\n", t.Success, path, t.Reset)
		}
	}

	return apperrors.ExitSuccess
}

// buildProfile turns the trial table into a profile with one range entry
// per benchmarked step count.
func buildProfile(steps int, chosen spectral.Backend, results []calibrationResult, best map[int]spectral.Backend) *CalibrationProfile {
	profile := NewProfile()
	profile.DefaultBackend = string(chosen)
	profile.CalibrationSteps = steps

	byStep := make(map[int][]testResult)
	for _, r := range results {
		byStep[r.Steps] = append(byStep[r.Steps], testResult{backend: r.Backend, duration: r.Duration, err: r.Err})
	}
	for n, b := range best {
		br := analyzeResults(byStep[n])
		lo, hi := StepRange(n)
		profile.AddRangeBackend(RangeBackend{
			MinSteps:         lo,
			MaxSteps:         hi,
			Backend:          string(b),
			Speedup:          br.Speedup,
			ConfidenceScore:  br.Confidence,
			MeasurementCount: len(br.Timings),
		})
	}
	return profile
}

// ResolveBackend turns -fft=auto into a concrete backend for n steps.
//
// A valid cached profile covering n is used as is. Otherwise a quick
// micro-benchmark runs at n and, when conclusive, its choice is merged into
// the profile on disk. Anything else falls back to spectral.Gonum.
//
// Parameters:
//   - ctx: The context for cancellation.
//   - steps: The number of time steps N.
//   - profilePath: The profile path; empty means the default path.
//   - logger: Receives the decision.
//
// Returns:
//   - spectral.Backend: The backend to price with.
func ResolveBackend(ctx context.Context, steps int, profilePath string, logger zerolog.Logger) spectral.Backend {
	profile, loaded := LoadOrCreateProfile(profilePath)
	if loaded && profile.HasRangeFor(steps) {
		b, _ := profile.BackendForSteps(steps)
		logger.Debug().Str("backend", string(b)).Int("steps", steps).Msg("using cached calibration")
		return b
	}

	br, err := QuickCalibrate(ctx, steps)
	if err != nil || br.Confidence < MinConfidence {
		logger.Debug().Err(err).Float64("confidence", br.Confidence).Msg("calibration inconclusive, using gonum")
		return spectral.Gonum
	}

	lo, hi := StepRange(steps)
	profile.AddRangeBackend(RangeBackend{
		MinSteps:         lo,
		MaxSteps:         hi,
		Backend:          string(br.Backend),
		Speedup:          br.Speedup,
		ConfidenceScore:  br.Confidence,
		MeasurementCount: len(br.Timings),
	})
	if !loaded {
		profile.DefaultBackend = string(br.Backend)
		profile.CalibrationSteps = steps
		profile.CalibrationTime = br.Duration.String()
	}
	if err := profile.SaveProfile(profilePath); err != nil {
		logger.Warn().Err(err).Msg("could not save calibration profile")
	}

	logger.Info().
		Str("backend", string(br.Backend)).
		Int("steps", steps).
		Float64("speedup", br.Speedup).
		Dur("took", br.Duration).
		Msg("quick calibration")
	return br.Backend
}
