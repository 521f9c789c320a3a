package app

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/agbru/rbergomi/internal/calibration"
	"github.com/agbru/rbergomi/internal/cli"
	"github.com/agbru/rbergomi/internal/config"
	apperrors "github.com/agbru/rbergomi/internal/errors"
	"github.com/agbru/rbergomi/internal/grid"
	"github.com/agbru/rbergomi/internal/logging"
	"github.com/agbru/rbergomi/internal/rbergomi"
	"github.com/agbru/rbergomi/internal/server"
	"github.com/agbru/rbergomi/internal/spectral"
	"github.com/agbru/rbergomi/internal/ui"
)

// progressLogStep is the progress increment between two debug log lines.
const progressLogStep = 0.1

// Application represents the rbergomi application instance.
// It encapsulates the configuration and provides methods to run
// the application in its different modes.
type Application struct {
	// Config holds the parsed application configuration.
	Config config.AppConfig
	// ErrWriter is the writer for error output (typically os.Stderr).
	ErrWriter io.Writer
	// now is the clock used for the default seed and timings.
	now func() time.Time
}

// New creates a new Application instance by parsing command-line arguments.
//
// Parameters:
//   - args: The command-line arguments (typically os.Args).
//   - errWriter: The writer for error output.
//
// Returns:
//   - *Application: The initialized application instance.
//   - error: flag.ErrHelp, a usage error or a configuration error.
func New(args []string, errWriter io.Writer) (*Application, error) {
	programName := "rbergomi"
	var rest []string
	if len(args) > 0 {
		programName = filepath.Base(args[0])
		rest = args[1:]
	}

	cfg, err := config.ParseConfig(programName, rest, errWriter)
	if err != nil {
		return nil, err
	}

	return &Application{
		Config:    cfg,
		ErrWriter: errWriter,
		now:       time.Now,
	}, nil
}

// Run executes the application based on the configured mode.
// It dispatches to calibration, server or pricing mode.
//
// Parameters:
//   - ctx: The context for managing cancellation and timeouts.
//   - out: The writer for standard output.
//
// Returns:
//   - int: An exit code (0 for success, non-zero for errors).
func (a *Application) Run(ctx context.Context, out io.Writer) int {
	ui.Init(a.Config.NoColor, out)

	logger, err := logging.New(a.ErrWriter, a.Config.LogLevel, "rbergomi")
	if err != nil {
		return apperrors.HandleRunError(apperrors.NewConfigError("%v", err), 0, a.ErrWriter, ui.ColorProvider{})
	}

	switch {
	case a.Config.Calibrate:
		return a.runCalibration(ctx, out)
	case a.Config.ServerMode:
		return a.runServer(ctx, logger)
	default:
		return a.runPricing(ctx, out, logger)
	}
}

// runCalibration runs the full calibration mode.
func (a *Application) runCalibration(ctx context.Context, out io.Writer) int {
	return calibration.RunCalibration(ctx, out, calibration.CalibrationOptions{
		Steps:       a.Config.Steps,
		ProfilePath: a.Config.CalibrationProfile,
		SaveProfile: true,
		Timeout:     a.Config.Timeout,
		Quiet:       a.Config.Quiet,
	})
}

// runServer starts the HTTP server mode.
func (a *Application) runServer(ctx context.Context, logger zerolog.Logger) int {
	srv := server.NewServer(a.Config,
		server.WithLogger(logger.With().Str("component", "server").Logger()),
		server.WithBackend(a.resolveBackend(ctx, logger)),
	)
	if err := srv.Start(); err != nil {
		fmt.Fprintf(a.ErrWriter, "Server error: %v\n", err)
		return apperrors.ExitCodeFor(err)
	}
	return apperrors.ExitSuccess
}

// resolveBackend returns the configured FFT backend, consulting the
// calibration profile when it is "auto".
func (a *Application) resolveBackend(ctx context.Context, logger zerolog.Logger) spectral.Backend {
	if b, err := spectral.ParseBackend(a.Config.FFT); err == nil {
		return b
	}
	return calibration.ResolveBackend(ctx, a.Config.Steps, a.Config.CalibrationProfile, logger)
}

// runPricing prices the parameter grid once and writes the result table.
func (a *Application) runPricing(ctx context.Context, out io.Writer, logger zerolog.Logger) int {
	ctx, cancel := SetupLifecycle(ctx, a.Config.Timeout)
	defer cancel.Cleanup()

	start := a.now()
	rows, err := a.price(ctx, out, logger)
	elapsed := a.now().Sub(start)
	if err != nil {
		logger.Debug().Err(err).Dur("elapsed", elapsed).Msg("run failed")
		return apperrors.HandleRunError(err, elapsed, a.ErrWriter, ui.ColorProvider{})
	}

	if err := a.writeResults(out, rows); err != nil {
		return apperrors.HandleRunError(err, 0, a.ErrWriter, ui.ColorProvider{})
	}
	cli.PrintIVWarnings(a.ErrWriter, rows)
	if !a.Config.Quiet && !a.Config.JSONOutput {
		cli.PrintElapsed(out, elapsed)
	}
	return apperrors.ExitSuccess
}

// price loads the grid, builds the entropy source and runs the engine.
func (a *Application) price(ctx context.Context, out io.Writer, logger zerolog.Logger) ([]rbergomi.Result, error) {
	g, err := a.loadGrid()
	if err != nil {
		return nil, err
	}

	opts := a.Config.ToOptions()
	opts.Backend = a.resolveBackend(ctx, logger)
	opts.Logger = logger

	seed := a.Config.Seed
	if !a.Config.SeedSet {
		seed = uint64(a.now().UnixNano())
		logger.Info().Uint64("seed", seed).Msg("no seed given, using the clock")
	}

	src, err := rbergomi.NewSource(a.Config.Sampler, opts, seed)
	if err != nil {
		return nil, apperrors.NewConfigError("%v", err)
	}

	showProgress := !a.Config.Quiet && !a.Config.JSONOutput
	if showProgress {
		cli.PrintExecutionConfig(a.Config, g.Len(), string(opts.Backend), seed, out)
	}

	observers := rbergomi.Observers{
		rbergomi.NewLoggingObserver(logger, progressLogStep),
		rbergomi.NewMetricsObserver(),
	}
	var (
		wg           sync.WaitGroup
		progressChan chan float64
	)
	if showProgress {
		progressChan = make(chan float64, 16)
		observers = append(observers, rbergomi.NewChannelObserver(progressChan))
		wg.Add(1)
		go cli.DisplayProgress(&wg, progressChan, out)
	}
	opts.Observer = observers

	rows, err := rbergomi.Price(ctx, g, src, opts)
	if progressChan != nil {
		close(progressChan)
		wg.Wait()
	}
	return rows, err
}

// loadGrid builds the validated parameter grid from the files or from the
// built-in scenario.
func (a *Application) loadGrid() (*grid.Grid, error) {
	params := cli.ParamSet{
		H:   config.DefaultH,
		Eta: config.DefaultEta,
		Rho: config.DefaultRho,
		T:   config.DefaultT,
		K:   config.DefaultK,
		Xi:  config.DefaultXi,
	}
	if !a.Config.IsDefaultScenario() {
		var err error
		if params, err = cli.LoadParams(a.Config.ParamPath, a.Config.Stem); err != nil {
			return nil, err
		}
	}

	g, err := params.Grid(a.Config.Ordered)
	if err != nil {
		return nil, err
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// writeResults sends the rows to standard output for the built-in scenario
// and to <path><outfile> otherwise.
func (a *Application) writeResults(out io.Writer, rows []rbergomi.Result) error {
	if a.Config.IsDefaultScenario() {
		return cli.WriteResults(out, rows, a.Config.JSONOutput)
	}
	name := a.Config.ParamPath + a.Config.OutFile
	if err := cli.WriteResultsToFile(name, rows, a.Config.JSONOutput); err != nil {
		return err
	}
	if !a.Config.Quiet && !a.Config.JSONOutput {
		t := ui.Current()
		fmt.Fprintf(out, "%sResults saved to: %s%s%s\n", t.Success, t.Secondary, name, t.Reset)
	}
	return nil
}

// IsHelpError checks if the error is a help flag error (--help was used).
// This is useful for determining if the application should exit with success
// after displaying help text.
//
// Parameters:
//   - err: The error to check.
//
// Returns:
//   - bool: True if the error indicates help was requested.
func IsHelpError(err error) bool {
	return errors.Is(err, flag.ErrHelp)
}
