// Package config provides the configuration management for the rbergomi
// application. It defines the data structure for the configuration, handles
// the parsing of command-line arguments and environment overrides, and
// performs validation on the configuration values.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shirou/gopsutil/cpu"

	apperrors "github.com/agbru/rbergomi/internal/errors"
	"github.com/agbru/rbergomi/internal/logging"
	"github.com/agbru/rbergomi/internal/rbergomi"
	"github.com/agbru/rbergomi/internal/spectral"
)

const (
	// EnvPrefix is the prefix for all environment variables used by rbergomi.
	// Environment variables provide an alternative to CLI flags for configuration.
	EnvPrefix = "RBERGOMI_"

	// Usage is the positional synopsis.
	Usage = "rbergomi [flags] [N M path outfile stem]"
)

// Default configuration values.
// These can be overridden via command-line flags or environment variables.
const (
	// DefaultTimeout is the default run timeout.
	DefaultTimeout = 30 * time.Minute
	// DefaultPort is the default server port.
	DefaultPort = "8080"
	// DefaultPayoff is the default payoff mode.
	DefaultPayoff = "conditional"
	// DefaultSampler is the default entropy source.
	DefaultSampler = "prng"
	// DefaultFFT selects the backend from the calibration profile.
	DefaultFFT = "auto"
	// DefaultMaxWork bounds steps x samples x rows of one server request.
	DefaultMaxWork = int64(5_000_000_000)
)

// Built-in scenario priced when no positional arguments are given.
var (
	DefaultH   = []float64{0.05, 0.2}
	DefaultEta = []float64{1, 3}
	DefaultRho = []float64{-0.98, -0.8}
	DefaultT   = []float64{0.05, 2}
	DefaultK   = []float64{1, 1.3}
	DefaultXi  = []float64{0.04, 0.04}
)

// AppConfig aggregates the application's configuration parameters, parsed from
// command-line flags, positional arguments and the environment.
type AppConfig struct {
	// Steps is the number of time steps N per path.
	Steps int
	// Samples is the number of Monte-Carlo paths M.
	Samples int64
	// ParamPath, OutFile and Stem come from the five-argument form. Inputs
	// are read from ParamPath + "." + Stem + X + ".txt" and the table is
	// written to ParamPath + OutFile. All empty means the built-in scenario
	// printed to standard output.
	ParamPath string
	OutFile   string
	Stem      string

	// Workers is the pool size.
	Workers int
	// Seed is the master seed. SeedSet is false when neither the flag nor
	// the environment provided one.
	Seed    uint64
	SeedSet bool
	// Payoff is "conditional" or "terminal".
	Payoff string
	// Sampler is "prng" or "halton".
	Sampler string
	// FFT is "auto", "gonum" or "radix2".
	FFT string
	// Ordered sorts the grid before the sweep.
	Ordered bool
	// FullRecompute disables the incremental evaluator.
	FullRecompute bool
	// Verify cross-checks every payoff against a full recompute.
	Verify bool

	// JSONOutput prints rows as a JSON array instead of the table.
	JSONOutput bool
	// Quiet suppresses the spinner and the elapsed-time line.
	Quiet bool
	// NoColor disables colored output. NO_COLOR is honored too.
	NoColor bool
	// LogLevel is a zerolog level name.
	LogLevel string
	// Timeout bounds the whole run.
	Timeout time.Duration

	// ServerMode starts the HTTP API instead of pricing once.
	ServerMode bool
	// Port is the listening port in server mode.
	Port string
	// MaxWork bounds steps x samples x rows of a single request.
	MaxWork int64

	// Calibrate benchmarks the FFT backends and saves a profile.
	Calibrate bool
	// CalibrationProfile overrides ~/.rbergomi_calibration.json.
	CalibrationProfile string
}

// IsDefaultScenario reports whether the built-in scenario is priced.
func (c AppConfig) IsDefaultScenario() bool { return c.ParamPath == "" && c.OutFile == "" && c.Stem == "" }

// PayoffMode returns the parsed payoff mode. Validate guarantees success.
func (c AppConfig) PayoffMode() rbergomi.PayoffMode {
	m, _ := rbergomi.ParsePayoffMode(c.Payoff)
	return m
}

// ToOptions converts the configuration into pricing options. The backend is
// left empty when FFT is "auto"; the caller resolves it.
func (c AppConfig) ToOptions() rbergomi.Options {
	opts := rbergomi.Options{
		Steps:         c.Steps,
		Samples:       c.Samples,
		Workers:       c.Workers,
		Mode:          c.PayoffMode(),
		FullRecompute: c.FullRecompute,
		Verify:        c.Verify,
	}
	if b, err := spectral.ParseBackend(c.FFT); err == nil {
		opts.Backend = b
	}
	return opts
}

// Validate checks the semantic consistency of the configuration parameters.
//
// Returns:
//   - error: A ConfigError if the configuration is invalid, nil otherwise.
func (c AppConfig) Validate() error {
	if c.Steps <= 0 {
		return apperrors.NewConfigError("number of steps N must be strictly positive: %d", c.Steps)
	}
	if c.Samples <= 0 {
		return apperrors.NewConfigError("number of samples M must be strictly positive: %d", c.Samples)
	}
	if c.Workers <= 0 {
		return apperrors.NewConfigError("workers must be strictly positive: %d", c.Workers)
	}
	if c.Timeout <= 0 {
		return apperrors.NewConfigError("timeout value must be strictly positive")
	}
	if c.MaxWork <= 0 {
		return apperrors.NewConfigError("max-work must be strictly positive: %d", c.MaxWork)
	}
	if _, err := rbergomi.ParsePayoffMode(c.Payoff); err != nil {
		return apperrors.NewConfigError("%v (want conditional or terminal)", err)
	}
	switch c.Sampler {
	case "prng", "halton":
	default:
		return apperrors.NewConfigError("unknown sampler %q (want prng or halton)", c.Sampler)
	}
	if c.FFT != "auto" {
		if _, err := spectral.ParseBackend(c.FFT); err != nil {
			return apperrors.NewConfigError("%v (want auto, %s)", err, strings.Join(backendNames(), ", "))
		}
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return apperrors.NewConfigError("invalid log level %q", c.LogLevel)
	}
	return nil
}

func backendNames() []string {
	var names []string
	for _, b := range spectral.Backends() {
		names = append(names, string(b))
	}
	return names
}

// DefaultWorkers returns the number of physical cores, falling back to
// logical cores, then to 1.
func DefaultWorkers() int {
	for _, logical := range []bool{false, true} {
		if n, err := cpu.Counts(logical); err == nil && n > 0 {
			return n
		}
	}
	return 1
}

// LoadDotEnv loads a .env file from the working directory into the process
// environment. Variables already set win, and a missing file is not an error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperrors.NewIOError("load", path, err)
	}
	return nil
}

// ParseConfig parses the command-line arguments and populates an AppConfig
// struct. It defines all the command-line flags, sets their default values,
// applies RBERGOMI_ environment overrides and handles the positional form.
//
// Parameters:
//   - programName: The name of the program, used in the usage message.
//   - args: The command-line arguments (typically os.Args[1:]).
//   - errorWriter: Where parsing errors and usage information are printed.
//
// Returns:
//   - AppConfig: The populated configuration struct.
//   - error: flag.ErrHelp, an ArgumentCountError or a ConfigError.
func ParseConfig(programName string, args []string, errorWriter io.Writer) (AppConfig, error) {
	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errorWriter)

	config := AppConfig{Steps: rbergomi.DefaultSteps, Samples: rbergomi.DefaultSamples}
	fs.IntVar(&config.Workers, "workers", DefaultWorkers(), "Number of Monte-Carlo workers.")
	fs.Uint64Var(&config.Seed, "seed", 0, "Master seed (default: derived from the clock and logged).")
	fs.StringVar(&config.Payoff, "payoff", DefaultPayoff, "Payoff: 'conditional' (reduced variance) or 'terminal'.")
	fs.StringVar(&config.Sampler, "sampler", DefaultSampler, "Entropy source: 'prng' or 'halton'.")
	fs.StringVar(&config.FFT, "fft", DefaultFFT, "FFT backend: 'auto', 'gonum' or 'radix2'.")
	fs.BoolVar(&config.Ordered, "ordered", true, "Sort the parameter grid to maximize path reuse.")
	fs.BoolVar(&config.FullRecompute, "full-recompute", false, "Rebuild the whole path for every grid row.")
	fs.BoolVar(&config.Verify, "verify", false, "Cross-check every payoff against a full recompute.")
	fs.BoolVar(&config.JSONOutput, "json", false, "Output results in JSON format.")
	fs.BoolVar(&config.Quiet, "quiet", false, "Quiet mode - no progress or timing output.")
	fs.BoolVar(&config.Quiet, "q", false, "Quiet mode (shorthand).")
	fs.BoolVar(&config.NoColor, "no-color", false, "Disable colored output (also respects NO_COLOR env var).")
	fs.StringVar(&config.LogLevel, "log-level", "warn", "Log level: debug, info, warn, error.")
	fs.DurationVar(&config.Timeout, "timeout", DefaultTimeout, "Maximum execution time of a run.")
	fs.BoolVar(&config.ServerMode, "server", false, "Start in HTTP server mode.")
	fs.StringVar(&config.Port, "port", DefaultPort, "Port to listen on in server mode.")
	fs.Int64Var(&config.MaxWork, "max-work", DefaultMaxWork, "Largest steps x samples x rows accepted per server request.")
	fs.BoolVar(&config.Calibrate, "calibrate", false, "Benchmark the FFT backends and save a calibration profile.")
	fs.StringVar(&config.CalibrationProfile, "calibration-profile", "", "Path to calibration profile file (default: ~/.rbergomi_calibration.json).")

	setCustomUsage(fs)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return AppConfig{}, err
		}
		return AppConfig{}, apperrors.NewConfigError("%v", err)
	}

	applyEnvOverrides(&config, fs)
	config.SeedSet = isFlagSet(fs, "seed") || envSet("SEED")

	if err := config.applyPositionals(fs.Args()); err != nil {
		fmt.Fprintln(errorWriter, "Error:", err)
		return AppConfig{}, err
	}

	config.Payoff = strings.ToLower(config.Payoff)
	config.Sampler = strings.ToLower(config.Sampler)
	config.FFT = strings.ToLower(config.FFT)
	if err := config.Validate(); err != nil {
		fmt.Fprintln(errorWriter, "Configuration error:", err)
		return AppConfig{}, err
	}
	return config, nil
}

// applyPositionals accepts either nothing or exactly "N M path outfile stem".
func (c *AppConfig) applyPositionals(rest []string) error {
	switch len(rest) {
	case 0:
		return nil
	case 5:
	default:
		return apperrors.ArgumentCountError{Got: len(rest), Usage: Usage}
	}
	n, err := strconv.Atoi(rest[0])
	if err != nil {
		return apperrors.NewConfigError("invalid number of steps N %q", rest[0])
	}
	m, err := strconv.ParseInt(rest[1], 10, 64)
	if err != nil {
		return apperrors.NewConfigError("invalid number of samples M %q", rest[1])
	}
	c.Steps, c.Samples = n, m
	c.ParamPath, c.OutFile, c.Stem = rest[2], rest[3], rest[4]
	return nil
}
