// This file contains environment variable utilities for configuration override.
package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Environment Variable Utilities
// ─────────────────────────────────────────────────────────────────────────────

// envSet reports whether RBERGOMI_<key> is set to a non-empty value.
func envSet(key string) bool { return os.Getenv(EnvPrefix+key) != "" }

// getEnvString returns the value of the environment variable with the given key
// (prefixed with EnvPrefix), or the default value if not set.
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		return val
	}
	return defaultVal
}

// getEnvUint64 returns the value of the environment variable with the given key
// (prefixed with EnvPrefix) parsed as uint64, or the default value if not set
// or invalid.
func getEnvUint64(key string, defaultVal uint64) uint64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.ParseUint(val, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvInt64 is getEnvUint64 for signed 64-bit values.
func getEnvInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvInt returns the value of the environment variable with the given key
// (prefixed with EnvPrefix) parsed as int, or the default value if not set
// or invalid.
func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvBool returns the value of the environment variable with the given key
// (prefixed with EnvPrefix) parsed as bool, or the default value if not set.
// Accepts "true", "1", "yes" as true; "false", "0", "no" as false (case-insensitive).
func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return defaultVal
}

// getEnvDuration returns the value of the environment variable with the given key
// (prefixed with EnvPrefix) parsed as time.Duration, or the default value if not
// set or invalid. Accepts formats like "5m", "30s", "1h30m".
func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(EnvPrefix + key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// isFlagSet checks if a flag was explicitly set on the command line.
// This is used to determine whether to apply environment variable overrides.
func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

// applyEnvOverrides applies environment variable values to the configuration
// for any flags that were not explicitly set on the command line.
// This implements the priority: CLI flags > Environment variables > Defaults.
//
// Supported environment variables:
//   - RBERGOMI_WORKERS: Number of workers (int)
//   - RBERGOMI_SEED: Master seed (uint64)
//   - RBERGOMI_MAX_WORK: Server request work limit (int64)
//   - RBERGOMI_TIMEOUT: Run timeout (duration: "5m", "30s")
//   - RBERGOMI_PAYOFF, RBERGOMI_SAMPLER, RBERGOMI_FFT: Engine choices (string)
//   - RBERGOMI_LOG_LEVEL: zerolog level (string)
//   - RBERGOMI_PORT: Port for server mode (string)
//   - RBERGOMI_CALIBRATION_PROFILE: Path to calibration profile (string)
//   - RBERGOMI_ORDERED, RBERGOMI_FULL_RECOMPUTE, RBERGOMI_VERIFY (bool)
//   - RBERGOMI_JSON, RBERGOMI_QUIET, RBERGOMI_NO_COLOR (bool)
//   - RBERGOMI_SERVER, RBERGOMI_CALIBRATE (bool)
func applyEnvOverrides(config *AppConfig, fs *flag.FlagSet) {
	applyNumericOverrides(config, fs)
	applyDurationOverrides(config, fs)
	applyStringOverrides(config, fs)
	applyBooleanOverrides(config, fs)
}

func applyNumericOverrides(config *AppConfig, fs *flag.FlagSet) {
	if !isFlagSet(fs, "workers") {
		config.Workers = getEnvInt("WORKERS", config.Workers)
	}
	if !isFlagSet(fs, "seed") {
		config.Seed = getEnvUint64("SEED", config.Seed)
	}
	if !isFlagSet(fs, "max-work") {
		config.MaxWork = getEnvInt64("MAX_WORK", config.MaxWork)
	}
}

func applyDurationOverrides(config *AppConfig, fs *flag.FlagSet) {
	if !isFlagSet(fs, "timeout") {
		config.Timeout = getEnvDuration("TIMEOUT", config.Timeout)
	}
}

func applyStringOverrides(config *AppConfig, fs *flag.FlagSet) {
	overrides := []struct {
		flag, key string
		dst       *string
	}{
		{"payoff", "PAYOFF", &config.Payoff},
		{"sampler", "SAMPLER", &config.Sampler},
		{"fft", "FFT", &config.FFT},
		{"log-level", "LOG_LEVEL", &config.LogLevel},
		{"port", "PORT", &config.Port},
		{"calibration-profile", "CALIBRATION_PROFILE", &config.CalibrationProfile},
	}
	for _, o := range overrides {
		if !isFlagSet(fs, o.flag) {
			*o.dst = getEnvString(o.key, *o.dst)
		}
	}
}

func applyBooleanOverrides(config *AppConfig, fs *flag.FlagSet) {
	overrides := []struct {
		flags []string
		key   string
		dst   *bool
	}{
		{[]string{"ordered"}, "ORDERED", &config.Ordered},
		{[]string{"full-recompute"}, "FULL_RECOMPUTE", &config.FullRecompute},
		{[]string{"verify"}, "VERIFY", &config.Verify},
		{[]string{"json"}, "JSON", &config.JSONOutput},
		{[]string{"quiet", "q"}, "QUIET", &config.Quiet},
		{[]string{"no-color"}, "NO_COLOR", &config.NoColor},
		{[]string{"server"}, "SERVER", &config.ServerMode},
		{[]string{"calibrate"}, "CALIBRATE", &config.Calibrate},
	}
	for _, o := range overrides {
		set := false
		for _, name := range o.flags {
			set = set || isFlagSet(fs, name)
		}
		if !set {
			*o.dst = getEnvBool(o.key, *o.dst)
		}
	}
}
