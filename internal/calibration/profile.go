// Package calibration picks the fastest FFT backend for the machine and the
// number of time steps. This file implements calibration profile persistence.
package calibration

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/shirou/gopsutil/cpu"

	"github.com/agbru/rbergomi/internal/spectral"
)

// CalibrationProfile stores the results of a calibration run.
// It captures both the chosen backends and the hardware context
// to allow validation of cached results.
type CalibrationProfile struct {
	// Hardware identification
	CPUModel  string `json:"cpu_model"`
	NumCPU    int    `json:"num_cpu"`
	GOARCH    string `json:"goarch"`
	GOOS      string `json:"goos"`
	GoVersion string `json:"go_version"`
	WordSize  int    `json:"word_size"` // 32 or 64

	// DefaultBackend is the backend chosen at CalibrationSteps.
	DefaultBackend string `json:"default_backend"`

	// Backends by step range, for runs at other N
	BackendsByRange []RangeBackend `json:"backends_by_range,omitempty"`

	// Calibration metadata
	CalibratedAt     time.Time `json:"calibrated_at"`
	CalibrationSteps int       `json:"calibration_steps"`
	CalibrationTime  string    `json:"calibration_time"`

	// Version for forward compatibility
	ProfileVersion int `json:"profile_version"`
}

// RangeBackend stores the fastest backend for a range of step counts.
type RangeBackend struct {
	// MinSteps is the smallest N (inclusive) of the range
	MinSteps int `json:"min_steps"`
	// MaxSteps is the largest N (inclusive) of the range
	MaxSteps int `json:"max_steps"`
	// Backend is the fastest backend measured in the range
	Backend string `json:"backend"`
	// Speedup is the time of the slower backend over the faster one
	Speedup float64 `json:"speedup"`
	// ConfidenceScore indicates the reliability of the choice (0-1)
	ConfidenceScore float64 `json:"confidence_score"`
	// MeasurementCount is the number of measurements behind the choice
	MeasurementCount int `json:"measurement_count"`
}

const (
	// CurrentProfileVersion is the current version of the profile format.
	// Increment this when making breaking changes to the profile structure.
	CurrentProfileVersion = 1

	// DefaultProfileFileName is the default name for the calibration profile file.
	DefaultProfileFileName = ".rbergomi_calibration.json"

	// MinConfidence is the score below which a range entry is ignored.
	MinConfidence = 0.5
)

// DefaultStepRanges partitions the step counts N. Transform sizes inside a
// range share the same cache behavior, so one measurement stands for all.
var DefaultStepRanges = []struct {
	MinSteps, MaxSteps int
	Label              string
}{
	{1, 127, "small"},
	{128, 1023, "medium"},
	{1024, 8191, "large"},
	{8192, math.MaxInt, "huge"},
}

// StepRange returns the bounds of the DefaultStepRanges entry holding n.
func StepRange(n int) (minSteps, maxSteps int) {
	for _, r := range DefaultStepRanges {
		if n >= r.MinSteps && n <= r.MaxSteps {
			return r.MinSteps, r.MaxSteps
		}
	}
	return n, n
}

// GetDefaultProfilePath returns the default path for the calibration profile.
// It uses the user's home directory if available, otherwise the current directory.
func GetDefaultProfilePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return DefaultProfileFileName
	}
	return filepath.Join(home, DefaultProfileFileName)
}

// NewProfile creates a new CalibrationProfile with current hardware info.
func NewProfile() *CalibrationProfile {
	return &CalibrationProfile{
		CPUModel:       getCPUModel(),
		NumCPU:         runtime.NumCPU(),
		GOARCH:         runtime.GOARCH,
		GOOS:           runtime.GOOS,
		GoVersion:      runtime.Version(),
		WordSize:       32 << (^uint(0) >> 63), // 32 or 64
		CalibratedAt:   time.Now(),
		ProfileVersion: CurrentProfileVersion,
	}
}

// getCPUModel returns the CPU model name reported by the OS, or a generic
// identifier when it is not available.
func getCPUModel() string {
	if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
		if name := strings.TrimSpace(infos[0].ModelName); name != "" {
			return name
		}
	}
	return fmt.Sprintf("%s-%d-cores", runtime.GOARCH, runtime.NumCPU())
}

// LoadProfile loads a calibration profile from the specified path.
// Returns nil and an error if the file doesn't exist or can't be parsed.
func LoadProfile(path string) (*CalibrationProfile, error) {
	if path == "" {
		path = GetDefaultProfilePath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}

	var profile CalibrationProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}

	return &profile, nil
}

// SaveProfile saves the calibration profile to the specified path.
// If path is empty, uses the default profile path.
func (p *CalibrationProfile) SaveProfile(path string) error {
	if path == "" {
		path = GetDefaultProfilePath()
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}

	return nil
}

// IsValid checks if the profile is valid for the current hardware.
// A profile is considered valid if:
// - The profile version matches
// - The number of CPUs, the architecture and the word size match
// - The default backend is one this build knows
func (p *CalibrationProfile) IsValid() bool {
	if p == nil {
		return false
	}

	if p.ProfileVersion != CurrentProfileVersion {
		return false
	}

	if p.NumCPU != runtime.NumCPU() || p.GOARCH != runtime.GOARCH {
		return false
	}

	wordSize := 32 << (^uint(0) >> 63)
	if p.WordSize != wordSize {
		return false
	}

	_, err := spectral.ParseBackend(p.DefaultBackend)
	return err == nil
}

// IsStale checks if the profile is older than the given duration.
// This can be used to trigger re-calibration after a certain period.
func (p *CalibrationProfile) IsStale(maxAge time.Duration) bool {
	if p == nil {
		return true
	}
	return time.Since(p.CalibratedAt) > maxAge
}

// String returns a human-readable summary of the profile.
func (p *CalibrationProfile) String() string {
	if p == nil {
		return "<nil profile>"
	}

	rangeInfo := ""
	if len(p.BackendsByRange) > 0 {
		rangeInfo = fmt.Sprintf(", Ranges: %d", len(p.BackendsByRange))
	}

	return fmt.Sprintf(
		"CalibrationProfile{CPU: %s, Backend: %s at N=%d%s, Calibrated: %s}",
		p.CPUModel,
		p.DefaultBackend,
		p.CalibrationSteps,
		rangeInfo,
		p.CalibratedAt.Format(time.RFC3339),
	)
}

// BackendForSteps returns the backend to use for n time steps.
// A matching range with sufficient confidence wins; otherwise the default
// backend is returned.
//
// Returns:
//   - spectral.Backend: The chosen backend.
//   - bool: false when the profile holds no usable backend.
func (p *CalibrationProfile) BackendForSteps(n int) (spectral.Backend, bool) {
	if p == nil {
		return "", false
	}

	for _, r := range p.BackendsByRange {
		if n >= r.MinSteps && n <= r.MaxSteps && r.ConfidenceScore >= MinConfidence {
			if b, err := spectral.ParseBackend(r.Backend); err == nil {
				return b, true
			}
		}
	}

	b, err := spectral.ParseBackend(p.DefaultBackend)
	if err != nil {
		return "", false
	}
	return b, true
}

// HasRangeFor reports whether a confident range entry covers n.
func (p *CalibrationProfile) HasRangeFor(n int) bool {
	if p == nil {
		return false
	}
	for _, r := range p.BackendsByRange {
		if n >= r.MinSteps && n <= r.MaxSteps && r.ConfidenceScore >= MinConfidence {
			return true
		}
	}
	return false
}

// AddRangeBackend adds or updates the entry of a step range.
// When an entry with the same bounds agrees on the backend, speedup and
// confidence become averages weighted by measurement counts. When it
// disagrees, the new measurement replaces it.
func (p *CalibrationProfile) AddRangeBackend(r RangeBackend) {
	for i, existing := range p.BackendsByRange {
		if existing.MinSteps != r.MinSteps || existing.MaxSteps != r.MaxSteps {
			continue
		}
		if existing.Backend != r.Backend {
			p.BackendsByRange[i] = r
			return
		}
		totalCount := existing.MeasurementCount + r.MeasurementCount
		if totalCount > 0 {
			existingWeight := float64(existing.MeasurementCount) / float64(totalCount)
			newWeight := float64(r.MeasurementCount) / float64(totalCount)

			p.BackendsByRange[i].Speedup = existing.Speedup*existingWeight + r.Speedup*newWeight
			p.BackendsByRange[i].ConfidenceScore = existing.ConfidenceScore*existingWeight + r.ConfidenceScore*newWeight
			p.BackendsByRange[i].MeasurementCount = totalCount
		}
		return
	}

	p.BackendsByRange = append(p.BackendsByRange, r)
}

// LoadOrCreateProfile loads an existing profile or creates a new one if not found.
// If the existing profile is invalid for the current hardware, returns a new profile.
func LoadOrCreateProfile(path string) (*CalibrationProfile, bool) {
	profile, err := LoadProfile(path)
	if err != nil {
		return NewProfile(), false
	}

	if !profile.IsValid() {
		return NewProfile(), false
	}

	return profile, true
}

// ProfileExists checks if a calibration profile exists at the given path.
func ProfileExists(path string) bool {
	if path == "" {
		path = GetDefaultProfilePath()
	}
	_, err := os.Stat(path)
	return err == nil
}
