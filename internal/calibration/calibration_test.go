package calibration

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	apperrors "github.com/agbru/rbergomi/internal/errors"
	"github.com/agbru/rbergomi/internal/spectral"
)

func TestTimeConvolution(t *testing.T) {
	t.Parallel()
	for _, b := range spectral.Backends() {
		d, err := timeConvolution(context.Background(), b, 64, 3)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", b, err)
		}
		if d < 0 {
			t.Errorf("%s: negative duration %v", b, d)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := timeConvolution(ctx, spectral.Gonum, 64, 3); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestAnalyzeResults(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name           string
		results        []testResult
		wantBackend    spectral.Backend
		wantConfidence float64
	}{
		{"No results", nil, spectral.Gonum, 0},
		{"All failed", []testResult{{backend: spectral.Radix2, err: context.DeadlineExceeded}}, spectral.Gonum, 0},
		{"Single backend", []testResult{{backend: spectral.Radix2, duration: time.Millisecond}}, spectral.Radix2, 0.3},
		{
			"Clear winner",
			[]testResult{
				{backend: spectral.Gonum, duration: 3 * time.Millisecond},
				{backend: spectral.Radix2, duration: time.Millisecond},
			},
			spectral.Radix2, 1.0,
		},
		{
			"Near tie",
			[]testResult{
				{backend: spectral.Gonum, duration: 100 * time.Microsecond},
				{backend: spectral.Radix2, duration: 110 * time.Microsecond},
			},
			spectral.Gonum, 0.6,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			br := analyzeResults(tt.results)
			if br.Backend != tt.wantBackend {
				t.Errorf("Backend = %q, want %q", br.Backend, tt.wantBackend)
			}
			if diff := br.Confidence - tt.wantConfidence; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Confidence = %v, want %v", br.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestQuickCalibrate(t *testing.T) {
	t.Parallel()
	mb := NewMicroBenchmark(32)
	mb.Timeout = 5 * time.Second
	br, err := mb.RunQuick(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if _, err := spectral.ParseBackend(string(br.Backend)); err != nil {
		t.Errorf("Unexpected backend %q", br.Backend)
	}
	if len(br.Timings) != len(spectral.Backends()) {
		t.Errorf("Expected a timing per backend, got %v", br.Timings)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := QuickCalibrate(ctx, 32); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestResolveBackendUsesCachedProfile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "profile.json")
	p := NewProfile()
	p.DefaultBackend = "gonum"
	p.AddRangeBackend(RangeBackend{MinSteps: 1, MaxSteps: 127, Backend: "radix2", ConfidenceScore: 0.9, MeasurementCount: 2})
	if err := p.SaveProfile(path); err != nil {
		t.Fatal(err)
	}

	if got := ResolveBackend(context.Background(), 100, path, zerolog.Nop()); got != spectral.Radix2 {
		t.Errorf("Expected cached radix2, got %q", got)
	}
}

func TestResolveBackendCanceled(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "profile.json")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if got := ResolveBackend(ctx, 100, path, zerolog.Nop()); got != spectral.Gonum {
		t.Errorf("Expected gonum fallback, got %q", got)
	}
	if ProfileExists(path) {
		t.Error("Expected no profile to be written for an inconclusive calibration")
	}
}

func TestRunCalibration(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "profile.json")
	var out bytes.Buffer

	code := RunCalibration(context.Background(), &out, CalibrationOptions{
		Steps:       16,
		ProfilePath: path,
		SaveProfile: true,
		Timeout:     time.Minute,
		Quiet:       true,
	})
	if code != apperrors.ExitSuccess {
		t.Fatalf("Expected exit 0, got %d\n%s", code, out.String())
	}
	for _, want := range []string{"Calibration Summary", "gonum", "radix2", "(Optimal)", "Recommendation for N=16"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("Expected %q in output:\n%s", want, out.String())
		}
	}

	loaded, err := LoadProfile(path)
	if err != nil {
		t.Fatalf("Expected saved profile: %v", err)
	}
	if loaded.CalibrationSteps != 16 {
		t.Errorf("CalibrationSteps = %d, want 16", loaded.CalibrationSteps)
	}
	if len(loaded.BackendsByRange) != len(DefaultStepRanges) {
		t.Errorf("Expected one range per step range, got %d", len(loaded.BackendsByRange))
	}

	out.Reset()
	code = RunCalibration(context.Background(), &out, CalibrationOptions{Steps: 16, ProfilePath: path, LoadProfile: true, Quiet: true})
	if code != apperrors.ExitSuccess {
		t.Fatalf("Expected exit 0 from cached profile, got %d", code)
	}
	if !strings.Contains(out.String(), "Loaded existing calibration profile") && !strings.Contains(out.String(), "Calibration Summary") {
		t.Errorf("Unexpected output:\n%s", out.String())
	}
}

func TestRunCalibrationCanceled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	code := RunCalibration(ctx, io.Discard, CalibrationOptions{Steps: 16, Quiet: true})
	if code != apperrors.ExitErrorCanceled {
		t.Errorf("Expected exit %d, got %d", apperrors.ExitErrorCanceled, code)
	}
}
