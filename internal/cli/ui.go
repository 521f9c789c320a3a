// The cli package provides the command-line presentation layer of the pricer:
// loading parameter files, showing run progress, and formatting the result
// table.
package cli

import (
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/briandowns/spinner"

	"github.com/agbru/rbergomi/internal/config"
	"github.com/agbru/rbergomi/internal/ui"
)

// FormatExecutionDuration formats a time.Duration for display.
// It shows microseconds for durations less than a millisecond, milliseconds for
// durations less than a second, and the default string representation otherwise.
//
// Parameters:
//   - d: The duration to format.
//
// Returns:
//   - string: A formatted string representing the duration.
func FormatExecutionDuration(d time.Duration) string {
	if d < time.Millisecond {
		return fmt.Sprintf("%dµs", d.Microseconds())
	} else if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return d.Round(time.Millisecond).String()
}

const (
	// ProgressRefreshRate defines the refresh frequency of the progress bar.
	ProgressRefreshRate = 200 * time.Millisecond
	// ProgressBarWidth defines the width in characters of the progress bar.
	ProgressBarWidth = 40
)

// Spinner abstracts the terminal spinner so DisplayProgress can be tested
// without a terminal.
type Spinner interface {
	// Start begins the spinner animation.
	Start()
	// Stop halts the spinner animation.
	Stop()
	// UpdateSuffix sets the text that is displayed after the spinner.
	UpdateSuffix(suffix string)
}

// realSpinner adapts spinner.Spinner to the Spinner interface.
type realSpinner struct {
	s *spinner.Spinner
}

func (rs *realSpinner) Start()                     { rs.s.Start() }
func (rs *realSpinner) Stop()                      { rs.s.Stop() }
func (rs *realSpinner) UpdateSuffix(suffix string) { rs.s.Suffix = suffix }

var newSpinner = func(options ...spinner.Option) Spinner {
	s := spinner.New(spinner.CharSets[11], ProgressRefreshRate, options...)
	return &realSpinner{s}
}

// progressBar generates a string representing a textual progress bar.
//
// Parameters:
//   - progress: The normalized progress value (0.0 to 1.0).
//   - length: The total character width of the progress bar.
//
// Returns:
//   - string: A string representation of the progress bar.
func progressBar(progress float64, length int) string {
	progress = min(max(progress, 0), 1)
	count := int(progress * float64(length))
	var builder strings.Builder
	builder.Grow(length * 3)
	for i := 0; i < length; i++ {
		if i < count {
			builder.WriteRune('█')
		} else {
			builder.WriteRune('░')
		}
	}
	return builder.String()
}

// estimateRemaining extrapolates the time left from the elapsed time,
// assuming a constant sample rate.
func estimateRemaining(progress float64, elapsed time.Duration) time.Duration {
	if progress <= 0 || progress >= 1 {
		return 0
	}
	return time.Duration(float64(elapsed) * (1 - progress) / progress)
}

// FormatETA formats a remaining-time estimate.
func FormatETA(d time.Duration) string {
	switch {
	case d <= 0:
		return "calculating..."
	case d < time.Second:
		return "< 1s"
	default:
		return d.Round(time.Second).String()
	}
}

// DisplayProgress renders a spinner with a progress bar and ETA until
// progressChan is closed. It is designed to run in a dedicated goroutine
// fed by an rbergomi.ChannelObserver.
//
// Parameters:
//   - wg: Signaled when the display routine is complete.
//   - progressChan: Normalized progress values in [0, 1].
//   - out: The io.Writer to which the progress bar is rendered.
func DisplayProgress(wg *sync.WaitGroup, progressChan <-chan float64, out io.Writer) {
	defer wg.Done()

	start := time.Now()
	progress := 0.0
	s := newSpinner(spinner.WithWriter(out))
	s.Start()
	spinnerStopped := false
	defer func() {
		if !spinnerStopped {
			s.Stop()
		}
	}()

	ticker := time.NewTicker(ProgressRefreshRate)
	defer ticker.Stop()

	for {
		select {
		case p, ok := <-progressChan:
			if !ok {
				s.Stop()
				spinnerStopped = true
				fmt.Fprintf(out, "Progress: %6.2f%% [%s]\n", 100.0, progressBar(1, ProgressBarWidth))
				return
			}
			progress = max(progress, p)
		case <-ticker.C:
			eta := estimateRemaining(progress, time.Since(start))
			s.UpdateSuffix(fmt.Sprintf(" Progress: %6.2f%% [%s] ETA: %s",
				progress*100, progressBar(progress, ProgressBarWidth), FormatETA(eta)))
		}
	}
}

// PrintExecutionConfig prints a summary of the run about to start.
//
// Parameters:
//   - cfg: The application configuration.
//   - rows: Number of grid rows.
//   - backend: The resolved FFT backend.
//   - seed: The master seed in use.
//   - out: The writer for standard output.
func PrintExecutionConfig(cfg config.AppConfig, rows int, backend string, seed uint64, out io.Writer) {
	t := ui.Current()
	fmt.Fprintf(out, "--- Execution Configuration ---\n")
	fmt.Fprintf(out, "Pricing %s%d%s grid rows with N=%s%d%s steps and M=%s%d%s samples (%s payoff, %s sampler).\n",
		t.Primary, rows, t.Reset, t.Primary, cfg.Steps, t.Reset, t.Primary, cfg.Samples, t.Reset, cfg.Payoff, cfg.Sampler)
	fmt.Fprintf(out, "Workers: %s%d%s, FFT: %s%s%s, seed: %s%d%s, timeout: %s%s%s.\n",
		t.Secondary, cfg.Workers, t.Reset, t.Secondary, backend, t.Reset, t.Secondary, seed, t.Reset, t.Warning, cfg.Timeout, t.Reset)
	fmt.Fprintf(out, "Environment: %s%d%s logical processors, Go %s%s%s.\n\n",
		t.Secondary, runtime.NumCPU(), t.Reset, t.Secondary, runtime.Version(), t.Reset)
}
