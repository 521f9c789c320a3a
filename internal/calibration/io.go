package calibration

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/agbru/rbergomi/internal/cli"
	"github.com/agbru/rbergomi/internal/spectral"
	"github.com/agbru/rbergomi/internal/ui"
)

// printCalibrationResults formats and prints the calibration results table.
// best maps each step count to its fastest backend.
func printCalibrationResults(out io.Writer, results []calibrationResult, best map[int]spectral.Backend) {
	t := ui.Current()
	fmt.Fprintf(out, "\n--- Calibration Summary ---\n")
	tw := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintf(tw, "  %sSteps%s    │ %sBackend%s   │ %sConvolution Time%s\n",
		t.Underline, t.Reset, t.Underline, t.Reset, t.Underline, t.Reset)
	fmt.Fprintf(tw, "  %s┼%s┼%s\n", strings.Repeat("─", 10), strings.Repeat("─", 11), strings.Repeat("─", 25))
	for _, res := range results {
		durationStr := fmt.Sprintf("%sN/A%s", t.Error, t.Reset)
		if res.Err == nil {
			durationStr = cli.FormatExecutionDuration(res.Duration)
			if res.Duration == 0 {
				durationStr = "< 1µs"
			}
		}
		highlight := ""
		if best[res.Steps] == res.Backend && res.Err == nil {
			highlight = fmt.Sprintf(" %s(Optimal)%s", t.Success, t.Reset)
		}
		fmt.Fprintf(tw, "  %s%-8d%s │ %-9s │ %s%s%s%s\n",
			t.Primary, res.Steps, t.Reset, res.Backend, t.Warning, durationStr, t.Reset, highlight)
	}
	tw.Flush()
}

// printRecommendation prints the backend recommended for the run's N.
func printRecommendation(out io.Writer, steps int, b spectral.Backend) {
	t := ui.Current()
	fmt.Fprintf(out, "\n%s✅ Recommendation for N=%d on this machine: %s-fft %s%s\n",
		t.Success, steps, t.Warning, b, t.Reset)
}
