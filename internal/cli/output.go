package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	apperrors "github.com/agbru/rbergomi/internal/errors"
	"github.com/agbru/rbergomi/internal/rbergomi"
	"github.com/agbru/rbergomi/internal/ui"
)

// TableHeader is the first line of the result table.
const TableHeader = "xi H eta rho T K price iv stat"

// WriteTable writes one space-separated line per result with %.10g fields.
// A non-converged implied volatility prints as NaN.
//
// Parameters:
//   - w: The destination.
//   - rows: The results in input order.
//
// Returns:
//   - error: The first write error.
func WriteTable(w io.Writer, rows []rbergomi.Result) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, TableHeader)
	for _, r := range rows {
		fmt.Fprintf(bw, "%.10g %.10g %.10g %.10g %.10g %.10g %.10g %.10g %.10g\n",
			r.Xi, r.H, r.Eta, r.Rho, r.T, r.K, r.Price, r.IV, r.StdErr)
	}
	return bw.Flush()
}

// WriteJSON writes the results as an indented JSON array.
func WriteJSON(w io.Writer, rows []rbergomi.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(rows)
}

// WriteResults writes rows to w as JSON or as the table.
func WriteResults(w io.Writer, rows []rbergomi.Result, asJSON bool) error {
	if asJSON {
		return WriteJSON(w, rows)
	}
	return WriteTable(w, rows)
}

// WriteResultsToFile creates name and writes rows into it.
//
// Returns:
//   - error: An apperrors.IOError when the file cannot be created or written.
func WriteResultsToFile(name string, rows []rbergomi.Result, asJSON bool) (err error) {
	f, err := os.Create(name)
	if err != nil {
		return apperrors.NewIOError("create", name, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = apperrors.NewIOError("close", name, cerr)
		}
	}()
	if err := WriteResults(f, rows, asJSON); err != nil {
		return apperrors.NewIOError("write", name, err)
	}
	return nil
}

// PrintElapsed prints the "Time elapsed" line.
func PrintElapsed(w io.Writer, d time.Duration) {
	t := ui.Current()
	fmt.Fprintf(w, "Time elapsed: %s%s%s\n", t.Warning, FormatExecutionDuration(d), t.Reset)
}

// PrintIVWarnings lists rows whose implied volatility did not converge.
func PrintIVWarnings(w io.Writer, rows []rbergomi.Result) {
	t := ui.Current()
	for i, r := range rows {
		if r.IVErr != nil {
			fmt.Fprintf(w, "%sWarning:%s row %d: %v\n", t.Warning, t.Reset, i+1, r.IVErr)
		}
	}
}
