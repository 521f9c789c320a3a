package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

// WriteParamFiles writes one parameter file per entry of files, named
// <dir>/run.<stem><name>.txt, and returns the prefix <dir>/run.
func WriteParamFiles(t testing.TB, dir, stem string, files map[string]string) string {
	t.Helper()
	prefix := filepath.Join(dir, "run")
	for name, body := range files {
		path := fmt.Sprintf("%s.%s%s.txt", prefix, stem, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", path, err)
		}
	}
	return prefix
}

// ValidParamFiles returns the bodies of a consistent two-row grid.
func ValidParamFiles() map[string]string {
	return map[string]string{
		"H":   "0.07\n0.1\n",
		"eta": "1.9\n# comment\n2.1\n",
		"rho": "-0.9\n\n-0.8\n",
		"T":   "1\n0.5\n",
		"K":   "1\n1.1\n",
		"xi":  "0.0552\n0.04\n",
	}
}
