// Package app wires the rbergomi command: it parses the configuration,
// dispatches to pricing, calibration or server mode, and reports versions.
package app

import (
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"slices"
)

// Build-time variables set via -ldflags.
//
// Example build command:
//
//	go build -ldflags="-X github.com/agbru/rbergomi/internal/app.Version=v0.3.0 -X github.com/agbru/rbergomi/internal/app.Commit=abc123 -X github.com/agbru/rbergomi/internal/app.BuildDate=2026-01-01T00:00:00Z" ./cmd/rbergomi
var (
	// Version is the semantic version of the application (e.g., "v1.0.0").
	Version = "dev"
	// Commit is the short Git commit hash (e.g., "abc123").
	Commit = "unknown"
	// BuildDate is the ISO 8601 timestamp of the build.
	BuildDate = "unknown"
)

// HasVersionFlag reports whether any argument asks for the version, so that
// -version works in any position (e.g. "rbergomi -server --version").
func HasVersionFlag(args []string) bool {
	return slices.ContainsFunc(args, func(arg string) bool {
		return arg == "--version" || arg == "-version" || arg == "-V"
	})
}

// HasJSONFlag reports whether -json appears among the arguments.
func HasJSONFlag(args []string) bool {
	return slices.Contains(args, "-json") || slices.Contains(args, "--json")
}

// VersionData is the build and runtime information reported by -version.
type VersionData struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetVersionInfo returns the current version information.
func GetVersionInfo() VersionData {
	return VersionData{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// PrintVersion writes the version block, or a JSON object when asJSON is set.
//
// Parameters:
//   - out: The destination writer.
//   - asJSON: Emit VersionData as JSON instead of text.
func PrintVersion(out io.Writer, asJSON bool) {
	info := GetVersionInfo()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		_ = enc.Encode(info)
		return
	}
	fmt.Fprintf(out, "rbergomi %s\n", info.Version)
	fmt.Fprintf(out, "  Commit:     %s\n", info.Commit)
	fmt.Fprintf(out, "  Built:      %s\n", info.BuildDate)
	fmt.Fprintf(out, "  Go version: %s\n", info.GoVersion)
	fmt.Fprintf(out, "  OS/Arch:    %s/%s\n", info.OS, info.Arch)
}
