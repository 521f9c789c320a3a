// Package ui holds the terminal color theme shared by the usage message, the
// result table and the status lines.
package ui

import (
	"io"
	"os"
	"sync"

	"github.com/agbru/rbergomi/internal/logging"
)

// Theme is a set of ANSI escape codes, one per role.
type Theme struct {
	Name      string
	Primary   string
	Secondary string
	Success   string
	Warning   string
	Error     string
	Bold      string
	Underline string
	Reset     string
}

var (
	// DarkTheme is the default palette.
	DarkTheme = Theme{
		Name:      "dark",
		Primary:   "\033[38;5;39m",
		Secondary: "\033[38;5;245m",
		Success:   "\033[38;5;82m",
		Warning:   "\033[38;5;220m",
		Error:     "\033[38;5;196m",
		Bold:      "\033[1m",
		Underline: "\033[4m",
		Reset:     "\033[0m",
	}

	// NoColorTheme disables all escape codes.
	NoColorTheme = Theme{Name: "none"}

	currentTheme = DarkTheme
	themeMutex   sync.RWMutex
)

// Current returns the active theme.
func Current() Theme {
	themeMutex.RLock()
	defer themeMutex.RUnlock()
	return currentTheme
}

// Set replaces the active theme. Tests use it to pin NoColorTheme.
func Set(t Theme) {
	themeMutex.Lock()
	defer themeMutex.Unlock()
	currentTheme = t
}

// Init picks the theme for output written to w. Colors are off when
// noColor is set, when NO_COLOR is present in the environment
// (https://no-color.org/) or when w is not a terminal.
func Init(noColor bool, w io.Writer) {
	t := DarkTheme
	if _, set := os.LookupEnv("NO_COLOR"); noColor || set || !logging.IsTerminal(w) {
		t = NoColorTheme
	}
	Set(t)
}

// ColorProvider adapts the active theme to apperrors.ColorProvider.
type ColorProvider struct{}

// Yellow returns the warning color.
func (ColorProvider) Yellow() string { return Current().Warning }

// Reset returns the reset code.
func (ColorProvider) Reset() string { return Current().Reset }
