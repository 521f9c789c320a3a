// Package testutil provides fixtures shared by the package tests.
package testutil

import "regexp"

// ansiRegex matches CSI escape sequences: ESC [ parameters, final letter.
var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// StripAnsiCodes removes ANSI escape codes so colored CLI output can be
// compared as plain text.
func StripAnsiCodes(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}
