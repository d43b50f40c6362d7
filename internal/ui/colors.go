// Package ui holds the ANSI palette and small styling helpers for terminal
// output. Logs use zerolog's own console colors; this palette is for the
// command output itself.
package ui

const (
	ColorReset = "\033[0m"
	ColorBold  = "\033[1m"
	ColorDim   = "\033[2m"

	ColorCyan   = "\033[36m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorWhite  = "\033[97m"
	ColorRed    = "\033[31m"
)

// Helpers for the common styles. Kept minimal so callers can combine the
// constants directly where these don't fit.
func Bold(s string) string {
	return ColorBold + s + ColorReset
}

func Success(s string) string {
	return ColorGreen + s + ColorReset
}

func Info(s string) string {
	return ColorDim + s + ColorReset
}

func Error(s string) string {
	return ColorRed + s + ColorReset
}
