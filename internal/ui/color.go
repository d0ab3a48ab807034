// Package ui provides terminal output helpers for skillbridge.
package ui

import (
	"github.com/fatih/color"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Styled print functions.
var (
	// Success renders successful results (green).
	Success = color.New(color.FgGreen).SprintFunc()
	// Failure renders errors (red).
	Failure = color.New(color.FgRed).SprintFunc()
	// Warning renders warnings (yellow).
	Warning = color.New(color.FgYellow).SprintFunc()
	// Info renders informational text (cyan).
	Info = color.New(color.FgCyan).SprintFunc()
	// Bold renders emphasized text.
	Bold = color.New(color.Bold).SprintFunc()
	// Dim renders secondary text (faint).
	Dim = color.New(color.Faint).SprintFunc()
	// Header renders section headers (bold cyan).
	Header = color.New(color.FgCyan, color.Bold).SprintFunc()
)

// Status symbols.
const (
	SymbolSuccess = "✓"
	SymbolError   = "✗"
	SymbolWarning = "⚠"
	SymbolSkipped = "-"
)

// StatusSuccess returns a green checkmark with optional message.
func StatusSuccess(msg string) string {
	if msg == "" {
		return Success(SymbolSuccess)
	}
	return Success(SymbolSuccess) + " " + msg
}

// StatusError returns a red X with optional message.
func StatusError(msg string) string {
	if msg == "" {
		return Failure(SymbolError)
	}
	return Failure(SymbolError) + " " + msg
}

// StatusWarning returns a yellow warning with optional message.
func StatusWarning(msg string) string {
	if msg == "" {
		return Warning(SymbolWarning)
	}
	return Warning(SymbolWarning) + " " + msg
}

// StatusSkipped returns a dimmed skip marker with optional message.
func StatusSkipped(msg string) string {
	if msg == "" {
		return Dim(SymbolSkipped)
	}
	return Dim(SymbolSkipped) + " " + msg
}

var titleCaser = cases.Title(language.English)

// Label renders a field label in title case, e.g. "serial number"
// becomes "Serial Number".
func Label(s string) string {
	return Bold(titleCaser.String(s))
}

// DeviceState colors an adb device state: "device" is ready, offline
// and unauthorized states are problems.
func DeviceState(state string) string {
	switch state {
	case "device", "connected":
		return Success(state)
	case "offline", "unauthorized":
		return Failure(state)
	default:
		return Warning(state)
	}
}

// DisableColors disables all color output, for piped output or
// NO_COLOR users.
func DisableColors() {
	color.NoColor = true
}

// EnableColors forces color output on.
func EnableColors() {
	color.NoColor = false
}

// IsColorEnabled reports whether colors are currently enabled.
func IsColorEnabled() bool {
	return !color.NoColor
}
