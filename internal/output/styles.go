package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette. Never use inline lipgloss.Color literals elsewhere.
var (
	// ColorCyan is used for identifiable nouns: module paths, relay names, files.
	ColorCyan = lipgloss.Color("14")

	// ColorGreen is used for the "written" file status.
	ColorGreen = lipgloss.Color("82")

	// ColorYellow is used for the "stale" file status.
	ColorYellow = lipgloss.Color("220")

	// ColorBoldRed is used for the "failed" status (matches ERROR level).
	ColorBoldRed = lipgloss.Color("204")

	// ColorGreenCheck is used for the completion checkmark.
	ColorGreenCheck = lipgloss.Color("10")

	// ColorDimGray is used for borders and other structural chrome.
	ColorDimGray = lipgloss.Color("240")

	// ColorBlue is used for table headers.
	ColorBlue = lipgloss.Color("12")
)

// Semantic styles.
var (
	// StyleNoun styles identifiable nouns (module paths, relay names, files).
	StyleNoun = lipgloss.NewStyle().Foreground(ColorCyan)

	// StyleAction styles action verbs (generating, checking).
	StyleAction = lipgloss.NewStyle().Bold(true)

	// StyleDim styles structural chrome (scope prefixes, separators, arrows).
	StyleDim = lipgloss.NewStyle().Faint(true)

	// StyleSummary styles completion and summary lines.
	StyleSummary = lipgloss.NewStyle().Bold(true)
)

// File status constants.
const (
	StatusWritten   = "written"
	StatusUnchanged = "unchanged"
	StatusStale     = "stale"
	StatusFailed    = "failed"
)

// StatusStyle returns the lipgloss style for a given file status string.
// Unknown statuses return an unstyled default.
func StatusStyle(status string) lipgloss.Style {
	switch status {
	case StatusWritten:
		return lipgloss.NewStyle().Foreground(ColorGreen)
	case StatusUnchanged:
		return lipgloss.NewStyle().Faint(true)
	case StatusStale:
		return lipgloss.NewStyle().Foreground(ColorYellow)
	case StatusFailed:
		return lipgloss.NewStyle().Bold(true).Foreground(ColorBoldRed)
	default:
		return lipgloss.NewStyle()
	}
}

// minRelayColumnWidth keeps the arrow column of relay lines aligned.
const minRelayColumnWidth = 24

// FormatRelayLine renders one generated relay.
//
// Format: r:<relay>  -> <target>
func FormatRelayLine(relay, target string) string {
	padding := minRelayColumnWidth - len(relay)
	if padding < 2 {
		padding = 2
	}

	return StyleDim.Render("r:") + StyleNoun.Render(relay) +
		strings.Repeat(" ", padding) + StyleDim.Render("-> ") + target
}

// FormatFileLine renders an output file with a color-coded status suffix.
func FormatFileLine(path, status string) string {
	return fmt.Sprintf("%s%s  %s", StyleDim.Render("f:"), StyleNoun.Render(path), StatusStyle(status).Render(status))
}

// FormatCheckmark renders a green checkmark with a message for stdout output.
func FormatCheckmark(msg string) string {
	check := lipgloss.NewStyle().Foreground(ColorGreenCheck).Render("✔")
	return check + " " + msg
}
