package ui

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/mkefalas/sigmalink/internal/transcript"
)

// Color palette.
var (
	PrimaryColor = lipgloss.Color("#7D56F4") // Purple - headers, borders
	ArmedColor   = lipgloss.Color("#43BF6D") // Green - armed, verified
	ErrorColor   = lipgloss.Color("#FF5555") // Red - errors, open zones
	WarningColor = lipgloss.Color("#FFA500") // Orange - disarmed, bypassed
	MutedColor   = lipgloss.Color("#626262") // Gray - secondary info
	TextColor    = lipgloss.Color("#FFFFFF") // White - main content
)

// Layout constants.
const (
	MinTerminalWidth = 60
	MaxContentWidth  = 100
)

// Shared styles.
var (
	TitleStyle = lipgloss.NewStyle().
			Foreground(TextColor).
			Bold(true).
			PaddingLeft(2)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			PaddingLeft(2)

	LabelStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Width(12).
			PaddingLeft(2)

	ValueStyle = lipgloss.NewStyle().
			Foreground(TextColor)

	UnavailableStyle = lipgloss.NewStyle().
				Foreground(ErrorColor).
				Bold(true)

	ZoneOpenStyle = lipgloss.NewStyle().
			Foreground(ErrorColor)

	ZoneClosedStyle = lipgloss.NewStyle().
			Foreground(MutedColor)

	ZoneBypassStyle = lipgloss.NewStyle().
			Foreground(WarningColor).
			Italic(true)

	ErrorMessageStyle = lipgloss.NewStyle().
				Foreground(ErrorColor)

	SuccessMessageStyle = lipgloss.NewStyle().
				Foreground(ArmedColor)

	HintStyle = lipgloss.NewStyle().
			Foreground(MutedColor).
			Italic(true)
)

// Status markers.
const (
	SuccessMarker = "✓"
	FailureMarker = "✗"
	OpenMarker    = "○"
	ClosedMarker  = "●"
)

// StateStyle returns the style for an alarm state.
func StateStyle(state transcript.AlarmState) lipgloss.Style {
	switch state {
	case transcript.StateArmedAway, transcript.StateArmedStay:
		return lipgloss.NewStyle().Foreground(ArmedColor).Bold(true)
	case transcript.StateDisarmed:
		return lipgloss.NewStyle().Foreground(WarningColor).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(MutedColor).Bold(true)
	}
}

// StateLabel returns the display text for an alarm state.
func StateLabel(state transcript.AlarmState) string {
	switch state {
	case transcript.StateDisarmed:
		return "DISARMED"
	case transcript.StateArmedAway:
		return "ARMED AWAY"
	case transcript.StateArmedStay:
		return "ARMED STAY"
	default:
		return "UNKNOWN"
	}
}

// GetTerminalWidth returns the current terminal width, clamped to the
// supported range.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width < MinTerminalWidth {
		return MinTerminalWidth
	}
	if width > MaxContentWidth {
		return MaxContentWidth
	}
	return width
}

// PanelBoxStyle returns the border style for the dashboard box.
func PanelBoxStyle(width int) lipgloss.Style {
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(PrimaryColor).
		Width(width - 2).
		Padding(0, 1)
}
