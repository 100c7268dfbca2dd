package render

import "github.com/charmbracelet/lipgloss"

// Palette
var (
	colorPrimary = lipgloss.AdaptiveColor{Light: "#101F38", Dark: "#f2f2f2"}
	colorSuccess = lipgloss.Color("#8BC34A")
	colorWarning = lipgloss.Color("#FFC107")
	colorError   = lipgloss.Color("#e53935")
	colorMuted   = lipgloss.AdaptiveColor{Light: "#6b7280", Dark: "#9ca3af"}
)

// Styles holds the lipgloss styles used by Text.
type Styles struct {
	Title   lipgloss.Style
	Label   lipgloss.Style
	Muted   lipgloss.Style
	Passed  lipgloss.Style
	Current lipgloss.Style
	Locked  lipgloss.Style
	Failed  lipgloss.Style
	BarFill lipgloss.Style
	BarRest lipgloss.Style
	Box     lipgloss.Style
}

// DefaultStyles returns the standard palette.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(colorPrimary),
		Label:   lipgloss.NewStyle().Bold(true),
		Muted:   lipgloss.NewStyle().Foreground(colorMuted),
		Passed:  lipgloss.NewStyle().Foreground(colorSuccess),
		Current: lipgloss.NewStyle().Bold(true).Foreground(colorWarning),
		Locked:  lipgloss.NewStyle().Foreground(colorMuted),
		Failed:  lipgloss.NewStyle().Bold(true).Foreground(colorError),
		BarFill: lipgloss.NewStyle().Foreground(colorSuccess),
		BarRest: lipgloss.NewStyle().Foreground(colorMuted),
		Box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorMuted).
			Padding(0, 1),
	}
}

// PlainStyles renders without any decoration.
func PlainStyles() Styles {
	plain := lipgloss.NewStyle()
	return Styles{
		Title: plain, Label: plain, Muted: plain, Passed: plain, Current: plain,
		Locked: plain, Failed: plain, BarFill: plain, BarRest: plain, Box: plain,
	}
}
