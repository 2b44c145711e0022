package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Carlos-paez/formaciones/internal/event"
)

// Status colors.
var (
	colorPending  = lipgloss.Color("#d97706")
	colorActive   = lipgloss.Color("#22c55e")
	colorFinished = lipgloss.Color("#6b7280")
)

// UI chrome colors.
var (
	colorBorder  = lipgloss.Color("#4b5563")
	colorDimmed  = lipgloss.Color("#6b7280")
	colorBright  = lipgloss.Color("#f9fafb")
	colorHealthy = lipgloss.Color("#22c55e")
	colorWarning = lipgloss.Color("#d97706")
	colorDanger  = lipgloss.Color("#dc2626")
)

var (
	styleHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBright)

	styleDimmed = lipgloss.NewStyle().
			Foreground(colorDimmed)

	styleSelected = lipgloss.NewStyle().
			Bold(true).
			Foreground(colorBright)

	styleOverlay = lipgloss.NewStyle().
			Padding(1, 3).
			BorderStyle(lipgloss.DoubleBorder()).
			BorderForeground(colorWarning)
)

// statusColor returns the color for a derived session status.
func statusColor(s event.Status) lipgloss.Color {
	switch s {
	case event.Active:
		return colorActive
	case event.Finished:
		return colorFinished
	default:
		return colorPending
	}
}
