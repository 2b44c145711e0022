package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"

	"github.com/Carlos-paez/formaciones/internal/alert"
	"github.com/Carlos-paez/formaciones/internal/event"
)

// View renders the full screen: title, session table, status bar, help
// line, and whichever overlay is active centered on top.
func (m Model) View() string {
	width := m.width
	if width < 60 {
		width = 60
	}

	base := lipgloss.JoinVertical(lipgloss.Left,
		m.renderTitle(width),
		m.renderTable(width),
		m.renderStatusBar(width),
		m.renderHelp(),
	)

	switch m.overlay {
	case OverlayWarning, OverlayFinished:
		return m.centerOverlay(m.renderAlertOverlay())
	case OverlayCreate:
		return m.centerOverlay(m.renderCreateForm())
	}
	return base
}

func (m Model) renderTitle(width int) string {
	return styleHeader.Width(width).Padding(0, 1).Render("Formaciones — session tracker")
}

// renderTable renders the session list. Statuses are derived from the
// wall clock at render time, so a row flips Pending→Active→Finished
// without waiting for the next refresh.
func (m Model) renderTable(width int) string {
	colID := 5
	colLocation := 20
	colInstructor := 18
	colStart := 7
	colEnd := 7
	colStatus := 10

	header := fmt.Sprintf("  %-*s %-*s %-*s %-*s %-*s %-*s %s",
		colID, "ID",
		colLocation, "LOCATION",
		colInstructor, "INSTRUCTOR",
		colStart, "START",
		colEnd, "END",
		colStatus, "STATUS",
		"CREATED")

	rows := []string{styleHeader.Render(header)}

	if len(m.sessions) == 0 {
		rows = append(rows, styleDimmed.Render("  No sessions scheduled"))
	}

	now := event.At(m.now())
	for i, v := range m.sessions {
		status := v.StatusAt(now)
		// The status cell is padded before coloring so ANSI codes do not
		// throw off the fixed-width layout.
		statusCell := lipgloss.NewStyle().Foreground(statusColor(status)).
			Render(fmt.Sprintf("%-*s", colStatus, status.String()))
		line := fmt.Sprintf("%-*d %-*s %-*s %-*s %-*s %s %s",
			colID, v.ID,
			colLocation, truncate(v.Location, colLocation),
			colInstructor, truncate(v.Instructor, colInstructor),
			colStart, v.StartTime.String(),
			colEnd, v.EndTime.String(),
			statusCell,
			v.CreatedAt.Format("15:04:05"))

		if i == m.selected {
			rows = append(rows, styleSelected.Render("> "+line))
		} else {
			rows = append(rows, "  "+line)
		}
	}

	return lipgloss.NewStyle().
		Width(width).
		Padding(0, 1).
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(colorBorder).
		Render(strings.Join(rows, "\n"))
}

func (m Model) renderStatusBar(width int) string {
	var connStr string
	if m.connected {
		connStr = lipgloss.NewStyle().Foreground(colorHealthy).Render("● live")
	} else {
		connStr = lipgloss.NewStyle().Foreground(colorDanger).Render("○ polling")
	}

	counts := styleDimmed.Render(fmt.Sprintf("%d sessions", len(m.sessions)))

	parts := []string{connStr, counts}
	if m.message != "" {
		parts = append(parts, styleDimmed.Render(m.message))
	}

	sep := lipgloss.NewStyle().Foreground(colorBorder).Render(" | ")
	return lipgloss.NewStyle().Width(width).Padding(0, 1).
		Render(strings.Join(parts, sep))
}

func (m Model) renderHelp() string {
	bindings := []key.Binding{
		m.keys.Up, m.keys.Down, m.keys.New, m.keys.Delete,
		m.keys.Refresh, m.keys.Quit,
	}
	parts := make([]string, 0, len(bindings))
	for _, b := range bindings {
		h := b.Help()
		parts = append(parts, fmt.Sprintf("%s %s", h.Key, h.Desc))
	}
	return styleDimmed.Padding(0, 1).Render(strings.Join(parts, "  "))
}

// renderAlertOverlay renders the warning or finished modal.
func (m Model) renderAlertOverlay() string {
	if m.active == nil {
		return ""
	}

	var title string
	var borderColor lipgloss.Color
	lines := []string{}

	switch m.active.Kind {
	case alert.KindWarning:
		title = fmt.Sprintf("⚠ Session ending in %d minutes", m.active.MinutesRemaining)
		borderColor = colorWarning
		countdown := styleHeader.Render(formatCountdown(m.countdown))
		if m.countdown == 0 {
			// The tick chain stops at zero; make it read as elapsed
			// rather than stalled.
			borderColor = colorDanger
			countdown = lipgloss.NewStyle().Bold(true).Foreground(colorDanger).
				Render("0:00 — time is up")
		}
		lines = append(lines,
			"",
			m.active.Message,
			"",
			countdown,
		)
	case alert.KindFinished:
		title = "✓ Session finished"
		borderColor = colorDanger
		if !m.flashOn {
			borderColor = colorBorder
		}
		lines = append(lines,
			"",
			m.active.Message,
		)
	}

	lines = append(lines, "", styleDimmed.Render("enter/esc to dismiss"))

	body := lipgloss.JoinVertical(lipgloss.Center,
		append([]string{styleHeader.Render(title)}, lines...)...)

	return styleOverlay.BorderForeground(borderColor).Render(body)
}

func (m Model) renderCreateForm() string {
	rows := []string{styleHeader.Render("New session"), ""}
	labels := [4]string{"Location", "Instructor", "Start", "End"}
	for i, in := range m.form.inputs {
		label := styleDimmed.Width(12).Render(labels[i])
		rows = append(rows, lipgloss.JoinHorizontal(lipgloss.Top, label, in.View()))
	}
	rows = append(rows, "", styleDimmed.Render("tab next field · enter save · esc cancel"))
	if m.message != "" {
		rows = append(rows, styleDimmed.Render(m.message))
	}
	return styleOverlay.BorderForeground(colorBorder).Render(
		lipgloss.JoinVertical(lipgloss.Left, rows...))
}

func (m Model) centerOverlay(box string) string {
	w, h := m.width, m.height
	if w < 60 {
		w = 60
	}
	if h < 20 {
		h = 20
	}
	return lipgloss.Place(w, h, lipgloss.Center, lipgloss.Center, box)
}

// formatCountdown renders seconds as M:SS.
func formatCountdown(sec int) string {
	if sec < 0 {
		sec = 0
	}
	return fmt.Sprintf("%d:%02d", sec/60, sec%60)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
