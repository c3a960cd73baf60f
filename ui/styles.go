package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ftahirops/perfdiag/model"
)

var (
	// Colors
	colorRed     = lipgloss.Color("#FF5555")
	colorYellow  = lipgloss.Color("#F1FA8C")
	colorGreen   = lipgloss.Color("#50FA7B")
	colorCyan    = lipgloss.Color("#8BE9FD")
	colorMagenta = lipgloss.Color("#FF79C6")
	colorOrange  = lipgloss.Color("#FFB86C")
	colorWhite   = lipgloss.Color("#F8F8F2")
	colorGray    = lipgloss.Color("#6272A4")

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(colorGray).
			Padding(0, 1)

	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	labelStyle  = lipgloss.NewStyle().Foreground(colorGray)
	valueStyle  = lipgloss.NewStyle().Foreground(colorWhite)
	warnStyle   = lipgloss.NewStyle().Foreground(colorYellow).Bold(true)
	critStyle   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	okStyle     = lipgloss.NewStyle().Foreground(colorGreen)
	headerStyle = lipgloss.NewStyle().Foreground(colorMagenta).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(colorGray)
	orangeStyle = lipgloss.NewStyle().Foreground(colorOrange)
)

func impactStyle(i model.Impact) lipgloss.Style {
	switch i {
	case model.ImpactCritical:
		return critStyle
	case model.ImpactHigh:
		return orangeStyle
	case model.ImpactMedium:
		return warnStyle
	default:
		return valueStyle
	}
}
