package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Column widths shared by the progress view and the summary.
const (
	colDomain = 14 // "DiskBenchmark" plus a space
	colImpact = 9  // "Critical" plus a space
	colBar    = 20
)

// styledPad pads a styled string to the given visual width using spaces.
// Unlike fmt.Sprintf("%-Xs"), this accounts for ANSI escape codes.
func styledPad(styled string, width int) string {
	visW := lipgloss.Width(styled)
	if visW >= width {
		return styled
	}
	return styled + strings.Repeat(" ", width-visW)
}

// bar renders a percentage bar of given width.
func bar(pct float64, width int) string {
	if width < 1 {
		width = 10
	}
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	filled := int(pct / 100 * float64(width))
	b := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	switch {
	case pct >= 80:
		return critStyle.Render(b)
	case pct >= 50:
		return warnStyle.Render(b)
	default:
		return okStyle.Render(b)
	}
}

func padRight(s string, width int) string {
	if len(s) >= width {
		if width > 3 {
			return s[:width-3] + "..."
		}
		return s[:width]
	}
	return s + strings.Repeat(" ", width-len(s))
}

// truncate shortens s to maxLen characters with ellipsis if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
