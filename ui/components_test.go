package ui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/lipgloss"
)

func TestPadRight(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"CPU", 6, "CPU   "},
		{"Memory", 6, "Mem..."},
		{"DiskBenchmark", 8, "DiskB..."},
		{"Disk", 3, "Dis"},
	}
	for _, tt := range tests {
		if got := padRight(tt.in, tt.width); got != tt.want {
			t.Errorf("padRight(%q, %d) = %q, want %q", tt.in, tt.width, got, tt.want)
		}
	}
}

func TestStyledPadCountsVisibleWidth(t *testing.T) {
	styled := critStyle.Render("Critical")
	got := styledPad(styled, 12)
	if w := lipgloss.Width(got); w != 12 {
		t.Errorf("visible width = %d, want 12", w)
	}
	if styledPad(styled, 4) != styled {
		t.Error("wider input was modified")
	}
}

func TestBarClamps(t *testing.T) {
	for _, pct := range []float64{-5, 0, 42, 100, 180} {
		if w := lipgloss.Width(bar(pct, 10)); w != 10 {
			t.Errorf("bar(%v) width = %d", pct, w)
		}
	}
	if !strings.Contains(bar(100, 4), "████") {
		t.Error("full bar not filled")
	}
}
