// Package tui is the interactive recorder console.
//
// It is a Bubble Tea program styled with Lipgloss. The console shows the
// recording slot, live ffmpeg progress and recent recordings, and starts
// or stops recordings through the command surface.
package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// Palette. Adaptive colors keep the console readable on light terminals.
var (
	accent    = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	highlight = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	good      = lipgloss.AdaptiveColor{Light: "#047857", Dark: "#34D399"}
	caution   = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	bad       = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#EF4444"}
	info      = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	fg        = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F3F4F6"}
	subtle    = lipgloss.AdaptiveColor{Light: "#4B5563", Dark: "#9CA3AF"}
	faint     = lipgloss.AdaptiveColor{Light: "#9CA3AF", Dark: "#6B7280"}
	rule      = lipgloss.AdaptiveColor{Light: "#D1D5DB", Dark: "#374151"}
)

func boldFg(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}

var (
	mutedText = lipgloss.NewStyle().Foreground(subtle)
	dimText   = lipgloss.NewStyle().Foreground(faint)

	goodValue  = boldFg(good)
	warnValue  = boldFg(caution)
	badValue   = boldFg(bad)
	plainValue = boldFg(fg)
	keyText    = boldFg(highlight)

	warnText = boldFg(caution)
	errText  = boldFg(bad)
	infoText = boldFg(info)

	titleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(accent).
			Bold(true).
			Padding(0, 1).
			MarginBottom(1)

	sectionStyle = boldFg(highlight).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(rule)

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(rule).
			Padding(0, 1)

	footerStyle = lipgloss.NewStyle().Foreground(subtle).MarginTop(1)

	fieldLabelStyle = lipgloss.NewStyle().Foreground(subtle).Width(14)
)

// recordingBadge renders the slot state. exited marks a held slot whose
// process has already ended.
func recordingBadge(recording, exited bool) string {
	if !recording {
		return goodValue.Render("○ IDLE")
	}
	if exited {
		return warnText.Render("● REC (exited)")
	}
	return errText.Render("● REC")
}

// speedStyle colors the encode speed. A live capture below realtime drops
// frames.
func speedStyle(speed float64) lipgloss.Style {
	if speed >= 0.98 {
		return goodValue
	}
	if speed >= 0.9 {
		return warnValue
	}
	return badValue
}

func speedLabel(speed float64) string {
	if speed == 0 {
		return dimText.Render("N/A")
	}
	return speedStyle(speed).Render(fmt.Sprintf("%.2fx", speed))
}

func dropStyle(dropped int64) lipgloss.Style {
	if dropped > 0 {
		return warnValue
	}
	return goodValue
}

// field renders "label: value" with an aligned label column.
func field(label, value string) string {
	return fieldLabelStyle.Render(label+":") + plainValue.Render(value)
}

func keyHint(key, action string) string {
	return keyText.Render(key) + " " + mutedText.Render(action)
}
