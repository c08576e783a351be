// Package tui implements a terminal user interface for playing first-aid
// scenarios. It drives an engine.Runtime directly, rendering an interactive
// Bubble Tea app with the step timer fed by tick messages.
package tui

import "github.com/charmbracelet/lipgloss"

// Step status glyphs carry the meaning when color is unavailable.
const (
	GlyphPending   = "○"
	GlyphCurrent   = "▸"
	GlyphCorrect   = "✓"
	GlyphIncorrect = "✗"
	GlyphTimedOut  = "⏱"
	GlyphAlert     = "⚠"
)

// ANSI 256 palette.
var (
	colorGreen  = lipgloss.Color("42")
	colorRed    = lipgloss.Color("196")
	colorYellow = lipgloss.Color("214")
	colorBlue   = lipgloss.Color("39")
	colorCyan   = lipgloss.Color("51")
	colorDim    = lipgloss.Color("240")
	colorWhite  = lipgloss.Color("255")
)

func fg(c lipgloss.Color) lipgloss.Style { return lipgloss.NewStyle().Foreground(c) }

func boldFg(c lipgloss.Color) lipgloss.Style { return fg(c).Bold(true) }

func framed(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(c)
}

// Text.
var (
	stepNormal       = fg(colorWhite)
	stepCurrent      = boldFg(colorYellow)
	stepCorrect      = fg(colorGreen)
	stepIncorrect    = fg(colorRed)
	stepTimedOut     = lipgloss.NewStyle().Faint(true)
	correctStyle     = boldFg(colorGreen)
	incorrectStyle   = boldFg(colorRed)
	errorStyle       = boldFg(colorRed)
	alertStyle       = boldFg(colorYellow)
	timerStyle       = fg(colorYellow)
	timerUrgentStyle = boldFg(colorRed)
	spinnerStyle     = fg(colorYellow)
	detailLabelStyle = boldFg(colorBlue)
	detailValueStyle = fg(colorWhite)
	keyStyle         = boldFg(colorCyan)
	keyDescStyle     = fg(colorDim)
	overlayTitle     = boldFg(colorCyan)
)

// Titles and badges.
var (
	headerStyle       = boldFg(colorCyan).Padding(0, 1)
	panelTitle        = headerStyle
	summaryTitleStyle = headerStyle
	badgeStyle        = boldFg(lipgloss.Color("0")).Background(colorYellow).Padding(0, 1)
	keyBarStyle       = lipgloss.NewStyle().Padding(0, 1)
)

// Frames.
var (
	panelBorder    = framed(colorDim)
	detailBarStyle = framed(colorDim).Padding(0, 1)
	overlayBorder  = framed(colorCyan).Padding(1, 2)
)
