package tui

import "github.com/charmbracelet/lipgloss"

// Catppuccin Mocha
const (
	colorPink     lipgloss.Color = "#f5c2e7"
	colorRed      lipgloss.Color = "#f38ba8"
	colorYellow   lipgloss.Color = "#f9e2af"
	colorGreen    lipgloss.Color = "#a6e3a1"
	colorTeal     lipgloss.Color = "#94e2d5"
	colorLavender lipgloss.Color = "#b4befe"
	colorText     lipgloss.Color = "#cdd6f4"
	colorOverlay1 lipgloss.Color = "#7f849c"
	colorSurface1 lipgloss.Color = "#45475a"
)

const (
	colorAccent  = colorPink
	colorFocus   = colorLavender
	colorSuccess = colorGreen
	colorError   = colorRed
	colorWarning = colorYellow
	colorInfo    = colorTeal
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
	headerStyle   = lipgloss.NewStyle().Foreground(colorInfo)
	rowStyle      = lipgloss.NewStyle().Foreground(colorText)
	cursorStyle   = lipgloss.NewStyle().Foreground(colorFocus).Bold(true)
	dimStyle      = lipgloss.NewStyle().Foreground(colorOverlay1)
	emptyStyle    = lipgloss.NewStyle().Foreground(colorWarning).Italic(true)
	errorStyle    = lipgloss.NewStyle().Foreground(colorError)
	successStyle  = lipgloss.NewStyle().Foreground(colorSuccess)
	keyStyle      = lipgloss.NewStyle().Foreground(colorAccent).Bold(true)
	formBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(colorSurface1).Padding(0, 1)
	labelStyle    = lipgloss.NewStyle().Foreground(colorOverlay1)
	stateStyleFor = map[string]lipgloss.Style{
		"online":   lipgloss.NewStyle().Foreground(colorSuccess),
		"unstable": lipgloss.NewStyle().Foreground(colorWarning),
		"offline":  lipgloss.NewStyle().Foreground(colorError),
	}
)
