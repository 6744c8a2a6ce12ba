package tui

import "github.com/charmbracelet/lipgloss"

// Color palette shared by the batchengine views.
const (
	ColorHeader    = lipgloss.Color("39")
	ColorLabel     = lipgloss.Color("245")
	ColorValue     = lipgloss.Color("255")
	ColorMuted     = lipgloss.Color("240")
	ColorOK        = lipgloss.Color("42")
	ColorWarning   = lipgloss.Color("214")
	ColorCritical  = lipgloss.Color("196")
	ColorBorder    = lipgloss.Color("63")
	ColorHighlight = lipgloss.Color("205")
)

// Key bindings.
const (
	keyQuit  = "q"
	keyCtrlC = "ctrl+c"
	keyEsc   = "esc"
)

// Layout defaults used before the first WindowSizeMsg arrives.
const (
	defaultWidth   = 80
	maxBarWidth    = 60
	barPadding     = 4
	labelColumnLen = 18
)

//nolint:gochecknoglobals // Immutable styles shared by the views.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorHeader).
			Border(lipgloss.NormalBorder()).
			BorderForeground(ColorBorder).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(ColorLabel).Width(labelColumnLen)
	valueStyle = lipgloss.NewStyle().Foreground(ColorValue).Bold(true)
	mutedStyle = lipgloss.NewStyle().Foreground(ColorMuted).Italic(true)
	errorStyle = lipgloss.NewStyle().Foreground(ColorCritical).Bold(true)
)

// StateStyle returns the style used to render a batch state name.
func StateStyle(state string, suspended bool) lipgloss.Style {
	switch {
	case suspended:
		return lipgloss.NewStyle().Foreground(ColorWarning).Bold(true)
	case state == "completed":
		return lipgloss.NewStyle().Foreground(ColorOK).Bold(true)
	default:
		return lipgloss.NewStyle().Foreground(ColorHighlight).Bold(true)
	}
}
