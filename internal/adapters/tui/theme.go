package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/PabloGalante/quiet-room/internal/domain"
)

// palette is the foreground/background pair the room takes on per atmosphere.
type palette struct {
	fg lipgloss.Color
	bg lipgloss.Color
}

var palettes = map[domain.Atmosphere]palette{
	domain.AtmosphereCalm:    {fg: "#33ff33", bg: "#050505"},
	domain.AtmosphereCharged: {fg: "#ffaa33", bg: "#1a0a00"},
	domain.AtmosphereGlitch:  {fg: "#ff33cc", bg: "#0a000a"},
	domain.AtmosphereVoid:    {fg: "#e0e0e0", bg: "#000000"},
	domain.AtmosphereJoy:     {fg: "#ffd700", bg: "#121000"},
	domain.AtmosphereSorrow:  {fg: "#4d79ff", bg: "#000514"},
	domain.AtmosphereMystery: {fg: "#9933ff", bg: "#0a0014"},
	domain.AtmosphereFocus:   {fg: "#00ffff", bg: "#000a0a"},
}

func paletteFor(a domain.Atmosphere) palette {
	if p, ok := palettes[a]; ok {
		return p
	}
	return palettes[domain.AtmosphereCalm]
}

type uiTheme struct {
	root      lipgloss.Style
	header    lipgloss.Style
	panel     lipgloss.Style
	title     lipgloss.Style
	witness   lipgloss.Style
	architect lipgloss.Style
	system    lipgloss.Style
	signal    lipgloss.Style
	redaction lipgloss.Style
	shadow    lipgloss.Style
	status    lipgloss.Style
	errStatus lipgloss.Style
	help      lipgloss.Style
}

// newTheme derives every style from the current atmosphere.
func newTheme(a domain.Atmosphere) uiTheme {
	p := paletteFor(a)
	muted := lipgloss.Color("#6b6b6b")

	return uiTheme{
		root: lipgloss.NewStyle().
			Foreground(p.fg).
			Background(p.bg),
		header: lipgloss.NewStyle().
			Foreground(p.fg).
			Bold(true).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(p.fg),
		panel: lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(p.fg).
			Padding(0, 1),
		title:     lipgloss.NewStyle().Foreground(p.fg).Bold(true),
		witness:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f3f3ff")).Bold(true),
		architect: lipgloss.NewStyle().Foreground(p.fg).Bold(true),
		system:    lipgloss.NewStyle().Foreground(muted).Italic(true),
		signal:    lipgloss.NewStyle().Foreground(muted).Bold(true),
		redaction: lipgloss.NewStyle().Foreground(muted),
		shadow:    lipgloss.NewStyle().Foreground(p.fg).Faint(true).Italic(true),
		status:    lipgloss.NewStyle().Foreground(p.fg),
		errStatus: lipgloss.NewStyle().Foreground(lipgloss.Color("#ff5555")).Bold(true),
		help:      lipgloss.NewStyle().Foreground(muted),
	}
}
