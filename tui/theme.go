package tui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title    lipgloss.Style
	subtitle lipgloss.Style
	cursor   lipgloss.Style
	selected lipgloss.Style
	link     lipgloss.Style
	broken   lipgloss.Style
	question lipgloss.Style
	status   lipgloss.Style
	errText  lipgloss.Style
	help     lipgloss.Style
	panel    lipgloss.Style
}

// newStyles costruisce gli stili partendo dal colore della pagina
func newStyles(accent string) styles {
	color := lipgloss.Color(accent)
	muted := lipgloss.Color("#a6adc8")
	return styles{
		title:    lipgloss.NewStyle().Bold(true).Foreground(color),
		subtitle: lipgloss.NewStyle().Foreground(muted),
		cursor:   lipgloss.NewStyle().Bold(true).Foreground(color),
		selected: lipgloss.NewStyle().Foreground(lipgloss.Color("#94e2d5")),
		link:     lipgloss.NewStyle().Bold(true).Underline(true).Foreground(color),
		broken:   lipgloss.NewStyle().Strikethrough(true).Foreground(muted),
		question: lipgloss.NewStyle().Bold(true),
		status:   lipgloss.NewStyle().Foreground(lipgloss.Color("#f9e2af")),
		errText:  lipgloss.NewStyle().Foreground(lipgloss.Color("#f38ba8")),
		help:     lipgloss.NewStyle().Foreground(muted).Italic(true),
		panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(color).
			Padding(0, 1),
	}
}
