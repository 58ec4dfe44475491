package ui

import "github.com/charmbracelet/lipgloss"

type styles struct {
	header    lipgloss.Style
	user      lipgloss.Style
	assistant lipgloss.Style
	prompt    lipgloss.Style
	muted     lipgloss.Style
	info      lipgloss.Style
	warn      lipgloss.Style
	err       lipgloss.Style
	success   lipgloss.Style
}

// newStyles binds the palette to r so colors follow the output's profile.
func newStyles(r *lipgloss.Renderer) styles {
	return styles{
		header:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("6")),
		user:      r.NewStyle().Foreground(lipgloss.Color("8")),
		assistant: r.NewStyle().Foreground(lipgloss.Color("12")),
		prompt:    r.NewStyle().Bold(true).Foreground(lipgloss.Color("2")),
		muted:     r.NewStyle().Faint(true),
		info:      r.NewStyle().Foreground(lipgloss.Color("6")),
		warn:      r.NewStyle().Foreground(lipgloss.Color("3")),
		err:       r.NewStyle().Foreground(lipgloss.Color("1")),
		success:   r.NewStyle().Foreground(lipgloss.Color("2")),
	}
}
