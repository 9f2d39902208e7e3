package state

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	heading    lipgloss.Style
	member     lipgloss.Style
	detail     lipgloss.Style
	paragraph  lipgloss.Style
	styleName  lipgloss.Style
	section    lipgloss.Style
	empty      lipgloss.Style
	barBracket lipgloss.Style
	barFill    lipgloss.Style
	barEmpty   lipgloss.Style
	barCursor  lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		heading:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		member:     lipgloss.NewStyle().Bold(true),
		detail:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		paragraph:  lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		styleName:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		section:    lipgloss.NewStyle().MarginTop(1),
		empty:      lipgloss.NewStyle().Faint(true),
		barBracket: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:    lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barEmpty:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		barCursor:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
	}
}
