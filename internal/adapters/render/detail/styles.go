package detail

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title      lipgloss.Style
	header     lipgloss.Style
	status     lipgloss.Style
	active     lipgloss.Style
	detail     lipgloss.Style
	warning    lipgloss.Style
	section    lipgloss.Style
	heading    lipgloss.Style
	empty      lipgloss.Style
	name       lipgloss.Style
	meta       lipgloss.Style
	todoDone   lipgloss.Style
	todoActive lipgloss.Style
	todoOpen   lipgloss.Style
	barBracket lipgloss.Style
	barFill    lipgloss.Style
	barEmpty   lipgloss.Style
	footer     lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:      lipgloss.NewStyle().Bold(true),
		header:     lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		status:     lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		active:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("42")),
		detail:     lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		warning:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		section:    lipgloss.NewStyle().MarginTop(1),
		heading:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		empty:      lipgloss.NewStyle().Faint(true),
		name:       lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		meta:       lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		todoDone:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		todoActive: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214")),
		todoOpen:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		barBracket: lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		barFill:    lipgloss.NewStyle().Foreground(lipgloss.Color("159")),
		barEmpty:   lipgloss.NewStyle().Foreground(lipgloss.Color("238")),
		footer:     lipgloss.NewStyle().Faint(true).MarginTop(1),
	}
}
