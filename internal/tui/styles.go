package tui

import "github.com/charmbracelet/lipgloss"

// Styles groups the chat's lipgloss styles.
type Styles struct {
	Title   lipgloss.Style
	User    lipgloss.Style
	Tai     lipgloss.Style
	Error   lipgloss.Style
	Status  lipgloss.Style
	Spinner lipgloss.Style
	Prompt  lipgloss.Style
}

// DefaultStyles mirrors the old chat colors: blue for the user, red for Tai.
func DefaultStyles() Styles {
	return Styles{
		Title:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#5A56E0")).Padding(0, 1),
		User:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		Tai:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9")),
		Error:   lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Italic(true),
		Status:  lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Spinner: lipgloss.NewStyle().Foreground(lipgloss.Color("205")),
		Prompt:  lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	}
}
