package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7DD3C0"))
	paneStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	activePane    = paneStyle.BorderForeground(lipgloss.Color("#FFD966"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Reverse(true)
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	savingStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFB08F")).Italic(true)
	labelStyle    = lipgloss.NewStyle().Bold(true).Width(10)
	dialogStyle   = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("#FF5F5F")).Padding(1, 2)
)

// swatch renders a colored dot for a category. Empty colors render muted.
func swatch(hex string) string {
	if hex == "" {
		return mutedStyle.Render("●")
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render("●")
}
