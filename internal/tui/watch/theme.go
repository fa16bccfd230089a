package watch

import "github.com/charmbracelet/lipgloss"

// Theme defines the visual style of the watch view.
type Theme struct {
	Title        lipgloss.Style
	Normal       lipgloss.Style
	Dim          lipgloss.Style
	Highlight    lipgloss.Style
	StatusOK     lipgloss.Style
	StatusFailed lipgloss.Style
	StatusWarn   lipgloss.Style
	Section      lipgloss.Style
}

// DefaultTheme returns the default color palette.
func DefaultTheme() Theme {
	return Theme{
		Title:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		Normal:       lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		Dim:          lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		Highlight:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("229")),
		StatusOK:     lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		StatusFailed: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		StatusWarn:   lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		Section: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1),
	}
}
