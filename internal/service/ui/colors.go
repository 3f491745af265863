package ui

import "github.com/charmbracelet/lipgloss"

// Plain ANSI 16 colors so output follows the user's terminal theme.
var (
	TitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Bold(true)

	UsageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))

	DescStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	FlagStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))

	LabelStyle = lipgloss.NewStyle().Bold(true)

	SuccessStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Bold(true)

	ErrorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)

	// StatsBoxStyle frames the stats panel.
	StatsBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("6")).
			Padding(0, 1)
)
