package tui

import (
	"charm.land/lipgloss/v2"

	"tasnim.dev/iamctl/internal/tui/theme"
)

var (
	// Dashboard styles that compose from the shared theme
	titleStyle = theme.TitleStyle

	headerStyle = theme.HeaderStyle

	metricLabelStyle = theme.MutedStyle

	metricValueStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(theme.Success)

	warnValueStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(theme.Warning)

	profileStyle = lipgloss.NewStyle().
			Foreground(theme.Primary)

	helpStyle = theme.HelpStyle

	errorStyle = theme.ErrorStyle

	dashboardStyle = theme.DashboardStyle
)
