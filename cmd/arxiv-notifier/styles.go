// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4"))

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#04B575"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))
)

// enabled renders a boolean setting.
func enabled(b bool) string {
	if b {
		return okStyle.Render("enabled")
	}
	return dimStyle.Render("disabled")
}

// orUnset renders an empty value as a dim placeholder.
func orUnset(s string) string {
	if s == "" {
		return dimStyle.Render("(not set)")
	}
	return s
}
