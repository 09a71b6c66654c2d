// Package cliui provides reusable terminal UI helpers (status marks, event
// styling) for wiretap CLI commands.
package cliui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	SuccessMark = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Render("✓")
	FailMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")

	// DimStyle renders secondary detail like timestamps and counters.
	DimStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))

	// KeyStyle renders labels in key/value output lines.
	KeyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)

	// ValueStyle renders values in key/value output lines.
	ValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))

	// EventStyle renders the SSE event type tag in tail output.
	EventStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)

	// IDStyle renders event ids in tail output.
	IDStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("228"))
)

// Mark returns a ✓ for nil errors or ✗ for non-nil errors.
func Mark(err error) string {
	if err != nil {
		return FailMark
	}
	return SuccessMark
}

// FormatDuration formats a duration for display (e.g. "12ms" or "3.2s").
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}
