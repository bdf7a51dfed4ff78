package tui

import (
	"github.com/charmbracelet/lipgloss"

	"metaredact/internal/queue"
)

var (
	ColorInk       = lipgloss.Color("#E5E9F0")
	ColorDim       = lipgloss.Color("#7A8291")
	ColorAccent    = lipgloss.Color("#88C0D0")
	ColorAccentAlt = lipgloss.Color("#81A1C1")
	ColorSuccess   = lipgloss.Color("#A3BE8C")
	ColorWarn      = lipgloss.Color("#EBCB8B")
	ColorDanger    = lipgloss.Color("#BF616A")
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorAccent)
	labelStyle   = lipgloss.NewStyle().Foreground(ColorInk)
	valueStyle   = lipgloss.NewStyle().Foreground(ColorInk).Bold(true)
	headingStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorAccentAlt)
	barStyle     = lipgloss.NewStyle().Foreground(ColorAccent)
	dimStyle     = lipgloss.NewStyle().Foreground(ColorDim)
	errorStyle   = lipgloss.NewStyle().Foreground(ColorDanger)
)

// statusStyle colours a file status badge.
func statusStyle(s queue.Status) lipgloss.Style {
	switch s {
	case queue.StatusProcessing:
		return lipgloss.NewStyle().Foreground(ColorWarn)
	case queue.StatusDone:
		return lipgloss.NewStyle().Foreground(ColorSuccess)
	case queue.StatusError:
		return lipgloss.NewStyle().Foreground(ColorDanger)
	default:
		return lipgloss.NewStyle().Foreground(ColorDim)
	}
}
