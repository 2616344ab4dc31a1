package tui

import (
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
)

// Styles holds the lipgloss styles for the chat view.
type Styles struct {
	Prompt    lipgloss.Style
	User      lipgloss.Style
	Assistant lipgloss.Style
	Muted     lipgloss.Style
	Error     lipgloss.Style
	Status    lipgloss.Style
}

func DefaultStyles() Styles {
	return Styles{
		Prompt:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
		User:      lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
		Assistant: lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		Muted:     lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
		Error:     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
		Status:    lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true),
	}
}

// newMarkdownRenderer builds the glamour renderer used for finalized
// assistant messages. Falls back to nil (plain text) if glamour cannot
// detect the terminal style.
func newMarkdownRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}
