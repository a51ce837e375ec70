package main

import (
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	toolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF0000")).
			Bold(true)

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))
)

// renderChunk returns the chunk as printed to the terminal,
// tool delimiters are styled, model text is printed as is.
func renderChunk(chunk string) string {
	trimmed := strings.TrimSpace(chunk)
	switch {
	case strings.HasPrefix(trimmed, "[Tool result: Error:"), strings.HasPrefix(trimmed, "[Error executing tool"):
		return "\n" + errorStyle.Render(trimmed) + "\n"
	case strings.HasPrefix(trimmed, "[Tool result:"):
		return "\n" + toolStyle.Render(trimmed) + "\n"
	}
	return chunk
}

func writeString(w io.Writer, s string) error {
	_, err := io.WriteString(w, s)
	return err
}
