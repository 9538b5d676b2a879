package ui

import (
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// RenderTable formats rows beneath bold headers using the color profile of output.
func RenderTable(output io.Writer, headers []string, rows [][]string) string {
	renderer := lipgloss.NewRenderer(output)
	headerStyle := renderer.NewStyle().Bold(true).Padding(0, 1)
	cellStyle := renderer.NewStyle().Padding(0, 1)

	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		String()
}
