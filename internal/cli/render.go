package cli

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

var (
	accent = lipgloss.NewStyle().Foreground(lipgloss.Color("#A78BFA"))
	muted  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C7086"))
	bold   = lipgloss.NewStyle().Bold(true)
)

// renderTable lays rows out in aligned columns with a bold header and a
// muted rule under it.
func renderTable(headers []string, rows [][]string) string {
	return table.New().
		Border(lipgloss.Border{Top: "─", Bottom: "─", Middle: "─"}).
		BorderTop(false).
		BorderBottom(false).
		BorderLeft(false).
		BorderRight(false).
		BorderColumn(false).
		BorderHeader(true).
		BorderStyle(muted).
		StyleFunc(func(row, col int) lipgloss.Style {
			style := lipgloss.NewStyle().PaddingRight(2)
			if row == table.HeaderRow {
				return style.Inherit(bold)
			}
			return style
		}).
		Headers(headers...).
		Rows(rows...).
		Render()
}
