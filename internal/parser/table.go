package parser

import "strings"

// pipeTable renders header and rows as a Markdown pipe table. Short rows are
// padded and long rows truncated to the header width.
func pipeTable(header []string, rows [][]string) string {
	if len(header) == 0 {
		return ""
	}
	var sb strings.Builder
	writeRow(&sb, header, len(header))
	sb.WriteString("|")
	for range header {
		sb.WriteString("---|")
	}
	sb.WriteString("\n")
	for _, row := range rows {
		writeRow(&sb, row, len(header))
	}
	return sb.String()
}

func writeRow(sb *strings.Builder, cells []string, width int) {
	sb.WriteString("|")
	for i := range width {
		cell := ""
		if i < len(cells) {
			cell = cellText(cells[i])
		}
		sb.WriteString(" " + cell + " |")
	}
	sb.WriteString("\n")
}

// cellText flattens s onto one line and escapes pipes.
func cellText(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
