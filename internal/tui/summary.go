package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"metaredact/internal/group"
	"metaredact/internal/metadata"
	"metaredact/internal/queue"
)

type SummaryRow struct {
	Label string
	Value string
}

// RenderSummary draws rows as a two-column table. Multi-line values are
// indented under their first line.
func RenderSummary(rows []SummaryRow) string {
	labelWidth := 0
	valueWidth := 0
	for _, row := range rows {
		labelWidth = max(labelWidth, lipgloss.Width(row.Label))
		for _, line := range strings.Split(row.Value, "\n") {
			valueWidth = max(valueWidth, lipgloss.Width(line))
		}
	}

	hline := strings.Repeat("-", labelWidth+valueWidth+3)
	lines := []string{hline}

	for _, row := range rows {
		for i, part := range strings.Split(row.Value, "\n") {
			label := ""
			if i == 0 {
				label = row.Label
			}
			line := fmt.Sprintf("%s | %s", labelStyle.Render(padRight(label, labelWidth)), valueStyle.Render(padRight(part, valueWidth)))
			lines = append(lines, line)
		}
	}

	lines = append(lines, hline)
	return strings.Join(lines, "\n")
}

// RenderGroups draws one table per non-empty category, in display order,
// followed by the derived location when present.
func RenderGroups(title string, groups group.Groups) string {
	sections := []string{titleStyle.Render(title)}

	cats := groups.Categories()
	if len(cats) == 0 {
		sections = append(sections, dimStyle.Render("no metadata"))
	}
	for _, cat := range cats {
		entries := groups[cat]
		rows := make([]SummaryRow, 0, len(entries))
		for _, key := range entries.Keys() {
			rows = append(rows, SummaryRow{Label: key, Value: metadata.Stringify(entries[key])})
		}
		sections = append(sections, headingStyle.Render(strings.ToUpper(string(cat))), RenderSummary(rows))
	}

	if coord, ok := groups.Location(); ok {
		sections = append(sections,
			headingStyle.Render("LOCATION"),
			labelStyle.Render(fmt.Sprintf("%.6f, %.6f", coord.Lat, coord.Lon)),
			dimStyle.Render(group.MapURL(coord)),
		)
	}
	return strings.Join(sections, "\n")
}

// RenderFile draws a finished file. view is "original", "redacted" or
// "both".
func RenderFile(v queue.View, view string) string {
	header := titleStyle.Render(v.Name) + dimStyle.Render(fmt.Sprintf("  %s  %s", v.MIMEType, v.Status))
	if v.Status == queue.StatusError {
		return header + "\n" + errorStyle.Render(v.Error)
	}

	var parts []string
	if view == "original" || view == "both" {
		parts = append(parts, RenderGroups("Original", group.Group(v.Metadata)))
	}
	if view == "redacted" || view == "both" {
		parts = append(parts, RenderGroups("Redacted", group.Group(metadata.FromStrings(v.RedactedMetadata))))
	}
	return header + "\n" + strings.Join(parts, "\n\n")
}

func padRight(s string, width int) string {
	w := lipgloss.Width(s)
	if w >= width {
		return s
	}
	return s + strings.Repeat(" ", width-w)
}
