package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/callaudit/callaudit/internal/report"
	"github.com/mattn/go-runewidth"
)

func checkFormat(format string) error {
	switch format {
	case "json", "md", "html":
		return nil
	default:
		return fmt.Errorf("unknown format %q (want json, md or html)", format)
	}
}

func writeRecord(w io.Writer, rec *models.TranscriptAuditRecord, format string) error {
	switch format {
	case "md":
		_, err := io.WriteString(w, report.Markdown(rec))
		return err
	case "html":
		html, err := report.HTML(rec)
		if err != nil {
			return err
		}
		_, err = w.Write(html)
		return err
	default:
		return writeJSON(w, rec)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

type column struct {
	title string
	width int
}

var listColumns = []column{
	{"ID", 24},
	{"FILE", 28},
	{"AGENT", 18},
	{"CREATED", 16},
	{"STATUS", 0},
}

// writeTable prints one line per record. Cells are truncated and padded by
// display width so wide characters keep the columns aligned.
func writeTable(w io.Writer, recs []*models.TranscriptAuditRecord) error {
	var sb strings.Builder

	cells := make([]string, len(listColumns))
	for i, c := range listColumns {
		cells[i] = c.title
	}
	writeRow(&sb, cells)

	for _, rec := range recs {
		writeRow(&sb, []string{
			rec.ID,
			rec.SourceFileName,
			rec.AgentName,
			rec.CreatedAt.UTC().Format(time.DateOnly + " 15:04"),
			statusSummary(rec),
		})
	}

	_, err := io.WriteString(w, sb.String())
	return err
}

func writeRow(sb *strings.Builder, cells []string) {
	for i, c := range listColumns {
		cell := cells[i]
		if c.width == 0 {
			sb.WriteString(cell)
			continue
		}
		cell = runewidth.Truncate(cell, c.width, "…")
		sb.WriteString(padRight(cell, c.width))
		sb.WriteString("  ")
	}
	sb.WriteString("\n")
}

// padRight pads s with spaces so its terminal display width reaches width.
func padRight(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	return s + strings.Repeat(" ", width-sw)
}

func statusSummary(rec *models.TranscriptAuditRecord) string {
	parts := make([]string, 0, len(rec.RequestedAuditTypes))
	for _, t := range rec.RequestedAuditTypes {
		parts = append(parts, fmt.Sprintf("%s=%s", shortType(t), rec.StatusByType[t]))
	}
	return strings.Join(parts, " ")
}

func shortType(t models.AuditType) string {
	switch t {
	case models.AuditTypeRecordedLinePhrases:
		return "recorded_line"
	case models.AuditTypeSectionBreakdown:
		return "sections"
	default:
		return strings.ToLower(string(t))
	}
}
