// Package report renders an audit record as a Markdown summary, and as HTML
// through goldmark.
package report

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

var markdown = goldmark.New(goldmark.WithExtensions(extension.Table))

// Markdown renders rec as a Markdown document.
func Markdown(rec *models.TranscriptAuditRecord) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# Transcript audit %s\n\n", escape(rec.ID))

	sb.WriteString("| Field | Value |\n|---|---|\n")
	row(&sb, "Source file", rec.SourceFileName)
	row(&sb, "Org", rec.OrgID)
	row(&sb, "Session", rec.SessionID)
	row(&sb, "Agent", rec.AgentName)
	row(&sb, "Messages", fmt.Sprint(len(rec.Conversation)))
	row(&sb, "Created", rec.CreatedAt.UTC().Format("2006-01-02 15:04:05 UTC"))
	if rec.ArchiveLocation != "" {
		row(&sb, "Archive", rec.ArchiveLocation)
	}
	sb.WriteString("\n")

	for _, t := range rec.RequestedAuditTypes {
		fmt.Fprintf(&sb, "## %s: %s\n\n", escape(string(t)), rec.StatusByType[t])

		switch r := rec.ResultsByType.Get(t).(type) {
		case *models.RecordedLineAudit:
			writeRecordedLine(&sb, r)
		case *models.SectionAudit:
			writeSections(&sb, r)
		default:
			sb.WriteString("No result.\n\n")
		}
	}

	return sb.String()
}

// HTML renders rec as an HTML fragment.
func HTML(rec *models.TranscriptAuditRecord) ([]byte, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(Markdown(rec)), &buf); err != nil {
		return nil, fmt.Errorf("rendering report: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRecordedLine(sb *strings.Builder, r *models.RecordedLineAudit) {
	fmt.Fprintf(sb, "%d of %d human transfers heard the recorded-line disclosure.\n\n", r.TotalCompliant, r.TotalHumanTransfers)
	if len(r.AuditedChunks) == 0 {
		return
	}

	sb.WriteString("| Transfer | Human | Introduction | Agent said | Disclosed |\n|---|---|---|---|---|\n")
	for _, c := range r.AuditedChunks {
		disclosed := "no"
		if c.HasPhrase {
			disclosed = "yes"
		}
		fmt.Fprintf(sb, "| %d | %s | %d | %s | %s |\n",
			c.TransferIndex, escape(c.TransferContent), c.ComplianceIndex, escape(c.ComplianceContent), disclosed)
	}
	sb.WriteString("\n")
}

func writeSections(sb *strings.Builder, r *models.SectionAudit) {
	fmt.Fprintf(sb, "%d sections.\n\n", r.TotalSections)
	if len(r.Sections) == 0 {
		return
	}

	sb.WriteString("| Section | Start | End |\n|---|---|---|\n")
	for _, s := range r.Sections {
		fmt.Fprintf(sb, "| %s | %d | %d |\n", escape(string(s.Type)), s.StartIndex, s.EndIndex)
	}
	sb.WriteString("\n")
}

func row(sb *strings.Builder, name, value string) {
	fmt.Fprintf(sb, "| %s | %s |\n", name, escape(value))
}

// escape makes arbitrary text safe inside a table cell: line breaks become
// spaces and ASCII punctuation is backslash-escaped, so transcript tokens
// such as <dtmf> render literally.
func escape(s string) string {
	var sb strings.Builder
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r':
			sb.WriteByte(' ')
		case r < 128 && isPunct(byte(r)):
			sb.WriteByte('\\')
			sb.WriteRune(r)
		default:
			sb.WriteRune(r)
		}
	}
	return sb.String()
}

func isPunct(c byte) bool {
	return strings.IndexByte("!\"#$%&'()*+,-./:;<=>?@[\\]^_`{|}~", c) >= 0
}
