// Package prompts holds the instruction templates sent to the model and
// builds the matching user payloads.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/callaudit/callaudit/internal/transcript"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(
	template.New("").Option("missingkey=error").ParseFS(templateFS, "templates/*.tmpl"),
)

// Context holds the variables available to the instruction templates.
type Context struct {
	AgentName       string
	AgentRole       models.Role
	CounterpartRole models.Role
	SectionTypes    []models.SectionType
}

func newContext(agentName string) *Context {
	return &Context{
		AgentName:       agentName,
		AgentRole:       models.RoleAgent,
		CounterpartRole: models.RoleCounterpart,
		SectionTypes:    models.AllSectionTypes(),
	}
}

// TransferDetection returns the instructions for finding new-human arrivals.
func TransferDetection() (string, error) {
	return render("transfer_detection.tmpl", newContext(""))
}

// RecordedLine returns the instructions for the recorded-line disclosure
// check. agentName may be empty.
func RecordedLine(agentName string) (string, error) {
	return render("recorded_line.tmpl", newContext(agentName))
}

// SectionBreakdown returns the instructions for splitting a call into
// sections. agentName may be empty.
func SectionBreakdown(agentName string) (string, error) {
	return render("section_breakdown.tmpl", newContext(agentName))
}

// ConversationInput renders a whole conversation as the user payload.
func ConversationInput(messages []models.Message) string {
	return "<messages>\n" + transcript.Serialize(messages, 0) + "\n</messages>"
}

// WindowInput renders messages[start:end] keeping their positions in the
// full conversation.
func WindowInput(messages []models.Message, start, end int) string {
	return "<messages>\n" + transcript.Serialize(messages[start:end], start) + "\n</messages>"
}

func render(name string, ctx *Context) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, ctx); err != nil {
		return "", fmt.Errorf("template: render %s: %w", name, err)
	}
	return buf.String(), nil
}
