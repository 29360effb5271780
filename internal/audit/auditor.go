// Package audit implements the per-type transcript audits on top of the
// structured-generation client.
package audit

import (
	"context"
	"fmt"

	"github.com/callaudit/callaudit/internal/llm"
	"github.com/callaudit/callaudit/internal/models"
)

// Generator is the structured-generation call the auditors depend on.
// [*llm.Client] implements it.
type Generator interface {
	Generate(ctx context.Context, instructions, input string, schema *llm.ResponseSchema, out any) error
}

// Input is the read-only snapshot an auditor works on.
type Input struct {
	Conversation []models.Message
	AgentName    string
}

// Auditor runs one audit type over a conversation.
type Auditor interface {
	Type() models.AuditType
	Audit(ctx context.Context, in *Input) (models.AuditResult, error)
}

// New creates the auditor for t.
func New(t models.AuditType, gen Generator) (Auditor, error) {
	switch t {
	case models.AuditTypeRecordedLinePhrases:
		return NewRecordedLineAuditor(gen), nil
	case models.AuditTypeSectionBreakdown:
		return NewSectionAuditor(gen), nil
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidAuditType, t)
	}
}

// NewAll creates one auditor per supported audit type.
func NewAll(gen Generator) map[models.AuditType]Auditor {
	auditors := map[models.AuditType]Auditor{}
	for _, t := range models.AllAuditTypes() {
		a, err := New(t, gen)
		if err != nil {
			// every type returned by AllAuditTypes has a case in New
			panic(err)
		}
		auditors[t] = a
	}
	return auditors
}

// ResponseSchemas lists the response schemas an audit type sends to the model,
// in call order.
func ResponseSchemas(t models.AuditType) ([]*llm.ResponseSchema, error) {
	switch t {
	case models.AuditTypeRecordedLinePhrases:
		return []*llm.ResponseSchema{transferSchema, recordedLineSchema}, nil
	case models.AuditTypeSectionBreakdown:
		return []*llm.ResponseSchema{sectionSchema}, nil
	default:
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidAuditType, t)
	}
}

func schemaViolation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", models.ErrSchemaViolation, fmt.Sprintf(format, args...))
}
