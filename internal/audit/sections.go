package audit

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/callaudit/callaudit/internal/llm"
	"github.com/callaudit/callaudit/internal/models"
	"github.com/callaudit/callaudit/internal/prompts"
)

type sectionSpan struct {
	SectionType models.SectionType `json:"sectionType" jsonschema:"enum=IVR,enum=INTRODUCTION,enum=TRANSFER,enum=BENEFITS_COLLECTION"`
	StartIndex  int                `json:"startIndex"`
	EndIndex    int                `json:"endIndex"`
}

type sectionResponse struct {
	Sections []sectionSpan `json:"sections"`
}

var sectionSchema = llm.MustSchemaFor[sectionResponse]("section_breakdown", "Contiguous typed sections of the call")

// SectionAuditor partitions a call into ordered, typed sections.
type SectionAuditor struct {
	gen Generator
}

func NewSectionAuditor(gen Generator) *SectionAuditor {
	return &SectionAuditor{gen: gen}
}

func (a *SectionAuditor) Type() models.AuditType {
	return models.AuditTypeSectionBreakdown
}

func (a *SectionAuditor) Audit(ctx context.Context, in *Input) (models.AuditResult, error) {
	conv := in.Conversation

	if len(conv) == 0 {
		return &models.SectionAudit{Sections: []models.Section{}}, nil
	}

	instructions, err := prompts.SectionBreakdown(in.AgentName)
	if err != nil {
		return nil, err
	}

	var resp sectionResponse
	if err := a.gen.Generate(ctx, instructions, prompts.ConversationInput(conv), sectionSchema, &resp); err != nil {
		return nil, err
	}

	sections := make([]models.Section, len(resp.Sections))
	for i, s := range resp.Sections {
		sections[i] = models.Section{
			Type:       s.SectionType,
			StartIndex: s.StartIndex,
			EndIndex:   s.EndIndex,
		}
	}

	resolved, err := ResolveSections(conv, sections)
	if err != nil {
		return nil, err
	}

	return &models.SectionAudit{
		Sections:      resolved,
		TotalSections: len(resolved),
	}, nil
}

// ResolveSections checks section bounds and order against conv and fills in
// the boundary message ids. Bounds are never clamped: any index outside the
// conversation, an inverted range, or an overlap is a schema violation.
// Resolving an already-resolved list returns an equal list.
func ResolveSections(conv []models.Message, sections []models.Section) ([]models.Section, error) {
	resolved := make([]models.Section, len(sections))

	for i, s := range sections {
		if err := validSectionType(s.Type); err != nil {
			return nil, err
		}
		if s.StartIndex < 0 || s.EndIndex >= len(conv) || s.StartIndex > s.EndIndex {
			return nil, schemaViolation("section %d (%s) has bounds [%d, %d] for a conversation of %d messages",
				i, s.Type, s.StartIndex, s.EndIndex, len(conv))
		}

		if i > 0 {
			prev := resolved[i-1]
			if s.StartIndex <= prev.EndIndex {
				return nil, schemaViolation("section %d (%s) starts at %d, overlapping or preceding section %d ending at %d",
					i, s.Type, s.StartIndex, i-1, prev.EndIndex)
			}
			if s.StartIndex != prev.EndIndex+1 {
				slog.Warn("Gap between sections", "after", prev.EndIndex, "before", s.StartIndex)
			}
		}

		s.StartMessageID = conv[s.StartIndex].ID
		s.EndMessageID = conv[s.EndIndex].ID
		resolved[i] = s
	}

	return resolved, nil
}

func validSectionType(t models.SectionType) error {
	if slices.Contains(models.AllSectionTypes(), t) {
		return nil
	}
	return fmt.Errorf("%w: unknown section type %q", models.ErrSchemaViolation, t)
}
