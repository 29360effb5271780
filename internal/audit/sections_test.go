package audit

import (
	"context"
	"testing"

	"github.com/callaudit/callaudit/internal/llm"
	"github.com/callaudit/callaudit/internal/models"
	"github.com/stretchr/testify/require"
)

func TestSectionAudit(t *testing.T) {
	stub, client := newTestClient(t)
	stub.Queue(sectionSchema.Name, llm.StubResponse{Text: `{"sections": [
		{"sectionType": "IVR", "startIndex": 0, "endIndex": 1},
		{"sectionType": "INTRODUCTION", "startIndex": 2, "endIndex": 3},
		{"sectionType": "TRANSFER", "startIndex": 4, "endIndex": 6},
		{"sectionType": "INTRODUCTION", "startIndex": 7, "endIndex": 7},
		{"sectionType": "BENEFITS_COLLECTION", "startIndex": 8, "endIndex": 8}
	]}`})

	result, err := NewSectionAuditor(client).Audit(context.Background(), &Input{Conversation: twoTransferCall, AgentName: "Ava"})
	require.NoError(t, err)

	audit := result.(*models.SectionAudit)
	require.Equal(t, 5, audit.TotalSections)
	require.Equal(t, models.Section{
		Type:           models.SectionTransfer,
		StartIndex:     4,
		EndIndex:       6,
		StartMessageID: "m4",
		EndMessageID:   "m6",
	}, audit.Sections[2])
	require.Equal(t, "m7", audit.Sections[3].StartMessageID)
	require.Equal(t, "m7", audit.Sections[3].EndMessageID)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	require.Contains(t, calls[0].Instructions, "introduces itself as Ava.")
}

func TestSectionAuditEmptyConversation(t *testing.T) {
	stub, client := newTestClient(t)

	result, err := NewSectionAuditor(client).Audit(context.Background(), &Input{})
	require.NoError(t, err)
	require.Equal(t, 0, result.(*models.SectionAudit).TotalSections)
	require.Empty(t, stub.Calls())
}

func TestSectionAuditRejectsBadBounds(t *testing.T) {
	tests := map[string]string{
		"end past conversation": `{"sections": [{"sectionType": "IVR", "startIndex": 0, "endIndex": 9}]}`,
		"negative start":        `{"sections": [{"sectionType": "IVR", "startIndex": -1, "endIndex": 2}]}`,
		"inverted":              `{"sections": [{"sectionType": "IVR", "startIndex": 4, "endIndex": 2}]}`,
		"overlap": `{"sections": [
			{"sectionType": "IVR", "startIndex": 0, "endIndex": 3},
			{"sectionType": "INTRODUCTION", "startIndex": 3, "endIndex": 5}]}`,
		"out of order": `{"sections": [
			{"sectionType": "INTRODUCTION", "startIndex": 4, "endIndex": 5},
			{"sectionType": "IVR", "startIndex": 0, "endIndex": 3}]}`,
	}

	for name, reply := range tests {
		t.Run(name, func(t *testing.T) {
			stub, client := newTestClient(t)
			stub.Queue(sectionSchema.Name, llm.StubResponse{Text: reply})

			_, err := NewSectionAuditor(client).Audit(context.Background(), &Input{Conversation: twoTransferCall})
			require.ErrorIs(t, err, models.ErrSchemaViolation)
		})
	}
}

func TestSectionAuditRejectsUnknownType(t *testing.T) {
	stub, client := newTestClient(t)
	stub.Queue(sectionSchema.Name, llm.StubResponse{Text: `{"sections": [{"sectionType": "SMALL_TALK", "startIndex": 0, "endIndex": 1}]}`})

	_, err := NewSectionAuditor(client).Audit(context.Background(), &Input{Conversation: twoTransferCall})
	require.ErrorIs(t, err, models.ErrProvider)
}

func TestResolveSectionsIsIdempotent(t *testing.T) {
	sections := []models.Section{
		{Type: models.SectionIVR, StartIndex: 0, EndIndex: 1},
		{Type: models.SectionIntroduction, StartIndex: 2, EndIndex: 5},
		// gap at 6 is tolerated
		{Type: models.SectionBenefitsCollection, StartIndex: 7, EndIndex: 8},
	}

	once, err := ResolveSections(twoTransferCall, sections)
	require.NoError(t, err)
	twice, err := ResolveSections(twoTransferCall, once)
	require.NoError(t, err)

	require.Equal(t, once, twice)
	require.Equal(t, "m5", once[1].EndMessageID)
	require.Empty(t, sections[0].StartMessageID, "input must not be modified")
}

func TestResolveSectionsUnknownType(t *testing.T) {
	_, err := ResolveSections(twoTransferCall, []models.Section{{Type: "OTHER", StartIndex: 0, EndIndex: 0}})
	require.ErrorIs(t, err, models.ErrSchemaViolation)
}
