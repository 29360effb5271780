package audit

import (
	"testing"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	_, client := newTestClient(t)

	for _, at := range models.AllAuditTypes() {
		a, err := New(at, client)
		require.NoError(t, err)
		require.Equal(t, at, a.Type())
	}

	_, err := New("SENTIMENT", client)
	require.ErrorIs(t, err, models.ErrInvalidAuditType)

	require.Len(t, NewAll(client), len(models.AllAuditTypes()))
}

func TestResponseSchemas(t *testing.T) {
	schemas, err := ResponseSchemas(models.AuditTypeRecordedLinePhrases)
	require.NoError(t, err)
	require.Len(t, schemas, 2)
	require.Equal(t, "human_transfer_indices", schemas[0].Name)

	schemas, err = ResponseSchemas(models.AuditTypeSectionBreakdown)
	require.NoError(t, err)
	require.Len(t, schemas, 1)

	props := schemas[0].Document["properties"].(map[string]any)
	item := props["sections"].(map[string]any)["items"].(map[string]any)
	sectionType := item["properties"].(map[string]any)["sectionType"].(map[string]any)
	require.ElementsMatch(t, []any{"IVR", "INTRODUCTION", "TRANSFER", "BENEFITS_COLLECTION"}, sectionType["enum"])

	_, err = ResponseSchemas("SENTIMENT")
	require.ErrorIs(t, err, models.ErrInvalidAuditType)
}
