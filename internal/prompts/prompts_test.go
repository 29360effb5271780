package prompts

import (
	"strings"
	"testing"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/stretchr/testify/require"
)

func TestInstructionsRender(t *testing.T) {
	transfer, err := TransferDetection()
	require.NoError(t, err)
	require.Contains(t, transfer, `"agent" for our voice agent`)
	require.Contains(t, transfer, `"counterpart" for the other side`)
	require.Contains(t, transfer, `{"indices": [2, 5]}`)
	require.NotContains(t, transfer, "{{")

	recorded, err := RecordedLine("Ava Lee")
	require.NoError(t, err)
	require.Contains(t, recorded, "introduces itself as Ava Lee.")
	require.Contains(t, recorded, "hasRecordedLinePhrase")

	anonymous, err := RecordedLine("")
	require.NoError(t, err)
	require.NotContains(t, anonymous, "introduces itself as")

	sections, err := SectionBreakdown("Ava Lee")
	require.NoError(t, err)
	for _, st := range models.AllSectionTypes() {
		require.Contains(t, sections, "- "+string(st)+":")
	}
	require.Contains(t, sections, `"sectionType": "BENEFITS_COLLECTION", "startIndex": 7, "endIndex": 8`)
}

func TestWindowInputKeepsGlobalIndices(t *testing.T) {
	var msgs []models.Message
	for i := range 10 {
		msgs = append(msgs, models.Message{ID: string(rune('a' + i)), Role: models.RoleAgent, Content: "x"})
	}

	input := WindowInput(msgs, 4, 7)
	require.True(t, strings.HasPrefix(input, "<messages>\n<message><index>4</index><id>e</id>"))
	require.Contains(t, input, "<index>6</index>")
	require.NotContains(t, input, "<index>7</index>")
	require.True(t, strings.HasSuffix(input, "</message>\n</messages>"))

	full := ConversationInput(msgs)
	require.Equal(t, 10, strings.Count(full, "<message>"))
}
