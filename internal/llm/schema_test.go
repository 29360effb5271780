package llm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type sampleItem struct {
	Kind  string `json:"kind" jsonschema:"enum=A,enum=B"`
	Start int    `json:"start"`
}

type sampleResponse struct {
	Found bool         `json:"found"`
	Items []sampleItem `json:"items"`
	Note  string       `json:"note,omitempty"`
}

func TestSchemaForIsStrict(t *testing.T) {
	s, err := SchemaFor[sampleResponse]("sample", "a sample")
	require.NoError(t, err)
	require.Equal(t, "sample", s.Name)

	require.Equal(t, "object", s.Document["type"])
	require.Equal(t, false, s.Document["additionalProperties"])
	require.ElementsMatch(t, []any{"found", "items", "note"}, s.Document["required"])

	props := s.Document["properties"].(map[string]any)
	items := props["items"].(map[string]any)["items"].(map[string]any)
	require.Equal(t, false, items["additionalProperties"])
	require.ElementsMatch(t, []any{"kind", "start"}, items["required"])

	_, hasSchemaKey := s.Document["$schema"]
	require.False(t, hasSchemaKey)
}

func TestResponseSchemaValidate(t *testing.T) {
	s := MustSchemaFor[sampleResponse]("sample", "")

	tests := []struct {
		name    string
		text    string
		wantErr string
	}{
		{name: "valid", text: `{"found":true,"items":[{"kind":"A","start":3}],"note":""}`},
		{name: "not json", text: `found: true`, wantErr: "not valid JSON"},
		{name: "missing property", text: `{"found":true,"items":[]}`, wantErr: "does not match sample"},
		{name: "extra property", text: `{"found":true,"items":[],"note":"","extra":1}`, wantErr: "does not match sample"},
		{name: "bad enum", text: `{"found":true,"items":[{"kind":"C","start":3}],"note":""}`, wantErr: "/items/0/kind"},
		{name: "wrong type", text: `{"found":"yes","items":[],"note":""}`, wantErr: "/found"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inst, err := s.Validate(tt.text)
			if tt.wantErr == "" {
				require.NoError(t, err)
				require.NotNil(t, inst)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewResponseSchemaRequiresName(t *testing.T) {
	_, err := NewResponseSchema("", "", map[string]any{"type": "object"})
	require.Error(t, err)
}
