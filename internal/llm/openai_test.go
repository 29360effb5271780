package llm

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

type fakeModel struct {
	mu       sync.Mutex
	response string
	err      error
	messages [][]llms.MessageContent
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	m.messages = append(m.messages, messages)
	m.mu.Unlock()

	if m.err != nil {
		return nil, m.err
	}

	var co llms.CallOptions
	for _, o := range opts {
		o(&co)
	}
	if co.Temperature != 0 {
		return nil, errors.New("expected temperature 0")
	}

	return &llms.ContentResponse{
		Choices: []*llms.ContentChoice{{Content: m.response}},
	}, nil
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return m.response, m.err
}

func TestOpenAIProviderGenerate(t *testing.T) {
	model := &fakeModel{response: `{"found":true,"items":[],"note":""}`}
	built := 0

	p, err := NewOpenAIProvider(OpenAIOptions{
		APIKey: "key",
		NewModel: func(opts ...openai.Option) (llms.Model, error) {
			built++
			return model, nil
		},
	})
	require.NoError(t, err)
	require.Equal(t, "openai", p.Name())

	schema := MustSchemaFor[sampleResponse]("sample", "")

	for range 2 {
		text, err := p.Generate(context.Background(), &Request{
			Instructions: "system text",
			Input:        "user text",
			Schema:       schema,
		})
		require.NoError(t, err)
		require.JSONEq(t, `{"found":true,"items":[],"note":""}`, text)
	}

	// one client per schema
	require.Equal(t, 1, built)

	require.Len(t, model.messages, 2)
	msgs := model.messages[0]
	require.Len(t, msgs, 2)
	require.Equal(t, llms.ChatMessageTypeSystem, msgs[0].Role)
	require.Equal(t, llms.TextContent{Text: "system text"}, msgs[0].Parts[0])
	require.Equal(t, llms.ChatMessageTypeHuman, msgs[1].Role)
	require.Equal(t, llms.TextContent{Text: "user text"}, msgs[1].Parts[0])
}

func TestOpenAIProviderErrors(t *testing.T) {
	_, err := NewOpenAIProvider(OpenAIOptions{})
	require.Error(t, err)

	p, err := NewOpenAIProvider(OpenAIOptions{
		APIKey: "key",
		NewModel: func(opts ...openai.Option) (llms.Model, error) {
			return &fakeModel{err: errors.New("429 too many requests")}, nil
		},
	})
	require.NoError(t, err)

	_, err = p.Generate(context.Background(), &Request{Schema: MustSchemaFor[sampleResponse]("sample", "")})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "openai", pe.Provider)
	require.ErrorContains(t, err, "429")
}

func TestResponseFormat(t *testing.T) {
	rf, err := responseFormat(MustSchemaFor[sampleResponse]("sample", ""))
	require.NoError(t, err)
	require.Equal(t, "json_schema", rf.Type)

	raw, err := json.Marshal(rf)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"name":"sample"`)
	require.Contains(t, string(raw), `"strict":true`)
}
