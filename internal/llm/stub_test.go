package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStubProviderDefaultsConform(t *testing.T) {
	p := NewStubProvider()
	schema := MustSchemaFor[sampleResponse]("sample", "")

	text, err := p.Generate(context.Background(), &Request{
		Input:  "<message><index>7</index><id>a</id><role>agent</role><content>hi</content></message>",
		Schema: schema,
	})
	require.NoError(t, err)

	_, err = schema.Validate(text)
	require.NoError(t, err)
	require.JSONEq(t, `{"found":false,"items":[],"note":""}`, text)
	require.Len(t, p.Calls(), 1)
}

func TestStubProviderDefaultIntegerUsesFirstIndex(t *testing.T) {
	type pick struct {
		Index int `json:"index"`
	}
	schema := MustSchemaFor[pick]("pick", "")

	text, err := NewStubProvider().Generate(context.Background(), &Request{
		Input:  "<message><index>12</index><id>a</id><role>agent</role><content></content></message>",
		Schema: schema,
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"index":12}`, text)
}

func TestStubProviderScripts(t *testing.T) {
	p := NewStubProvider()
	p.Queue("sample",
		StubResponse{Text: "first"},
		StubResponse{Err: errors.New("second fails")},
	)

	schema := MustSchemaFor[sampleResponse]("sample", "")

	text, err := p.Generate(context.Background(), &Request{Schema: schema})
	require.NoError(t, err)
	require.Equal(t, "first", text)

	_, err = p.Generate(context.Background(), &Request{Schema: schema})
	require.EqualError(t, err, "second fails")

	p.Respond("sample", func(req *Request) (string, error) {
		return "from func: " + req.Input, nil
	})
	text, err = p.Generate(context.Background(), &Request{Input: "x", Schema: schema})
	require.NoError(t, err)
	require.Equal(t, "from func: x", text)
}

func TestStubProviderHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewStubProvider().Generate(ctx, &Request{})
	require.ErrorIs(t, err, context.Canceled)
}
