package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "chatgpt-4o-latest"

// OpenAIOptions configure an OpenAIProvider.
type OpenAIOptions struct {
	APIKey  string
	Model   string
	BaseURL string

	// NewModel overrides model construction, mostly for tests.
	NewModel func(opts ...openai.Option) (llms.Model, error)
}

// OpenAIProvider calls the OpenAI chat API through langchaingo, using native
// json_schema structured output when a schema is supplied.
type OpenAIProvider struct {
	opts OpenAIOptions

	// the response format is fixed per langchaingo client, so one client is
	// kept per schema name
	modelsMu sync.Mutex
	models   map[string]llms.Model
}

// NewOpenAIProvider creates an OpenAIProvider.
func NewOpenAIProvider(opts OpenAIOptions) (*OpenAIProvider, error) {
	if opts.APIKey == "" {
		return nil, errors.New("openai provider requires an API key")
	}
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	if opts.NewModel == nil {
		opts.NewModel = func(o ...openai.Option) (llms.Model, error) {
			return openai.New(o...)
		}
	}

	return &OpenAIProvider{
		opts:   opts,
		models: map[string]llms.Model{},
	}, nil
}

func (p *OpenAIProvider) Name() string {
	return "openai"
}

func (p *OpenAIProvider) Generate(ctx context.Context, req *Request) (string, error) {
	if req == nil {
		return "", providerError(p.Name(), "generate", errors.New("nil request"))
	}

	model, err := p.model(req.Schema)
	if err != nil {
		return "", providerError(p.Name(), "init", err)
	}

	content := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, req.Instructions),
		llms.TextParts(llms.ChatMessageTypeHuman, req.Input),
	}

	resp, err := model.GenerateContent(ctx, content, llms.WithTemperature(req.Temperature))
	if err != nil {
		return "", providerError(p.Name(), "generate", err)
	}

	if resp == nil || len(resp.Choices) == 0 {
		return "", providerError(p.Name(), "generate", errors.New("no choices in response"))
	}

	return resp.Choices[0].Content, nil
}

func (p *OpenAIProvider) model(schema *ResponseSchema) (llms.Model, error) {
	key := ""
	if schema != nil {
		key = schema.Name
	}

	p.modelsMu.Lock()
	defer p.modelsMu.Unlock()

	if m, ok := p.models[key]; ok {
		return m, nil
	}

	opts := []openai.Option{
		openai.WithToken(p.opts.APIKey),
		openai.WithModel(p.opts.Model),
	}
	if p.opts.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(p.opts.BaseURL))
	}
	if schema != nil {
		rf, err := responseFormat(schema)
		if err != nil {
			return nil, err
		}
		opts = append(opts, openai.WithResponseFormat(rf))
	}

	m, err := p.opts.NewModel(opts...)
	if err != nil {
		return nil, err
	}

	p.models[key] = m
	return m, nil
}

// responseFormat builds the strict json_schema response format. The nested
// schema types live in an internal langchaingo package, so the value is built
// from its wire form.
func responseFormat(schema *ResponseSchema) (*openai.ResponseFormat, error) {
	wire := map[string]any{
		"type": "json_schema",
		"json_schema": map[string]any{
			"name":   schema.Name,
			"strict": true,
			"schema": schema.Document,
		},
	}

	raw, err := json.Marshal(wire)
	if err != nil {
		return nil, fmt.Errorf("encoding response format for %s: %w", schema.Name, err)
	}

	var rf openai.ResponseFormat
	if err := json.Unmarshal(raw, &rf); err != nil {
		return nil, fmt.Errorf("decoding response format for %s: %w", schema.Name, err)
	}
	return &rf, nil
}
