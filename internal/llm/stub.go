package llm

import (
	"context"
	"encoding/json"
	"regexp"
	"strconv"
	"sync"
)

// StubResponse is one scripted reply.
type StubResponse struct {
	Text string
	Err  error
}

// StubFunc computes a reply from the request.
type StubFunc func(req *Request) (string, error)

// StubProvider is an offline provider. Replies are looked up by schema name:
// a StubFunc wins over queued responses, and with neither the provider
// answers with the smallest document that satisfies the schema.
type StubProvider struct {
	mu     sync.Mutex
	funcs  map[string]StubFunc
	queued map[string][]StubResponse
	calls  []Request
}

// NewStubProvider creates an empty StubProvider.
func NewStubProvider() *StubProvider {
	return &StubProvider{
		funcs:  map[string]StubFunc{},
		queued: map[string][]StubResponse{},
	}
}

func (s *StubProvider) Name() string {
	return "stub"
}

// Respond installs fn for every request using the named schema.
func (s *StubProvider) Respond(schemaName string, fn StubFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.funcs[schemaName] = fn
}

// Queue appends replies for the named schema, consumed in order.
func (s *StubProvider) Queue(schemaName string, responses ...StubResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queued[schemaName] = append(s.queued[schemaName], responses...)
}

// Calls returns a copy of every request received so far.
func (s *StubProvider) Calls() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *StubProvider) Generate(ctx context.Context, req *Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	name := ""
	if req.Schema != nil {
		name = req.Schema.Name
	}

	s.mu.Lock()
	s.calls = append(s.calls, *req)
	fn := s.funcs[name]
	var next *StubResponse
	if fn == nil && len(s.queued[name]) > 0 {
		next = &s.queued[name][0]
		s.queued[name] = s.queued[name][1:]
	}
	s.mu.Unlock()

	switch {
	case fn != nil:
		return fn(req)
	case next != nil:
		return next.Text, next.Err
	case req.Schema == nil:
		return "", nil
	}

	raw, err := json.Marshal(minimalInstance(req.Schema.Document, firstRenderedIndex(req.Input)))
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

var renderedIndex = regexp.MustCompile(`<index>(\d+)</index>`)

// firstRenderedIndex finds the first message index in a serialized
// conversation, so that defaulted integers point at a real message.
func firstRenderedIndex(input string) int {
	m := renderedIndex.FindStringSubmatch(input)
	if m == nil {
		return 0
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0
	}
	return n
}

func minimalInstance(node any, defaultInt int) any {
	schema, ok := node.(map[string]any)
	if !ok {
		return nil
	}

	if enum, ok := schema["enum"].([]any); ok && len(enum) > 0 {
		return enum[0]
	}

	switch schema["type"] {
	case "object":
		out := map[string]any{}
		props, _ := schema["properties"].(map[string]any)
		for k, v := range props {
			out[k] = minimalInstance(v, defaultInt)
		}
		return out
	case "array":
		return []any{}
	case "integer", "number":
		return defaultInt
	case "boolean":
		return false
	case "string":
		return ""
	default:
		return nil
	}
}
