package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/callaudit/callaudit/internal/utils"
	copilot "github.com/github/copilot-sdk/go"
)

const submitResultToolName = "submit_result"

// CopilotOptions configure a CopilotProvider.
type CopilotOptions struct {
	// Model can be blank, in which case the copilot CLI picks its own.
	Model string

	NewCopilotClient func(clientOptions *copilot.ClientOptions) copilotClient
}

// CopilotProvider runs each call in a fresh Copilot session. Structured output
// is enforced by exposing a single result tool whose parameters are the
// response schema; the tool arguments become the response.
type CopilotProvider struct {
	model     string
	newClient func(clientOptions *copilot.ClientOptions) copilotClient
}

// NewCopilotProvider creates a CopilotProvider.
func NewCopilotProvider(opts *CopilotOptions) *CopilotProvider {
	p := &CopilotProvider{newClient: newCopilotClient}
	if opts != nil {
		p.model = opts.Model
		if opts.NewCopilotClient != nil {
			p.newClient = opts.NewCopilotClient
		}
	}
	return p
}

func (p *CopilotProvider) Name() string {
	return "copilot"
}

func (p *CopilotProvider) Generate(ctx context.Context, req *Request) (string, error) {
	if req == nil {
		return "", providerError(p.Name(), "generate", errors.New("nil request"))
	}

	client := p.newClient(&copilot.ClientOptions{
		AutoStart:       utils.Ptr(false),
		UseLoggedInUser: utils.Ptr(true),
		LogLevel:        "error",
	})

	defer func() {
		if err := client.Stop(); err != nil {
			slog.ErrorContext(ctx, "error stopping copilot client", "error", err)
		}
	}()

	if err := client.Start(ctx); err != nil {
		return "", providerError(p.Name(), "start", err)
	}

	capture := &resultCapture{}

	var tools []copilot.Tool
	if req.Schema != nil {
		tools = []copilot.Tool{{
			Name:        submitResultToolName,
			Description: "Submit the final answer. Call this exactly once.",
			Parameters:  req.Schema.Document,
			Handler:     capture.handle,
		}}
	}

	session, err := client.CreateSession(ctx, &copilot.SessionConfig{
		Model:     p.model,
		Streaming: true,
		Tools:     tools,
	})
	if err != nil {
		return "", providerError(p.Name(), "create session", err)
	}

	unsubscribe := session.On(utils.SessionEventLogger("provider", p.Name(), "model", p.model))
	defer unsubscribe()

	resp, err := session.SendAndWait(ctx, copilot.MessageOptions{
		Prompt: buildCopilotPrompt(req),
		Mode:   "enqueue",
	})
	if err != nil {
		return "", providerError(p.Name(), "send", err)
	}

	if req.Schema == nil {
		if resp == nil || resp.Data.Content == nil {
			return "", providerError(p.Name(), "send", errors.New("no response content"))
		}
		return *resp.Data.Content, nil
	}

	result, ok := capture.result()
	if !ok {
		return "", providerError(p.Name(), "send", fmt.Errorf("model did not call %s", submitResultToolName))
	}
	return result, nil
}

// resultCapture keeps the last arguments passed to the result tool. Tool
// handlers run on the SDK's goroutines.
type resultCapture struct {
	mu    sync.Mutex
	text  string
	calls int
}

func (c *resultCapture) handle(invocation copilot.ToolInvocation) (copilot.ToolResult, error) {
	raw, err := json.Marshal(invocation.Arguments)
	if err != nil {
		return copilot.ToolResult{}, fmt.Errorf("encoding %s arguments: %w", submitResultToolName, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = string(raw)
	c.calls++

	return copilot.ToolResult{}, nil
}

func (c *resultCapture) result() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.calls > 0
}

func buildCopilotPrompt(req *Request) string {
	var sb strings.Builder
	sb.WriteString(req.Instructions)
	sb.WriteString("\n\n## Input\n")
	sb.WriteString(req.Input)
	sb.WriteString("\n")

	if req.Schema != nil {
		sb.WriteString("\nDo not answer in prose. Call ")
		sb.WriteString(submitResultToolName)
		sb.WriteString(" exactly once with arguments matching this JSON schema:\n")
		sb.WriteString(compact(req.Schema.Document))
		sb.WriteString("\n")
	}
	return sb.String()
}
