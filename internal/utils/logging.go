package utils

import (
	"context"
	"log/slog"

	copilot "github.com/github/copilot-sdk/go"
)

// SessionEventLogger returns a copilot session handler that logs each event
// at debug level with attrs appended. Streaming deltas are skipped unless
// they carry a tool call.
func SessionEventLogger(attrs ...any) copilot.SessionEventHandler {
	return func(event copilot.SessionEvent) {
		if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
			return
		}
		if event.Data.DeltaContent != nil && event.Data.ToolName == nil {
			return
		}

		out := append([]any{"type", event.Type}, attrs...)
		out = addIf(out, "content", event.Data.Content)
		out = addIf(out, "toolName", event.Data.ToolName)
		out = addIf(out, "toolCallID", event.Data.ToolCallID)
		out = addIf(out, "toolResult", event.Data.Result)

		slog.Debug("Copilot session event", out...)
	}
}

func addIf[T any](attrs []any, name string, v *T) []any {
	if v != nil {
		attrs = append(attrs, name, *v)
	}
	return attrs
}
