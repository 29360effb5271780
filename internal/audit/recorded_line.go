package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/callaudit/callaudit/internal/llm"
	"github.com/callaudit/callaudit/internal/models"
	"github.com/callaudit/callaudit/internal/prompts"
	"golang.org/x/sync/errgroup"
)

const (
	// windowBefore and windowAfter bound the compliance window [t-3, t+4)
	// around a transfer at t.
	windowBefore = 3
	windowAfter  = 4
)

type transferResponse struct {
	Indices []int `json:"indices"`
}

type recordedLineResponse struct {
	HasRecordedLinePhrase bool `json:"hasRecordedLinePhrase"`
	Index                 int  `json:"index"`
}

var (
	transferSchema     = llm.MustSchemaFor[transferResponse]("human_transfer_indices", "Indices where a new human first speaks")
	recordedLineSchema = llm.MustSchemaFor[recordedLineResponse]("recorded_line_check", "Recorded-line disclosure in the agent introduction")
)

// RecordedLineAuditor finds every human arrival in a call, then checks each
// arrival's agent introduction for a recorded-line disclosure.
type RecordedLineAuditor struct {
	gen Generator
}

func NewRecordedLineAuditor(gen Generator) *RecordedLineAuditor {
	return &RecordedLineAuditor{gen: gen}
}

func (a *RecordedLineAuditor) Type() models.AuditType {
	return models.AuditTypeRecordedLinePhrases
}

func (a *RecordedLineAuditor) Audit(ctx context.Context, in *Input) (models.AuditResult, error) {
	conv := in.Conversation

	transfers, err := a.DetectTransfers(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("detecting transfers: %w", err)
	}

	chunks := make([]models.AuditedChunk, len(transfers))

	// every window runs to completion; Wait reports the first failure
	var g errgroup.Group
	for i, t := range transfers {
		g.Go(func() error {
			chunk, err := a.CheckTransfer(ctx, conv, t, in.AgentName)
			if err != nil {
				return fmt.Errorf("checking transfer at %d: %w", t, err)
			}
			chunks[i] = *chunk
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &models.RecordedLineAudit{
		TotalHumanTransfers: len(transfers),
		AuditedChunks:       chunks,
	}
	for _, c := range chunks {
		if c.HasPhrase {
			result.TotalCompliant++
		}
	}
	return result, nil
}

// DetectTransfers returns the positions where a new human first speaks, in
// the order the model reported them with duplicates removed.
func (a *RecordedLineAuditor) DetectTransfers(ctx context.Context, conv []models.Message) ([]int, error) {
	if len(conv) == 0 {
		return nil, nil
	}

	instructions, err := prompts.TransferDetection()
	if err != nil {
		return nil, err
	}

	var resp transferResponse
	if err := a.gen.Generate(ctx, instructions, prompts.ConversationInput(conv), transferSchema, &resp); err != nil {
		return nil, err
	}

	seen := map[int]bool{}
	transfers := make([]int, 0, len(resp.Indices))

	for _, idx := range resp.Indices {
		if idx < 0 || idx >= len(conv) {
			return nil, schemaViolation("transfer index %d outside conversation of %d messages", idx, len(conv))
		}
		if seen[idx] {
			slog.Debug("Dropping duplicate transfer index", "index", idx)
			continue
		}
		seen[idx] = true
		transfers = append(transfers, idx)
	}

	return transfers, nil
}

// CheckTransfer audits the compliance window around the transfer at t.
func (a *RecordedLineAuditor) CheckTransfer(ctx context.Context, conv []models.Message, t int, agentName string) (*models.AuditedChunk, error) {
	if t < 0 || t >= len(conv) {
		return nil, schemaViolation("transfer index %d outside conversation of %d messages", t, len(conv))
	}

	start, end := Window(len(conv), t)

	instructions, err := prompts.RecordedLine(agentName)
	if err != nil {
		return nil, err
	}

	var resp recordedLineResponse
	if err := a.gen.Generate(ctx, instructions, prompts.WindowInput(conv, start, end), recordedLineSchema, &resp); err != nil {
		return nil, err
	}

	if resp.Index < start || resp.Index >= end {
		return nil, schemaViolation("introduction index %d outside window [%d, %d)", resp.Index, start, end)
	}

	transfer, intro := conv[t], conv[resp.Index]

	return &models.AuditedChunk{
		TransferIndex:       t,
		HasPhrase:           resp.HasRecordedLinePhrase,
		TransferMessageID:   transfer.ID,
		TransferContent:     transfer.Content,
		ComplianceIndex:     resp.Index,
		ComplianceMessageID: intro.ID,
		ComplianceContent:   intro.Content,
	}, nil
}

// Window returns the half-open range [t-3, t+4) clamped to a conversation of
// n messages.
func Window(n, t int) (start, end int) {
	start = max(t-windowBefore, 0)
	end = min(t+windowAfter, n)
	return start, end
}
