package models

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

// AuditType is one of the analyses that can be requested for a transcript.
type AuditType string

const (
	AuditTypeRecordedLinePhrases AuditType = "RECORDED_LINE_PHRASES"
	AuditTypeSectionBreakdown    AuditType = "SECTION_BREAKDOWN"
)

// AllAuditTypes returns the supported audit types in a stable order.
func AllAuditTypes() []AuditType {
	return []AuditType{AuditTypeRecordedLinePhrases, AuditTypeSectionBreakdown}
}

// ParseAuditType accepts the canonical upper-case names as well as the
// lower-case spellings used by older clients ("recorded_line_phrases").
func ParseAuditType(s string) (AuditType, error) {
	t := AuditType(strings.ToUpper(strings.TrimSpace(s)))
	if !slices.Contains(AllAuditTypes(), t) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAuditType, s)
	}
	return t, nil
}

// ParseAuditTypes parses and de-duplicates a list of audit types, keeping the
// first occurrence order. Comma-separated values are split.
func ParseAuditTypes(values []string) ([]AuditType, error) {
	var types []AuditType
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			t, err := ParseAuditType(part)
			if err != nil {
				return nil, err
			}
			if !slices.Contains(types, t) {
				types = append(types, t)
			}
		}
	}
	if len(types) == 0 {
		return nil, fmt.Errorf("%w: at least one audit type is required", ErrInvalidAuditType)
	}
	return types, nil
}

// AuditStatus is the lifecycle state of one audit type within a record.
type AuditStatus string

const (
	StatusPending    AuditStatus = "PENDING"
	StatusProcessing AuditStatus = "PROCESSING"
	StatusCompleted  AuditStatus = "COMPLETED"
	StatusFailed     AuditStatus = "FAILED"
)

// Terminal reports whether no further transitions are expected without a rerun.
func (s AuditStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// TranscriptAuditRecord is the aggregate persisted per submitted transcript.
// Conversation is written once at creation and never mutated afterwards.
type TranscriptAuditRecord struct {
	ID                  string                    `json:"id" bson:"_id,omitempty"`
	SourceFileName      string                    `json:"sourceFileName" bson:"source_file_name"`
	OrgID               string                    `json:"orgId" bson:"org_id"`
	SessionID           string                    `json:"sessionId" bson:"session_id"`
	AgentName           string                    `json:"agentName" bson:"agent_name"`
	ArchiveLocation     string                    `json:"archiveLocation,omitempty" bson:"archive_location,omitempty"`
	RequestedAuditTypes []AuditType               `json:"requestedAuditTypes" bson:"requested_audit_types"`
	Conversation        []Message                 `json:"conversation" bson:"conversation"`
	StatusByType        map[AuditType]AuditStatus `json:"statusByType" bson:"status_by_type"`
	ResultsByType       AuditResults              `json:"resultsByType" bson:"results_by_type"`
	CreatedAt           time.Time                 `json:"createdAt" bson:"created_at"`
}

// NewTranscriptAuditRecord builds a record with every requested type PENDING
// and no results.
func NewTranscriptAuditRecord(sourceFileName string, conversation []Message, types []AuditType, createdAt time.Time) *TranscriptAuditRecord {
	statuses := make(map[AuditType]AuditStatus, len(types))
	for _, t := range types {
		statuses[t] = StatusPending
	}

	return &TranscriptAuditRecord{
		SourceFileName:      sourceFileName,
		RequestedAuditTypes: slices.Clone(types),
		Conversation:        slices.Clone(conversation),
		StatusByType:        statuses,
		CreatedAt:           createdAt.UTC(),
	}
}

// Done reports whether every requested type reached a terminal status.
func (r *TranscriptAuditRecord) Done() bool {
	for _, t := range r.RequestedAuditTypes {
		if !r.StatusByType[t].Terminal() {
			return false
		}
	}
	return true
}

// FailedTypes returns the requested types currently in FAILED.
func (r *TranscriptAuditRecord) FailedTypes() []AuditType {
	var failed []AuditType
	for _, t := range r.RequestedAuditTypes {
		if r.StatusByType[t] == StatusFailed {
			failed = append(failed, t)
		}
	}
	return failed
}

// CheckConsistency verifies that every requested type has a status and that a
// result is present if and only if the type is COMPLETED.
func (r *TranscriptAuditRecord) CheckConsistency() error {
	if len(r.StatusByType) != len(r.RequestedAuditTypes) {
		return fmt.Errorf("record %s: %d statuses for %d requested types", r.ID, len(r.StatusByType), len(r.RequestedAuditTypes))
	}
	for _, t := range r.RequestedAuditTypes {
		status, ok := r.StatusByType[t]
		if !ok {
			return fmt.Errorf("record %s: no status for %s", r.ID, t)
		}
		if has := r.ResultsByType.Has(t); has != (status == StatusCompleted) {
			return fmt.Errorf("record %s: %s is %s but result present=%v", r.ID, t, status, has)
		}
	}
	return nil
}
