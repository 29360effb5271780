package orchestration

import "github.com/callaudit/callaudit/internal/models"

// ProgressListener receives progress updates
type ProgressListener func(event ProgressEvent)

// EventType represents the type of progress event
type EventType string

// EventType constants
const (
	EventSubmissionAccepted EventType = "submission_accepted"
	EventTaskStart          EventType = "task_start"
	EventTaskComplete       EventType = "task_complete"
	EventTaskFailed         EventType = "task_failed"
)

// ProgressEvent represents a progress update
type ProgressEvent struct {
	EventType  EventType
	RecordID   string
	AuditType  models.AuditType
	TotalTasks int
	Status     models.AuditStatus
	DurationMs int64
	Err        error
}
