package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/callaudit/callaudit/internal/archive"
	"github.com/callaudit/callaudit/internal/audit"
	"github.com/callaudit/callaudit/internal/models"
	"github.com/callaudit/callaudit/internal/store"
	"github.com/callaudit/callaudit/internal/transcript"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// ErrShuttingDown is returned for work submitted after Shutdown.
var ErrShuttingDown = errors.New("coordinator is shutting down")

// Coordinator accepts transcripts, persists their records and runs one task
// per requested audit type. A failing type is recorded as FAILED and never
// affects its siblings.
type Coordinator struct {
	store    store.AuditStore
	auditors map[models.AuditType]audit.Auditor
	archive  archive.Archive

	// taskTimeout bounds a single audit type; zero means unbounded
	taskTimeout time.Duration
	now         func() time.Time

	// runs launched by Submit and Rerun outlive the request that started
	// them, so they hang off baseCtx and are tracked for Shutdown
	baseCtx  context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup
	closedMu sync.Mutex
	closed   bool

	// rerunMu makes the status check and reset of a rerun one step
	rerunMu sync.Mutex

	progressMu sync.Mutex
	listeners  []ProgressListener
}

// Submission is one uploaded transcript and the audits requested for it.
type Submission struct {
	FileName   string
	Data       []byte
	AuditTypes []models.AuditType
}

// TaskOutcome is how one audit type ended.
type TaskOutcome struct {
	AuditType models.AuditType
	Status    models.AuditStatus
	Duration  time.Duration
	Err       error
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithArchive keeps a copy of every raw upload.
func WithArchive(a archive.Archive) CoordinatorOption {
	return func(c *Coordinator) {
		c.archive = a
	}
}

// WithTaskTimeout bounds each audit type.
func WithTaskTimeout(d time.Duration) CoordinatorOption {
	return func(c *Coordinator) {
		c.taskTimeout = d
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		c.now = now
	}
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(s store.AuditStore, auditors map[models.AuditType]audit.Auditor, opts ...CoordinatorOption) *Coordinator {
	baseCtx, cancel := context.WithCancel(context.Background())

	c := &Coordinator{
		store:     s,
		auditors:  auditors,
		archive:   archive.Noop{},
		now:       time.Now,
		baseCtx:   baseCtx,
		cancel:    cancel,
		listeners: []ProgressListener{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// OnProgress registers a progress listener
func (c *Coordinator) OnProgress(listener ProgressListener) {
	c.progressMu.Lock()
	defer c.progressMu.Unlock()
	c.listeners = append(c.listeners, listener)
}

func (c *Coordinator) notifyProgress(event ProgressEvent) {
	c.progressMu.Lock()
	listeners := make([]ProgressListener, len(c.listeners))
	copy(listeners, c.listeners)
	c.progressMu.Unlock()

	for _, listener := range listeners {
		listener(event)
	}
}

// Submit normalizes and persists a transcript, starts its audits in the
// background and returns the record with every requested type PENDING.
// Nothing is persisted when the upload cannot be normalized.
func (c *Coordinator) Submit(ctx context.Context, sub Submission) (*models.TranscriptAuditRecord, error) {
	if err := c.reserve(); err != nil {
		return nil, err
	}

	rec, err := c.create(ctx, sub)
	if err != nil {
		c.inflight.Done()
		return nil, err
	}

	c.launch(rec.ID, rec.RequestedAuditTypes)
	return rec, nil
}

// SubmitAndWait is Submit followed by running every audit to completion on
// the caller's goroutine. It returns the final record.
func (c *Coordinator) SubmitAndWait(ctx context.Context, sub Submission) (*models.TranscriptAuditRecord, []TaskOutcome, error) {
	rec, err := c.create(ctx, sub)
	if err != nil {
		return nil, nil, err
	}

	outcomes := c.Run(ctx, rec.ID, rec.RequestedAuditTypes)

	final, err := c.store.Get(ctx, rec.ID)
	if err != nil {
		return nil, outcomes, err
	}
	return final, outcomes, nil
}

func (c *Coordinator) create(ctx context.Context, sub Submission) (*models.TranscriptAuditRecord, error) {
	if err := c.checkTypes(sub.AuditTypes); err != nil {
		return nil, err
	}

	tr, err := transcript.Normalize(sub.Data)
	if err != nil {
		return nil, err
	}

	now := c.now()
	rec := models.NewTranscriptAuditRecord(sub.FileName, tr.Messages, sub.AuditTypes, now)
	rec.OrgID = tr.OrgID
	rec.SessionID = tr.SessionID
	rec.AgentName = tr.AgentName()

	name := transcript.ArchiveName(sub.FileName, now, uuid.NewString()[:8])
	loc, err := c.archive.Put(ctx, name, sub.Data, map[string]string{
		"source":     sub.FileName,
		"org_id":     tr.OrgID,
		"session_id": tr.SessionID,
	})
	if err != nil {
		// the archive copy is best effort; the audit does not depend on it
		slog.WarnContext(ctx, "Failed to archive upload", "file", sub.FileName, "error", err)
	}
	rec.ArchiveLocation = loc

	if _, err := c.store.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("persisting record: %w", err)
	}

	slog.InfoContext(ctx, "Transcript accepted",
		"record_id", rec.ID,
		"file", sub.FileName,
		"messages", len(rec.Conversation),
		"audit_types", rec.RequestedAuditTypes)

	c.notifyProgress(ProgressEvent{
		EventType:  EventSubmissionAccepted,
		RecordID:   rec.ID,
		TotalTasks: len(rec.RequestedAuditTypes),
	})

	return rec, nil
}

func (c *Coordinator) checkTypes(types []models.AuditType) error {
	if len(types) == 0 {
		return fmt.Errorf("%w: at least one audit type is required", models.ErrInvalidAuditType)
	}
	for _, t := range types {
		if _, ok := c.auditors[t]; !ok {
			return fmt.Errorf("%w: %s", models.ErrInvalidAuditType, t)
		}
	}
	return nil
}

// launch runs the audits in the background, tracked for Shutdown.
// reserve claims an inflight slot before anything is persisted, so work
// accepted before Shutdown is always launched and waited for.
func (c *Coordinator) reserve() error {
	c.closedMu.Lock()
	defer c.closedMu.Unlock()

	if c.closed {
		return ErrShuttingDown
	}
	c.inflight.Add(1)
	return nil
}

// launch runs types for id in the background on a slot taken by reserve.
func (c *Coordinator) launch(id string, types []models.AuditType) {
	go func() {
		defer c.inflight.Done()
		c.Run(c.baseCtx, id, types)
	}()
}

// Run executes the given audit types for record id concurrently and waits
// for all of them. Every task runs to completion regardless of the others.
func (c *Coordinator) Run(ctx context.Context, id string, types []models.AuditType) []TaskOutcome {
	outcomes := make([]TaskOutcome, len(types))

	var g errgroup.Group
	for i, t := range types {
		g.Go(func() error {
			outcomes[i] = c.runTask(ctx, id, t)
			return nil
		})
	}
	_ = g.Wait()

	return outcomes
}

func (c *Coordinator) runTask(ctx context.Context, id string, t models.AuditType) (outcome TaskOutcome) {
	start := time.Now()
	outcome = TaskOutcome{AuditType: t}
	logger := slog.With("record_id", id, "audit_type", t)

	// status writes must land even if ctx was cancelled by Shutdown
	writeCtx := context.WithoutCancel(ctx)

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Audit task panicked", "panic", r, "stack", string(debug.Stack()))
			outcome.Err = fmt.Errorf("audit task panicked: %v", r)
			c.fail(writeCtx, logger, id, &outcome)
		}
		outcome.Duration = time.Since(start)
	}()

	c.notifyProgress(ProgressEvent{EventType: EventTaskStart, RecordID: id, AuditType: t})

	fail := func(err error) TaskOutcome {
		outcome.Err = err
		c.fail(writeCtx, logger, id, &outcome)
		c.notifyProgress(ProgressEvent{
			EventType:  EventTaskFailed,
			RecordID:   id,
			AuditType:  t,
			Status:     models.StatusFailed,
			DurationMs: time.Since(start).Milliseconds(),
			Err:        err,
		})
		return outcome
	}

	auditor, ok := c.auditors[t]
	if !ok {
		return fail(fmt.Errorf("%w: %s", models.ErrInvalidAuditType, t))
	}

	// each task works from its own read of the persisted snapshot
	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return fail(fmt.Errorf("loading record: %w", err))
	}

	if err := c.store.SetStatus(ctx, id, t, models.StatusProcessing); err != nil {
		return fail(fmt.Errorf("marking processing: %w", err))
	}

	taskCtx := ctx
	if c.taskTimeout > 0 {
		var cancel context.CancelFunc
		taskCtx, cancel = context.WithTimeout(ctx, c.taskTimeout)
		defer cancel()
	}

	logger.Info("Audit started", "messages", len(rec.Conversation))

	result, err := auditor.Audit(taskCtx, &audit.Input{
		Conversation: rec.Conversation,
		AgentName:    rec.AgentName,
	})
	if err != nil {
		return fail(err)
	}

	if err := c.store.Complete(writeCtx, id, result); err != nil {
		return fail(fmt.Errorf("storing result: %w", err))
	}

	outcome.Status = models.StatusCompleted
	logger.Info("Audit completed", "duration", time.Since(start))

	c.notifyProgress(ProgressEvent{
		EventType:  EventTaskComplete,
		RecordID:   id,
		AuditType:  t,
		Status:     models.StatusCompleted,
		DurationMs: time.Since(start).Milliseconds(),
	})
	return outcome
}

func (c *Coordinator) fail(ctx context.Context, logger *slog.Logger, id string, outcome *TaskOutcome) {
	outcome.Status = models.StatusFailed
	logger.Error("Audit failed", "error", outcome.Err)

	if err := c.store.Fail(ctx, id, outcome.AuditType); err != nil {
		logger.Error("Failed to record audit failure", "error", err)
	}
}

// Get returns the record with the given id.
func (c *Coordinator) Get(ctx context.Context, id string) (*models.TranscriptAuditRecord, error) {
	return c.store.Get(ctx, id)
}

// List returns every record.
func (c *Coordinator) List(ctx context.Context) ([]*models.TranscriptAuditRecord, error) {
	return c.store.List(ctx)
}

// Delete removes a record.
func (c *Coordinator) Delete(ctx context.Context, id string) error {
	return c.store.Delete(ctx, id)
}

// Rerun resets the given types of a record to PENDING and runs them again in
// the background. With no types it reruns every FAILED type. The stored
// conversation is reused as is.
func (c *Coordinator) Rerun(ctx context.Context, id string, types []models.AuditType) (*models.TranscriptAuditRecord, error) {
	c.rerunMu.Lock()
	defer c.rerunMu.Unlock()

	rec, err := c.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if len(types) == 0 {
		types = rec.FailedTypes()
		if len(types) == 0 {
			return rec, nil
		}
	}

	for _, t := range types {
		if !slices.Contains(rec.RequestedAuditTypes, t) {
			return nil, fmt.Errorf("%w: %s was not requested for record %s", models.ErrInvalidAuditType, t, id)
		}
		if rec.StatusByType[t] == models.StatusProcessing || rec.StatusByType[t] == models.StatusPending {
			return nil, fmt.Errorf("%w: %s is still %s", models.ErrInvalidAuditType, t, rec.StatusByType[t])
		}
	}

	if err := c.reserve(); err != nil {
		return nil, err
	}

	if err := c.store.Reset(ctx, id, types); err != nil {
		c.inflight.Done()
		return nil, err
	}

	c.launch(id, types)

	slog.InfoContext(ctx, "Audit rerun started", "record_id", id, "audit_types", types)

	return c.store.Get(ctx, id)
}

// Count returns the number of stored records.
func (c *Coordinator) Count(ctx context.Context) (int64, error) {
	return c.store.Count(ctx)
}

// Ping checks the underlying store.
func (c *Coordinator) Ping(ctx context.Context) error {
	return c.store.Ping(ctx)
}

// Shutdown stops accepting work and waits for running audits. If ctx ends
// first the remaining audits are cancelled, which records them as FAILED.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.closedMu.Lock()
	c.closed = true
	c.closedMu.Unlock()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.cancel()
		<-done
		return ctx.Err()
	}
}
