package store

import (
	"context"
	"fmt"

	"github.com/callaudit/callaudit/internal/models"
)

// AuditCollection holds one document per submitted transcript.
const AuditCollection = "TranscriptAuditResults"

// AuditStore is the typed repository for audit records. Every status change
// for a type is a single partial update of that type's keys, so concurrent
// tasks for different types of one record never overwrite each other.
type AuditStore interface {
	// Create persists rec and sets rec.ID.
	Create(ctx context.Context, rec *models.TranscriptAuditRecord) (string, error)
	Get(ctx context.Context, id string) (*models.TranscriptAuditRecord, error)
	// List returns every record in creation order. There is no pagination.
	List(ctx context.Context) ([]*models.TranscriptAuditRecord, error)
	Count(ctx context.Context) (int64, error)
	Delete(ctx context.Context, id string) error

	// SetStatus moves t to a non-terminal status and clears any result for it.
	SetStatus(ctx context.Context, id string, t models.AuditType, status models.AuditStatus) error
	// Complete stores result and marks its type COMPLETED in one update.
	Complete(ctx context.Context, id string, result models.AuditResult) error
	// Fail marks t FAILED and clears any result for it.
	Fail(ctx context.Context, id string, t models.AuditType) error
	// Reset returns types to PENDING and clears their results.
	Reset(ctx context.Context, id string, types []models.AuditType) error

	Ping(ctx context.Context) error
}

// DocumentAuditStore implements AuditStore on any DocumentStore.
type DocumentAuditStore struct {
	docs DocumentStore
}

// NewAuditStore creates an AuditStore on top of docs.
func NewAuditStore(docs DocumentStore) *DocumentAuditStore {
	return &DocumentAuditStore{docs: docs}
}

func statusPath(t models.AuditType) string { return "status_by_type." + string(t) }
func resultPath(t models.AuditType) string { return "results_by_type." + string(t) }

func (s *DocumentAuditStore) Create(ctx context.Context, rec *models.TranscriptAuditRecord) (string, error) {
	if rec.ID != "" {
		return "", fmt.Errorf("record already has id %s", rec.ID)
	}

	id, err := s.docs.InsertOne(ctx, AuditCollection, rec)
	if err != nil {
		return "", err
	}
	rec.ID = id
	return id, nil
}

func (s *DocumentAuditStore) Get(ctx context.Context, id string) (*models.TranscriptAuditRecord, error) {
	var rec models.TranscriptAuditRecord
	if err := s.docs.FindOne(ctx, AuditCollection, ByID(id), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *DocumentAuditStore) List(ctx context.Context) ([]*models.TranscriptAuditRecord, error) {
	var recs []*models.TranscriptAuditRecord
	if err := s.docs.FindMany(ctx, AuditCollection, Filter{}, &recs); err != nil {
		return nil, err
	}
	if recs == nil {
		recs = []*models.TranscriptAuditRecord{}
	}
	return recs, nil
}

func (s *DocumentAuditStore) Count(ctx context.Context) (int64, error) {
	return s.docs.CountDocuments(ctx, AuditCollection, Filter{})
}

func (s *DocumentAuditStore) Delete(ctx context.Context, id string) error {
	return s.docs.DeleteOne(ctx, AuditCollection, ByID(id))
}

func (s *DocumentAuditStore) SetStatus(ctx context.Context, id string, t models.AuditType, status models.AuditStatus) error {
	if status.Terminal() {
		return fmt.Errorf("SetStatus cannot set terminal status %s", status)
	}
	return s.docs.UpdateOne(ctx, AuditCollection, ByID(id), Update{
		Set:   map[string]any{statusPath(t): status},
		Unset: []string{resultPath(t)},
	})
}

func (s *DocumentAuditStore) Complete(ctx context.Context, id string, result models.AuditResult) error {
	t := result.AuditType()
	return s.docs.UpdateOne(ctx, AuditCollection, ByID(id), Update{
		Set: map[string]any{
			statusPath(t): models.StatusCompleted,
			resultPath(t): result,
		},
	})
}

func (s *DocumentAuditStore) Fail(ctx context.Context, id string, t models.AuditType) error {
	return s.docs.UpdateOne(ctx, AuditCollection, ByID(id), Update{
		Set:   map[string]any{statusPath(t): models.StatusFailed},
		Unset: []string{resultPath(t)},
	})
}

func (s *DocumentAuditStore) Reset(ctx context.Context, id string, types []models.AuditType) error {
	if len(types) == 0 {
		return nil
	}

	update := Update{Set: map[string]any{}}
	for _, t := range types {
		update.Set[statusPath(t)] = models.StatusPending
		update.Unset = append(update.Unset, resultPath(t))
	}
	return s.docs.UpdateOne(ctx, AuditCollection, ByID(id), update)
}

func (s *DocumentAuditStore) Ping(ctx context.Context) error {
	return s.docs.Ping(ctx)
}
