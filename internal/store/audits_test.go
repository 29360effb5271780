package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/callaudit/callaudit/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord() *models.TranscriptAuditRecord {
	rec := models.NewTranscriptAuditRecord("call.json", []models.Message{
		{ID: "m0", Role: models.RoleCounterpart, Content: "Press 1."},
		{ID: "m1", Role: models.RoleAgent, Content: "<dtmf>1</dtmf>"},
	}, models.AllAuditTypes(), time.Date(2025, 6, 15, 14, 0, 0, 0, time.UTC))
	rec.OrgID = "org"
	rec.SessionID = "sess"
	rec.AgentName = "Ava Lee"
	return rec
}

func TestAuditStoreLifecycle(t *testing.T) {
	for name, docs := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := NewAuditStore(docs)

			rec := newRecord()
			id, err := s.Create(ctx, rec)
			require.NoError(t, err)
			require.Equal(t, id, rec.ID)

			if name == "mongo" {
				t.Cleanup(func() { _ = s.Delete(context.Background(), id) })
			}

			got, err := s.Get(ctx, id)
			require.NoError(t, err)
			require.Equal(t, rec.Conversation, got.Conversation)
			require.Equal(t, rec.RequestedAuditTypes, got.RequestedAuditTypes)
			require.Equal(t, rec.CreatedAt, got.CreatedAt.UTC())
			require.Equal(t, "Ava Lee", got.AgentName)
			require.Equal(t, models.StatusPending, got.StatusByType[models.AuditTypeSectionBreakdown])
			require.NoError(t, got.CheckConsistency())

			require.NoError(t, s.SetStatus(ctx, id, models.AuditTypeSectionBreakdown, models.StatusProcessing))
			require.NoError(t, s.Complete(ctx, id, &models.SectionAudit{
				Sections: []models.Section{{
					Type: models.SectionIVR, StartIndex: 0, EndIndex: 1, StartMessageID: "m0", EndMessageID: "m1",
				}},
				TotalSections: 1,
			}))
			require.NoError(t, s.Fail(ctx, id, models.AuditTypeRecordedLinePhrases))

			got, err = s.Get(ctx, id)
			require.NoError(t, err)
			require.Equal(t, models.StatusCompleted, got.StatusByType[models.AuditTypeSectionBreakdown])
			require.Equal(t, models.StatusFailed, got.StatusByType[models.AuditTypeRecordedLinePhrases])
			require.NotNil(t, got.ResultsByType.SectionBreakdown)
			require.Equal(t, "m1", got.ResultsByType.SectionBreakdown.Sections[0].EndMessageID)
			require.Nil(t, got.ResultsByType.RecordedLinePhrases)
			require.NoError(t, got.CheckConsistency())
			require.True(t, got.Done())

			require.NoError(t, s.Reset(ctx, id, []models.AuditType{models.AuditTypeSectionBreakdown}))
			got, err = s.Get(ctx, id)
			require.NoError(t, err)
			require.Equal(t, models.StatusPending, got.StatusByType[models.AuditTypeSectionBreakdown])
			require.Nil(t, got.ResultsByType.SectionBreakdown)
			require.NoError(t, got.CheckConsistency())

			// conversation is untouched by status updates
			require.Equal(t, rec.Conversation, got.Conversation)
		})
	}
}

func TestAuditStoreConcurrentTypeUpdates(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore(NewMemoryStore())

	id, err := s.Create(ctx, newRecord())
	require.NoError(t, err)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Complete(ctx, id, &models.RecordedLineAudit{AuditedChunks: []models.AuditedChunk{}}))
	}()
	go func() {
		defer wg.Done()
		assert.NoError(t, s.Complete(ctx, id, &models.SectionAudit{Sections: []models.Section{}}))
	}()
	wg.Wait()

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, got.ResultsByType.RecordedLinePhrases)
	require.NotNil(t, got.ResultsByType.SectionBreakdown)
	require.NoError(t, got.CheckConsistency())
}

func TestAuditStoreListAndCount(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore(NewMemoryStore())

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.NotNil(t, list)
	require.Empty(t, list)

	first, err := s.Create(ctx, newRecord())
	require.NoError(t, err)
	second, err := s.Create(ctx, newRecord())
	require.NoError(t, err)

	list, err = s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, first, list[0].ID)
	require.Equal(t, second, list[1].ID)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 2, n)

	require.NoError(t, s.Delete(ctx, first))
	_, err = s.Get(ctx, first)
	require.ErrorIs(t, err, models.ErrNotFound)
}

func TestAuditStoreRejects(t *testing.T) {
	ctx := context.Background()
	s := NewAuditStore(NewMemoryStore())

	rec := newRecord()
	rec.ID = "preset"
	_, err := s.Create(ctx, rec)
	require.Error(t, err)

	id, err := s.Create(ctx, newRecord())
	require.NoError(t, err)
	require.Error(t, s.SetStatus(ctx, id, models.AuditTypeSectionBreakdown, models.StatusCompleted))

	_, err = s.Get(ctx, "nope")
	require.ErrorIs(t, err, models.ErrInvalidID)
}
