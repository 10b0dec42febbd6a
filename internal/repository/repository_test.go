package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperalchemist/constants"
	"paperalchemist/internal/common"
	"paperalchemist/internal/entity"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), common.DatabaseConfig{DSN: ":memory:"}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newDoc(filename string) *entity.Document {
	return &entity.Document{
		DocID:    uuid.New(),
		Filename: filename,
		FileSize: 1234,
	}
}

func TestDocumentLifecycle(t *testing.T) {
	store := newTestStore(t)
	repo := NewDocumentRepository(store, nil)
	ctx := context.Background()

	doc := newDoc("paper.pdf")
	require.NoError(t, repo.CreateProvisional(ctx, doc))
	assert.Equal(t, constants.DocStatusProcessing, doc.Status)

	got, err := repo.GetByID(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, "paper.pdf", got.Filename)
	assert.Equal(t, int64(1234), got.FileSize)
	assert.Equal(t, constants.DocStatusProcessing, got.Status)
	assert.Nil(t, got.ContentID)
	assert.Nil(t, got.ProcessedAt)

	require.NoError(t, repo.UpdateOCRInfo(ctx, doc.DocID, true, 120, 4500))
	require.NoError(t, repo.UpdateMetadata(ctx, doc.DocID, entity.Fields{
		Title:           entity.StrPtr("A Title"),
		Authors:         []string{"First", "Second"},
		PublicationYear: entity.IntPtr(2024),
		Keywords:        []string{"kw"},
	}, constants.ExtractionLLMEnhanced, true))
	require.NoError(t, repo.Complete(ctx, doc.DocID))

	got, err = repo.GetByID(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, constants.DocStatusCompleted, got.Status)
	assert.True(t, got.OCRPerformed)
	assert.Equal(t, 120, got.OriginalTextLength)
	assert.Equal(t, 4500, got.OCRTextLength)
	assert.Equal(t, "A Title", *got.Metadata.Title)
	assert.Equal(t, []string{"First", "Second"}, got.Metadata.Authors)
	assert.Equal(t, 2024, *got.Metadata.PublicationYear)
	assert.Equal(t, constants.ExtractionLLMEnhanced, got.ExtractionMethod)
	assert.True(t, got.LLMAvailable)
	require.NotNil(t, got.ProcessedAt)
}

func TestCompleteTwiceConflicts(t *testing.T) {
	store := newTestStore(t)
	repo := NewDocumentRepository(store, nil)
	ctx := context.Background()

	doc := newDoc("paper.pdf")
	require.NoError(t, repo.CreateProvisional(ctx, doc))
	require.NoError(t, repo.Complete(ctx, doc.DocID))

	err := repo.Complete(ctx, doc.DocID)
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "STATUS_CONFLICT", appErr.Code)
	assert.Contains(t, appErr.Message, "cannot advance from completed")
}

func TestFailLeavesFailedState(t *testing.T) {
	store := newTestStore(t)
	repo := NewDocumentRepository(store, nil)
	ctx := context.Background()

	doc := newDoc("paper.pdf")
	require.NoError(t, repo.CreateProvisional(ctx, doc))
	require.NoError(t, repo.Fail(ctx, doc.DocID))

	got, err := repo.GetByID(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, constants.DocStatusFailed, got.Status)

	// no resurrection from failed
	err = repo.Complete(ctx, doc.DocID)
	assert.Error(t, err)
}

func TestGetByIDNotFound(t *testing.T) {
	store := newTestStore(t)
	repo := NewDocumentRepository(store, nil)

	_, err := repo.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestEmbeddingSaveSetsContentID(t *testing.T) {
	store := newTestStore(t)
	docs := NewDocumentRepository(store, nil)
	embeds := NewEmbeddingRepository(store, nil)
	ctx := context.Background()

	doc := newDoc("paper.pdf")
	require.NoError(t, docs.CreateProvisional(ctx, doc))

	blob := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	require.NoError(t, embeds.Save(ctx, doc.DocID, blob, 2, 3, "fingerprint-abc"))

	got, err := embeds.Get(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, blob, got)

	d, err := docs.GetByID(ctx, doc.DocID)
	require.NoError(t, err)
	require.NotNil(t, d.ContentID)
	assert.Equal(t, "fingerprint-abc", *d.ContentID)
	assert.Equal(t, 2, d.EmbeddingDim)
	assert.Equal(t, 3, d.ChunkCount)
}

func TestEmbeddingSaveOverwrites(t *testing.T) {
	store := newTestStore(t)
	docs := NewDocumentRepository(store, nil)
	embeds := NewEmbeddingRepository(store, nil)
	ctx := context.Background()

	doc := newDoc("paper.pdf")
	require.NoError(t, docs.CreateProvisional(ctx, doc))
	require.NoError(t, embeds.Save(ctx, doc.DocID, []byte{1, 1, 1, 1}, 1, 1, "first"))
	require.NoError(t, embeds.Save(ctx, doc.DocID, []byte{2, 2, 2, 2}, 1, 1, "second"))

	got, err := embeds.Get(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, []byte{2, 2, 2, 2}, got)
}

func TestEmbeddingSaveRejectsEmptyVector(t *testing.T) {
	store := newTestStore(t)
	embeds := NewEmbeddingRepository(store, nil)

	err := embeds.Save(context.Background(), uuid.New(), nil, 0, 0, "x")
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestFindCompletedByContentID(t *testing.T) {
	store := newTestStore(t)
	docs := NewDocumentRepository(store, nil)
	embeds := NewEmbeddingRepository(store, nil)
	ctx := context.Background()

	// two completed documents with the same fingerprint, staggered uploads
	older := newDoc("older.pdf")
	older.UploadedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, docs.CreateProvisional(ctx, older))
	require.NoError(t, embeds.Save(ctx, older.DocID, []byte{9, 9, 9, 9}, 1, 1, "same-print"))
	require.NoError(t, docs.Complete(ctx, older.DocID))

	newer := newDoc("newer.pdf")
	require.NoError(t, docs.CreateProvisional(ctx, newer))
	require.NoError(t, embeds.Save(ctx, newer.DocID, []byte{9, 9, 9, 9}, 1, 1, "same-print"))
	require.NoError(t, docs.Complete(ctx, newer.DocID))

	// a processing document with the fingerprint must not count
	pending := newDoc("pending.pdf")
	require.NoError(t, docs.CreateProvisional(ctx, pending))
	require.NoError(t, embeds.Save(ctx, pending.DocID, []byte{9, 9, 9, 9}, 1, 1, "same-print"))

	id, found, err := docs.FindCompletedByContentID(ctx, "same-print", pending.DocID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, older.DocID, id, "earliest completed document wins")

	// self-exclusion
	id, found, err = docs.FindCompletedByContentID(ctx, "same-print", older.DocID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, newer.DocID, id)

	_, found, err = docs.FindCompletedByContentID(ctx, "unknown-print", uuid.New())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestQualityUpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	docs := NewDocumentRepository(store, nil)
	verdicts := NewQualityRepository(store, nil)
	ctx := context.Background()

	doc := newDoc("paper.pdf")
	require.NoError(t, docs.CreateProvisional(ctx, doc))

	qa := entity.QualityAssessment{
		TextClarity:      constants.QualityGood,
		LayoutComplexity: "simple",
		ImageQuality:     constants.QualityExcellent,
		LanguageMix:      "english",
		OverallQuality:   constants.QualityGood,
		ConfidenceScore:  0.8,
		Recommendations:  "fine as is",
		ServiceAvailable: true,
	}
	require.NoError(t, verdicts.Upsert(ctx, doc.DocID, qa))

	got, err := verdicts.Get(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, constants.QualityGood, got.OverallQuality)
	assert.InDelta(t, 0.8, got.ConfidenceScore, 1e-9)
	assert.True(t, got.ServiceAvailable)
	assert.False(t, got.AssessedAt.IsZero())

	// second upsert replaces the verdict
	qa.OverallQuality = constants.QualityPoor
	require.NoError(t, verdicts.Upsert(ctx, doc.DocID, qa))
	got, err = verdicts.Get(ctx, doc.DocID)
	require.NoError(t, err)
	assert.Equal(t, constants.QualityPoor, got.OverallQuality)
}

func TestStepLogAppendOnlyOrdering(t *testing.T) {
	store := newTestStore(t)
	steps := NewStepLogRepository(store, nil)
	ctx := context.Background()
	docID := uuid.New()

	names := []string{
		constants.StepFileSave,
		constants.StepQualityAssessment,
		constants.StepOCR,
		constants.StepEmbedding,
		constants.StepMetadata,
	}
	for _, name := range names {
		require.NoError(t, steps.Append(ctx, entity.StepLogEntry{
			DocID:    docID,
			Step:     name,
			Status:   constants.StepCompleted,
			Duration: 42 * time.Millisecond,
		}))
	}

	entries, err := steps.ListByDoc(ctx, docID)
	require.NoError(t, err)
	require.Len(t, entries, len(names))
	for i, e := range entries {
		assert.Equal(t, names[i], e.Step)
		assert.Equal(t, 42*time.Millisecond, e.Duration)
		assert.False(t, e.Timestamp.IsZero())
	}
}

func TestListRecentNewestFirst(t *testing.T) {
	store := newTestStore(t)
	docs := NewDocumentRepository(store, nil)
	ctx := context.Background()

	old := newDoc("old.pdf")
	old.UploadedAt = time.Now().UTC().Add(-2 * time.Hour)
	require.NoError(t, docs.CreateProvisional(ctx, old))

	recent := newDoc("recent.pdf")
	require.NoError(t, docs.CreateProvisional(ctx, recent))

	list, err := docs.ListRecent(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "recent.pdf", list[0].Filename)
	assert.Equal(t, "old.pdf", list[1].Filename)

	list, err = docs.ListRecent(ctx, 1, 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "old.pdf", list[0].Filename)
}
