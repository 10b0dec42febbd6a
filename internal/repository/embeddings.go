package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"paperalchemist/internal/common"
)

// EmbeddingRepository stores the document-level vector as an opaque blob.
// The blob and the document's embedding fields are written in one
// transaction so a reader never observes a half-written embedding.
type EmbeddingRepository interface {
	Save(ctx context.Context, docID uuid.UUID, vector []byte, dim, chunkCount int, contentID string) error
	Get(ctx context.Context, docID uuid.UUID) ([]byte, error)
}

type embeddingRepo struct {
	store  *Store
	logger *slog.Logger
}

func NewEmbeddingRepository(store *Store, logger *slog.Logger) EmbeddingRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &embeddingRepo{store: store, logger: logger}
}

func (r *embeddingRepo) Save(ctx context.Context, docID uuid.UUID, vector []byte, dim, chunkCount int, contentID string) error {
	if len(vector) == 0 {
		return common.NewAppError("EMPTY_VECTOR", "refusing to store empty embedding", common.ErrInvalidInput)
	}
	if dim < 0 || chunkCount < 0 {
		return common.NewAppError("NEGATIVE_COUNT", "embedding counters must be non-negative", common.ErrInvalidInput)
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return common.WrapError(err, "begin embedding tx")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, r.store.bind(`
		INSERT INTO embeddings (doc_id, vector) VALUES (?, ?)
		ON CONFLICT (doc_id) DO UPDATE SET vector = excluded.vector`),
		docID.String(), vector)
	if err != nil {
		r.logger.Error("failed to store embedding blob", "doc_id", docID, "error", err)
		return common.WrapError(err, "store embedding blob")
	}

	_, err = tx.ExecContext(ctx, r.store.bind(`
		UPDATE documents SET embedding_dim = ?, chunk_count = ?, content_id = ?
		WHERE doc_id = ?`),
		dim, chunkCount, contentID, docID.String())
	if err != nil {
		r.logger.Error("failed to update embedding fields", "doc_id", docID, "error", err)
		return common.WrapError(err, "update embedding fields")
	}

	return tx.Commit()
}

func (r *embeddingRepo) Get(ctx context.Context, docID uuid.UUID) ([]byte, error) {
	var vector []byte
	err := r.store.db.QueryRowContext(ctx, r.store.bind(
		`SELECT vector FROM embeddings WHERE doc_id = ?`), docID.String()).Scan(&vector)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get embedding", "doc_id", docID, "error", err)
		return nil, common.WrapError(err, "get embedding")
	}
	return vector, nil
}
