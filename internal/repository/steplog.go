package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"paperalchemist/constants"
	"paperalchemist/internal/common"
	"paperalchemist/internal/entity"
)

// StepLogRepository is the append-only audit trail. Entries are never
// mutated or deleted; the mutable status summary lives on documents.
type StepLogRepository interface {
	Append(ctx context.Context, entry entity.StepLogEntry) error
	ListByDoc(ctx context.Context, docID uuid.UUID) ([]entity.StepLogEntry, error)
}

type stepLogRepo struct {
	store  *Store
	logger *slog.Logger
}

func NewStepLogRepository(store *Store, logger *slog.Logger) StepLogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &stepLogRepo{store: store, logger: logger}
}

func (r *stepLogRepo) Append(ctx context.Context, entry entity.StepLogEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	_, err := r.store.db.ExecContext(ctx, r.store.bind(`
		INSERT INTO processing_log (doc_id, step, status, message, duration_ms, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)`),
		entry.DocID.String(), entry.Step, string(entry.Status), entry.Message,
		entry.Duration.Milliseconds(), formatTime(entry.Timestamp))
	if err != nil {
		// The audit trail must not take the pipeline down with it.
		r.logger.Error("failed to append step log", "doc_id", entry.DocID, "step", entry.Step, "error", err)
		return common.WrapError(err, "append step log")
	}
	return nil
}

func (r *stepLogRepo) ListByDoc(ctx context.Context, docID uuid.UUID) ([]entity.StepLogEntry, error) {
	rows, err := r.store.db.QueryContext(ctx, r.store.bind(`
		SELECT id, doc_id, step, status, message, duration_ms, timestamp
		FROM processing_log WHERE doc_id = ? ORDER BY id ASC`), docID.String())
	if err != nil {
		r.logger.Error("failed to list step log", "doc_id", docID, "error", err)
		return nil, common.WrapError(err, "list step log")
	}
	defer rows.Close()

	var out []entity.StepLogEntry
	for rows.Next() {
		var (
			entry      entity.StepLogEntry
			rawID      string
			status     string
			durationMS int64
			timestamp  string
		)
		if err := rows.Scan(&entry.ID, &rawID, &entry.Step, &status, &entry.Message, &durationMS, &timestamp); err != nil {
			return nil, common.WrapError(err, "scan step log")
		}
		id, err := uuid.Parse(rawID)
		if err != nil {
			return nil, common.WrapError(err, "parse doc_id")
		}
		entry.DocID = id
		entry.Status = constants.StepStatus(status)
		entry.Duration = time.Duration(durationMS) * time.Millisecond
		entry.Timestamp = parseTime(timestamp)
		out = append(out, entry)
	}
	return out, rows.Err()
}
