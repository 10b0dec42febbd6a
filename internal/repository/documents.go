package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"paperalchemist/constants"
	"paperalchemist/internal/common"
	"paperalchemist/internal/entity"
)

// DocumentRepository is the durable record keyed by doc_id.
type DocumentRepository interface {
	CreateProvisional(ctx context.Context, doc *entity.Document) error
	UpdateOCRInfo(ctx context.Context, docID uuid.UUID, performed bool, originalLen, ocrLen int) error
	UpdateMetadata(ctx context.Context, docID uuid.UUID, fields entity.Fields, method constants.ExtractionMethod, llmAvailable bool) error
	Complete(ctx context.Context, docID uuid.UUID) error
	Fail(ctx context.Context, docID uuid.UUID) error
	GetByID(ctx context.Context, docID uuid.UUID) (*entity.Document, error)
	FindCompletedByContentID(ctx context.Context, contentID string, exclude uuid.UUID) (uuid.UUID, bool, error)
	ListRecent(ctx context.Context, limit, offset int) ([]entity.Document, error)
}

type documentRepo struct {
	store  *Store
	logger *slog.Logger
}

func NewDocumentRepository(store *Store, logger *slog.Logger) DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &documentRepo{store: store, logger: logger}
}

func (r *documentRepo) CreateProvisional(ctx context.Context, doc *entity.Document) error {
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now().UTC()
	}
	doc.Status = constants.DocStatusProcessing
	_, err := r.store.db.ExecContext(ctx, r.store.bind(`
		INSERT INTO documents (doc_id, filename, file_size, status, uploaded_at)
		VALUES (?, ?, ?, ?, ?)`),
		doc.DocID.String(), doc.Filename, doc.FileSize, string(doc.Status), formatTime(doc.UploadedAt))
	if err != nil {
		r.logger.Error("failed to create provisional document", "doc_id", doc.DocID, "error", err)
		return common.WrapError(err, "create provisional document")
	}
	return nil
}

func (r *documentRepo) UpdateOCRInfo(ctx context.Context, docID uuid.UUID, performed bool, originalLen, ocrLen int) error {
	_, err := r.store.db.ExecContext(ctx, r.store.bind(`
		UPDATE documents SET
			ocr_performed = ?,
			original_text_length = ?,
			ocr_text_length = ?
		WHERE doc_id = ?`),
		boolToInt(performed), originalLen, ocrLen, docID.String())
	if err != nil {
		r.logger.Error("failed to update ocr info", "doc_id", docID, "error", err)
		return common.WrapError(err, "update ocr info")
	}
	return nil
}

func (r *documentRepo) UpdateMetadata(ctx context.Context, docID uuid.UUID, fields entity.Fields, method constants.ExtractionMethod, llmAvailable bool) error {
	_, err := r.store.db.ExecContext(ctx, r.store.bind(`
		UPDATE documents SET
			title = ?, authors = ?, abstract = ?, keywords = ?,
			publication_year = ?, journal = ?, doi = ?,
			institution = ?, language = ?, paper_type = ?, field = ?,
			extraction_method = ?, llm_available = ?
		WHERE doc_id = ?`),
		fields.Title, marshalList(fields.Authors), fields.Abstract, marshalList(fields.Keywords),
		fields.PublicationYear, fields.Journal, fields.DOI,
		marshalList(fields.Institution), fields.Language, fields.PaperType, fields.Field,
		string(method), boolToInt(llmAvailable), docID.String())
	if err != nil {
		r.logger.Error("failed to update metadata", "doc_id", docID, "error", err)
		return common.WrapError(err, "update metadata")
	}
	return nil
}

// Complete transitions processing -> completed and stamps processed_at.
// The WHERE clause keeps status transitions monotonic.
func (r *documentRepo) Complete(ctx context.Context, docID uuid.UUID) error {
	res, err := r.store.db.ExecContext(ctx, r.store.bind(`
		UPDATE documents SET status = ?, processed_at = ?
		WHERE doc_id = ? AND status = ?`),
		string(constants.DocStatusCompleted), formatTime(time.Now()),
		docID.String(), string(constants.DocStatusProcessing))
	if err != nil {
		r.logger.Error("failed to complete document", "doc_id", docID, "error", err)
		return common.WrapError(err, "complete document")
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return r.statusConflict(ctx, docID, constants.DocStatusCompleted)
	}
	return nil
}

// statusConflict builds the error for a guarded transition that matched no
// row, naming the current status when the row exists.
func (r *documentRepo) statusConflict(ctx context.Context, docID uuid.UUID, to constants.DocStatus) error {
	var cur string
	err := r.store.db.QueryRowContext(ctx, r.store.bind(
		`SELECT status FROM documents WHERE doc_id = ?`), docID.String()).Scan(&cur)
	if errors.Is(err, sql.ErrNoRows) {
		return common.NewAppError("STATUS_CONFLICT", "document does not exist", common.ErrNotFound)
	}
	if err != nil {
		return common.WrapError(err, "read document status")
	}
	msg := fmt.Sprintf("document is %s, not %s", cur, constants.DocStatusProcessing)
	if !constants.CanAdvance(constants.DocStatus(cur), to) {
		msg = fmt.Sprintf("cannot advance from %s to %s", cur, to)
	}
	return common.NewAppError("STATUS_CONFLICT", msg, common.ErrDatabase)
}

func (r *documentRepo) Fail(ctx context.Context, docID uuid.UUID) error {
	_, err := r.store.db.ExecContext(ctx, r.store.bind(`
		UPDATE documents SET status = ?
		WHERE doc_id = ? AND status = ?`),
		string(constants.DocStatusFailed), docID.String(), string(constants.DocStatusProcessing))
	if err != nil {
		r.logger.Error("failed to mark document failed", "doc_id", docID, "error", err)
		return common.WrapError(err, "fail document")
	}
	return nil
}

const documentColumns = `doc_id, content_id, filename, file_size, status,
	ocr_performed, original_text_length, ocr_text_length,
	title, authors, abstract, keywords, publication_year, journal, doi,
	institution, language, paper_type, field,
	embedding_dim, chunk_count, extraction_method, llm_available,
	uploaded_at, processed_at`

func (r *documentRepo) GetByID(ctx context.Context, docID uuid.UUID) (*entity.Document, error) {
	row := r.store.db.QueryRowContext(ctx, r.store.bind(
		`SELECT `+documentColumns+` FROM documents WHERE doc_id = ?`), docID.String())
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get document", "doc_id", docID, "error", err)
		return nil, common.WrapError(err, "get document")
	}
	return doc, nil
}

// FindCompletedByContentID returns the earliest completed document carrying
// the fingerprint, excluding the caller's own doc_id. Advisory only.
func (r *documentRepo) FindCompletedByContentID(ctx context.Context, contentID string, exclude uuid.UUID) (uuid.UUID, bool, error) {
	if contentID == "" {
		return uuid.Nil, false, nil
	}
	var raw string
	err := r.store.db.QueryRowContext(ctx, r.store.bind(`
		SELECT doc_id FROM documents
		WHERE content_id = ? AND status = ? AND doc_id <> ?
		ORDER BY uploaded_at ASC LIMIT 1`),
		contentID, string(constants.DocStatusCompleted), exclude.String()).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		r.logger.Error("duplicate lookup failed", "content_id", contentID, "error", err)
		return uuid.Nil, false, common.WrapError(err, "find by content_id")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, false, common.WrapError(err, "parse doc_id")
	}
	return id, true, nil
}

func (r *documentRepo) ListRecent(ctx context.Context, limit, offset int) ([]entity.Document, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.store.db.QueryContext(ctx, r.store.bind(
		`SELECT `+documentColumns+` FROM documents ORDER BY uploaded_at DESC LIMIT ? OFFSET ?`),
		limit, offset)
	if err != nil {
		r.logger.Error("failed to list documents", "error", err)
		return nil, common.WrapError(err, "list documents")
	}
	defer rows.Close()

	var out []entity.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, common.WrapError(err, "scan document")
		}
		out = append(out, *doc)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*entity.Document, error) {
	var (
		doc                            entity.Document
		rawID                          string
		contentID                      sql.NullString
		status                         string
		ocrPerformed, llmAvailable     int
		authors, keywords, institution sql.NullString
		title, abstract, journal, doi  sql.NullString
		language, paperType, field     sql.NullString
		year                           sql.NullInt64
		extractionMethod               sql.NullString
		uploadedAt                     string
		processedAt                    sql.NullString
	)
	if err := row.Scan(
		&rawID, &contentID, &doc.Filename, &doc.FileSize, &status,
		&ocrPerformed, &doc.OriginalTextLength, &doc.OCRTextLength,
		&title, &authors, &abstract, &keywords, &year, &journal, &doi,
		&institution, &language, &paperType, &field,
		&doc.EmbeddingDim, &doc.ChunkCount, &extractionMethod, &llmAvailable,
		&uploadedAt, &processedAt,
	); err != nil {
		return nil, err
	}

	id, err := uuid.Parse(rawID)
	if err != nil {
		return nil, err
	}
	doc.DocID = id
	doc.Status = constants.DocStatus(status)
	doc.OCRPerformed = ocrPerformed != 0
	doc.LLMAvailable = llmAvailable != 0
	if contentID.Valid {
		doc.ContentID = &contentID.String
	}
	if extractionMethod.Valid {
		doc.ExtractionMethod = constants.ExtractionMethod(extractionMethod.String)
	}
	doc.Metadata = entity.Fields{
		Title:       nullToPtr(title),
		Authors:     unmarshalList(authors),
		Abstract:    nullToPtr(abstract),
		Keywords:    unmarshalList(keywords),
		Journal:     nullToPtr(journal),
		DOI:         nullToPtr(doi),
		Institution: unmarshalList(institution),
		Language:    nullToPtr(language),
		PaperType:   nullToPtr(paperType),
		Field:       nullToPtr(field),
	}
	if year.Valid {
		y := int(year.Int64)
		doc.Metadata.PublicationYear = &y
	}
	doc.UploadedAt = parseTime(uploadedAt)
	if processedAt.Valid {
		t := parseTime(processedAt.String)
		doc.ProcessedAt = &t
	}
	return &doc, nil
}

func nullToPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func marshalList(values []string) *string {
	if values == nil {
		return nil
	}
	b, err := json.Marshal(values)
	if err != nil {
		return nil
	}
	s := string(b)
	return &s
}

func unmarshalList(ns sql.NullString) []string {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(ns.String), &out); err != nil {
		return nil
	}
	return out
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
