package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"paperalchemist/constants"
	"paperalchemist/internal/common"
	"paperalchemist/internal/embedding"
	"paperalchemist/internal/entity"
)

// handleProcess accepts a multipart upload and runs the pipeline on it
// synchronously. The response is the full processing report.
func (s *Server) handleProcess(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		respondError(c, http.StatusBadRequest, "MISSING_FILE", "multipart field 'file' is required")
		return
	}

	ext := constants.NormalizeExt(filepath.Ext(header.Filename))
	if _, ok := constants.AllowedExtensions[ext]; !ok {
		respondError(c, http.StatusBadRequest, "UNSUPPORTED_TYPE",
			fmt.Sprintf("extension %q is not accepted", ext))
		return
	}
	if header.Size > s.maxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds %d bytes", s.maxUploadBytes))
		return
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "UNREADABLE_FILE", "could not open uploaded file")
		return
	}
	defer f.Close()

	fileBytes, err := io.ReadAll(io.LimitReader(f, s.maxUploadBytes+1))
	if err != nil {
		respondError(c, http.StatusBadRequest, "UNREADABLE_FILE", "could not read uploaded file")
		return
	}
	if int64(len(fileBytes)) > s.maxUploadBytes {
		respondError(c, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE",
			fmt.Sprintf("file exceeds %d bytes", s.maxUploadBytes))
		return
	}

	// A client hanging up must not cancel a run that already owns a row;
	// the pipeline finishes and the report stays queryable via /status.
	runCtx := context.WithoutCancel(c.Request.Context())
	report := s.pipeline.Process(runCtx, fileBytes, filepath.Base(header.Filename))

	status := http.StatusOK
	if report.Status == constants.DocStatusFailed {
		status = http.StatusInternalServerError
	}
	c.JSON(status, report)
}

func parseDocID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("doc_id"))
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_DOC_ID", "doc_id must be a UUID")
		return uuid.Nil, false
	}
	return id, true
}

type documentSummary struct {
	DocID              string     `json:"doc_id"`
	ContentID          *string    `json:"content_id,omitempty"`
	Filename           string     `json:"filename"`
	FileSize           int64      `json:"file_size"`
	Status             string     `json:"status"`
	Title              *string    `json:"title,omitempty"`
	Authors            []string   `json:"authors,omitempty"`
	OCRPerformed       bool       `json:"ocr_performed"`
	OriginalTextLength int        `json:"original_text_length"`
	OCRTextLength      int        `json:"ocr_text_length"`
	EmbeddingDim       int        `json:"embedding_dim"`
	ChunkCount         int        `json:"chunk_count"`
	ExtractionMethod   string     `json:"extraction_method,omitempty"`
	LLMAvailable       bool       `json:"llm_available"`
	UploadedAt         time.Time  `json:"uploaded_at"`
	ProcessedAt        *time.Time `json:"processed_at,omitempty"`
}

func summarize(doc *entity.Document) documentSummary {
	return documentSummary{
		DocID:              doc.DocID.String(),
		ContentID:          doc.ContentID,
		Filename:           doc.Filename,
		FileSize:           doc.FileSize,
		Status:             string(doc.Status),
		Title:              doc.Metadata.Title,
		Authors:            doc.Metadata.Authors,
		OCRPerformed:       doc.OCRPerformed,
		OriginalTextLength: doc.OriginalTextLength,
		OCRTextLength:      doc.OCRTextLength,
		EmbeddingDim:       doc.EmbeddingDim,
		ChunkCount:         doc.ChunkCount,
		ExtractionMethod:   string(doc.ExtractionMethod),
		LLMAvailable:       doc.LLMAvailable,
		UploadedAt:         doc.UploadedAt,
		ProcessedAt:        doc.ProcessedAt,
	}
}

type stepEntry struct {
	Step       string    `json:"step"`
	Status     string    `json:"status"`
	Message    string    `json:"message,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// handleStatus returns the document summary plus its audit trail.
func (s *Server) handleStatus(c *gin.Context) {
	docID, ok := parseDocID(c)
	if !ok {
		return
	}

	doc, err := s.docs.GetByID(c.Request.Context(), docID)
	if errors.Is(err, common.ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "document not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", "document lookup failed")
		return
	}

	entries, err := s.steps.ListByDoc(c.Request.Context(), docID)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", "step log lookup failed")
		return
	}
	steps := make([]stepEntry, 0, len(entries))
	for _, e := range entries {
		steps = append(steps, stepEntry{
			Step:       e.Step,
			Status:     string(e.Status),
			Message:    e.Message,
			DurationMS: e.Duration.Milliseconds(),
			Timestamp:  e.Timestamp,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"document": summarize(doc),
		"steps":    steps,
	})
}

// handleMetadata returns the extracted bibliographic fields.
func (s *Server) handleMetadata(c *gin.Context) {
	docID, ok := parseDocID(c)
	if !ok {
		return
	}

	doc, err := s.docs.GetByID(c.Request.Context(), docID)
	if errors.Is(err, common.ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "document not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", "document lookup failed")
		return
	}

	resp := gin.H{
		"doc_id":            doc.DocID.String(),
		"metadata":          doc.Metadata,
		"extraction_method": string(doc.ExtractionMethod),
		"llm_available":     doc.LLMAvailable,
	}
	if qa, err := s.verdicts.Get(c.Request.Context(), docID); err == nil {
		resp["quality_assessment"] = qa
	}
	c.JSON(http.StatusOK, resp)
}

// handleEmbedding returns the stored document vector and its provenance.
func (s *Server) handleEmbedding(c *gin.Context) {
	docID, ok := parseDocID(c)
	if !ok {
		return
	}

	doc, err := s.docs.GetByID(c.Request.Context(), docID)
	if errors.Is(err, common.ErrNotFound) {
		respondError(c, http.StatusNotFound, "NOT_FOUND", "document not found")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", "document lookup failed")
		return
	}

	blob, err := s.embeds.Get(c.Request.Context(), docID)
	if errors.Is(err, common.ErrNotFound) {
		respondError(c, http.StatusNotFound, "NO_EMBEDDING", "document has no stored embedding")
		return
	}
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", "embedding lookup failed")
		return
	}

	vector, err := embedding.DecodeVector(blob)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "CORRUPT_EMBEDDING", "stored embedding is malformed")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"doc_id":      doc.DocID.String(),
		"content_id":  doc.ContentID,
		"dim":         doc.EmbeddingDim,
		"chunk_count": doc.ChunkCount,
		"vector":      vector,
	})
}

// handlePreview serves the first-page PNG rendered during processing.
func (s *Server) handlePreview(c *gin.Context) {
	docID, ok := parseDocID(c)
	if !ok {
		return
	}

	path := s.pipeline.PreviewPath(docID)
	if _, err := os.Stat(path); err != nil {
		respondError(c, http.StatusNotFound, "NO_PREVIEW", "no preview image for this document")
		return
	}
	c.File(path)
}

// handlePapers lists recent documents, newest first.
func (s *Server) handlePapers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	docs, err := s.docs.ListRecent(c.Request.Context(), limit, offset)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "DB_ERROR", "document list failed")
		return
	}

	out := make([]documentSummary, 0, len(docs))
	for i := range docs {
		out = append(out, summarize(&docs[i]))
	}
	c.JSON(http.StatusOK, gin.H{"papers": out, "count": len(out)})
}

// handleExport streams the catalog workbook as a download.
func (s *Server) handleExport(c *gin.Context) {
	data, filename, err := s.exporter.Catalog(c.Request.Context(), 100)
	if err != nil {
		respondError(c, http.StatusInternalServerError, "EXPORT_FAILED", "could not build export")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// handleHealth reports store and model-backend reachability. A down model
// backend degrades features but does not fail the check.
func (s *Server) handleHealth(c *gin.Context) {
	dbOK := true
	if err := s.db.HealthCheck(c.Request.Context(), 3*time.Second); err != nil {
		dbOK = false
	}
	modelsOK := s.models != nil && s.models.Available(c.Request.Context())

	status := http.StatusOK
	overall := "ok"
	if !dbOK {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":   overall,
		"database": dbOK,
		"models":   modelsOK,
	})
}
