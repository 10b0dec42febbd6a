package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"paperalchemist/constants"
	"paperalchemist/internal/common"
	"paperalchemist/internal/embedding"
	"paperalchemist/internal/entity"
	"paperalchemist/internal/metadata"
	"paperalchemist/internal/ocr"
	"paperalchemist/internal/quality"
	"paperalchemist/internal/repository"
)

// DocumentEmbedder is the embedding service surface the pipeline needs.
type DocumentEmbedder interface {
	EmbedDocument(ctx context.Context, text string) (*embedding.Result, error)
}

// MetadataExtractor is the metadata service surface the pipeline needs.
type MetadataExtractor interface {
	Extract(ctx context.Context, text string) metadata.Result
}

type Config struct {
	DataDir string
}

// Processor runs the per-document pipeline: save, extract, assess, OCR,
// embed, dedup, metadata, finalize. Only file persistence is fatal; every
// backend failure degrades and is recorded in the step log.
type Processor struct {
	docs     repository.DocumentRepository
	embeds   repository.EmbeddingRepository
	verdicts repository.QualityRepository
	steps    repository.StepLogRepository

	text     ocr.TextProvider
	assessor quality.Assessor
	embedder DocumentEmbedder
	meta     MetadataExtractor

	cfg    Config
	logger *slog.Logger
}

func NewProcessor(
	docs repository.DocumentRepository,
	embeds repository.EmbeddingRepository,
	verdicts repository.QualityRepository,
	steps repository.StepLogRepository,
	text ocr.TextProvider,
	assessor quality.Assessor,
	embedder DocumentEmbedder,
	meta MetadataExtractor,
	cfg Config,
	logger *slog.Logger,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	return &Processor{
		docs:     docs,
		embeds:   embeds,
		verdicts: verdicts,
		steps:    steps,
		text:     text,
		assessor: assessor,
		embedder: embedder,
		meta:     meta,
		cfg:      cfg,
		logger:   logger,
	}
}

// File layout inside DataDir. The preview PNG outlives the run so it can
// be served later; the derived OCR PDF is removed during cleanup.
func (p *Processor) savedPath(docID uuid.UUID) string {
	return filepath.Join(p.cfg.DataDir, docID.String()+".pdf")
}

func (p *Processor) ocrPath(docID uuid.UUID) string {
	return filepath.Join(p.cfg.DataDir, docID.String()+"_ocr.pdf")
}

// PreviewPath is where the first-page render for a document lives.
func (p *Processor) PreviewPath(docID uuid.UUID) string {
	return filepath.Join(p.cfg.DataDir, docID.String()+"_page1.png")
}

// Process runs the full pipeline for one submitted file. It always returns
// a report; the report's Status says whether the run survived.
func (p *Processor) Process(ctx context.Context, fileBytes []byte, filename string) *entity.ProcessingReport {
	docID := uuid.New()
	report := entity.NewProcessingReport(docID, filename)
	runStart := time.Now()

	log := p.logger.With("doc_id", docID, "filename", filename)
	log.Info("pipeline.run.started", "size", len(fileBytes))

	if len(fileBytes) == 0 {
		report.Status = constants.DocStatusFailed
		report.AddError("empty file")
		report.TotalDuration = time.Since(runStart)
		return report
	}

	defer func() {
		report.TotalDuration = time.Since(runStart)
		p.cleanup(docID, log)
		log.Info("pipeline.run.finished",
			"status", report.Status,
			"errors", len(report.Errors),
			"elapsed_ms", report.TotalDuration.Milliseconds(),
		)
	}()

	// file_save is the only fatal stage: without a durable copy and a row
	// there is nothing to recover later.
	if !p.saveFile(ctx, docID, fileBytes, filename, report, log) {
		return report
	}

	savedPath := p.savedPath(docID)

	baseline := p.extractBaseline(ctx, savedPath, log)
	previewOK := p.renderPreview(ctx, docID, savedPath, log)

	qa := p.assessQuality(ctx, docID, previewOK, report, log)

	finalText := p.runOCR(ctx, docID, savedPath, baseline, qa, report, log)

	contentID := p.runEmbedding(ctx, docID, finalText, report, log)
	if contentID != "" {
		p.checkDuplicate(ctx, docID, contentID, report, log)
	}

	p.runMetadata(ctx, docID, finalText, report, log)

	p.finalize(ctx, docID, report, log)
	return report
}

func (p *Processor) saveFile(ctx context.Context, docID uuid.UUID, fileBytes []byte, filename string, report *entity.ProcessingReport, log *slog.Logger) bool {
	start := time.Now()

	fail := func(msg string, err error) bool {
		ferr := common.FatalIO(msg, err)
		log.Error("pipeline.file_save.failed", "error", ferr)
		report.Status = constants.DocStatusFailed
		report.AddError(ferr.Error())
		report.AddStep(constants.StepFileSave, entity.StepResult{
			Status:   constants.StepFailed,
			Duration: time.Since(start),
			Message:  msg,
		})
		return false
	}

	if err := os.MkdirAll(p.cfg.DataDir, 0o755); err != nil {
		return fail("create data dir", err)
	}
	path := p.savedPath(docID)
	if err := os.WriteFile(path, fileBytes, 0o644); err != nil {
		return fail("save file", err)
	}

	doc := &entity.Document{
		DocID:    docID,
		Filename: filename,
		FileSize: int64(len(fileBytes)),
	}
	if err := p.docs.CreateProvisional(ctx, doc); err != nil {
		// No row means no record to serve; the orphaned file goes too.
		if rmErr := os.Remove(path); rmErr != nil {
			log.Warn("pipeline.file_save.orphan_remove_failed", "error", rmErr)
		}
		return fail("create document record", err)
	}

	counters := map[string]int{"bytes": len(fileBytes)}
	if pages, err := p.text.PageCount(path); err == nil {
		counters["pages"] = pages
	} else {
		log.Warn("pipeline.file_save.page_count_failed", "error", err)
	}

	p.logStep(ctx, docID, constants.StepFileSave, constants.StepCompleted, "saved", time.Since(start))
	report.AddStep(constants.StepFileSave, entity.StepResult{
		Status:   constants.StepCompleted,
		Duration: time.Since(start),
		Counters: counters,
	})
	return true
}

// extractBaseline reads the embedded text layer. Failure yields empty text;
// the OCR policy then forces a re-OCR anyway.
func (p *Processor) extractBaseline(ctx context.Context, savedPath string, log *slog.Logger) string {
	text, err := p.text.ExtractText(ctx, savedPath)
	if err != nil {
		log.Warn("pipeline.extract.baseline_failed", "error", err)
		return ""
	}
	return strings.TrimSpace(text)
}

func (p *Processor) renderPreview(ctx context.Context, docID uuid.UUID, savedPath string, log *slog.Logger) bool {
	if err := p.text.RenderPreview(ctx, savedPath, p.PreviewPath(docID)); err != nil {
		log.Warn("pipeline.preview.failed", "error", err)
		return false
	}
	return true
}

// assessQuality runs the vision verdict when a preview exists. Without a
// preview the step is recorded as skipped and the OCR policy treats the
// verdict as unavailable.
func (p *Processor) assessQuality(ctx context.Context, docID uuid.UUID, previewOK bool, report *entity.ProcessingReport, log *slog.Logger) *entity.QualityAssessment {
	start := time.Now()

	if !previewOK {
		p.logStep(ctx, docID, constants.StepQualityAssessment, constants.StepSkipped, "no preview image", time.Since(start))
		report.AddStep(constants.StepQualityAssessment, entity.StepResult{
			Status:   constants.StepSkipped,
			Duration: time.Since(start),
			Message:  "no preview image",
		})
		return nil
	}

	qa := p.assessor.Assess(ctx, p.PreviewPath(docID))
	if err := p.verdicts.Upsert(ctx, docID, qa); err != nil {
		log.Warn("pipeline.quality.persist_failed", "error", err)
	}

	status := constants.StepCompleted
	msg := fmt.Sprintf("overall %s, confidence %.2f", qa.OverallQuality, qa.ConfidenceScore)
	if !qa.ServiceAvailable {
		status = constants.StepFailed
		msg = qa.Recommendations
		report.AddError("quality assessment unavailable")
	}
	p.logStep(ctx, docID, constants.StepQualityAssessment, status, msg, time.Since(start))
	report.AddStep(constants.StepQualityAssessment, entity.StepResult{
		Status:   status,
		Duration: time.Since(start),
		Message:  msg,
	})
	return &qa
}

// runOCR applies the skip policy and, when OCR is due, swaps the baseline
// text for the re-OCRed layer. An unreachable OCR engine, or an OCR pass
// that yields no text, keeps the baseline. All stored lengths are rune
// counts so multibyte scripts measure the same as ASCII.
func (p *Processor) runOCR(ctx context.Context, docID uuid.UUID, savedPath, baseline string, qa *entity.QualityAssessment, report *entity.ProcessingReport, log *slog.Logger) string {
	start := time.Now()
	baseRunes := utf8.RuneCountInString(baseline)

	doOCR, reason := ShouldPerformOCR(baseRunes, qa)
	if !doOCR {
		log.Info("pipeline.ocr.skipped", "reason", reason)
		p.logStep(ctx, docID, constants.StepOCR, constants.StepSkipped, reason, time.Since(start))
		report.AddStep(constants.StepOCR, entity.StepResult{
			Status:   constants.StepSkipped,
			Duration: time.Since(start),
			Message:  reason,
			Counters: map[string]int{"original_text_length": baseRunes},
		})
		if err := p.docs.UpdateOCRInfo(ctx, docID, false, baseRunes, 0); err != nil {
			log.Warn("pipeline.ocr.persist_failed", "error", err)
		}
		return baseline
	}

	log.Info("pipeline.ocr.started", "reason", reason)
	_, ocrText, err := p.text.ForceOCR(ctx, savedPath, p.ocrPath(docID))
	if err != nil {
		log.Warn("pipeline.ocr.failed", "error", err)
		report.AddError(fmt.Sprintf("ocr failed: %v", err))
		p.logStep(ctx, docID, constants.StepOCR, constants.StepFailed, err.Error(), time.Since(start))
		report.AddStep(constants.StepOCR, entity.StepResult{
			Status:   constants.StepFailed,
			Duration: time.Since(start),
			Message:  reason,
			Counters: map[string]int{"original_text_length": baseRunes},
		})
		if err := p.docs.UpdateOCRInfo(ctx, docID, false, baseRunes, 0); err != nil {
			log.Warn("pipeline.ocr.persist_failed", "error", err)
		}
		return baseline
	}

	ocrText = strings.TrimSpace(ocrText)
	ocrRunes := utf8.RuneCountInString(ocrText)

	msg := reason
	finalText := ocrText
	if ocrText == "" && baseline != "" {
		// An OCR pass that produced nothing must not erase a readable
		// text layer.
		msg = "ocr produced no text, baseline kept"
		finalText = baseline
		log.Warn("pipeline.ocr.empty_output")
	}

	p.logStep(ctx, docID, constants.StepOCR, constants.StepCompleted, msg, time.Since(start))
	report.AddStep(constants.StepOCR, entity.StepResult{
		Status:   constants.StepCompleted,
		Duration: time.Since(start),
		Message:  msg,
		Counters: map[string]int{
			"original_text_length": baseRunes,
			"ocr_text_length":      ocrRunes,
		},
	})
	if err := p.docs.UpdateOCRInfo(ctx, docID, true, baseRunes, ocrRunes); err != nil {
		log.Warn("pipeline.ocr.persist_failed", "error", err)
	}
	return finalText
}

// runEmbedding embeds the final text and stores the vector. Failure is
// soft: the document still completes, just without a fingerprint.
func (p *Processor) runEmbedding(ctx context.Context, docID uuid.UUID, text string, report *entity.ProcessingReport, log *slog.Logger) string {
	start := time.Now()

	res, err := p.embedder.EmbedDocument(ctx, text)
	if errors.Is(err, common.ErrInvalidInput) {
		// Nothing to embed is a property of the document, not a backend
		// failure; the run stays clean.
		log.Info("pipeline.embedding.skipped", "reason", "no text to embed")
		p.logStep(ctx, docID, constants.StepEmbedding, constants.StepSkipped, "no text to embed", time.Since(start))
		report.AddStep(constants.StepEmbedding, entity.StepResult{
			Status:   constants.StepSkipped,
			Duration: time.Since(start),
			Message:  "no text to embed",
		})
		return ""
	}
	if err != nil {
		log.Warn("pipeline.embedding.failed", "error", err)
		report.AddError(fmt.Sprintf("embedding failed: %v", err))
		p.logStep(ctx, docID, constants.StepEmbedding, constants.StepFailed, err.Error(), time.Since(start))
		report.AddStep(constants.StepEmbedding, entity.StepResult{
			Status:   constants.StepFailed,
			Duration: time.Since(start),
			Message:  err.Error(),
		})
		return ""
	}

	if err := p.embeds.Save(ctx, docID, embedding.EncodeVector(res.MeanVector), res.Dim, res.ChunkCount, res.ContentID); err != nil {
		log.Warn("pipeline.embedding.persist_failed", "error", err)
		report.AddError(fmt.Sprintf("embedding persistence failed: %v", err))
		p.logStep(ctx, docID, constants.StepEmbedding, constants.StepFailed, err.Error(), time.Since(start))
		report.AddStep(constants.StepEmbedding, entity.StepResult{
			Status:   constants.StepFailed,
			Duration: time.Since(start),
			Message:  err.Error(),
		})
		return ""
	}

	p.logStep(ctx, docID, constants.StepEmbedding, constants.StepCompleted, "", time.Since(start))
	report.AddStep(constants.StepEmbedding, entity.StepResult{
		Status:   constants.StepCompleted,
		Duration: time.Since(start),
		Counters: map[string]int{"dim": res.Dim, "chunks": res.ChunkCount},
	})
	return res.ContentID
}

// checkDuplicate surfaces the earliest completed document with the same
// fingerprint. Advisory: the new document is stored either way.
func (p *Processor) checkDuplicate(ctx context.Context, docID uuid.UUID, contentID string, report *entity.ProcessingReport, log *slog.Logger) {
	dup, found, err := p.docs.FindCompletedByContentID(ctx, contentID, docID)
	if err != nil {
		log.Warn("pipeline.dedup.lookup_failed", "error", err)
		return
	}
	if found {
		log.Info("pipeline.dedup.duplicate_found", "duplicate_of", dup)
		report.DuplicateDocID = &dup
	}
}

func (p *Processor) runMetadata(ctx context.Context, docID uuid.UUID, text string, report *entity.ProcessingReport, log *slog.Logger) {
	start := time.Now()

	res := p.meta.Extract(ctx, text)
	if err := p.docs.UpdateMetadata(ctx, docID, res.Fields, res.Method, res.LLMAvailable); err != nil {
		log.Warn("pipeline.metadata.persist_failed", "error", err)
		report.AddError(fmt.Sprintf("metadata persistence failed: %v", err))
		p.logStep(ctx, docID, constants.StepMetadata, constants.StepFailed, err.Error(), time.Since(start))
		report.AddStep(constants.StepMetadata, entity.StepResult{
			Status:   constants.StepFailed,
			Duration: time.Since(start),
		})
		return
	}

	msg := string(res.Method)
	p.logStep(ctx, docID, constants.StepMetadata, constants.StepCompleted, msg, time.Since(start))
	report.AddStep(constants.StepMetadata, entity.StepResult{
		Status:   constants.StepCompleted,
		Duration: time.Since(start),
		Message:  msg,
	})
}

// finalize flips the document to completed. Soft failures do not block
// completion; only an earlier fatal return leaves the row in failed.
func (p *Processor) finalize(ctx context.Context, docID uuid.UUID, report *entity.ProcessingReport, log *slog.Logger) {
	if err := p.docs.Complete(ctx, docID); err != nil {
		log.Error("pipeline.finalize.failed", "error", err)
		report.Status = constants.DocStatusFailed
		report.AddError(fmt.Sprintf("finalize failed: %v", err))
		if failErr := p.docs.Fail(ctx, docID); failErr != nil {
			log.Error("pipeline.finalize.fail_mark_failed", "error", failErr)
		}
		return
	}
	report.Status = constants.DocStatusCompleted
}

// cleanup removes the derived OCR PDF. The original file and the preview
// PNG stay; both back later API reads.
func (p *Processor) cleanup(docID uuid.UUID, log *slog.Logger) {
	path := p.ocrPath(docID)
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		log.Warn("pipeline.cleanup.failed", "path", path, "error", err)
	}
}

// logStep appends to the durable audit trail; persistence problems are
// already logged inside the repository.
func (p *Processor) logStep(ctx context.Context, docID uuid.UUID, step string, status constants.StepStatus, msg string, dur time.Duration) {
	_ = p.steps.Append(ctx, entity.StepLogEntry{
		DocID:    docID,
		Step:     step,
		Status:   status,
		Message:  msg,
		Duration: dur,
	})
}
