package repository

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"paperalchemist/constants"
	"paperalchemist/internal/common"
	"paperalchemist/internal/entity"
)

// QualityRepository holds at most one verdict per document.
type QualityRepository interface {
	Upsert(ctx context.Context, docID uuid.UUID, qa entity.QualityAssessment) error
	Get(ctx context.Context, docID uuid.UUID) (*entity.QualityAssessment, error)
}

type qualityRepo struct {
	store  *Store
	logger *slog.Logger
}

func NewQualityRepository(store *Store, logger *slog.Logger) QualityRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &qualityRepo{store: store, logger: logger}
}

func (r *qualityRepo) Upsert(ctx context.Context, docID uuid.UUID, qa entity.QualityAssessment) error {
	if qa.AssessedAt.IsZero() {
		qa.AssessedAt = time.Now().UTC()
	}
	_, err := r.store.db.ExecContext(ctx, r.store.bind(`
		INSERT INTO quality_assessments
			(doc_id, text_clarity, layout_complexity, image_quality, language_mix,
			 overall_quality, confidence_score, recommendations, service_available, assessed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (doc_id) DO UPDATE SET
			text_clarity = excluded.text_clarity,
			layout_complexity = excluded.layout_complexity,
			image_quality = excluded.image_quality,
			language_mix = excluded.language_mix,
			overall_quality = excluded.overall_quality,
			confidence_score = excluded.confidence_score,
			recommendations = excluded.recommendations,
			service_available = excluded.service_available,
			assessed_at = excluded.assessed_at`),
		docID.String(), string(qa.TextClarity), qa.LayoutComplexity, string(qa.ImageQuality),
		qa.LanguageMix, string(qa.OverallQuality), qa.ConfidenceScore, qa.Recommendations,
		boolToInt(qa.ServiceAvailable), formatTime(qa.AssessedAt))
	if err != nil {
		r.logger.Error("failed to upsert quality assessment", "doc_id", docID, "error", err)
		return common.WrapError(err, "upsert quality assessment")
	}
	return nil
}

func (r *qualityRepo) Get(ctx context.Context, docID uuid.UUID) (*entity.QualityAssessment, error) {
	var (
		qa               entity.QualityAssessment
		clarity, imageQ  string
		overall          string
		serviceAvailable int
		assessedAt       string
	)
	err := r.store.db.QueryRowContext(ctx, r.store.bind(`
		SELECT text_clarity, layout_complexity, image_quality, language_mix,
		       overall_quality, confidence_score, recommendations, service_available, assessed_at
		FROM quality_assessments WHERE doc_id = ?`), docID.String()).Scan(
		&clarity, &qa.LayoutComplexity, &imageQ, &qa.LanguageMix,
		&overall, &qa.ConfidenceScore, &qa.Recommendations, &serviceAvailable, &assessedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.logger.Error("failed to get quality assessment", "doc_id", docID, "error", err)
		return nil, common.WrapError(err, "get quality assessment")
	}
	qa.TextClarity = constants.QualityLevel(clarity)
	qa.ImageQuality = constants.QualityLevel(imageQ)
	qa.OverallQuality = constants.QualityLevel(overall)
	qa.ServiceAvailable = serviceAvailable != 0
	qa.AssessedAt = parseTime(assessedAt)
	return &qa, nil
}
