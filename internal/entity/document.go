package entity

import (
	"time"

	"github.com/google/uuid"

	"paperalchemist/constants"
)

// Document is the durable record for one submitted paper.
type Document struct {
	DocID     uuid.UUID
	ContentID *string // fingerprint of the final embedding vector; nil until embedding succeeds
	Filename  string
	FileSize  int64
	Status    constants.DocStatus

	OCRPerformed bool
	// Text lengths are rune counts, not bytes.
	OriginalTextLength int
	OCRTextLength      int

	Metadata Fields

	EmbeddingDim int
	ChunkCount   int

	ExtractionMethod constants.ExtractionMethod
	LLMAvailable     bool

	UploadedAt  time.Time
	ProcessedAt *time.Time
}

// QualityAssessment is the structured verdict from the vision model.
// ServiceAvailable distinguishes "assessed as poor" from "could not be assessed".
type QualityAssessment struct {
	TextClarity      constants.QualityLevel `json:"text_clarity"`
	LayoutComplexity string                 `json:"layout_complexity"`
	ImageQuality     constants.QualityLevel `json:"image_quality"`
	LanguageMix      string                 `json:"language_mix"`
	OverallQuality   constants.QualityLevel `json:"overall_quality"`
	ConfidenceScore  float64                `json:"confidence_score"`
	Recommendations  string                 `json:"recommendations"`
	ServiceAvailable bool                   `json:"service_available"`
	AssessedAt       time.Time              `json:"assessed_at"`
}

// UnavailableAssessment is the conservative verdict recorded when the
// vision service cannot be reached or its answer cannot be decoded.
func UnavailableAssessment(reason string) QualityAssessment {
	return QualityAssessment{
		TextClarity:      constants.QualityUnknown,
		LayoutComplexity: "unknown",
		ImageQuality:     constants.QualityUnknown,
		LanguageMix:      "unknown",
		OverallQuality:   constants.QualityUnknown,
		ConfidenceScore:  0,
		Recommendations:  reason,
		ServiceAvailable: false,
		AssessedAt:       time.Now().UTC(),
	}
}

// StepLogEntry is one row of the append-only audit trail.
type StepLogEntry struct {
	ID        int64
	DocID     uuid.UUID
	Step      string
	Status    constants.StepStatus
	Message   string
	Duration  time.Duration
	Timestamp time.Time
}
