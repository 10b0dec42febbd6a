package constants

// DocStatus is the canonical processing status for rows in documents.
type DocStatus string

// Stable values (store these exact strings in DB).
const (
	DocStatusPending    DocStatus = "pending"
	DocStatusProcessing DocStatus = "processing"
	DocStatusCompleted  DocStatus = "completed"
	DocStatusFailed     DocStatus = "failed"
)

// CanAdvance reports whether a transition from -> to is a legal forward move.
// Transitions are monotonic; there is no resurrection from failed.
func CanAdvance(from, to DocStatus) bool {
	rank := map[DocStatus]int{
		DocStatusPending:    0,
		DocStatusProcessing: 1,
		DocStatusCompleted:  2,
		DocStatusFailed:     2,
	}
	rf, okf := rank[from]
	rt, okt := rank[to]
	if !okf || !okt {
		return false
	}
	return rt > rf
}

// StepStatus is the outcome recorded for one pipeline step.
type StepStatus string

const (
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

// Step names are stable identifiers stored in the processing log.
const (
	StepFileSave          = "file_save"
	StepOCR               = "ocr"
	StepQualityAssessment = "quality_assessment"
	StepEmbedding         = "embedding"
	StepMetadata          = "metadata"
)

// ExtractionMethod records which metadata path produced the stored fields.
type ExtractionMethod string

const (
	ExtractionRuleBased   ExtractionMethod = "rule_based"
	ExtractionLLMEnhanced ExtractionMethod = "llm_enhanced"
)
