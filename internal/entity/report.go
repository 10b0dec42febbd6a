package entity

import (
	"time"

	"github.com/google/uuid"

	"paperalchemist/constants"
)

// StepResult summarizes one pipeline stage for the caller-facing report.
// Counters carries salient per-step numbers (text lengths, dims, chunk counts).
type StepResult struct {
	Status   constants.StepStatus `json:"status"`
	Duration time.Duration        `json:"duration"`
	Message  string               `json:"message,omitempty"`
	Counters map[string]int       `json:"counters,omitempty"`
}

// ProcessingReport is the result of one pipeline run. Status failed always
// comes with a non-empty Errors slice; completed may still carry soft
// failures in the per-step breakdown.
type ProcessingReport struct {
	DocID          uuid.UUID             `json:"doc_id"`
	Filename       string                `json:"filename"`
	Status         constants.DocStatus   `json:"status"`
	Steps          map[string]StepResult `json:"steps"`
	DuplicateDocID *uuid.UUID            `json:"duplicate_doc_id,omitempty"`
	Errors         []string              `json:"errors"`
	TotalDuration  time.Duration         `json:"total_duration"`
}

// NewProcessingReport seeds a report in the processing state.
func NewProcessingReport(docID uuid.UUID, filename string) *ProcessingReport {
	return &ProcessingReport{
		DocID:    docID,
		Filename: filename,
		Status:   constants.DocStatusProcessing,
		Steps:    make(map[string]StepResult),
		Errors:   []string{},
	}
}

// AddStep records a stage outcome in the report.
func (r *ProcessingReport) AddStep(name string, res StepResult) {
	r.Steps[name] = res
}

// AddError appends a non-fatal error to the report.
func (r *ProcessingReport) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}
