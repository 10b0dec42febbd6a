package pipeline

import (
	"fmt"

	"paperalchemist/constants"
	"paperalchemist/internal/entity"
)

// ShouldPerformOCR decides whether to re-OCR a document from the baseline
// text length and an optional quality verdict. Lengths are rune counts, not
// bytes; multibyte scripts must not inflate past the thresholds. The rules
// are ordered; the first match wins. Defaults lean toward OCR: a wasted OCR
// pass costs minutes, a skipped one costs a paper's text.
func ShouldPerformOCR(textRunes int, qa *entity.QualityAssessment) (bool, string) {
	if textRunes < constants.MinTextLengthForSkipOCR {
		return true, fmt.Sprintf("baseline text too short (%d chars)", textRunes)
	}
	if qa == nil || !qa.ServiceAvailable {
		return true, "quality verdict unavailable"
	}
	if qa.OverallQuality == constants.QualityPoor || qa.OverallQuality == constants.QualityUnknown {
		return true, fmt.Sprintf("overall quality %s", qa.OverallQuality)
	}
	if qa.ConfidenceScore < constants.QualityConfidenceThreshold {
		return true, fmt.Sprintf("verdict confidence %.2f below threshold", qa.ConfidenceScore)
	}
	if textRunes > constants.GoodTextLength &&
		(qa.OverallQuality == constants.QualityExcellent || qa.OverallQuality == constants.QualityGood) {
		return false, fmt.Sprintf("baseline text sufficient, quality %s", qa.OverallQuality)
	}
	return true, "no skip condition met"
}
