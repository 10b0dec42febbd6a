package constants

import "strings"

// AllowedExtensions holds the file extensions accepted for submission.
// Papers arrive as PDFs; everything else is rejected at the API layer.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// MaxUploadBytes is the default cap on submitted file size (50 MB).
const MaxUploadBytes = 50 << 20

// MinTextLengthForSkipOCR is the baseline text length below which OCR is
// always forced, regardless of any quality verdict.
const MinTextLengthForSkipOCR = 100

// GoodTextLength is the baseline text length above which a good/excellent
// quality verdict lets the pipeline skip OCR.
const GoodTextLength = 200

// QualityConfidenceThreshold is the minimum verdict confidence required
// before the pipeline trusts a skip-OCR recommendation.
const QualityConfidenceThreshold = 0.6

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}
