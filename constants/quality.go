package constants

import "strings"

// QualityLevel is the vocabulary the vision model is asked to answer in.
type QualityLevel string

const (
	QualityExcellent QualityLevel = "excellent"
	QualityGood      QualityLevel = "good"
	QualityFair      QualityLevel = "fair"
	QualityPoor      QualityLevel = "poor"
	QualityUnknown   QualityLevel = "unknown"
)

var allQualityLevels = []QualityLevel{
	QualityExcellent,
	QualityGood,
	QualityFair,
	QualityPoor,
	QualityUnknown,
}

// QualityLevelStrings returns the enum as strings, for schema constraints.
func QualityLevelStrings() []string {
	out := make([]string, len(allQualityLevels))
	for i, q := range allQualityLevels {
		out[i] = string(q)
	}
	return out
}

// CanonicalizeQuality maps free-form model output onto the enum.
// Anything unrecognized collapses to unknown so the OCR policy stays total.
func CanonicalizeQuality(input string) (QualityLevel, bool) {
	normalized := strings.ToLower(strings.TrimSpace(input))
	if normalized == "" {
		return QualityUnknown, false
	}

	synonyms := map[string]QualityLevel{
		"very good":  QualityGood,
		"ok":         QualityFair,
		"okay":       QualityFair,
		"acceptable": QualityFair,
		"bad":        QualityPoor,
		"very poor":  QualityPoor,
		"unreadable": QualityPoor,
	}
	if q, ok := synonyms[normalized]; ok {
		return q, true
	}
	for _, q := range allQualityLevels {
		if normalized == string(q) {
			return q, true
		}
	}
	return QualityUnknown, false
}
