package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"paperalchemist/constants"
	"paperalchemist/internal/entity"
)

func verdict(overall constants.QualityLevel, confidence float64) *entity.QualityAssessment {
	return &entity.QualityAssessment{
		OverallQuality:   overall,
		ConfidenceScore:  confidence,
		ServiceAvailable: true,
	}
}

func TestShouldPerformOCR(t *testing.T) {
	unavailable := &entity.QualityAssessment{ServiceAvailable: false}

	cases := []struct {
		name    string
		textLen int
		qa      *entity.QualityAssessment
		want    bool
	}{
		{"short text always forces ocr", 50, verdict(constants.QualityExcellent, 0.99), true},
		{"short text no verdict", 0, nil, true},
		{"no verdict at all", 500, nil, true},
		{"service unavailable", 500, unavailable, true},
		{"poor quality", 500, verdict(constants.QualityPoor, 0.9), true},
		{"unknown quality", 500, verdict(constants.QualityUnknown, 0.9), true},
		{"low confidence", 500, verdict(constants.QualityGood, 0.5), true},
		{"confidence at threshold skips", 500, verdict(constants.QualityGood, 0.6), false},
		{"good text good quality skips", 201, verdict(constants.QualityGood, 0.8), false},
		{"good text excellent quality skips", 1000, verdict(constants.QualityExcellent, 0.95), false},
		{"fair quality never skips", 500, verdict(constants.QualityFair, 0.9), true},
		{"medium-length text good quality still ocrs", 150, verdict(constants.QualityGood, 0.9), true},
		{"boundary 100 chars counts as enough baseline", 100, verdict(constants.QualityGood, 0.9), true},
		{"boundary 200 chars not enough to skip", 200, verdict(constants.QualityExcellent, 0.9), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reason := ShouldPerformOCR(tc.textLen, tc.qa)
			assert.Equal(t, tc.want, got)
			assert.NotEmpty(t, reason)
		})
	}
}
