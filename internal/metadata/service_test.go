package metadata

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"paperalchemist/constants"
	"paperalchemist/internal/entity"
)

type fakeLLM struct {
	available bool
	fields    entity.Fields
	err       error
}

func (f *fakeLLM) Available(context.Context) bool { return f.available }

func (f *fakeLLM) Extract(context.Context, string) (entity.Fields, error) {
	return f.fields, f.err
}

func TestServiceExtractLLMUnavailable(t *testing.T) {
	svc := NewService(&fakeLLM{available: false}, nil)

	res := svc.Extract(context.Background(), samplePaper)
	assert.Equal(t, constants.ExtractionRuleBased, res.Method)
	assert.False(t, res.LLMAvailable)
	require.NotNil(t, res.Fields.Title)
}

func TestServiceExtractLLMEnhanced(t *testing.T) {
	svc := NewService(&fakeLLM{
		available: true,
		fields:    entity.Fields{Title: entity.StrPtr("LLM Chose This Title")},
	}, nil)

	res := svc.Extract(context.Background(), samplePaper)
	assert.Equal(t, constants.ExtractionLLMEnhanced, res.Method)
	assert.True(t, res.LLMAvailable)
	assert.Equal(t, "LLM Chose This Title", *res.Fields.Title)
	// untouched fields keep the rule-based answer
	require.NotNil(t, res.Fields.DOI)
	assert.Equal(t, "10.1234/example.2023.001", *res.Fields.DOI)
}

func TestServiceExtractLLMFailureFallsBack(t *testing.T) {
	svc := NewService(&fakeLLM{available: true, err: errors.New("model exploded")}, nil)

	res := svc.Extract(context.Background(), samplePaper)
	assert.Equal(t, constants.ExtractionRuleBased, res.Method)
	assert.True(t, res.LLMAvailable)
	require.NotNil(t, res.Fields.Title)
	assert.Equal(t, "Deep Learning Approaches for Document Understanding", *res.Fields.Title)
}

func TestServiceExtractNilLLM(t *testing.T) {
	svc := NewService(nil, nil)

	res := svc.Extract(context.Background(), samplePaper)
	assert.Equal(t, constants.ExtractionRuleBased, res.Method)
	assert.False(t, res.LLMAvailable)
}
