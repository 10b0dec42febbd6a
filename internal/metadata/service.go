package metadata

import (
	"context"
	"log/slog"

	"paperalchemist/constants"
	"paperalchemist/internal/entity"
)

// Result carries the stored fields plus provenance: which path produced
// them and whether the LLM was reachable at all.
type Result struct {
	Fields       entity.Fields
	Method       constants.ExtractionMethod
	LLMAvailable bool
}

// Service runs the two-stage extraction: rules first, LLM overlay second.
type Service struct {
	llm    LLMExtractor
	logger *slog.Logger
}

func NewService(llm LLMExtractor, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{llm: llm, logger: logger}
}

// Extract never fails: the rule-based baseline is always produced, and
// every LLM problem degrades to returning that baseline.
func (s *Service) Extract(ctx context.Context, text string) Result {
	base := ExtractRuleBased(text)

	if s.llm == nil || !s.llm.Available(ctx) {
		s.logger.Info("metadata.extract.rule_based_only", "llm_available", false)
		return Result{Fields: Validate(base), Method: constants.ExtractionRuleBased}
	}

	llmFields, err := s.llm.Extract(ctx, text)
	if err != nil {
		s.logger.Warn("metadata.extract.llm_failed", "error", err)
		return Result{Fields: Validate(base), Method: constants.ExtractionRuleBased, LLMAvailable: true}
	}

	s.logger.Info("metadata.extract.llm_enhanced")
	return Result{
		Fields:       Validate(Merge(base, llmFields)),
		Method:       constants.ExtractionLLMEnhanced,
		LLMAvailable: true,
	}
}
