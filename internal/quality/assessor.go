package quality

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"paperalchemist/constants"
	"paperalchemist/internal/common"
	"paperalchemist/internal/entity"
	"paperalchemist/internal/ollama"
)

// Assessor asks a vision model how legible a scanned first page is.
// It never returns an error to the pipeline: every failure mode collapses
// into a verdict with ServiceAvailable=false.
type Assessor interface {
	Assess(ctx context.Context, previewPath string) entity.QualityAssessment
}

type Config struct {
	Model   string
	Timeout time.Duration
}

type VisionAssessor struct {
	client *ollama.Client
	cfg    Config
	logger *slog.Logger
}

func NewVisionAssessor(client *ollama.Client, cfg Config, logger *slog.Logger) *VisionAssessor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "llava"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &VisionAssessor{client: client, cfg: cfg, logger: logger}
}

const prompt = `You are inspecting the first page of a scanned academic paper.
Answer with a single JSON object and nothing else, using exactly these keys:
  "text_clarity":      one of "excellent", "good", "fair", "poor"
  "layout_complexity": one of "simple", "moderate", "complex"
  "image_quality":     one of "excellent", "good", "fair", "poor"
  "language_mix":      short description, e.g. "english" or "english+korean"
  "overall_quality":   one of "excellent", "good", "fair", "poor"
  "confidence_score":  number between 0 and 1
  "recommendations":   one short sentence`

// rawVerdict mirrors the model's JSON before canonicalization.
type rawVerdict struct {
	TextClarity      string  `json:"text_clarity"`
	LayoutComplexity string  `json:"layout_complexity"`
	ImageQuality     string  `json:"image_quality"`
	LanguageMix      string  `json:"language_mix"`
	OverallQuality   string  `json:"overall_quality"`
	ConfidenceScore  float64 `json:"confidence_score"`
	Recommendations  string  `json:"recommendations"`
}

var verdictSchema = jsonschema.MustCompileString("verdict.json", fmt.Sprintf(`{
	"type": "object",
	"required": ["text_clarity", "image_quality", "overall_quality", "confidence_score"],
	"properties": {
		"text_clarity":      {"type": "string"},
		"layout_complexity": {"type": "string"},
		"image_quality":     {"type": "string"},
		"language_mix":      {"type": "string"},
		"overall_quality":   {"type": "string", "enum": [%s]},
		"confidence_score":  {"type": "number", "minimum": 0, "maximum": 1},
		"recommendations":   {"type": "string"}
	}
}`, quoteJoin(constants.QualityLevelStrings())))

func quoteJoin(ss []string) string {
	quoted := make([]string, len(ss))
	for i, s := range ss {
		quoted[i] = `"` + s + `"`
	}
	return strings.Join(quoted, ", ")
}

// Assess renders a verdict for the preview image at previewPath.
func (a *VisionAssessor) Assess(ctx context.Context, previewPath string) entity.QualityAssessment {
	if !a.client.Available(ctx) {
		a.logger.Warn("quality.assess.service_unreachable", "model", a.cfg.Model)
		return entity.UnavailableAssessment("vision service unreachable")
	}

	img, err := os.ReadFile(previewPath)
	if err != nil {
		a.logger.Warn("quality.assess.preview_read_failed", "path", previewPath, "error", err)
		return entity.UnavailableAssessment("preview image unreadable")
	}

	resp, err := a.client.Generate(ctx, ollama.GenerateRequest{
		Model:   a.cfg.Model,
		Prompt:  prompt,
		Images:  []string{base64.StdEncoding.EncodeToString(img)},
		Options: map[string]any{"temperature": 0.1},
	}, a.cfg.Timeout)
	if err != nil {
		a.logger.Warn("quality.assess.generate_failed", "model", a.cfg.Model, "error", err)
		return entity.UnavailableAssessment("vision service unreachable")
	}

	verdict, err := a.parse(resp)
	if err != nil {
		a.logger.Warn("quality.assess.parse_failed", "model", a.cfg.Model, "error", err)
		return entity.UnavailableAssessment("vision response unparseable")
	}

	a.logger.Info("quality.assess.completed",
		"overall", verdict.OverallQuality,
		"confidence", verdict.ConfidenceScore,
	)
	return verdict
}

// parse extracts, schema-validates and canonicalizes the model's JSON.
func (a *VisionAssessor) parse(resp string) (entity.QualityAssessment, error) {
	blob, ok := ollama.ExtractJSONObject(resp)
	if !ok {
		return entity.QualityAssessment{}, common.ParseFailure("quality verdict", fmt.Errorf("no JSON object in response"))
	}

	var doc any
	if err := json.Unmarshal(blob, &doc); err != nil {
		return entity.QualityAssessment{}, common.ParseFailure("quality verdict", err)
	}

	var raw rawVerdict
	if err := json.Unmarshal(blob, &raw); err != nil {
		return entity.QualityAssessment{}, common.ParseFailure("quality verdict", err)
	}

	// Canonicalize before schema validation so near-miss answers
	// ("very good", "OK") survive the enum constraint.
	overall, _ := constants.CanonicalizeQuality(raw.OverallQuality)
	if m, ok := doc.(map[string]any); ok {
		m["overall_quality"] = string(overall)
	}
	if err := verdictSchema.Validate(doc); err != nil {
		return entity.QualityAssessment{}, common.ParseFailure("quality verdict", err)
	}

	clarity, _ := constants.CanonicalizeQuality(raw.TextClarity)
	image, _ := constants.CanonicalizeQuality(raw.ImageQuality)

	confidence := raw.ConfidenceScore
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}

	return entity.QualityAssessment{
		TextClarity:      clarity,
		LayoutComplexity: strings.ToLower(strings.TrimSpace(raw.LayoutComplexity)),
		ImageQuality:     image,
		LanguageMix:      strings.ToLower(strings.TrimSpace(raw.LanguageMix)),
		OverallQuality:   overall,
		ConfidenceScore:  confidence,
		Recommendations:  strings.TrimSpace(raw.Recommendations),
		ServiceAvailable: true,
		AssessedAt:       time.Now().UTC(),
	}, nil
}
