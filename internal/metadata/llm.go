package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"paperalchemist/internal/common"
	"paperalchemist/internal/entity"
	"paperalchemist/internal/ollama"
)

// LLMExtractor asks a text model for the same bibliographic schema the
// rule-based path fills. Its output only ever overrides rule-based fields
// that it actually answered; failure leaves the baseline untouched.
type LLMExtractor interface {
	Extract(ctx context.Context, text string) (entity.Fields, error)
	Available(ctx context.Context) bool
}

type LLMConfig struct {
	Model    string
	Timeout  time.Duration
	MaxChars int // how much of the document head to show the model
}

type OllamaExtractor struct {
	client *ollama.Client
	cfg    LLMConfig
	logger *slog.Logger
}

func NewOllamaExtractor(client *ollama.Client, cfg LLMConfig, logger *slog.Logger) *OllamaExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1:latest"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.MaxChars <= 0 {
		cfg.MaxChars = 6000
	}
	return &OllamaExtractor{client: client, cfg: cfg, logger: logger}
}

const extractPrompt = `Extract bibliographic metadata from the beginning of this academic paper.
Respond with a single JSON object and nothing else. Use null for anything you cannot find.
Keys: "title" (string), "authors" (array of strings), "abstract" (string),
"keywords" (array of strings), "publication_year" (integer), "journal" (string),
"doi" (string), "institution" (array of strings), "language" (string),
"paper_type" (string, e.g. "journal article", "conference paper", "thesis"),
"field" (string, the research discipline).

Paper text:
%s`

var fieldsSchema = jsonschema.MustCompileString("fields.json", `{
	"type": "object",
	"properties": {
		"title":            {"type": ["string", "null"]},
		"authors":          {"type": ["array", "null"], "items": {"type": "string"}},
		"abstract":         {"type": ["string", "null"]},
		"keywords":         {"type": ["array", "null"], "items": {"type": "string"}},
		"publication_year": {"type": ["integer", "null"]},
		"journal":          {"type": ["string", "null"]},
		"doi":              {"type": ["string", "null"]},
		"institution":      {"type": ["array", "null"], "items": {"type": "string"}},
		"language":         {"type": ["string", "null"]},
		"paper_type":       {"type": ["string", "null"]},
		"field":            {"type": ["string", "null"]}
	}
}`)

func (x *OllamaExtractor) Available(ctx context.Context) bool {
	return x.client.Available(ctx)
}

func (x *OllamaExtractor) Extract(ctx context.Context, text string) (entity.Fields, error) {
	head := truncateHead(text, x.cfg.MaxChars)

	resp, err := x.client.Generate(ctx, ollama.GenerateRequest{
		Model:   x.cfg.Model,
		Prompt:  fmt.Sprintf(extractPrompt, head),
		Options: map[string]any{"temperature": 0.1},
	}, x.cfg.Timeout)
	if err != nil {
		return entity.Fields{}, err
	}

	fields, err := parseFields(resp)
	if err != nil {
		x.logger.Warn("metadata.llm.parse_failed", "model", x.cfg.Model, "error", err)
		return entity.Fields{}, err
	}
	return fields, nil
}

// truncateHead cuts text to at most max bytes without splitting a rune.
func truncateHead(text string, max int) string {
	if len(text) <= max {
		return text
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	return text[:cut]
}

func parseFields(resp string) (entity.Fields, error) {
	blob, ok := ollama.ExtractJSONObject(resp)
	if !ok {
		return entity.Fields{}, common.ParseFailure("metadata fields", fmt.Errorf("no JSON object in response"))
	}

	var doc any
	if err := json.Unmarshal(blob, &doc); err != nil {
		return entity.Fields{}, common.ParseFailure("metadata fields", err)
	}
	if err := fieldsSchema.Validate(doc); err != nil {
		return entity.Fields{}, common.ParseFailure("metadata fields", err)
	}

	var fields entity.Fields
	if err := json.Unmarshal(blob, &fields); err != nil {
		return entity.Fields{}, common.ParseFailure("metadata fields", err)
	}
	return fields, nil
}
