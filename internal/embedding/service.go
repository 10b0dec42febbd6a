package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"paperalchemist/internal/common"
	"paperalchemist/internal/ollama"
)

// Embedder turns one text chunk into a vector. The Ollama client satisfies
// it in production; tests substitute deterministic fakes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Available(ctx context.Context) bool
}

type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

// Result is the document-level outcome of an embedding run.
type Result struct {
	MeanVector []float32
	Dim        int
	ChunkCount int
	ContentID  string
}

type OllamaEmbedder struct {
	client *ollama.Client
	model  string
	tmout  time.Duration
}

func NewOllamaEmbedder(client *ollama.Client, model string, timeout time.Duration) *OllamaEmbedder {
	if model == "" {
		model = "bge-m3"
	}
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &OllamaEmbedder{client: client, model: model, tmout: timeout}
}

func (e *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.client.Embeddings(ctx, e.model, text, e.tmout)
}

func (e *OllamaEmbedder) Available(ctx context.Context) bool {
	return e.client.Available(ctx)
}

// Service normalizes, chunks and embeds a document, then derives the
// content fingerprint from the mean vector.
type Service struct {
	embedder Embedder
	cfg      Config
	logger   *slog.Logger
}

func NewService(embedder Embedder, cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 512
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		cfg.ChunkOverlap = 50
	}
	return &Service{embedder: embedder, cfg: cfg, logger: logger}
}

// EmbedDocument runs the full text -> vectors -> fingerprint flow.
// Empty or whitespace-only text is invalid input, not a provider failure.
func (s *Service) EmbedDocument(ctx context.Context, text string) (*Result, error) {
	normalized := Normalize(text)
	if normalized == "" {
		return nil, fmt.Errorf("%w: no text to embed", common.ErrInvalidInput)
	}

	if !s.embedder.Available(ctx) {
		return nil, common.Unavailable("embedding", fmt.Errorf("service probe failed"))
	}

	chunks := Chunk(normalized, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	start := time.Now()

	vectors := make([][]float32, 0, len(chunks))
	for i, chunk := range chunks {
		v, err := s.embedder.Embed(ctx, chunk)
		if err != nil {
			s.logger.Warn("embedding.chunk_failed", "chunk", i, "of", len(chunks), "error", err)
			return nil, err
		}
		vectors = append(vectors, v)
	}

	mean, err := MeanVector(vectors)
	if err != nil {
		return nil, common.ParseFailure("embedding", err)
	}

	result := &Result{
		MeanVector: mean,
		Dim:        len(mean),
		ChunkCount: len(chunks),
		ContentID:  ContentID(mean),
	}
	s.logger.Info("embedding.completed",
		"chunks", result.ChunkCount,
		"dim", result.Dim,
		"content_id", result.ContentID[:12],
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return result, nil
}
