package ocr

import (
	"context"
	"log/slog"
	"time"

	"paperalchemist/internal/common"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	OCRmyPDF  string // binary name or absolute path; if empty -> "ocrmypdf"

	Languages string // tesseract language pack list, e.g. "eng+kor"
	DPI       int    // rasterization DPI for the first-page preview, default 200
	Timeout   time.Duration
}

// TextProvider is the contract the pipeline depends on. Extraction failures
// yield empty text rather than hard errors wherever feasible.
type TextProvider interface {
	ExtractText(ctx context.Context, path string) (string, error)
	ForceOCR(ctx context.Context, path, outPath string) (derivedPath, text string, err error)
	RenderPreview(ctx context.Context, path, outPath string) error
	PageCount(path string) (int, error)
}

type Extractor struct {
	cfg    Config
	runner Runner
	logger *slog.Logger
}

func NewExtractor(cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.OCRmyPDF == "" {
		cfg.OCRmyPDF = "ocrmypdf"
	}
	if cfg.Languages == "" {
		cfg.Languages = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 200
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	return &Extractor{cfg: cfg, runner: execRunner{logger: logger}, logger: logger}
}

// withTimeout caps every external call; a hung binary must not stall a run.
func (e *Extractor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.cfg.Timeout)
}

// ExtractText reads the embedded text layer of a PDF. A failing pdftotext
// is reported as empty text plus a ProviderUnavailable error the caller may
// log and ignore.
func (e *Extractor) ExtractText(ctx context.Context, path string) (string, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, "-layout", "-enc", "UTF-8", "-eol", "unix", path, "-")
	if err != nil {
		e.logger.Warn("text extraction failed", "path", path, "stderr", truncate(string(errb), 512))
		return "", common.Unavailable("pdftotext", err)
	}
	return string(out), nil
}
