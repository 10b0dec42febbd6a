package ocr

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"paperalchemist/internal/common"
)

// ForceOCR re-rasterizes the document through ocrmypdf, producing a derived
// PDF with a fresh text layer, then extracts that layer. On failure the
// derived path is empty and the caller falls back to the baseline text.
func (e *Extractor) ForceOCR(ctx context.Context, path, outPath string) (string, string, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	_, errb, err := e.runner.Run(ctx, e.cfg.OCRmyPDF,
		"--force-ocr",
		"-l", e.cfg.Languages,
		"--optimize", "1",
		"--quiet",
		path, outPath)
	if err != nil {
		e.logger.Warn("ocrmypdf failed", "path", path, "stderr", truncate(string(errb), 512))
		return "", "", common.Unavailable("ocrmypdf", err)
	}

	text, err := e.ExtractText(ctx, outPath)
	if err != nil {
		return outPath, "", err
	}
	return outPath, text, nil
}

// RenderPreview writes a PNG of the document's first page. The page is
// trimmed out with pdfcpu first so pdftoppm only rasterizes one page.
func (e *Extractor) RenderPreview(ctx context.Context, path, outPath string) error {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	tmpDir, err := os.MkdirTemp("", "pa-preview-*")
	if err != nil {
		return common.WrapError(err, "create preview temp dir")
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			e.logger.Warn("failed to remove preview temp dir", "dir", tmpDir, "error", err)
		}
	}()

	firstPage := filepath.Join(tmpDir, "first.pdf")
	if err := api.TrimFile(path, firstPage, []string{"1"}, nil); err != nil {
		e.logger.Warn("first-page trim failed", "path", path, "error", err)
		return common.ParseFailure("pdfcpu trim", err)
	}

	// pdftoppm -singlefile writes <prefix>.png
	prefix := strings.TrimSuffix(outPath, ".png")
	_, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm,
		"-r", strconv.Itoa(e.cfg.DPI),
		"-png", "-singlefile",
		firstPage, prefix)
	if err != nil {
		e.logger.Warn("preview render failed", "path", path, "stderr", truncate(string(errb), 512))
		return common.Unavailable("pdftoppm", err)
	}
	return nil
}

// PageCount reports the number of pages without shelling out.
func (e *Extractor) PageCount(path string) (int, error) {
	n, err := api.PageCountFile(path)
	if err != nil {
		return 0, common.ParseFailure("pdfcpu page count", err)
	}
	return n, nil
}
