// paper-batch runs the processing pipeline over a directory of PDFs
// without the HTTP server. Useful for backfilling an archive.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"paperalchemist/constants"
	"paperalchemist/internal/common"
	"paperalchemist/internal/embedding"
	"paperalchemist/internal/metadata"
	"paperalchemist/internal/ocr"
	"paperalchemist/internal/ollama"
	"paperalchemist/internal/pipeline"
	"paperalchemist/internal/quality"
	"paperalchemist/internal/repository"
)

func main() {
	dir := flag.String("dir", "", "directory of PDF files to process")
	flag.Parse()

	_ = godotenv.Load()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if *dir == "" {
		fmt.Fprintln(os.Stderr, "usage: paper-batch -dir <directory>")
		os.Exit(2)
	}

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	docs := repository.NewDocumentRepository(store, logger)
	embeds := repository.NewEmbeddingRepository(store, logger)
	verdicts := repository.NewQualityRepository(store, logger)
	steps := repository.NewStepLogRepository(store, logger)

	extractor := ocr.NewExtractor(ocr.Config{
		Pdftotext: cfg.OCR.Pdftotext,
		Pdftoppm:  cfg.OCR.Pdftoppm,
		OCRmyPDF:  cfg.OCR.OCRmyPDF,
		Languages: cfg.OCR.Languages,
		DPI:       cfg.OCR.DPI,
		Timeout:   cfg.OCR.Timeout,
	}, logger)

	models := ollama.NewClient(cfg.Ollama.BaseURL, cfg.Ollama.ProbeTimeout, logger)

	proc := pipeline.NewProcessor(
		docs, embeds, verdicts, steps,
		extractor,
		quality.NewVisionAssessor(models, quality.Config{
			Model:   cfg.Ollama.QualityModel,
			Timeout: cfg.Ollama.QualityTimeout,
		}, logger),
		embedding.NewService(
			embedding.NewOllamaEmbedder(models, cfg.Ollama.EmbedModel, cfg.Ollama.EmbedTimeout),
			embedding.Config{
				ChunkSize:    cfg.Pipeline.ChunkSize,
				ChunkOverlap: cfg.Pipeline.ChunkOverlap,
			}, logger),
		metadata.NewService(
			metadata.NewOllamaExtractor(models, metadata.LLMConfig{
				Model:   cfg.Ollama.MetadataModel,
				Timeout: cfg.Ollama.MetadataTimeout,
			}, logger), logger),
		pipeline.Config{DataDir: cfg.Storage.DataDir},
		logger)

	entries, err := os.ReadDir(*dir)
	if err != nil {
		logger.Error("failed to read input directory", "dir", *dir, "error", err)
		os.Exit(1)
	}

	var processed, failed, skipped int
	for _, entry := range entries {
		if ctx.Err() != nil {
			logger.Warn("interrupted, stopping batch")
			break
		}
		if entry.IsDir() {
			continue
		}
		ext := constants.NormalizeExt(filepath.Ext(entry.Name()))
		if _, ok := constants.AllowedExtensions[ext]; !ok {
			skipped++
			continue
		}

		path := filepath.Join(*dir, entry.Name())
		fileBytes, err := os.ReadFile(path)
		if err != nil {
			logger.Error("failed to read file", "path", path, "error", err)
			failed++
			continue
		}

		report := proc.Process(ctx, fileBytes, entry.Name())
		if report.Status == constants.DocStatusFailed {
			failed++
			logger.Error("batch.file_failed",
				"file", entry.Name(),
				"doc_id", report.DocID,
				"errors", strings.Join(report.Errors, "; "),
			)
			continue
		}
		processed++
		logger.Info("batch.file_done",
			"file", entry.Name(),
			"doc_id", report.DocID,
			"duplicate_of", report.DuplicateDocID,
			"elapsed_ms", report.TotalDuration.Milliseconds(),
		)
	}

	logger.Info("batch.finished", "processed", processed, "failed", failed, "skipped", skipped)
	if failed > 0 {
		os.Exit(1)
	}
}
