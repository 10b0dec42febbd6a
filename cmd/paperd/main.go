package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"paperalchemist/internal/common"
	"paperalchemist/internal/embedding"
	"paperalchemist/internal/export"
	"paperalchemist/internal/metadata"
	"paperalchemist/internal/ocr"
	"paperalchemist/internal/ollama"
	"paperalchemist/internal/pipeline"
	"paperalchemist/internal/quality"
	"paperalchemist/internal/repository"
	"paperalchemist/internal/server"
)

func main() {
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

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
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close document store", "error", err)
		}
	}()

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

	assessor := quality.NewVisionAssessor(models, quality.Config{
		Model:   cfg.Ollama.QualityModel,
		Timeout: cfg.Ollama.QualityTimeout,
	}, logger)

	embedSvc := embedding.NewService(
		embedding.NewOllamaEmbedder(models, cfg.Ollama.EmbedModel, cfg.Ollama.EmbedTimeout),
		embedding.Config{
			ChunkSize:    cfg.Pipeline.ChunkSize,
			ChunkOverlap: cfg.Pipeline.ChunkOverlap,
		}, logger)

	metaSvc := metadata.NewService(
		metadata.NewOllamaExtractor(models, metadata.LLMConfig{
			Model:   cfg.Ollama.MetadataModel,
			Timeout: cfg.Ollama.MetadataTimeout,
		}, logger), logger)

	proc := pipeline.NewProcessor(
		docs, embeds, verdicts, steps,
		extractor, assessor, embedSvc, metaSvc,
		pipeline.Config{DataDir: cfg.Storage.DataDir},
		logger)

	exporter := export.NewService(docs, logger)

	srv := server.New(server.Deps{
		Pipeline:       proc,
		Docs:           docs,
		Embeds:         embeds,
		Verdicts:       verdicts,
		Steps:          steps,
		Exporter:       exporter,
		DB:             store,
		Models:         models,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
	}, logger)

	if err := srv.Run(ctx, cfg.Server.Addr); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
