package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"paperalchemist/constants"
	"paperalchemist/internal/entity"
	"paperalchemist/internal/export"
	"paperalchemist/internal/repository"
)

// Pipeline is the processing surface the HTTP layer drives.
type Pipeline interface {
	Process(ctx context.Context, fileBytes []byte, filename string) *entity.ProcessingReport
	PreviewPath(docID uuid.UUID) string
}

// Exporter builds the downloadable catalog workbook.
type Exporter interface {
	Catalog(ctx context.Context, limit int) ([]byte, string, error)
}

// DBHealth is the slice of the store the health endpoint needs.
type DBHealth interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Prober reports whether the model backend answers.
type Prober interface {
	Available(ctx context.Context) bool
}

var _ Exporter = (*export.Service)(nil)

// Server wires the REST API over the pipeline and repositories.
type Server struct {
	pipeline Pipeline
	docs     repository.DocumentRepository
	embeds   repository.EmbeddingRepository
	verdicts repository.QualityRepository
	steps    repository.StepLogRepository
	exporter Exporter
	db       DBHealth
	models   Prober

	maxUploadBytes int64
	logger         *slog.Logger
}

type Deps struct {
	Pipeline Pipeline
	Docs     repository.DocumentRepository
	Embeds   repository.EmbeddingRepository
	Verdicts repository.QualityRepository
	Steps    repository.StepLogRepository
	Exporter Exporter
	DB       DBHealth
	Models   Prober

	MaxUploadBytes int64
}

func New(deps Deps, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.MaxUploadBytes <= 0 {
		deps.MaxUploadBytes = constants.MaxUploadBytes
	}
	return &Server{
		pipeline:       deps.Pipeline,
		docs:           deps.Docs,
		embeds:         deps.Embeds,
		verdicts:       deps.Verdicts,
		steps:          deps.Steps,
		exporter:       deps.Exporter,
		db:             deps.DB,
		models:         deps.Models,
		maxUploadBytes: deps.MaxUploadBytes,
		logger:         logger,
	}
}

// Router assembles the gin engine with all routes mounted.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.POST("/process", s.handleProcess)
	r.GET("/status/:doc_id", s.handleStatus)
	r.GET("/metadata/:doc_id", s.handleMetadata)
	r.GET("/embedding/:doc_id", s.handleEmbedding)
	r.GET("/preview/:doc_id", s.handlePreview)
	r.GET("/papers", s.handlePapers)
	r.GET("/papers/export", s.handleExport)
	r.GET("/health", s.handleHealth)
	return r
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, errorResponse{Code: code, Message: message})
}

// Run serves until ctx is cancelled, then drains with a grace period.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http.listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.logger.Info("http.shutting_down")
	return srv.Shutdown(shutdownCtx)
}
