package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"paperalchemist/internal/common"
)

// Dialect selects placeholder style and blob/column types.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Store wraps the SQL handle shared by all repositories.
type Store struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// Open connects to the document store. A postgres:// DSN goes through pgx;
// anything else is treated as a SQLite file path (modernc driver, cgo-free).
func Open(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	dialect := DialectSQLite
	driver := "sqlite"
	dsn := cfg.DSN
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		dialect = DialectPostgres
		driver = "pgx"
	} else {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create database directory: %w", err)
			}
		}
	}

	logger.Info("connecting to document store", "dialect", string(dialect))
	db, err := sql.Open(driver, dsn)
	if err != nil {
		logger.Error("failed to open document store", "error", err)
		return nil, err
	}

	if dialect == DialectSQLite {
		// Single writer; SQLite serializes conflicting writes itself but the
		// modernc driver needs one connection to avoid SQLITE_BUSY churn.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(cfg.MaxConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := db.PingContext(pingCtx); err != nil {
		logger.Error("failed to ping document store", "error", err)
		_ = db.Close()
		return nil, err
	}

	s := &Store{db: db, dialect: dialect, logger: logger}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("document store ready")
	return s, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	s.logger.Info("closing document store")
	return s.db.Close()
}

// HealthCheck pings the store with an optional timeout.
func (s *Store) HealthCheck(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return s.db.PingContext(ctx)
}

// bind rewrites ? placeholders to $n for postgres. Queries are written once
// in SQLite style and rebound per dialect.
func (s *Store) bind(query string) string {
	if s.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) blobType() string {
	if s.dialect == DialectPostgres {
		return "BYTEA"
	}
	return "BLOB"
}

func (s *Store) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			doc_id TEXT PRIMARY KEY,
			content_id TEXT,
			filename TEXT NOT NULL,
			file_size BIGINT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',

			ocr_performed INTEGER NOT NULL DEFAULT 0,
			original_text_length INTEGER NOT NULL DEFAULT 0,
			ocr_text_length INTEGER NOT NULL DEFAULT 0,

			title TEXT,
			authors TEXT,
			abstract TEXT,
			keywords TEXT,
			publication_year INTEGER,
			journal TEXT,
			doi TEXT,
			institution TEXT,
			language TEXT,
			paper_type TEXT,
			field TEXT,

			embedding_dim INTEGER NOT NULL DEFAULT 0,
			chunk_count INTEGER NOT NULL DEFAULT 0,

			extraction_method TEXT,
			llm_available INTEGER NOT NULL DEFAULT 0,

			uploaded_at TEXT NOT NULL,
			processed_at TEXT
		)`,
		// content_id is deliberately NOT unique: duplicate detection is
		// advisory and near-duplicate preprints are legitimate.
		`CREATE INDEX IF NOT EXISTS idx_documents_content_id ON documents (content_id)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_uploaded_at ON documents (uploaded_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS embeddings (
			doc_id TEXT PRIMARY KEY,
			vector %s NOT NULL
		)`, s.blobType()),
		`CREATE TABLE IF NOT EXISTS quality_assessments (
			doc_id TEXT PRIMARY KEY,
			text_clarity TEXT,
			layout_complexity TEXT,
			image_quality TEXT,
			language_mix TEXT,
			overall_quality TEXT,
			confidence_score REAL,
			recommendations TEXT,
			service_available INTEGER NOT NULL DEFAULT 0,
			assessed_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS processing_log (
			id INTEGER PRIMARY KEY,
			doc_id TEXT NOT NULL,
			step TEXT NOT NULL,
			status TEXT NOT NULL,
			message TEXT,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			timestamp TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_processing_log_doc_id ON processing_log (doc_id)`,
	}
	for _, stmt := range stmts {
		if s.dialect == DialectPostgres {
			stmt = strings.Replace(stmt, "id INTEGER PRIMARY KEY", "id BIGSERIAL PRIMARY KEY", 1)
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			s.logger.Error("schema init failed", "error", err)
			return common.WrapError(err, "init schema")
		}
	}
	return nil
}

const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
