package common

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Storage  StorageConfig
	OCR      OCRConfig
	Ollama   OllamaConfig
	Pipeline PipelineConfig
}

// DatabaseConfig holds document-store configuration. DSN selects the
// backend: postgres:// URLs go through pgx, anything else is a SQLite path.
type DatabaseConfig struct {
	DSN             string
	MaxConns        int
	ConnMaxLifetime time.Duration
	DialTimeout     time.Duration
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Addr string
}

// StorageConfig holds file-storage configuration
type StorageConfig struct {
	DataDir        string
	MaxUploadBytes int64
}

// OCRConfig holds the external text/OCR engine binaries and knobs
type OCRConfig struct {
	Pdftotext string
	Pdftoppm  string
	OCRmyPDF  string
	Languages string
	DPI       int
	Timeout   time.Duration
}

// OllamaConfig holds the shared Ollama endpoint plus per-capability models.
type OllamaConfig struct {
	BaseURL         string
	EmbedModel      string
	QualityModel    string
	MetadataModel   string
	EmbedTimeout    time.Duration
	QualityTimeout  time.Duration
	MetadataTimeout time.Duration
	ProbeTimeout    time.Duration
}

// PipelineConfig holds chunking parameters for embedding.
type PipelineConfig struct {
	ChunkSize    int
	ChunkOverlap int
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:             getEnv("DB_DSN", "data/papers.db"),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			DialTimeout:     getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
		},
		Server: ServerConfig{
			Addr: getEnv("HTTP_ADDR", ":8000"),
		},
		Storage: StorageConfig{
			DataDir:        getEnv("DATA_DIR", "data"),
			MaxUploadBytes: getEnvAsInt64("MAX_UPLOAD_BYTES", 50<<20),
		},
		OCR: OCRConfig{
			Pdftotext: getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Pdftoppm:  getEnv("PDFTOPPM_BIN", "pdftoppm"),
			OCRmyPDF:  getEnv("OCRMYPDF_BIN", "ocrmypdf"),
			Languages: getEnv("OCR_LANGUAGES", "eng+kor"),
			DPI:       getEnvAsInt("OCR_DPI", 200),
			Timeout:   getEnvAsDuration("OCR_TIMEOUT", 5*time.Minute),
		},
		Ollama: OllamaConfig{
			BaseURL:         getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
			EmbedModel:      getEnv("EMBED_MODEL", "bge-m3"),
			QualityModel:    getEnv("QUALITY_MODEL", "llava"),
			MetadataModel:   getEnv("METADATA_MODEL", "llama3.1:latest"),
			EmbedTimeout:    getEnvAsDuration("EMBED_TIMEOUT", 60*time.Second),
			QualityTimeout:  getEnvAsDuration("QUALITY_TIMEOUT", 60*time.Second),
			MetadataTimeout: getEnvAsDuration("METADATA_TIMEOUT", 120*time.Second),
			ProbeTimeout:    getEnvAsDuration("OLLAMA_PROBE_TIMEOUT", 5*time.Second),
		},
		Pipeline: PipelineConfig{
			ChunkSize:    getEnvAsInt("CHUNK_SIZE", 512),
			ChunkOverlap: getEnvAsInt("CHUNK_OVERLAP", 50),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError("CONFIG_ERROR", "DB_DSN is required", ErrInvalidInput)
	}
	if c.Storage.DataDir == "" {
		return NewAppError("CONFIG_ERROR", "DATA_DIR is required", ErrInvalidInput)
	}
	if c.Server.Addr == "" {
		return NewAppError("CONFIG_ERROR", "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Pipeline.ChunkSize <= 0 || c.Pipeline.ChunkOverlap < 0 || c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return NewAppError("CONFIG_ERROR", "invalid chunking parameters", ErrInvalidInput)
	}
	return nil
}
