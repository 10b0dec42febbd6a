// dbhealth verifies that the document store is reachable and the schema
// can be applied. Exits 0 on success, 1 on failure.
package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"paperalchemist/internal/common"
	"paperalchemist/internal/repository"
)

func main() {
	_ = godotenv.Load()
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	store, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("document store unreachable", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	if err := store.HealthCheck(ctx, 5*time.Second); err != nil {
		logger.Error("health check failed", "error", err)
		os.Exit(1)
	}
	logger.Info("document store healthy", "dsn", cfg.Database.DSN)
}
