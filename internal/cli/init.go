// Package cli provides common initialization utilities shared by
// cmd/budget and cmd/budget-worker.
package cli

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"budget/internal/config"
	"budget/internal/storage"
)

// SetupLogger initializes structured logging with default settings and
// sets it as the default logger.
func SetupLogger() *slog.Logger {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Exits the process on validation failure.
func LoadAndValidateConfig(logger *slog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitSQLite runs migrations and opens a SQLite repository.
// Exits the process on failure.
func InitSQLite(logger *slog.Logger, dbPath string) *storage.SQLiteRepository {
	if err := storage.RunMigrations(dbPath); err != nil {
		logger.Error("Failed to run migrations", "error", err, "path", dbPath)
		os.Exit(1)
	}
	repo, err := storage.OpenSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

