// Package cli holds the start-up steps shared by cmd/events and
// cmd/events-worker.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"eventboard/internal/backend"
	"eventboard/internal/config"
	"eventboard/internal/log"
)

// SetupLogger builds the process logger at level and makes it the slog
// default.
func SetupLogger(level string) *log.Logger {
	logger := log.New(log.Config{
		Level:     log.ParseLevel(level),
		Component: log.ComponentApp,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads .env for local development. A missing file is fine.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and exits the process when it is
// invalid. Configuration is the only fatal start-up path.
func LoadAndValidateConfig(logger *log.Logger, extra ...func(*config.Config) error) *config.Config {
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Configuration load failed", log.FieldError, err)
		os.Exit(1)
	}
	checks := append([]func(*config.Config) error{(*config.Config).Validate}, extra...)
	for _, check := range checks {
		if err := check(cfg); err != nil {
			logger.Error("Configuration validation failed", log.FieldError, err)
			os.Exit(1)
		}
	}
	return cfg
}

// OpenStorage opens the configured backend.
func OpenStorage(ctx context.Context, cfg *config.Config, logger *log.Logger) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, bc)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}
	return res, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
