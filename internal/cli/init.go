// Package cli provides common CLI initialization utilities.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"khoroch/internal/app"
	"khoroch/internal/config"
	"khoroch/internal/log"
)

// SetupLogger builds a text logger at level and sets it as the default.
// An unknown level falls back to info with a warning.
func SetupLogger(level string, out io.Writer) *log.Logger {
	lvl, err := log.ParseLevel(level)
	cfg := log.DefaultConfig()
	cfg.Level = lvl
	cfg.Component = log.ComponentCLI
	if out != nil {
		cfg.Output = out
	}
	logger := log.New(cfg)
	log.SetDefault(logger)
	if err != nil {
		logger.Warn("Unknown log level, using info", log.FieldError, err)
	}
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile(paths ...string) {
	_ = godotenv.Load(paths...)
}

// LoadAndValidateConfig loads configuration and validates it.
func LoadAndValidateConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// InitApp builds the data layer from cfg.
func InitApp(ctx context.Context, logger *log.Logger, cfg *config.Config) (*app.App, error) {
	opts, err := app.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	a, err := app.New(ctx, opts, logger)
	if err != nil {
		logger.Error("Failed to initialize data layer",
			log.FieldError, err,
			log.FieldDBPath, cfg.SQLiteDBPath)
		return nil, err
	}
	return a, nil
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM, carrying
// logger for the stores.
func SignalContext(logger *log.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	return log.WithLogger(ctx, logger), stop
}

// Fatal logs err and exits with status 1.
func Fatal(logger *log.Logger, msg string, err error) {
	logger.Error(msg, log.FieldError, err)
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
