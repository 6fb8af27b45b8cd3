// Package cli provides the initialization steps shared by the commands.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"expensetracker/internal/config"
	applog "expensetracker/internal/log"
)

// SetupLogger builds the application logger from cfg and makes it the
// slog default.
func SetupLogger(cfg *config.Config) *applog.Logger {
	logger := applog.New(cfg.LoggerConfig())
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		// the configured logger does not exist yet
		applog.New(applog.DefaultConfig()).Error("Configuration validation failed", applog.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM.
func SignalContext(logger *applog.Logger) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("Shutdown requested", applog.FieldOperation, applog.OpShutdown)
	}()
	return ctx, stop
}
