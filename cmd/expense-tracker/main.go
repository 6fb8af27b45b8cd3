package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	apphttp "expensetracker/internal/http"
	applog "expensetracker/internal/log"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg).WithComponent(applog.ComponentApp)

	ctx, stop := cli.SignalContext(logger)
	err := run(ctx, cfg, logger)
	stop()

	if err != nil {
		logger.Error("Expense tracker stopped with error", applog.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}

// run serves until ctx is done. The backend is cleaned up before it returns.
func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) (err error) {
	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid backend configuration: %w", err)
	}

	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		return fmt.Errorf("initialize %s backend: %w", cfg.DBDriver, err)
	}
	defer func() {
		if cerr := result.Cleanup(); cerr != nil {
			logger.Error("Cleanup failed", applog.FieldError, cerr)
			if err == nil {
				err = fmt.Errorf("cleanup: %w", cerr)
			}
		}
	}()

	// An empty store loads as two empty lists; a failure here means the
	// store is unreadable.
	if err := result.Ledger.Refresh(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	srv := apphttp.NewServer(":"+cfg.Port, result.Ledger, apphttp.ReadyFunc(result.Ready), logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting expense tracker server",
			"port", cfg.Port,
			applog.FieldDriver, cfg.DBDriver,
			applog.FieldOperation, applog.OpStartup)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
