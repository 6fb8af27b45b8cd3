package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"expensetracker/internal/amqp"
	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	applog "expensetracker/internal/log"
	"expensetracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg).WithComponent(applog.ComponentWorker)

	ctx, stop := cli.SignalContext(logger)
	err := run(ctx, cfg, logger)
	stop()

	if err != nil {
		logger.Error("Expense worker stopped with error", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped gracefully", applog.FieldOperation, applog.OpShutdown)
}

// run consumes change events until ctx is done. Everything it opens is
// closed before it returns.
func run(ctx context.Context, cfg *config.Config, logger *applog.Logger) (err error) {
	if cfg.AMQPURL == "" {
		return errors.New("AMQP_URL is required to consume change events")
	}

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return fmt.Errorf("invalid backend configuration: %w", err)
	}
	// The worker only reads, so its ledger publishes nothing.
	backendConfig.AMQPURL = ""

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

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return fmt.Errorf("initialize AMQP client: %w", err)
	}
	defer amqpClient.Close()

	if err := result.Ledger.Refresh(ctx); err != nil {
		return fmt.Errorf("initial load: %w", err)
	}

	changeWorker := worker.NewChangeWorker(result.Ledger, logger)

	logger.Info("Starting expense worker",
		"queue", cfg.AMQPQueue,
		applog.FieldOperation, applog.OpStartup)
	if err := amqpClient.ConsumeChanges(ctx, changeWorker.HandleChange); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("consume changes: %w", err)
	}
	return nil
}
