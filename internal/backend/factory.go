package backend

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"

	"expensetracker/internal/amqp"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	return &DefaultFactory{
		logger: applog.OrDefault(logger, applog.ComponentBackend),
	}
}

// CreateBackend opens the store, brings its schema up to date and wires the
// ledger. A failing broker is logged and skipped.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	db, err := f.openStore(ctx, config)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate %s store: %w", config.Type, err)
	}
	f.logger.InfoContext(ctx, "Schema up to date",
		applog.FieldDriver, config.Type.String(),
		applog.FieldOperation, applog.OpMigrate)

	repo, err := storage.NewRepository(ctx, db, f.logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize repository: %w", err)
	}

	var (
		amqpClient *amqp.Client
		publisher  services.Publisher
	)
	if config.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue, f.logger)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without change events",
				applog.FieldError, err)
			amqpClient = nil
		} else {
			publisher = amqpClient
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	ledger := services.NewLedger(repo, publisher, f.logger)

	f.logger.InfoContext(ctx, "Initialized backend",
		applog.FieldDriver, config.Type.String(),
		"amqp_enabled", amqpClient != nil)

	return &BackendResult{
		Ledger:  ledger,
		Ready:   db.Ping,
		Cleanup: closeAll(db, amqpClient),
	}, nil
}

func (f *DefaultFactory) openStore(ctx context.Context, config Config) (*storage.DB, error) {
	switch config.Type {
	case SQLiteBackend:
		db, err := storage.OpenSQLite(ctx, config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("open sqlite store: %w", err)
		}
		return db, nil
	case PostgresBackend:
		db, err := storage.OpenPostgres(ctx, config.ConnectionString)
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func closeAll(db *storage.DB, amqpClient *amqp.Client) CleanupFunc {
	return func() error {
		var result *multierror.Error
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("amqp: %w", err))
			}
		}
		if db != nil {
			if err := db.Close(); err != nil {
				result = multierror.Append(result, fmt.Errorf("store: %w", err))
			}
		}
		return result.ErrorOrNil()
	}
}
