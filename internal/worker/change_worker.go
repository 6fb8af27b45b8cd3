package worker

import (
	"context"
	"fmt"

	"expensetracker/internal/amqp"
	applog "expensetracker/internal/log"
)

// Reloader reloads the list that holds one entity kind.
type Reloader interface {
	Reload(ctx context.Context, entity string) error
}

// ChangeWorker keeps a read-side ledger in step with writes made by other
// processes, reloading the affected list for every change event.
type ChangeWorker struct {
	views  Reloader
	logger *applog.Logger
}

func NewChangeWorker(views Reloader, logger *applog.Logger) *ChangeWorker {
	return &ChangeWorker{
		views:  views,
		logger: applog.OrDefault(logger, applog.ComponentWorker),
	}
}

// HandleChange processes a single change event from AMQP. A returned error
// makes the consumer requeue the event.
func (w *ChangeWorker) HandleChange(ctx context.Context, event amqp.ChangeEvent) error {
	w.logger.InfoContext(ctx, "Processing change event",
		"event_id", event.ID,
		applog.FieldEntity, event.Entity,
		applog.FieldOperation, event.Op,
		applog.FieldID, event.RecordID)

	if err := w.views.Reload(ctx, event.Entity); err != nil {
		return fmt.Errorf("reload %s list: %w", event.Entity, err)
	}

	w.logger.DebugContext(ctx, "Reloaded after change event",
		"event_id", event.ID,
		applog.FieldEntity, event.Entity)
	return nil
}
