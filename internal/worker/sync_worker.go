// Package worker applies expense change events to the spreadsheet mirror and
// periodically repairs drift between the store and the mirror.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"expenses/internal/amqp"
	"expenses/internal/core"
	applog "expenses/internal/log"
)

// Mirror is the destination kept in step with the store.
type Mirror interface {
	Upsert(ctx context.Context, e core.Expense) (int, error)
	Remove(ctx context.Context, id string) (bool, error)
	ReadAll(ctx context.Context) ([]core.Expense, error)
	Replace(ctx context.Context, expenses []core.Expense) error
}

// SyncWorker turns change events into mirror writes.
type SyncWorker struct {
	mirror Mirror
	logger *slog.Logger
}

func NewSyncWorker(mirror Mirror) *SyncWorker {
	return &SyncWorker{
		mirror: mirror,
		logger: slog.Default().With(applog.FieldComponent, applog.ComponentWorker),
	}
}

// HandleEvent applies one event. Returning an error asks the broker to
// redeliver it.
func (w *SyncWorker) HandleEvent(ctx context.Context, ev amqp.ExpenseEvent) error {
	logger := w.logger.With(
		applog.FieldEventType, string(ev.Type),
		applog.FieldExpenseID, ev.ID)

	switch ev.Type {
	case amqp.EventCreated, amqp.EventUpdated:
		if ev.Expense == nil {
			logger.WarnContext(ctx, "Dropping event without expense record")
			return nil
		}
		row, err := w.mirror.Upsert(ctx, *ev.Expense)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to mirror expense", applog.FieldError, err.Error())
			return fmt.Errorf("mirror expense %s: %w", ev.ID, err)
		}
		logger.InfoContext(ctx, "Mirrored expense", applog.FieldSheetRow, row)

	case amqp.EventDeleted:
		removed, err := w.mirror.Remove(ctx, ev.ID)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to remove mirrored expense", applog.FieldError, err.Error())
			return fmt.Errorf("remove expense %s: %w", ev.ID, err)
		}
		if !removed {
			logger.DebugContext(ctx, "Deleted expense was not mirrored")
			return nil
		}
		logger.InfoContext(ctx, "Removed mirrored expense")

	default:
		logger.WarnContext(ctx, "Ignoring unknown event type")
	}
	return nil
}
