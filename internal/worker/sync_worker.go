package worker

import (
	"context"
	"errors"
	"fmt"

	"contabilidad/internal/amqp"
	"contabilidad/internal/core"
	"contabilidad/internal/log"
	"contabilidad/internal/sheets"
)

// DayLoader reads the committed state of a day.
type DayLoader interface {
	GetDay(ctx context.Context, userID int64, date core.Date) (*core.Day, error)
}

// SyncWorker mirrors day summaries into the export target. Messages only
// name the day; the row always reflects what is in the database when the
// message is handled, so redelivered or reordered messages converge.
type SyncWorker struct {
	days   DayLoader
	target sheets.DayWriter
}

func NewSyncWorker(days DayLoader, target sheets.DayWriter) *SyncWorker {
	return &SyncWorker{days: days, target: target}
}

// HandleDayChanged processes a single day change message from AMQP.
func (w *SyncWorker) HandleDayChanged(ctx context.Context, msg *amqp.DayChangedMessage) error {
	ev := msg.Event()
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)
	logger.InfoContext(ctx, "Processing day change",
		log.FieldUserID, ev.UserID, log.FieldDate, msg.Date, "action", msg.Action)

	return w.SyncDay(ctx, ev.UserID, ev.Date)
}

// SyncDay writes the day's row, or removes it when the day no longer exists.
func (w *SyncWorker) SyncDay(ctx context.Context, userID int64, date core.Date) error {
	logger := log.FromContext(ctx).WithComponent(log.ComponentWorker)

	day, err := w.days.GetDay(ctx, userID, date)
	if errors.Is(err, core.ErrNotFound) {
		if err := w.target.RemoveDay(ctx, userID, date); err != nil {
			return fmt.Errorf("remove day row: %w", err)
		}
		logger.InfoContext(ctx, "Removed day row", log.FieldUserID, userID, log.FieldDate, date.String())
		return nil
	}
	if err != nil {
		return fmt.Errorf("load day: %w", err)
	}

	row := sheets.NewDayRow(userID, day)
	if err := w.target.UpsertDay(ctx, row); err != nil {
		return fmt.Errorf("write day row: %w", err)
	}
	logger.InfoContext(ctx, "Synced day row",
		log.FieldUserID, userID, log.FieldDate, date.String(),
		"income_cents", row.IncomeTotal.Cents, "expense_cents", row.ExpenseTotal.Cents)
	return nil
}
