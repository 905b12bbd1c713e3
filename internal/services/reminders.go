package services

import (
	"context"
	"fmt"

	"contabilidad/internal/core"
	"contabilidad/internal/log"
	"contabilidad/internal/storage"
)

// ReminderService runs the reminder lifecycle. Open reminders are pending or
// overdue depending on their date; converting one writes a ledger entry.
type ReminderService struct {
	store  Store
	ledger *LedgerService
	today  func() core.Date
}

func NewReminderService(store Store, ledger *LedgerService) *ReminderService {
	return &ReminderService{store: store, ledger: ledger, today: core.Today}
}

func (s *ReminderService) Create(ctx context.Context, userID int64, in core.ReminderInput) (core.Reminder, error) {
	if err := in.Normalize(); err != nil {
		return core.Reminder{}, err
	}
	row, err := s.store.Queries().InsertReminder(ctx, storage.InsertReminderParams{
		UserID:      userID,
		Date:        in.Date.String(),
		Description: in.Description,
		Tag:         in.Tag,
		Kind:        string(in.Kind),
		Status:      string(core.OpenStatusFor(in.Date, s.today())),
	})
	if err != nil {
		return core.Reminder{}, fmt.Errorf("create reminder: %w", err)
	}
	log.FromContext(ctx).WithComponent(log.ComponentReminders).InfoContext(ctx, "Reminder created",
		log.FieldUserID, userID, log.FieldReminderID, row.ID, log.FieldDate, row.Date)
	return reminderFromRow(row)
}

func (s *ReminderService) Get(ctx context.Context, userID, id int64) (core.Reminder, error) {
	row, err := s.store.Queries().GetReminder(ctx, userID, id)
	if err != nil {
		return core.Reminder{}, notFound(err)
	}
	return reminderFromRow(row)
}

// List returns the user's reminders matching f, by date.
func (s *ReminderService) List(ctx context.Context, userID int64, f core.ReminderFilter) ([]core.Reminder, error) {
	arg := storage.ListRemindersParams{UserID: userID}
	if f.Status != nil {
		arg.Statuses = []string{string(*f.Status)}
	}
	if f.Kind != nil {
		arg.Kind = string(*f.Kind)
	}
	if f.From != nil {
		arg.From = f.From.String()
	}
	if f.To != nil {
		arg.To = f.To.String()
	}
	return s.list(ctx, arg)
}

func (s *ReminderService) ListByDate(ctx context.Context, userID int64, date core.Date) ([]core.Reminder, error) {
	d := date.String()
	return s.list(ctx, storage.ListRemindersParams{UserID: userID, From: d, To: d})
}

// Pending returns open reminders, overdue ones included.
func (s *ReminderService) Pending(ctx context.Context, userID int64) ([]core.Reminder, error) {
	return s.list(ctx, storage.ListRemindersParams{
		UserID:   userID,
		Statuses: []string{string(core.StatusPending), string(core.StatusOverdue)},
	})
}

func (s *ReminderService) list(ctx context.Context, arg storage.ListRemindersParams) ([]core.Reminder, error) {
	rows, err := s.store.Queries().ListReminders(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("list reminders: %w", err)
	}
	out := make([]core.Reminder, 0, len(rows))
	for _, r := range rows {
		rem, err := reminderFromRow(r)
		if err != nil {
			return nil, err
		}
		out = append(out, rem)
	}
	return out, nil
}

// Update edits an open reminder. Moving its date recomputes pending/overdue.
func (s *ReminderService) Update(ctx context.Context, userID, id int64, in core.ReminderInput) (core.Reminder, error) {
	if err := in.Normalize(); err != nil {
		return core.Reminder{}, err
	}
	var row storage.Reminder
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		cur, err := q.GetReminder(ctx, userID, id)
		if err != nil {
			return notFound(err)
		}
		if core.ReminderStatus(cur.Status).Terminal() {
			return core.Invalid("status", core.ErrInvalidTransition)
		}
		row, err = q.UpdateReminder(ctx, storage.UpdateReminderParams{
			UserID:      userID,
			ID:          id,
			Date:        in.Date.String(),
			Description: in.Description,
			Tag:         in.Tag,
			Kind:        string(in.Kind),
			Status:      string(core.OpenStatusFor(in.Date, s.today())),
		})
		return err
	})
	if err != nil {
		return core.Reminder{}, err
	}
	return reminderFromRow(row)
}

// Cancel closes an open reminder without touching the ledger.
func (s *ReminderService) Cancel(ctx context.Context, userID, id int64) (core.Reminder, error) {
	var row storage.Reminder
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		row, err = transition(ctx, q, userID, id, core.StatusCancelled)
		return err
	})
	if err != nil {
		return core.Reminder{}, err
	}
	return reminderFromRow(row)
}

// Convert writes the reminder as an income or expense on its date and marks
// it converted, atomically.
func (s *ReminderService) Convert(ctx context.Context, userID, id int64, c core.ReminderConversion) (core.Reminder, *core.Day, error) {
	var (
		row   storage.Reminder
		day   *core.Day
		entry core.EntryInput
	)
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		cur, err := q.GetReminder(ctx, userID, id)
		if err != nil {
			return notFound(err)
		}
		r, err := reminderFromRow(cur)
		if err != nil {
			return err
		}
		if !r.Status.CanTransition(core.StatusConverted) {
			return core.Invalid("status", core.ErrInvalidTransition)
		}
		if entry, err = c.Entry(r); err != nil {
			return err
		}
		dayID, err := appendEntry(ctx, q, userID, r.Date, entry)
		if err != nil {
			return err
		}
		if row, err = q.SetReminderStatus(ctx, userID, id, string(core.StatusConverted)); err != nil {
			return err
		}
		day, err = loadDay(ctx, q, userID, dayID)
		return err
	})
	if err != nil {
		return core.Reminder{}, nil, err
	}

	converted, err := reminderFromRow(row)
	if err != nil {
		return core.Reminder{}, nil, err
	}
	if s.ledger != nil {
		s.ledger.notify(ctx, core.DayChanged{UserID: userID, Date: converted.Date, Action: core.DayUpserted})
	}
	log.FromContext(ctx).WithComponent(log.ComponentReminders).InfoContext(ctx, "Reminder converted",
		log.NewFields().WithDay(userID, converted.Date).WithEntry(entry.Category, entry.Tag, entry.Amount).
			WithOperation(log.OpConvert).Add(log.FieldReminderID, id).ToSlice()...)
	return converted, day, nil
}

func (s *ReminderService) Delete(ctx context.Context, userID, id int64) error {
	n, err := s.store.Queries().DeleteReminder(ctx, userID, id)
	if err != nil {
		return fmt.Errorf("delete reminder: %w", err)
	}
	if n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// RefreshOverdue moves open reminders between pending and overdue for every
// user, relative to today.
func (s *ReminderService) RefreshOverdue(ctx context.Context, today core.Date) (marked, reopened int64, err error) {
	err = s.store.WithTx(ctx, func(q *storage.Queries) error {
		var err error
		if marked, err = q.MarkRemindersOverdue(ctx, today.String()); err != nil {
			return err
		}
		reopened, err = q.ReopenReminders(ctx, today.String())
		return err
	})
	if err != nil {
		return 0, 0, fmt.Errorf("refresh reminders: %w", err)
	}
	if marked > 0 || reopened > 0 {
		log.FromContext(ctx).WithComponent(log.ComponentReminders).InfoContext(ctx, "Reminder statuses refreshed",
			log.FieldOperation, log.OpRefresh, log.FieldDate, today.String(), "overdue", marked, "reopened", reopened)
	}
	return marked, reopened, nil
}

func transition(ctx context.Context, q *storage.Queries, userID, id int64, to core.ReminderStatus) (storage.Reminder, error) {
	cur, err := q.GetReminder(ctx, userID, id)
	if err != nil {
		return storage.Reminder{}, notFound(err)
	}
	if !core.ReminderStatus(cur.Status).CanTransition(to) {
		return storage.Reminder{}, core.Invalid("status", core.ErrInvalidTransition)
	}
	return q.SetReminderStatus(ctx, userID, id, string(to))
}

func reminderFromRow(r storage.Reminder) (core.Reminder, error) {
	date, err := core.ParseDate(r.Date)
	if err != nil {
		return core.Reminder{}, fmt.Errorf("stored reminder %d: %w", r.ID, err)
	}
	return core.Reminder{
		ID:          r.ID,
		Date:        date,
		Description: r.Description,
		Tag:         r.Tag,
		Kind:        core.ReminderKind(r.Kind),
		Status:      core.ReminderStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}
