package storage

import (
	"context"
	"strings"
)

const reminderColumns = `id, user_id, date, description, tag, kind, status, created_at, updated_at`

func scanReminder(row interface{ Scan(...any) error }) (Reminder, error) {
	var r Reminder
	err := row.Scan(&r.ID, &r.UserID, &r.Date, &r.Description, &r.Tag, &r.Kind, &r.Status, &r.CreatedAt, &r.UpdatedAt)
	return r, err
}

const insertReminder = `
INSERT INTO reminders (user_id, date, description, tag, kind, status, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
RETURNING ` + reminderColumns

type InsertReminderParams struct {
	UserID      int64
	Date        string
	Description string
	Tag         string
	Kind        string
	Status      string
}

func (q *Queries) InsertReminder(ctx context.Context, arg InsertReminderParams) (Reminder, error) {
	now := q.now()
	return scanReminder(q.db.QueryRowContext(ctx, insertReminder,
		arg.UserID, arg.Date, arg.Description, arg.Tag, arg.Kind, arg.Status, now, now))
}

const getReminder = `SELECT ` + reminderColumns + ` FROM reminders WHERE id = ? AND user_id = ?`

func (q *Queries) GetReminder(ctx context.Context, userID, id int64) (Reminder, error) {
	return scanReminder(q.db.QueryRowContext(ctx, getReminder, id, userID))
}

// ListRemindersParams filters reminders. Empty strings match everything.
type ListRemindersParams struct {
	UserID   int64
	Statuses []string
	Kind     string
	From     string
	To       string // inclusive
}

func (q *Queries) ListReminders(ctx context.Context, arg ListRemindersParams) ([]Reminder, error) {
	var sb strings.Builder
	sb.WriteString(`SELECT ` + reminderColumns + ` FROM reminders WHERE user_id = ?`)
	args := []any{arg.UserID}
	if len(arg.Statuses) > 0 {
		sb.WriteString(` AND status IN (?` + strings.Repeat(`, ?`, len(arg.Statuses)-1) + `)`)
		for _, s := range arg.Statuses {
			args = append(args, s)
		}
	}
	if arg.Kind != "" {
		sb.WriteString(` AND kind = ?`)
		args = append(args, arg.Kind)
	}
	if arg.From != "" {
		sb.WriteString(` AND date >= ?`)
		args = append(args, arg.From)
	}
	if arg.To != "" {
		sb.WriteString(` AND date <= ?`)
		args = append(args, arg.To)
	}
	sb.WriteString(` ORDER BY date ASC, id ASC`)

	rows, err := q.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Reminder
	for rows.Next() {
		r, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const updateReminder = `
UPDATE reminders
SET date = ?, description = ?, tag = ?, kind = ?, status = ?, updated_at = ?
WHERE id = ? AND user_id = ?
RETURNING ` + reminderColumns

type UpdateReminderParams struct {
	UserID      int64
	ID          int64
	Date        string
	Description string
	Tag         string
	Kind        string
	Status      string
}

func (q *Queries) UpdateReminder(ctx context.Context, arg UpdateReminderParams) (Reminder, error) {
	return scanReminder(q.db.QueryRowContext(ctx, updateReminder,
		arg.Date, arg.Description, arg.Tag, arg.Kind, arg.Status, q.now(), arg.ID, arg.UserID))
}

const setReminderStatus = `
UPDATE reminders SET status = ?, updated_at = ?
WHERE id = ? AND user_id = ?
RETURNING ` + reminderColumns

func (q *Queries) SetReminderStatus(ctx context.Context, userID, id int64, status string) (Reminder, error) {
	return scanReminder(q.db.QueryRowContext(ctx, setReminderStatus, status, q.now(), id, userID))
}

const deleteReminder = `DELETE FROM reminders WHERE id = ? AND user_id = ?`

func (q *Queries) DeleteReminder(ctx context.Context, userID, id int64) (int64, error) {
	res, err := q.db.ExecContext(ctx, deleteReminder, id, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const markRemindersOverdue = `
UPDATE reminders SET status = 'overdue', updated_at = ?
WHERE status = 'pending' AND date < ?`

// MarkRemindersOverdue flips pending reminders dated before today, for all users.
func (q *Queries) MarkRemindersOverdue(ctx context.Context, today string) (int64, error) {
	res, err := q.db.ExecContext(ctx, markRemindersOverdue, q.now(), today)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const reopenReminders = `
UPDATE reminders SET status = 'pending', updated_at = ?
WHERE status = 'overdue' AND date >= ?`

// ReopenReminders moves overdue reminders whose date is today or later back to pending.
func (q *Queries) ReopenReminders(ctx context.Context, today string) (int64, error) {
	res, err := q.db.ExecContext(ctx, reopenReminders, q.now(), today)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
