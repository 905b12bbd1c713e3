package storage

import (
	"context"
	"database/sql"
)

const incomeColumns = `id, user_id, day_id, amount_cents, tag, created_at`

func scanIncome(row interface{ Scan(...any) error }) (Income, error) {
	var i Income
	err := row.Scan(&i.ID, &i.UserID, &i.DayID, &i.AmountCents, &i.Tag, &i.CreatedAt)
	return i, err
}

const listDayIncomes = `SELECT ` + incomeColumns + ` FROM incomes WHERE day_id = ? AND user_id = ? ORDER BY id`

func (q *Queries) ListDayIncomes(ctx context.Context, dayID, userID int64) ([]Income, error) {
	rows, err := q.db.QueryContext(ctx, listDayIncomes, dayID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Income
	for rows.Next() {
		i, err := scanIncome(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const insertIncome = `
INSERT INTO incomes (user_id, day_id, amount_cents, tag, created_at)
VALUES (?, ?, ?, ?, ?)
RETURNING ` + incomeColumns

type InsertIncomeParams struct {
	UserID      int64
	DayID       int64
	AmountCents int64
	Tag         string
}

func (q *Queries) InsertIncome(ctx context.Context, arg InsertIncomeParams) (Income, error) {
	return scanIncome(q.db.QueryRowContext(ctx, insertIncome, arg.UserID, arg.DayID, arg.AmountCents, arg.Tag, q.now()))
}

const updateIncome = `UPDATE incomes SET amount_cents = ?, tag = ? WHERE id = ? AND day_id = ?`

// UpdateIncome rewrites amount and tag, keeping id and created_at.
func (q *Queries) UpdateIncome(ctx context.Context, id, dayID, amountCents int64, tag string) error {
	_, err := q.db.ExecContext(ctx, updateIncome, amountCents, tag, id, dayID)
	return err
}

const getUserIncome = `SELECT ` + incomeColumns + ` FROM incomes WHERE id = ? AND user_id = ?`

func (q *Queries) GetUserIncome(ctx context.Context, userID, id int64) (Income, error) {
	return scanIncome(q.db.QueryRowContext(ctx, getUserIncome, id, userID))
}

const deleteIncome = `DELETE FROM incomes WHERE id = ?`

func (q *Queries) DeleteIncome(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteIncome, id)
	return err
}

const expenseColumns = `id, user_id, day_id, amount_cents, tag, is_recurring, recurring_id, created_at`

func scanExpense(row interface{ Scan(...any) error }) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.UserID, &e.DayID, &e.AmountCents, &e.Tag, &e.IsRecurring, &e.RecurringID, &e.CreatedAt)
	return e, err
}

const listDayExpenses = `SELECT ` + expenseColumns + ` FROM expenses WHERE day_id = ? AND user_id = ? ORDER BY id`

func (q *Queries) ListDayExpenses(ctx context.Context, dayID, userID int64) ([]Expense, error) {
	rows, err := q.db.QueryContext(ctx, listDayExpenses, dayID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

const insertExpense = `
INSERT INTO expenses (user_id, day_id, amount_cents, tag, is_recurring, recurring_id, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
RETURNING ` + expenseColumns

type InsertExpenseParams struct {
	UserID      int64
	DayID       int64
	AmountCents int64
	Tag         string
	IsRecurring bool
	RecurringID sql.NullInt64
}

func (q *Queries) InsertExpense(ctx context.Context, arg InsertExpenseParams) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, insertExpense,
		arg.UserID, arg.DayID, arg.AmountCents, arg.Tag, arg.IsRecurring, arg.RecurringID, q.now()))
}

const updateExpense = `
UPDATE expenses SET amount_cents = ?, tag = ?, is_recurring = ?, recurring_id = ?
WHERE id = ? AND day_id = ?`

type UpdateExpenseParams struct {
	ID          int64
	DayID       int64
	AmountCents int64
	Tag         string
	IsRecurring bool
	RecurringID sql.NullInt64
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) error {
	_, err := q.db.ExecContext(ctx, updateExpense,
		arg.AmountCents, arg.Tag, arg.IsRecurring, arg.RecurringID, arg.ID, arg.DayID)
	return err
}

const getUserExpense = `SELECT ` + expenseColumns + ` FROM expenses WHERE id = ? AND user_id = ?`

func (q *Queries) GetUserExpense(ctx context.Context, userID, id int64) (Expense, error) {
	return scanExpense(q.db.QueryRowContext(ctx, getUserExpense, id, userID))
}

const deleteExpense = `DELETE FROM expenses WHERE id = ?`

func (q *Queries) DeleteExpense(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteExpense, id)
	return err
}
