package storage

import "context"

const dayColumns = `id, user_id, date, income_total_cents, created_at, updated_at`

func scanDay(row interface{ Scan(...any) error }) (Day, error) {
	var d Day
	err := row.Scan(&d.ID, &d.UserID, &d.Date, &d.IncomeTotalCents, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

const getDayByDate = `SELECT ` + dayColumns + ` FROM days WHERE user_id = ? AND date = ?`

func (q *Queries) GetDayByDate(ctx context.Context, userID int64, date string) (Day, error) {
	return scanDay(q.db.QueryRowContext(ctx, getDayByDate, userID, date))
}

const getDay = `SELECT ` + dayColumns + ` FROM days WHERE id = ?`

func (q *Queries) GetDay(ctx context.Context, id int64) (Day, error) {
	return scanDay(q.db.QueryRowContext(ctx, getDay, id))
}

const insertDay = `
INSERT INTO days (user_id, date, income_total_cents, created_at, updated_at)
VALUES (?, ?, 0, ?, ?)
RETURNING ` + dayColumns

// InsertDay fails with a unique violation when the (user, date) row exists.
func (q *Queries) InsertDay(ctx context.Context, userID int64, date string) (Day, error) {
	now := q.now()
	return scanDay(q.db.QueryRowContext(ctx, insertDay, userID, date, now, now))
}

const setDayIncomeTotal = `UPDATE days SET income_total_cents = ?, updated_at = ? WHERE id = ?`

func (q *Queries) SetDayIncomeTotal(ctx context.Context, id, totalCents int64) error {
	_, err := q.db.ExecContext(ctx, setDayIncomeTotal, totalCents, q.now(), id)
	return err
}

const deleteDay = `DELETE FROM days WHERE id = ?`

// DeleteDay removes the day; its incomes and expenses cascade.
func (q *Queries) DeleteDay(ctx context.Context, id int64) error {
	_, err := q.db.ExecContext(ctx, deleteDay, id)
	return err
}

const countDayChildren = `
SELECT
    (SELECT COUNT(*) FROM incomes WHERE day_id = ?1),
    (SELECT COUNT(*) FROM expenses WHERE day_id = ?1)`

func (q *Queries) CountDayChildren(ctx context.Context, dayID int64) (incomes, expenses int64, err error) {
	err = q.db.QueryRowContext(ctx, countDayChildren, dayID).Scan(&incomes, &expenses)
	return incomes, expenses, err
}

const sumDayIncomes = `SELECT COALESCE(SUM(amount_cents), 0) FROM incomes WHERE day_id = ?`

func (q *Queries) SumDayIncomes(ctx context.Context, dayID int64) (int64, error) {
	var total int64
	err := q.db.QueryRowContext(ctx, sumDayIncomes, dayID).Scan(&total)
	return total, err
}

const daySummaryColumns = `
    d.id, d.date, d.income_total_cents,
    COALESCE((SELECT SUM(e.amount_cents) FROM expenses e WHERE e.day_id = d.id), 0),
    (SELECT COUNT(*) FROM incomes i WHERE i.day_id = d.id),
    (SELECT COUNT(*) FROM expenses e WHERE e.day_id = d.id)`

func (q *Queries) listDaySummaries(ctx context.Context, query string, args ...any) ([]DaySummaryRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []DaySummaryRow
	for rows.Next() {
		var r DaySummaryRow
		if err := rows.Scan(&r.ID, &r.Date, &r.IncomeTotalCents, &r.ExpenseTotalCents, &r.IncomeCount, &r.ExpenseCount); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const listRecentDays = `
SELECT` + daySummaryColumns + `
FROM days d
WHERE d.user_id = ? AND d.date <= ?
ORDER BY d.date DESC
LIMIT ?`

// ListRecentDays returns up to limit days on or before the reference date, newest first.
func (q *Queries) ListRecentDays(ctx context.Context, userID int64, before string, limit int) ([]DaySummaryRow, error) {
	return q.listDaySummaries(ctx, listRecentDays, userID, before, limit)
}

const listAllDays = `
SELECT` + daySummaryColumns + `
FROM days d
WHERE d.user_id = ?
ORDER BY d.date DESC
LIMIT ?`

func (q *Queries) ListAllDays(ctx context.Context, userID int64, limit int) ([]DaySummaryRow, error) {
	return q.listDaySummaries(ctx, listAllDays, userID, limit)
}

const listDaysInRange = `
SELECT` + daySummaryColumns + `
FROM days d
WHERE d.user_id = ? AND d.date >= ? AND d.date < ?
ORDER BY d.date ASC`

// ListDaysInRange returns days in [from, to), oldest first.
func (q *Queries) ListDaysInRange(ctx context.Context, userID int64, from, to string) ([]DaySummaryRow, error) {
	return q.listDaySummaries(ctx, listDaysInRange, userID, from, to)
}

const getDaySummary = `
SELECT` + daySummaryColumns + `
FROM days d
WHERE d.user_id = ? AND d.date = ?`

func (q *Queries) GetDaySummary(ctx context.Context, userID int64, date string) (DaySummaryRow, error) {
	var r DaySummaryRow
	err := q.db.QueryRowContext(ctx, getDaySummary, userID, date).
		Scan(&r.ID, &r.Date, &r.IncomeTotalCents, &r.ExpenseTotalCents, &r.IncomeCount, &r.ExpenseCount)
	return r, err
}
