package storage

import "context"

const streamIncomeMatches = `
SELECT i.id, i.day_id, d.date, i.tag, i.amount_cents, d.income_total_cents
FROM incomes i
JOIN days d ON d.id = i.day_id
WHERE i.user_id = ?
ORDER BY d.date DESC, i.id DESC`

const streamExpenseMatches = `
SELECT e.id, e.day_id, d.date, e.tag, e.amount_cents, d.income_total_cents
FROM expenses e
JOIN days d ON d.id = e.day_id
WHERE e.user_id = ?
ORDER BY d.date DESC, e.id DESC`

// ScanTagRows walks the user's income or expense rows newest first, calling
// keep for each one until it returns false.
func (q *Queries) ScanTagRows(ctx context.Context, userID int64, incomes bool, keep func(TagMatchRow) bool) error {
	query := streamExpenseMatches
	if incomes {
		query = streamIncomeMatches
	}
	rows, err := q.db.QueryContext(ctx, query, userID)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var r TagMatchRow
		if err := rows.Scan(&r.ID, &r.DayID, &r.Date, &r.Tag, &r.AmountCents, &r.DayIncomeTotalCents); err != nil {
			return err
		}
		if !keep(r) {
			break
		}
	}
	return rows.Err()
}

const incomeTagTotals = `
SELECT i.tag, SUM(i.amount_cents) AS total, COUNT(*) AS n
FROM incomes i
JOIN days d ON d.id = i.day_id
WHERE i.user_id = ? AND d.date >= ? AND d.date < ?
GROUP BY i.tag
ORDER BY total DESC, i.tag ASC
LIMIT ?`

const expenseTagTotals = `
SELECT e.tag, SUM(e.amount_cents) AS total, COUNT(*) AS n
FROM expenses e
JOIN days d ON d.id = e.day_id
WHERE e.user_id = ? AND d.date >= ? AND d.date < ?
GROUP BY e.tag
ORDER BY total DESC, e.tag ASC
LIMIT ?`

// TagTotals groups one category's rows in [from, to) by tag, summing that
// category's own amount column.
func (q *Queries) TagTotals(ctx context.Context, userID int64, incomes bool, from, to string, limit int) ([]TagTotalRow, error) {
	query := expenseTagTotals
	if incomes {
		query = incomeTagTotals
	}
	rows, err := q.db.QueryContext(ctx, query, userID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []TagTotalRow
	for rows.Next() {
		var r TagTotalRow
		if err := rows.Scan(&r.Tag, &r.TotalCents, &r.Count); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

const monthTotals = `
SELECT
    CAST(substr(d.date, 6, 2) AS INTEGER) AS month,
    SUM(d.income_total_cents),
    SUM(COALESCE((SELECT SUM(e.amount_cents) FROM expenses e WHERE e.day_id = d.id), 0))
FROM days d
WHERE d.user_id = ? AND d.date >= ? AND d.date < ?
GROUP BY month
ORDER BY month`

func (q *Queries) MonthTotals(ctx context.Context, userID int64, from, to string) ([]MonthTotalRow, error) {
	rows, err := q.db.QueryContext(ctx, monthTotals, userID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MonthTotalRow
	for rows.Next() {
		var r MonthTotalRow
		if err := rows.Scan(&r.Month, &r.IncomeTotalCents, &r.ExpenseTotalCents); err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}
