package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"contabilidad/internal/core"
	"contabilidad/internal/log"
	"contabilidad/internal/storage"
)

const dayInsertSavepoint = "day_insert"

// DayListener is told about every committed day change, before the event is
// published.
type DayListener func(ctx context.Context, ev core.DayChanged)

// LedgerService keeps days, their income and expense rows and the tag catalog
// consistent. Every write runs in one transaction: income_total is recomputed
// from the rows, and a day left without rows is removed.
type LedgerService struct {
	store     Store
	events    EventPublisher
	listeners []DayListener
}

func NewLedgerService(store Store, events EventPublisher) *LedgerService {
	return &LedgerService{store: store, events: events}
}

// OnDayChanged registers fn for committed day changes. Not safe to call
// concurrently with writes.
func (s *LedgerService) OnDayChanged(fn DayListener) {
	s.listeners = append(s.listeners, fn)
}

// UpsertDay makes the day's rows match in exactly. Items whose ID names an
// existing row of that day are updated in place; items without a matching ID
// are inserted; every other existing row is deleted. A nil day is returned
// when the result has no rows, in which case the day does not exist.
func (s *LedgerService) UpsertDay(ctx context.Context, userID int64, in core.DayInput) (*core.Day, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	date := in.Date.String()

	var (
		result  *core.Day
		touched bool
	)
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		day, found, err := findDay(ctx, q, userID, date)
		if err != nil {
			return err
		}
		if in.IsEmpty() {
			if found {
				touched = true
				return q.DeleteDay(ctx, day.ID)
			}
			return nil
		}
		if !found {
			if day, err = createDay(ctx, q, userID, date); err != nil {
				return err
			}
		}
		touched = true

		if err := reconcileIncomes(ctx, q, userID, day.ID, in.Incomes); err != nil {
			return err
		}
		if err := reconcileExpenses(ctx, q, userID, day.ID, in.Expenses); err != nil {
			return err
		}
		if _, err := recomputeDay(ctx, q, day.ID); err != nil {
			return err
		}
		for _, it := range in.Incomes {
			if err := ensureTag(ctx, q, userID, it.Tag, core.CategoryIncome); err != nil {
				return err
			}
		}
		for _, it := range in.Expenses {
			if err := ensureTag(ctx, q, userID, it.Tag, core.CategoryExpense); err != nil {
				return err
			}
		}

		result, err = loadDay(ctx, q, userID, day.ID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("upsert day %s: %w", date, err)
	}

	if touched {
		action := core.DayUpserted
		if result == nil {
			action = core.DayDeleted
		}
		s.notify(ctx, core.DayChanged{UserID: userID, Date: in.Date, Action: action})
	}
	log.FromContext(ctx).WithComponent(log.ComponentLedger).InfoContext(ctx, "Day upserted",
		log.NewFields().WithDay(userID, in.Date).WithOperation(log.OpUpsert).
			Add("incomes", len(in.Incomes)).Add("expenses", len(in.Expenses)).ToSlice()...)
	return result, nil
}

// AddEntry appends one income or expense to the day, creating the day when
// needed. Sibling rows are left alone.
func (s *LedgerService) AddEntry(ctx context.Context, userID int64, date core.Date, in core.EntryInput) (*core.Day, error) {
	if err := date.Validate(); err != nil {
		return nil, core.Invalid("date", err)
	}
	if err := in.Normalize(); err != nil {
		return nil, err
	}

	var result *core.Day
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		dayID, err := appendEntry(ctx, q, userID, date, in)
		if err != nil {
			return err
		}
		result, err = loadDay(ctx, q, userID, dayID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("add %s to %s: %w", in.Category, date, err)
	}

	s.notify(ctx, core.DayChanged{UserID: userID, Date: date, Action: core.DayUpserted})
	log.FromContext(ctx).WithComponent(log.ComponentLedger).InfoContext(ctx, "Entry added",
		log.NewFields().WithDay(userID, date).WithEntry(in.Category, in.Tag, in.Amount).
			WithOperation(log.OpCreate).ToSlice()...)
	return result, nil
}

// DeleteIncome removes one of the user's incomes. It reports false when the
// row does not exist or belongs to someone else.
func (s *LedgerService) DeleteIncome(ctx context.Context, userID, id int64) (bool, error) {
	return s.deleteEntry(ctx, userID, id, core.CategoryIncome)
}

// DeleteExpense is DeleteIncome for expenses.
func (s *LedgerService) DeleteExpense(ctx context.Context, userID, id int64) (bool, error) {
	return s.deleteEntry(ctx, userID, id, core.CategoryExpense)
}

func (s *LedgerService) deleteEntry(ctx context.Context, userID, id int64, category core.Category) (bool, error) {
	var (
		day    storage.Day
		date   core.Date
		pruned bool
	)
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		var dayID int64
		if category == core.CategoryIncome {
			row, err := q.GetUserIncome(ctx, userID, id)
			if err != nil {
				return notFound(err)
			}
			dayID = row.DayID
			err = q.DeleteIncome(ctx, id)
			if err != nil {
				return err
			}
		} else {
			row, err := q.GetUserExpense(ctx, userID, id)
			if err != nil {
				return notFound(err)
			}
			dayID = row.DayID
			err = q.DeleteExpense(ctx, id)
			if err != nil {
				return err
			}
		}

		var err error
		if day, err = q.GetDay(ctx, dayID); err != nil {
			return err
		}
		if date, err = core.ParseDate(day.Date); err != nil {
			return fmt.Errorf("stored day %d: %w", day.ID, err)
		}
		pruned, err = recomputeDay(ctx, q, dayID)
		return err
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("delete %s %d: %w", category, id, err)
	}

	action := core.DayUpserted
	if pruned {
		action = core.DayDeleted
	}
	s.notify(ctx, core.DayChanged{UserID: userID, Date: date, Action: action})

	fields := log.NewFields().WithDay(userID, date).WithOperation(log.OpDelete).
		Add(log.FieldCategory, category).Add("id", id)
	if pruned {
		fields = fields.Add("pruned", true)
	}
	log.FromContext(ctx).WithComponent(log.ComponentLedger).InfoContext(ctx, "Entry deleted", fields.ToSlice()...)
	return true, nil
}

// DeleteDay removes a whole day with all its rows.
func (s *LedgerService) DeleteDay(ctx context.Context, userID int64, date core.Date) (bool, error) {
	var found bool
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		day, ok, err := findDay(ctx, q, userID, date.String())
		if err != nil || !ok {
			return err
		}
		found = true
		return q.DeleteDay(ctx, day.ID)
	})
	if err != nil {
		return false, fmt.Errorf("delete day %s: %w", date, err)
	}
	if found {
		s.notify(ctx, core.DayChanged{UserID: userID, Date: date, Action: core.DayDeleted})
	}
	return found, nil
}

// RecomputeDay rebuilds the cached income total of a day and prunes it when
// it has no rows left.
func (s *LedgerService) RecomputeDay(ctx context.Context, userID int64, date core.Date) error {
	var pruned bool
	err := s.store.WithTx(ctx, func(q *storage.Queries) error {
		day, ok, err := findDay(ctx, q, userID, date.String())
		if err != nil {
			return err
		}
		if !ok {
			return core.ErrNotFound
		}
		pruned, err = recomputeDay(ctx, q, day.ID)
		return err
	})
	if err != nil {
		return err
	}
	action := core.DayUpserted
	if pruned {
		action = core.DayDeleted
	}
	s.notify(ctx, core.DayChanged{UserID: userID, Date: date, Action: action})
	return nil
}

// GetDay returns the day with its rows or core.ErrNotFound.
func (s *LedgerService) GetDay(ctx context.Context, userID int64, date core.Date) (*core.Day, error) {
	q := s.store.Queries()
	day, ok, err := findDay(ctx, q, userID, date.String())
	if err != nil {
		return nil, fmt.Errorf("get day %s: %w", date, err)
	}
	if !ok {
		return nil, core.ErrNotFound
	}
	return loadDay(ctx, q, userID, day.ID)
}

// RecentDays lists up to limit days on or before the reference date, newest first.
func (s *LedgerService) RecentDays(ctx context.Context, userID int64, before core.Date, limit int) ([]core.DaySummary, error) {
	rows, err := s.store.Queries().ListRecentDays(ctx, userID, before.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list recent days: %w", err)
	}
	return daySummaries(rows)
}

// AllDays lists the user's days newest first, capped at limit.
func (s *LedgerService) AllDays(ctx context.Context, userID int64, limit int) ([]core.DaySummary, error) {
	rows, err := s.store.Queries().ListAllDays(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list days: %w", err)
	}
	return daySummaries(rows)
}

// MonthDays returns every day of the month, oldest first, with totals.
func (s *LedgerService) MonthDays(ctx context.Context, userID int64, year, month int) (core.MonthSummary, error) {
	from, to, err := core.MonthRange(year, month)
	if err != nil {
		return core.MonthSummary{}, core.Invalid("month", err)
	}
	rows, err := s.store.Queries().ListDaysInRange(ctx, userID, from.String(), to.String())
	if err != nil {
		return core.MonthSummary{}, fmt.Errorf("list month %d-%02d: %w", year, month, err)
	}
	days, err := daySummaries(rows)
	if err != nil {
		return core.MonthSummary{}, err
	}
	return core.NewMonthSummary(year, month, days), nil
}

// YearSummary returns one entry per month of the year, zero-filled.
func (s *LedgerService) YearSummary(ctx context.Context, userID int64, year int) ([]core.MonthTotals, error) {
	from, _, err := core.MonthRange(year, 1)
	if err != nil {
		return nil, core.Invalid("year", err)
	}
	to := core.DateOf(from.AddDate(1, 0, 0))
	rows, err := s.store.Queries().MonthTotals(ctx, userID, from.String(), to.String())
	if err != nil {
		return nil, fmt.Errorf("year totals %d: %w", year, err)
	}

	months := make([]core.MonthTotals, 12)
	for i := range months {
		months[i].Month = i + 1
	}
	for _, r := range rows {
		if r.Month < 1 || r.Month > 12 {
			continue
		}
		m := &months[r.Month-1]
		m.IncomeTotal = core.Money{Cents: r.IncomeTotalCents}
		m.ExpenseTotal = core.Money{Cents: r.ExpenseTotalCents}
		m.Balance = m.IncomeTotal.Sub(m.ExpenseTotal)
	}
	return months, nil
}

// SearchByTag finds income or expense rows whose tag contains query, ignoring
// case, newest first.
func (s *LedgerService) SearchByTag(ctx context.Context, userID int64, query string, category core.Category, limit int) ([]core.TagMatch, error) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return nil, core.Invalid("query", core.ErrEmptyTag)
	}
	if !category.Valid() {
		return nil, core.Invalid("category", core.ErrInvalidCategory)
	}
	if limit <= 0 {
		return []core.TagMatch{}, nil
	}

	var rowErr error
	matches := make([]core.TagMatch, 0, limit)
	err := s.store.Queries().ScanTagRows(ctx, userID, category == core.CategoryIncome, func(r storage.TagMatchRow) bool {
		if !strings.Contains(strings.ToLower(r.Tag), needle) {
			return true
		}
		date, err := core.ParseDate(r.Date)
		if err != nil {
			rowErr = fmt.Errorf("stored day %d: %w", r.DayID, err)
			return false
		}
		matches = append(matches, core.TagMatch{
			ID:             r.ID,
			DayID:          r.DayID,
			Date:           date,
			Category:       category,
			Tag:            r.Tag,
			Amount:         core.Money{Cents: r.AmountCents},
			DayIncomeTotal: core.Money{Cents: r.DayIncomeTotalCents},
		})
		return len(matches) < limit
	})
	if err == nil {
		err = rowErr
	}
	if err != nil {
		return nil, fmt.Errorf("search tags: %w", err)
	}
	return matches, nil
}

// FrequentTags groups the month's rows of one category by tag, largest total
// first.
func (s *LedgerService) FrequentTags(ctx context.Context, userID int64, year, month int, category core.Category, limit int) ([]core.TagFrequency, error) {
	if !category.Valid() {
		return nil, core.Invalid("category", core.ErrInvalidCategory)
	}
	from, to, err := core.MonthRange(year, month)
	if err != nil {
		return nil, core.Invalid("month", err)
	}
	rows, err := s.store.Queries().TagTotals(ctx, userID, category == core.CategoryIncome, from.String(), to.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("frequent tags: %w", err)
	}
	out := make([]core.TagFrequency, 0, len(rows))
	for _, r := range rows {
		out = append(out, core.TagFrequency{Tag: r.Tag, Total: core.Money{Cents: r.TotalCents}, Count: int(r.Count)})
	}
	return out, nil
}

func (s *LedgerService) notify(ctx context.Context, ev core.DayChanged) {
	for _, fn := range s.listeners {
		fn(ctx, ev)
	}
	if s.events == nil {
		return
	}
	if err := s.events.PublishDayChanged(ctx, ev); err != nil {
		log.LogError(ctx, "Failed to publish day change", err, log.ComponentLedger, log.OpSync,
			log.ErrorTypeNetwork, log.NewFields().WithDay(ev.UserID, ev.Date))
	}
}

func findDay(ctx context.Context, q *storage.Queries, userID int64, date string) (storage.Day, bool, error) {
	day, err := q.GetDayByDate(ctx, userID, date)
	if storage.IsNoRows(err) {
		return storage.Day{}, false, nil
	}
	if err != nil {
		return storage.Day{}, false, err
	}
	return day, true, nil
}

// createDay inserts the (user, date) row. When a concurrent writer created it
// first, the failed insert is rolled back to a savepoint and the winner's row
// is returned instead.
func createDay(ctx context.Context, q *storage.Queries, userID int64, date string) (storage.Day, error) {
	if err := q.Savepoint(ctx, dayInsertSavepoint); err != nil {
		return storage.Day{}, err
	}
	day, err := q.InsertDay(ctx, userID, date)
	if err == nil {
		return day, q.Release(ctx, dayInsertSavepoint)
	}
	if !storage.IsUniqueViolation(err) {
		return storage.Day{}, fmt.Errorf("insert day: %w", err)
	}
	if err := q.RollbackTo(ctx, dayInsertSavepoint); err != nil {
		return storage.Day{}, err
	}
	log.FromContext(ctx).WithComponent(log.ComponentLedger).DebugContext(ctx, "Day insert lost race, reusing existing row",
		log.FieldUserID, userID, log.FieldDate, date)
	return q.GetDayByDate(ctx, userID, date)
}

func reconcileIncomes(ctx context.Context, q *storage.Queries, userID, dayID int64, items []core.IncomeInput) error {
	existing, err := q.ListDayIncomes(ctx, dayID, userID)
	if err != nil {
		return err
	}
	kept := matchIDs(len(existing), func(i int) int64 { return existing[i].ID })

	for _, it := range items {
		if it.ID != nil && kept.claim(*it.ID) {
			if err := q.UpdateIncome(ctx, *it.ID, dayID, it.Amount.Cents, it.Tag); err != nil {
				return fmt.Errorf("update income %d: %w", *it.ID, err)
			}
			continue
		}
		if _, err := q.InsertIncome(ctx, storage.InsertIncomeParams{
			UserID:      userID,
			DayID:       dayID,
			AmountCents: it.Amount.Cents,
			Tag:         it.Tag,
		}); err != nil {
			return fmt.Errorf("insert income: %w", err)
		}
	}

	for _, id := range kept.unclaimed() {
		if err := q.DeleteIncome(ctx, id); err != nil {
			return fmt.Errorf("delete income %d: %w", id, err)
		}
	}
	return nil
}

func reconcileExpenses(ctx context.Context, q *storage.Queries, userID, dayID int64, items []core.ExpenseInput) error {
	existing, err := q.ListDayExpenses(ctx, dayID, userID)
	if err != nil {
		return err
	}
	kept := matchIDs(len(existing), func(i int) int64 { return existing[i].ID })

	for _, it := range items {
		if it.ID != nil && kept.claim(*it.ID) {
			if err := q.UpdateExpense(ctx, storage.UpdateExpenseParams{
				ID:          *it.ID,
				DayID:       dayID,
				AmountCents: it.Amount.Cents,
				Tag:         it.Tag,
				IsRecurring: it.IsRecurring,
				RecurringID: nullInt64(it.RecurringID),
			}); err != nil {
				return fmt.Errorf("update expense %d: %w", *it.ID, err)
			}
			continue
		}
		if _, err := q.InsertExpense(ctx, storage.InsertExpenseParams{
			UserID:      userID,
			DayID:       dayID,
			AmountCents: it.Amount.Cents,
			Tag:         it.Tag,
			IsRecurring: it.IsRecurring,
			RecurringID: nullInt64(it.RecurringID),
		}); err != nil {
			return fmt.Errorf("insert expense: %w", err)
		}
	}

	for _, id := range kept.unclaimed() {
		if err := q.DeleteExpense(ctx, id); err != nil {
			return fmt.Errorf("delete expense %d: %w", id, err)
		}
	}
	return nil
}

// idSet tracks which existing rows an upsert has kept. Each id can be claimed
// once; a repeated id in the input becomes an insert.
type idSet struct {
	order   []int64
	claimed map[int64]bool
}

func matchIDs(n int, id func(int) int64) *idSet {
	s := &idSet{order: make([]int64, 0, n), claimed: make(map[int64]bool, n)}
	for i := 0; i < n; i++ {
		s.order = append(s.order, id(i))
		s.claimed[id(i)] = false
	}
	return s
}

func (s *idSet) claim(id int64) bool {
	done, ok := s.claimed[id]
	if !ok || done {
		return false
	}
	s.claimed[id] = true
	return true
}

func (s *idSet) unclaimed() []int64 {
	var out []int64
	for _, id := range s.order {
		if !s.claimed[id] {
			out = append(out, id)
		}
	}
	return out
}

// appendEntry adds one row to the day and returns the day id.
func appendEntry(ctx context.Context, q *storage.Queries, userID int64, date core.Date, in core.EntryInput) (int64, error) {
	day, found, err := findDay(ctx, q, userID, date.String())
	if err != nil {
		return 0, err
	}
	if !found {
		if day, err = createDay(ctx, q, userID, date.String()); err != nil {
			return 0, err
		}
	}

	switch in.Category {
	case core.CategoryIncome:
		_, err = q.InsertIncome(ctx, storage.InsertIncomeParams{
			UserID:      userID,
			DayID:       day.ID,
			AmountCents: in.Amount.Cents,
			Tag:         in.Tag,
		})
	default:
		_, err = q.InsertExpense(ctx, storage.InsertExpenseParams{
			UserID:      userID,
			DayID:       day.ID,
			AmountCents: in.Amount.Cents,
			Tag:         in.Tag,
			IsRecurring: in.IsRecurring,
			RecurringID: nullInt64(in.RecurringID),
		})
	}
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", in.Category, err)
	}
	if _, err := recomputeDay(ctx, q, day.ID); err != nil {
		return 0, err
	}
	if err := ensureTag(ctx, q, userID, in.Tag, in.Category); err != nil {
		return 0, err
	}
	return day.ID, nil
}

// recomputeDay sets income_total to the sum of the day's incomes, or deletes
// the day when it has no rows. It reports whether the day was deleted.
func recomputeDay(ctx context.Context, q *storage.Queries, dayID int64) (bool, error) {
	incomes, expenses, err := q.CountDayChildren(ctx, dayID)
	if err != nil {
		return false, fmt.Errorf("count day rows: %w", err)
	}
	if incomes == 0 && expenses == 0 {
		if err := q.DeleteDay(ctx, dayID); err != nil {
			return false, fmt.Errorf("prune day: %w", err)
		}
		return true, nil
	}
	total, err := q.SumDayIncomes(ctx, dayID)
	if err != nil {
		return false, fmt.Errorf("sum incomes: %w", err)
	}
	if err := q.SetDayIncomeTotal(ctx, dayID, total); err != nil {
		return false, fmt.Errorf("set income total: %w", err)
	}
	return false, nil
}

// loadDay reads a day with its rows. It returns nil when the day is gone.
func loadDay(ctx context.Context, q *storage.Queries, userID, dayID int64) (*core.Day, error) {
	row, err := q.GetDay(ctx, dayID)
	if storage.IsNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	incomes, err := q.ListDayIncomes(ctx, dayID, userID)
	if err != nil {
		return nil, err
	}
	expenses, err := q.ListDayExpenses(ctx, dayID, userID)
	if err != nil {
		return nil, err
	}

	date, err := core.ParseDate(row.Date)
	if err != nil {
		return nil, fmt.Errorf("stored day %d: %w", row.ID, err)
	}
	day := &core.Day{
		ID:          row.ID,
		Date:        date,
		IncomeTotal: core.Money{Cents: row.IncomeTotalCents},
		Incomes:     make([]core.Income, 0, len(incomes)),
		Expenses:    make([]core.Expense, 0, len(expenses)),
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	for _, r := range incomes {
		day.Incomes = append(day.Incomes, core.Income{
			ID:        r.ID,
			DayID:     r.DayID,
			Amount:    core.Money{Cents: r.AmountCents},
			Tag:       r.Tag,
			CreatedAt: r.CreatedAt,
		})
	}
	for _, r := range expenses {
		e := core.Expense{
			ID:          r.ID,
			DayID:       r.DayID,
			Amount:      core.Money{Cents: r.AmountCents},
			Tag:         r.Tag,
			IsRecurring: r.IsRecurring,
			CreatedAt:   r.CreatedAt,
		}
		if r.RecurringID.Valid {
			id := r.RecurringID.Int64
			e.RecurringID = &id
		}
		day.Expenses = append(day.Expenses, e)
	}
	return day, nil
}

func daySummaries(rows []storage.DaySummaryRow) ([]core.DaySummary, error) {
	out := make([]core.DaySummary, 0, len(rows))
	for _, r := range rows {
		date, err := core.ParseDate(r.Date)
		if err != nil {
			return nil, fmt.Errorf("stored day %d: %w", r.ID, err)
		}
		income := core.Money{Cents: r.IncomeTotalCents}
		expense := core.Money{Cents: r.ExpenseTotalCents}
		out = append(out, core.DaySummary{
			ID:           r.ID,
			Date:         date,
			IncomeTotal:  income,
			ExpenseTotal: expense,
			Balance:      income.Sub(expense),
			IncomeCount:  int(r.IncomeCount),
			ExpenseCount: int(r.ExpenseCount),
		})
	}
	return out, nil
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}
