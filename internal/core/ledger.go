package core

import (
	"encoding/json"
	"time"
)

// Day is the per-user, per-date aggregate. IncomeTotal is cached on the row;
// the expense total and the balance are derived on read.
type Day struct {
	ID          int64
	Date        Date
	IncomeTotal Money
	Incomes     []Income
	Expenses    []Expense
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (d Day) ExpenseTotal() Money {
	var total Money
	for _, e := range d.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}

func (d Day) Balance() Money {
	return d.IncomeTotal.Sub(d.ExpenseTotal())
}

func (d Day) MarshalJSON() ([]byte, error) {
	incomes, expenses := d.Incomes, d.Expenses
	if incomes == nil {
		incomes = []Income{}
	}
	if expenses == nil {
		expenses = []Expense{}
	}
	return json.Marshal(struct {
		ID           int64     `json:"id"`
		Date         Date      `json:"date"`
		IncomeTotal  Money     `json:"income_total"`
		ExpenseTotal Money     `json:"expense_total"`
		Balance      Money     `json:"balance"`
		Incomes      []Income  `json:"incomes"`
		Expenses     []Expense `json:"expenses"`
		CreatedAt    time.Time `json:"created_at"`
		UpdatedAt    time.Time `json:"updated_at"`
	}{d.ID, d.Date, d.IncomeTotal, d.ExpenseTotal(), d.Balance(), incomes, expenses, d.CreatedAt, d.UpdatedAt})
}

// DaySummary is a Day without its child rows.
type DaySummary struct {
	ID           int64 `json:"id"`
	Date         Date  `json:"date"`
	IncomeTotal  Money `json:"income_total"`
	ExpenseTotal Money `json:"expense_total"`
	Balance      Money `json:"balance"`
	IncomeCount  int   `json:"income_count"`
	ExpenseCount int   `json:"expense_count"`
}

type MonthSummary struct {
	Year         int          `json:"year"`
	Month        int          `json:"month"`
	IncomeTotal  Money        `json:"income_total"`
	ExpenseTotal Money        `json:"expense_total"`
	Balance      Money        `json:"balance"`
	Days         []DaySummary `json:"days"`
}

// NewMonthSummary totals the given days.
func NewMonthSummary(year, month int, days []DaySummary) MonthSummary {
	s := MonthSummary{Year: year, Month: month, Days: days}
	if s.Days == nil {
		s.Days = []DaySummary{}
	}
	for _, d := range days {
		s.IncomeTotal = s.IncomeTotal.Add(d.IncomeTotal)
		s.ExpenseTotal = s.ExpenseTotal.Add(d.ExpenseTotal)
	}
	s.Balance = s.IncomeTotal.Sub(s.ExpenseTotal)
	return s
}

// MonthTotals is one row of a year overview.
type MonthTotals struct {
	Month        int   `json:"month"`
	IncomeTotal  Money `json:"income_total"`
	ExpenseTotal Money `json:"expense_total"`
	Balance      Money `json:"balance"`
}

// TagMatch is a single ledger row found by tag search.
type TagMatch struct {
	ID             int64    `json:"id"`
	DayID          int64    `json:"day_id"`
	Date           Date     `json:"date"`
	Category       Category `json:"category"`
	Tag            string   `json:"tag"`
	Amount         Money    `json:"amount"`
	DayIncomeTotal Money    `json:"day_income_total"`
}

// TagFrequency aggregates one tag over a month.
type TagFrequency struct {
	Tag   string `json:"tag"`
	Total Money  `json:"total"`
	Count int    `json:"veces"`
}

type (
	// DayInput is the desired full content of a day. Items carrying an ID
	// that matches an existing row of the day update it in place; rows of the
	// day that are not matched are removed.
	DayInput struct {
		Date     Date           `json:"date"`
		Incomes  []IncomeInput  `json:"incomes"`
		Expenses []ExpenseInput `json:"expenses"`
	}

	IncomeInput struct {
		ID     *int64 `json:"id,omitempty"`
		Amount Money  `json:"amount"`
		Tag    string `json:"tag"`
	}

	ExpenseInput struct {
		ID          *int64 `json:"id,omitempty"`
		Amount      Money  `json:"amount"`
		Tag         string `json:"tag"`
		IsRecurring bool   `json:"is_recurring"`
		RecurringID *int64 `json:"recurring_id,omitempty"`
	}

	// EntryInput appends a single row to a day.
	EntryInput struct {
		Category    Category `json:"category"`
		Amount      Money    `json:"amount"`
		Tag         string   `json:"tag"`
		IsRecurring bool     `json:"is_recurring"`
		RecurringID *int64   `json:"recurring_id,omitempty"`
	}
)

// IsEmpty reports whether the input describes a day with no rows.
func (in DayInput) IsEmpty() bool {
	return len(in.Incomes) == 0 && len(in.Expenses) == 0
}

// Normalize validates the input and trims tag names in place.
func (in *DayInput) Normalize() error {
	if err := in.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	for i := range in.Incomes {
		it := &in.Incomes[i]
		if err := it.Amount.Validate(); err != nil {
			return Invalid("incomes.amount", err)
		}
		tag, err := NormalizeTag(it.Tag)
		if err != nil {
			return Invalid("incomes.tag", err)
		}
		it.Tag = tag
	}
	for i := range in.Expenses {
		it := &in.Expenses[i]
		if err := it.Amount.Validate(); err != nil {
			return Invalid("expenses.amount", err)
		}
		tag, err := NormalizeTag(it.Tag)
		if err != nil {
			return Invalid("expenses.tag", err)
		}
		it.Tag = tag
	}
	return nil
}

func (in *EntryInput) Normalize() error {
	if !in.Category.Valid() {
		return Invalid("category", ErrInvalidCategory)
	}
	if err := in.Amount.Validate(); err != nil {
		return Invalid("amount", err)
	}
	tag, err := NormalizeTag(in.Tag)
	if err != nil {
		return Invalid("tag", err)
	}
	in.Tag = tag
	if in.Category == CategoryIncome {
		in.IsRecurring = false
		in.RecurringID = nil
	}
	return nil
}
