package sheets

import (
	"context"

	"contabilidad/internal/core"
)

// DayRow is the spreadsheet projection of one user's day.
type DayRow struct {
	UserID       int64
	Date         core.Date
	IncomeTotal  core.Money
	ExpenseTotal core.Money
	IncomeCount  int
	ExpenseCount int
}

func (r DayRow) Balance() core.Money {
	return r.IncomeTotal.Sub(r.ExpenseTotal)
}

// NewDayRow projects a loaded day.
func NewDayRow(userID int64, d *core.Day) DayRow {
	return DayRow{
		UserID:       userID,
		Date:         d.Date,
		IncomeTotal:  d.IncomeTotal,
		ExpenseTotal: d.ExpenseTotal(),
		IncomeCount:  len(d.Incomes),
		ExpenseCount: len(d.Expenses),
	}
}

// Ports for outbound adapters.
type (
	// DayWriter mirrors day summaries into an external sheet. Both methods
	// are idempotent.
	DayWriter interface {
		UpsertDay(ctx context.Context, row DayRow) error
		RemoveDay(ctx context.Context, userID int64, date core.Date) error
	}

	// DayReader lists mirrored rows for one user and month.
	DayReader interface {
		ListDays(ctx context.Context, userID int64, year, month int) ([]DayRow, error)
	}

	DaySheet interface {
		DayWriter
		DayReader
	}
)
