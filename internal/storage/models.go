package storage

import (
	"database/sql"
	"time"
)

type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

type Day struct {
	ID               int64
	UserID           int64
	Date             string
	IncomeTotalCents int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Income struct {
	ID          int64
	UserID      int64
	DayID       int64
	AmountCents int64
	Tag         string
	CreatedAt   time.Time
}

type Expense struct {
	ID          int64
	UserID      int64
	DayID       int64
	AmountCents int64
	Tag         string
	IsRecurring bool
	RecurringID sql.NullInt64
	CreatedAt   time.Time
}

type Tag struct {
	ID           int64
	UserID       int64
	Name         string
	Category     string
	IsPredefined bool
	IsEssential  bool
	CreatedAt    time.Time
}

type Reminder struct {
	ID          int64
	UserID      int64
	Date        string
	Description string
	Tag         string
	Kind        string
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DaySummaryRow is a day with its derived expense total and child counts.
type DaySummaryRow struct {
	ID                int64
	Date              string
	IncomeTotalCents  int64
	ExpenseTotalCents int64
	IncomeCount       int64
	ExpenseCount      int64
}

// TagMatchRow is one ledger row joined to its day.
type TagMatchRow struct {
	ID                  int64
	DayID               int64
	Date                string
	Tag                 string
	AmountCents         int64
	DayIncomeTotalCents int64
}

type TagTotalRow struct {
	Tag        string
	TotalCents int64
	Count      int64
}

type MonthTotalRow struct {
	Month             int64
	IncomeTotalCents  int64
	ExpenseTotalCents int64
}
