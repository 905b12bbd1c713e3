package core

import (
	"encoding/json"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// DateLayout is the calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// MaxTagLength bounds tag names in runes.
const MaxTagLength = 100

type (
	// Date is a calendar date without time of day, always UTC midnight.
	Date struct {
		time.Time
	}

	// Category separates income tags from expense tags.
	Category string

	User struct {
		ID           int64     `json:"id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		PasswordHash string    `json:"-"`
		CreatedAt    time.Time `json:"created_at"`
	}

	Income struct {
		ID        int64     `json:"id"`
		DayID     int64     `json:"day_id"`
		Amount    Money     `json:"amount"`
		Tag       string    `json:"tag"`
		CreatedAt time.Time `json:"created_at"`
	}

	// Expense may carry RecurringID, an informational link to the template that
	// generated it. The template may no longer exist.
	Expense struct {
		ID          int64     `json:"id"`
		DayID       int64     `json:"day_id"`
		Amount      Money     `json:"amount"`
		Tag         string    `json:"tag"`
		IsRecurring bool      `json:"is_recurring"`
		RecurringID *int64    `json:"recurring_id,omitempty"`
		CreatedAt   time.Time `json:"created_at"`
	}

	Tag struct {
		ID           int64    `json:"id"`
		Name         string   `json:"name"`
		Category     Category `json:"category"`
		IsPredefined bool     `json:"is_predefined"`
		IsEssential  bool     `json:"is_essential"`
	}
)

const (
	CategoryIncome  Category = "income"
	CategoryExpense Category = "expense"
)

// ParseCategory accepts "income"/"expense" and the plural forms used by
// query strings ("incomes", "expenses").
func ParseCategory(s string) (Category, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "income", "incomes":
		return CategoryIncome, nil
	case "expense", "expenses":
		return CategoryExpense, nil
	}
	return "", ErrInvalidCategory
}

func (c Category) Valid() bool {
	return c == CategoryIncome || c == CategoryExpense
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

// DateOf truncates t to its calendar date in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// Today returns the current local calendar date.
func Today() Date {
	return DateOf(time.Now())
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// MonthRange returns the first day of the month and the first day of the next.
func MonthRange(year, month int) (Date, Date, error) {
	if month < 1 || month > 12 {
		return Date{}, Date{}, ErrInvalidMonth
	}
	if year < 1 || year > 9999 {
		return Date{}, Date{}, ErrInvalidDate
	}
	from := NewDate(year, month, 1)
	return from, Date{Time: from.AddDate(0, 1, 0)}, nil
}

// NormalizeTag trims a tag name and checks its length.
func NormalizeTag(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrEmptyTag
	}
	if utf8.RuneCountInString(name) > MaxTagLength {
		return "", ErrTagTooLong
	}
	return name, nil
}

var (
	usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{3,50}$`)
	emailPattern    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

const MinPasswordLength = 6

// ValidateRegistration checks identity fields before any write.
func ValidateRegistration(username, email, password string) error {
	if !usernamePattern.MatchString(username) {
		return Invalid("username", ErrInvalidUsername)
	}
	if !emailPattern.MatchString(email) {
		return Invalid("email", ErrInvalidEmail)
	}
	return ValidatePassword(password)
}

func ValidatePassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return Invalid("password", ErrWeakPassword)
	}
	return nil
}
