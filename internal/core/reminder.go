package core

import (
	"strings"
	"time"
)

// ReminderKind says what a reminder turns into when converted.
type ReminderKind string

// ReminderStatus is the lifecycle state of a reminder.
//
//	create            -> pending
//	pending <-> overdue (recomputed from the date)
//	pending|overdue   -> converted | cancelled
//
// converted and cancelled are terminal.
type ReminderStatus string

const (
	ReminderGeneral ReminderKind = "general"
	ReminderIncome  ReminderKind = "income"
	ReminderExpense ReminderKind = "expense"

	StatusPending   ReminderStatus = "pending"
	StatusOverdue   ReminderStatus = "overdue"
	StatusConverted ReminderStatus = "converted"
	StatusCancelled ReminderStatus = "cancelled"
)

const MaxReminderText = 500

type Reminder struct {
	ID          int64          `json:"id"`
	Date        Date           `json:"date"`
	Description string         `json:"description"`
	Tag         string         `json:"tag,omitempty"`
	Kind        ReminderKind   `json:"kind"`
	Status      ReminderStatus `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func ParseReminderKind(s string) (ReminderKind, error) {
	switch k := ReminderKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ReminderGeneral, ReminderIncome, ReminderExpense:
		return k, nil
	case "":
		return ReminderGeneral, nil
	}
	return "", ErrInvalidReminderKind
}

func ParseReminderStatus(s string) (ReminderStatus, error) {
	switch st := ReminderStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusPending, StatusOverdue, StatusConverted, StatusCancelled:
		return st, nil
	}
	return "", ErrInvalidReminderStatus
}

// Category maps an income or expense reminder to its ledger category.
func (k ReminderKind) Category() (Category, bool) {
	switch k {
	case ReminderIncome:
		return CategoryIncome, true
	case ReminderExpense:
		return CategoryExpense, true
	}
	return "", false
}

func (s ReminderStatus) Open() bool {
	return s == StatusPending || s == StatusOverdue
}

func (s ReminderStatus) Terminal() bool {
	return s == StatusConverted || s == StatusCancelled
}

// CanTransition reports whether from -> to is an allowed edge.
func (s ReminderStatus) CanTransition(to ReminderStatus) bool {
	switch s {
	case StatusPending:
		return to == StatusOverdue || to == StatusConverted || to == StatusCancelled
	case StatusOverdue:
		return to == StatusPending || to == StatusConverted || to == StatusCancelled
	}
	return false
}

// OpenStatusFor returns the open status a reminder dated d has on today.
func OpenStatusFor(d, today Date) ReminderStatus {
	if d.Before(today) {
		return StatusOverdue
	}
	return StatusPending
}

// ReminderInput carries the editable fields of a reminder.
type ReminderInput struct {
	Date        Date         `json:"date"`
	Description string       `json:"description"`
	Tag         string       `json:"tag"`
	Kind        ReminderKind `json:"kind"`
}

func (in *ReminderInput) Normalize() error {
	if err := in.Date.Validate(); err != nil {
		return Invalid("date", err)
	}
	in.Description = strings.TrimSpace(in.Description)
	if in.Description == "" {
		return Invalid("description", ErrEmptyDescription)
	}
	if len([]rune(in.Description)) > MaxReminderText {
		return Invalid("description", ErrDescriptionTooLong)
	}
	kind, err := ParseReminderKind(string(in.Kind))
	if err != nil {
		return Invalid("kind", err)
	}
	in.Kind = kind
	in.Tag = strings.TrimSpace(in.Tag)
	if in.Tag != "" {
		if _, err := NormalizeTag(in.Tag); err != nil {
			return Invalid("tag", err)
		}
	}
	return nil
}

// ReminderFilter selects reminders for listing. Zero values match everything.
type ReminderFilter struct {
	Status *ReminderStatus
	Kind   *ReminderKind
	From   *Date
	To     *Date
}

// ReminderConversion turns a reminder into a ledger entry on its date.
// Category defaults to the reminder kind and Tag to the reminder tag.
type ReminderConversion struct {
	Amount   Money    `json:"amount"`
	Category Category `json:"category,omitempty"`
	Tag      string   `json:"tag,omitempty"`
}

// Entry resolves the conversion against r into a ledger entry.
func (c ReminderConversion) Entry(r Reminder) (EntryInput, error) {
	category := c.Category
	if category == "" {
		cat, ok := r.Kind.Category()
		if !ok {
			return EntryInput{}, Invalid("category", ErrInvalidCategory)
		}
		category = cat
	}
	tag := strings.TrimSpace(c.Tag)
	if tag == "" {
		tag = r.Tag
	}
	if tag == "" {
		tag = "Otros"
	}
	in := EntryInput{Category: category, Amount: c.Amount, Tag: tag}
	return in, in.Normalize()
}
