package core

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound              = errors.New("not found")
	ErrInvalidDate           = errors.New("invalid date")
	ErrInvalidMonth          = errors.New("invalid month")
	ErrInvalidAmount         = errors.New("invalid amount")
	ErrEmptyTag              = errors.New("empty tag")
	ErrTagTooLong            = errors.New("tag too long (max 100 characters)")
	ErrInvalidCategory       = errors.New("category must be income or expense")
	ErrDuplicateTag          = errors.New("tag already exists")
	ErrInvalidUsername       = errors.New("username must be 3-50 characters of letters, digits, '_' or '-'")
	ErrInvalidEmail          = errors.New("invalid email")
	ErrWeakPassword          = errors.New("password must be at least 6 characters")
	ErrUsernameTaken         = errors.New("username already registered")
	ErrEmailTaken            = errors.New("email already registered")
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrInvalidReminderKind   = errors.New("reminder kind must be general, income or expense")
	ErrInvalidReminderStatus = errors.New("reminder status must be pending, overdue, converted or cancelled")
	ErrEmptyDescription      = errors.New("empty description")
	ErrDescriptionTooLong    = errors.New("description too long (max 500 characters)")
	ErrInvalidTransition     = errors.New("invalid reminder status transition")
)

// ValidationError marks input that was rejected before any write.
type ValidationError struct {
	Field string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid wraps err as a validation failure on field.
func Invalid(field string, err error) error {
	return &ValidationError{Field: field, Err: err}
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
