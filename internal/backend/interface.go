package backend

import (
	"context"

	"contabilidad/internal/sheets"
)

// CleanupFunc releases resources held by a target.
type CleanupFunc func() error

// TargetResult contains the export target and an optional cleanup function.
type TargetResult struct {
	Target  sheets.DaySheet
	Cleanup CleanupFunc
}

// Factory creates the export target the sync worker writes to.
type Factory interface {
	CreateTarget(ctx context.Context, config Config) (*TargetResult, error)
}

// Config holds the settings needed to build any export target.
type Config struct {
	Type TargetType

	// Google Sheets specific
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountJSON string
	GoogleServiceAccountFile string
}

// TargetType names an export target.
type TargetType string

const (
	SheetsTarget TargetType = "sheets"
	MemoryTarget TargetType = "memory"
)

func (t TargetType) String() string {
	return string(t)
}

func (t TargetType) IsValid() bool {
	switch t {
	case SheetsTarget, MemoryTarget:
		return true
	default:
		return false
	}
}
