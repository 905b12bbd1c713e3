package backend

import (
	"context"
	"fmt"

	"contabilidad/internal/log"
	gsheet "contabilidad/internal/sheets/google"
	"contabilidad/internal/sheets/memory"
)

// DefaultFactory implements Factory.
type DefaultFactory struct {
	logger *log.Logger
}

func NewFactory(logger *log.Logger) Factory {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &DefaultFactory{logger: logger.WithComponent(log.ComponentSheets)}
}

func (f *DefaultFactory) CreateTarget(ctx context.Context, config Config) (*TargetResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.Type {
	case SheetsTarget:
		return f.createSheetsTarget(ctx, config)
	case MemoryTarget:
		f.logger.Info("Initialized memory export target")
		return &TargetResult{Target: memory.New()}, nil
	default:
		return nil, fmt.Errorf("unsupported export backend: %s", config.Type)
	}
}

func (f *DefaultFactory) createSheetsTarget(ctx context.Context, config Config) (*TargetResult, error) {
	cli, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   config.GoogleSpreadsheetID,
		SheetBase:       config.GoogleSheetName,
		CredentialsJSON: config.GoogleServiceAccountJSON,
		CredentialsFile: config.GoogleServiceAccountFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Google Sheets client: %w", err)
	}
	f.logger.Info("Initialized Google Sheets export target",
		"spreadsheet_id", config.GoogleSpreadsheetID, "sheet", config.GoogleSheetName)
	return &TargetResult{Target: cli}, nil
}
