package services

import (
	"context"
	"errors"

	"contabilidad/internal/core"
	"contabilidad/internal/storage"
)

// Store is the transactional persistence the services run on.
// *storage.SQLiteRepository satisfies it.
type Store interface {
	Queries() *storage.Queries
	WithTx(ctx context.Context, fn func(*storage.Queries) error) error
}

// EventPublisher receives day changes after they commit.
type EventPublisher interface {
	PublishDayChanged(ctx context.Context, ev core.DayChanged) error
}

// notFound maps a missing row to core.ErrNotFound and passes other errors through.
func notFound(err error) error {
	if storage.IsNoRows(err) {
		return core.ErrNotFound
	}
	return err
}

func isNotFound(err error) bool {
	return errors.Is(err, core.ErrNotFound)
}
