package storage

import (
	"context"
	"database/sql"
	"time"
)

// DBTX is satisfied by both *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...interface{}) (sql.Result, error)
	PrepareContext(context.Context, string) (*sql.Stmt, error)
	QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...interface{}) *sql.Row
}

// Queries holds every SQL statement of the ledger schema.
type Queries struct {
	db  DBTX
	now func() time.Time
}

func New(db DBTX) *Queries {
	return &Queries{db: db, now: func() time.Time { return time.Now().UTC() }}
}

// WithTx returns a copy of q bound to tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, now: q.now}
}

// Savepoint opens a nested transaction scope. Only meaningful inside a tx.
func (q *Queries) Savepoint(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, "SAVEPOINT "+name)
	return err
}

// RollbackTo undoes everything since the savepoint and releases it.
func (q *Queries) RollbackTo(ctx context.Context, name string) error {
	if _, err := q.db.ExecContext(ctx, "ROLLBACK TO SAVEPOINT "+name); err != nil {
		return err
	}
	return q.Release(ctx, name)
}

func (q *Queries) Release(ctx context.Context, name string) error {
	_, err := q.db.ExecContext(ctx, "RELEASE SAVEPOINT "+name)
	return err
}
