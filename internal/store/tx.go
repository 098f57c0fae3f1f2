package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// reader carries the read operations shared by Store and Tx.
type reader struct {
	q       querier
	dialect Dialect
}

// Tx is a scoped transaction handle. It is only valid inside the InTx
// callback that received it.
type Tx struct {
	reader
	tx *sql.Tx
}

// InTx runs fn inside a single transaction. The transaction commits when fn
// returns nil and rolls back when fn returns an error or panics.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return backendErr("begin transaction", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
	}()

	if err := fn(&Tx{reader: reader{q: sqlTx, dialect: s.dialect}, tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return backendErr("commit", err)
	}
	committed = true
	return nil
}

// nullID maps the empty id to SQL NULL.
func nullID(id string) any {
	if id == "" {
		return nil
	}
	return id
}
