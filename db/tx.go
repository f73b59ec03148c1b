package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Tx runs statements inside one database transaction. It is only handed out
// by ExecTx, which owns commit and rollback.
type Tx struct {
	runner
	sqltx *sql.Tx
}

func (t *Tx) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.exec(ctx, query, args)
}

// Query executes a query returning rows. The caller must close them before
// fn returns.
func (t *Tx) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.query(ctx, query, args)
}

func (t *Tx) QueryRow(ctx context.Context, query string, args ...any) *Row {
	return t.queryRow(ctx, query, args)
}

// TxOptions configures isolation level and the read-only flag.
type TxOptions struct {
	Isolation sql.IsolationLevel
	ReadOnly  bool
}

// ExecTx runs fn in a transaction. It commits when fn returns nil and rolls
// back when fn returns an error or panics; a panic is re-raised after the
// rollback. fn's error is returned as is. Nested transactions are not
// supported.
//
//	err := d.ExecTx(ctx, func(tx *db.Tx) error {
//	    _, err := repo.NewUserRepo(tx).Save(ctx, u)
//	    return err
//	})
func (d *DB) ExecTx(ctx context.Context, fn func(*Tx) error, opts ...TxOptions) error {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()

	sqltx, err := d.sqldb.BeginTx(ctx, sqlTxOptions(opts))
	if err != nil {
		return d.mapErr(err)
	}

	tx := &Tx{runner: d.runner.on(sqltx), sqltx: sqltx}
	if err := runGuarded(tx, fn); err != nil {
		// A cancelled context has already rolled the transaction back.
		if rbErr := sqltx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("user-service/db: rollback failed (%v): %w", rbErr, err)
		}
		return err
	}
	return d.mapErr(sqltx.Commit())
}

// runGuarded calls fn and rolls tx back before letting a panic continue.
func runGuarded(tx *Tx, fn func(*Tx) error) error {
	defer func() {
		if p := recover(); p != nil {
			_ = tx.sqltx.Rollback()
			panic(p)
		}
	}()
	return fn(tx)
}

func sqlTxOptions(opts []TxOptions) *sql.TxOptions {
	if len(opts) == 0 {
		return nil
	}
	return &sql.TxOptions{Isolation: opts[0].Isolation, ReadOnly: opts[0].ReadOnly}
}

// Querier is the statement surface shared by *DB and *Tx. Repositories take
// a Querier so the same code runs inside and outside transactions.
type Querier interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *Row
}

var (
	_ Querier = (*DB)(nil)
	_ Querier = (*Tx)(nil)
)
