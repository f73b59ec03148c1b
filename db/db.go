// Package db is the SQL layer under the user service: a thin wrapper around
// database/sql that adds hook dispatch, unified error mapping, default
// timeouts and scoped transactions. All SQL stays explicit in the callers.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ─────────────────────────────────────────────────────────────────────────────
// Config
// ─────────────────────────────────────────────────────────────────────────────

// Config describes the user store's connection pool. Zero pool settings keep
// the database/sql defaults.
type Config struct {
	DSN        string
	DriverName string // "postgres" or "sqlite3"

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration

	// DefaultTimeout bounds Exec, Ping and ExecTx when the context has no
	// deadline. Zero disables it.
	DefaultTimeout time.Duration

	Hooks []Hook
}

// ─────────────────────────────────────────────────────────────────────────────
// DB
// ─────────────────────────────────────────────────────────────────────────────

// DB is a concurrency-safe wrapper around *sql.DB. Statements run through
// the hook chain and the ErrorMapper; Exec and ExecTx also get the default
// timeout.
type DB struct {
	runner
	sqldb *sql.DB
	cfg   Config
}

// Open opens the pool described by cfg and pings it once. The caller owns
// Close.
func Open(cfg Config) (*DB, error) {
	switch {
	case cfg.DriverName == "":
		return nil, errors.New("user-service/db: DriverName must not be empty")
	case cfg.DSN == "":
		return nil, errors.New("user-service/db: DSN must not be empty")
	}

	sqldb, err := sql.Open(cfg.DriverName, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("user-service/db: open %s: %w", cfg.DriverName, err)
	}
	tunePool(sqldb, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), openPingTimeout)
	defer cancel()
	if err := sqldb.PingContext(ctx); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("user-service/db: ping %s: %w", cfg.DriverName, err)
	}

	return &DB{
		runner: runner{conn: sqldb, hooks: newHookChain(cfg.Hooks), errMap: DefaultErrorMapper()},
		sqldb:  sqldb,
		cfg:    cfg,
	}, nil
}

const openPingTimeout = 5 * time.Second

// tunePool applies the non-zero pool settings of cfg.
func tunePool(sqldb *sql.DB, cfg Config) {
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqldb.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqldb.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
}

// Raw returns the underlying *sql.DB. The migrations package hands it to
// golang-migrate.
func (d *DB) Raw() *sql.DB { return d.sqldb }

// DriverName reports the database/sql driver the pool was opened with.
func (d *DB) DriverName() string { return d.cfg.DriverName }

// SetErrorMapper replaces the default error mapper.
func (d *DB) SetErrorMapper(m ErrorMapper) { d.errMap = m }

// Close closes all pooled connections.
func (d *DB) Close() error { return d.sqldb.Close() }

// Ping verifies that the database is reachable.
func (d *DB) Ping(ctx context.Context) error {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()
	return d.mapErr(d.sqldb.PingContext(ctx))
}

// Stats returns pool statistics for monitoring.
func (d *DB) Stats() sql.DBStats { return d.sqldb.Stats() }

// ─────────────────────────────────────────────────────────────────────────────
// Statements
// ─────────────────────────────────────────────────────────────────────────────

// Exec executes a statement that returns no rows.
func (d *DB) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx, cancel := d.withDefaultTimeout(ctx)
	defer cancel()
	return d.exec(ctx, query, args)
}

// Query executes a query that returns rows. The caller must close them.
//
// No default timeout here: the rows outlive this call and a cancelled
// context would abort iteration.
func (d *DB) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.query(ctx, query, args)
}

// QueryRow executes a query expected to return at most one row.
// Scan on the returned *Row yields ErrNotFound when no row matches.
func (d *DB) QueryRow(ctx context.Context, query string, args ...any) *Row {
	return d.queryRow(ctx, query, args)
}

func (d *DB) withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.DefaultTimeout == 0 {
		return ctx, func() {}
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.cfg.DefaultTimeout)
}

// ─────────────────────────────────────────────────────────────────────────────
// runner
// ─────────────────────────────────────────────────────────────────────────────

// conn is the statement surface shared by *sql.DB and *sql.Tx.
type conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// runner sends statements to conn with hook dispatch and error mapping.
// DB and Tx differ only in which conn they hold.
type runner struct {
	conn   conn
	hooks  hookChain
	errMap ErrorMapper
}

// on returns a runner with the same hooks and mapper bound to c.
func (r runner) on(c conn) runner {
	r.conn = c
	return r
}

func (r runner) exec(ctx context.Context, query string, args []any) (sql.Result, error) {
	start := time.Now()
	r.hooks.Before(ctx, query, args)
	res, err := r.conn.ExecContext(ctx, query, args...)
	err = r.mapErr(err)
	r.hooks.After(ctx, query, args, time.Since(start), err)
	return res, err
}

func (r runner) query(ctx context.Context, query string, args []any) (*sql.Rows, error) {
	start := time.Now()
	r.hooks.Before(ctx, query, args)
	rows, err := r.conn.QueryContext(ctx, query, args...)
	err = r.mapErr(err)
	r.hooks.After(ctx, query, args, time.Since(start), err)
	return rows, err
}

// queryRow reports a nil error to the hooks; the outcome is only known at Scan.
func (r runner) queryRow(ctx context.Context, query string, args []any) *Row {
	start := time.Now()
	r.hooks.Before(ctx, query, args)
	raw := r.conn.QueryRowContext(ctx, query, args...)
	r.hooks.After(ctx, query, args, time.Since(start), nil)
	return &Row{raw: raw, errMap: r.errMap}
}

func (r runner) mapErr(err error) error {
	if err == nil {
		return nil
	}
	return r.errMap.Map(err)
}

// Row wraps *sql.Row and maps Scan errors; a missing row is ErrNotFound.
type Row struct {
	raw    *sql.Row
	errMap ErrorMapper
}

func (r *Row) Scan(dest ...any) error {
	if err := r.raw.Scan(dest...); err != nil {
		return r.errMap.Map(err)
	}
	return nil
}
