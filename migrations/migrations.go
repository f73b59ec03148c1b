// Package migrations embeds the schema migrations for every supported driver
// and applies them with golang-migrate over an already opened pool.
package migrations

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/Skryldev/user-service/db"
)

//go:embed postgres/*.sql sqlite3/*.sql
var files embed.FS

// New returns a Migrate instance bound to pool. The caller must invoke
// release when done instead of m.Close(): closing m would close the pool.
func New(ctx context.Context, pool *db.DB) (m *migrate.Migrate, release func(), err error) {
	driverName := pool.DriverName()

	src, err := iofs.New(files, driverName)
	if err != nil {
		return nil, nil, fmt.Errorf("migrations: no migrations for driver %q: %w", driverName, err)
	}

	dbDriver, releaseConn, err := databaseDriver(ctx, pool)
	if err != nil {
		_ = src.Close()
		return nil, nil, err
	}

	m, err = migrate.NewWithInstance("iofs", src, driverName, dbDriver)
	if err != nil {
		releaseConn()
		_ = src.Close()
		return nil, nil, fmt.Errorf("migrations: init: %w", err)
	}
	m.Log = migrateLogger{}

	return m, func() {
		_ = src.Close()
		releaseConn()
	}, nil
}

// Up applies every pending migration. An already current schema is not an
// error.
func Up(ctx context.Context, pool *db.DB) error {
	m, release, err := New(ctx, pool)
	if err != nil {
		return err
	}
	defer release()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrations: up: %w", err)
	}
	version, dirty, err := m.Version()
	if err != nil {
		return fmt.Errorf("migrations: version: %w", err)
	}
	slog.InfoContext(ctx, "migrations: schema current", "version", version, "dirty", dirty)
	return nil
}

func databaseDriver(ctx context.Context, pool *db.DB) (database.Driver, func(), error) {
	switch pool.DriverName() {
	case "postgres":
		// A dedicated connection keeps the advisory lock on one session and
		// lets release hand it back without closing the pool.
		conn, err := pool.Raw().Conn(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("migrations: acquire connection: %w", err)
		}
		drv, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			_ = conn.Close()
			return nil, nil, fmt.Errorf("migrations: postgres driver: %w", err)
		}
		return drv, func() { _ = conn.Close() }, nil
	case "sqlite3":
		drv, err := sqlite3.WithInstance(pool.Raw(), &sqlite3.Config{})
		if err != nil {
			return nil, nil, fmt.Errorf("migrations: sqlite3 driver: %w", err)
		}
		return drv, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("migrations: unsupported driver %q", pool.DriverName())
	}
}

type migrateLogger struct{}

func (migrateLogger) Printf(format string, v ...any) {
	slog.Info(fmt.Sprintf("migrations: "+format, v...))
}

func (migrateLogger) Verbose() bool { return false }
