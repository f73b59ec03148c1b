package db

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ─────────────────────────────────────────────────────────────────────────────
// Driver interface
// ─────────────────────────────────────────────────────────────────────────────

// Driver encapsulates database-specific behaviour: building a DSN from
// structured options and mapping that driver's errors. The database/sql
// driver itself registers through its package init (blank import).
type Driver interface {
	// Name returns the name passed to sql.Register, e.g. "postgres".
	Name() string

	// DSN converts structured options into a driver DSN string.
	DSN(opts DriverOptions) (string, error)

	// ErrorMapper returns a mapper for this driver's error types. It must
	// return the input error unchanged when it does not recognise it.
	ErrorMapper() ErrorMapper
}

// DriverOptions carries connection parameters in a driver-agnostic form.
type DriverOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // "disable", "require", "verify-full", ...
	// Extra holds driver-specific key/value parameters.
	Extra map[string]string
}

// ─────────────────────────────────────────────────────────────────────────────
// Driver registry
// ─────────────────────────────────────────────────────────────────────────────

var (
	driversMu sync.RWMutex
	drivers   = make(map[string]Driver)
)

// RegisterDriver adds a Driver to the registry, replacing any driver with the
// same name.
func RegisterDriver(d Driver) {
	driversMu.Lock()
	defer driversMu.Unlock()
	drivers[d.Name()] = d
}

// LookupDriver returns the registered Driver by name.
func LookupDriver(name string) (Driver, error) {
	driversMu.RLock()
	defer driversMu.RUnlock()
	d, ok := drivers[name]
	if !ok {
		return nil, fmt.Errorf("user-service/db: driver %q not registered", name)
	}
	return d, nil
}

// OpenWithDriver builds the DSN through a registered Driver and opens it.
// The driver's error mapper is chained in front of the default one.
//
//	d, err := db.OpenWithDriver("postgres", db.DriverOptions{
//	    Host: "localhost", User: "app", Password: "secret", Database: "users",
//	}, db.Config{MaxOpenConns: 25})
func OpenWithDriver(driverName string, driverOpts DriverOptions, cfg Config) (*DB, error) {
	drv, err := LookupDriver(driverName)
	if err != nil {
		return nil, err
	}

	dsn, err := drv.DSN(driverOpts)
	if err != nil {
		return nil, fmt.Errorf("user-service/db: DSN construction failed: %w", err)
	}

	cfg.DriverName = drv.Name()
	cfg.DSN = dsn

	d, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	d.SetErrorMapper(ChainMapper(drv.ErrorMapper(), DefaultErrorMapper()))
	return d, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// PostgreSQL (lib/pq)
// ─────────────────────────────────────────────────────────────────────────────

// PostgresDriver is the lib/pq adapter. Import _ "github.com/lib/pq" to
// activate the database/sql driver.
type PostgresDriver struct{}

func (PostgresDriver) Name() string { return "postgres" }

func (PostgresDriver) DSN(o DriverOptions) (string, error) {
	if o.Host == "" || o.Database == "" {
		return "", fmt.Errorf("postgres driver: Host and Database are required")
	}
	port := o.Port
	if port == 0 {
		port = 5432
	}
	sslMode := o.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "host=%s port=%d", o.Host, port)
	if o.User != "" {
		fmt.Fprintf(&b, " user=%s", o.User)
	}
	if o.Password != "" {
		fmt.Fprintf(&b, " password=%s", o.Password)
	}
	fmt.Fprintf(&b, " dbname=%s sslmode=%s", o.Database, sslMode)
	for _, k := range slices.Sorted(maps.Keys(o.Extra)) {
		fmt.Fprintf(&b, " %s=%s", k, o.Extra[k])
	}
	return b.String(), nil
}

func (PostgresDriver) ErrorMapper() ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		if mapped := mapPQError(err); mapped != nil {
			return mapped
		}
		return err
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// SQLite (mattn/go-sqlite3)
// ─────────────────────────────────────────────────────────────────────────────

// SQLiteDriver is the mattn/go-sqlite3 adapter. Database is the file path or
// ":memory:".
type SQLiteDriver struct{}

func (SQLiteDriver) Name() string { return "sqlite3" }

func (SQLiteDriver) DSN(o DriverOptions) (string, error) {
	if o.Database == "" {
		return "", fmt.Errorf("sqlite3 driver: Database (file path) is required")
	}
	if len(o.Extra) == 0 {
		return o.Database, nil
	}
	params := make([]string, 0, len(o.Extra))
	for _, k := range slices.Sorted(maps.Keys(o.Extra)) {
		params = append(params, k+"="+o.Extra[k])
	}
	return o.Database + "?" + strings.Join(params, "&"), nil
}

func (SQLiteDriver) ErrorMapper() ErrorMapper {
	return ErrorMapperFunc(func(err error) error {
		if mapped := mapSQLiteError(err); mapped != nil {
			return mapped
		}
		return err
	})
}

func init() {
	RegisterDriver(PostgresDriver{})
	RegisterDriver(SQLiteDriver{})
}
