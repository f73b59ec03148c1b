// Package config parses the service configuration from flags and environment
// variables and builds the logger and database pool from it.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"github.com/Skryldev/user-service/db"
)

var (
	version = "dev"
	commit  = "none"
)

// Config is the root configuration of the server binary.
type Config struct {
	LogLevel    string           `kong:"short='l',help='Log level',enum='debug,info,warn,error',default='info',env='LOG_LEVEL'"`
	Port        string           `kong:"default='8080',env='PORT',help='HTTP listen port'"`
	AutoMigrate bool             `kong:"default='true',negatable,env='AUTO_MIGRATE',help='Apply pending migrations on startup'"`
	DB          DBConfig         `kong:"embed,prefix='db-'"`
	Version     kong.VersionFlag `kong:"short='v',help='Show version and exit.'"`
}

// DBConfig describes the connection pool. URL wins over the individual
// connection fields when both are set.
type DBConfig struct {
	URL      string `kong:"name='url',env='DATABASE_URL',help='Full DSN; overrides host/port/user/password/name'"`
	Driver   string `kong:"default='postgres',enum='postgres,sqlite3',env='DB_DRIVER',help='Database driver'"`
	Host     string `kong:"default='localhost',env='DB_HOST'"`
	Port     int    `kong:"default='5432',env='DB_PORT'"`
	User     string `kong:"default='postgres',env='DB_USER'"`
	Password string `kong:"env='DB_PASSWORD'"`
	Name     string `kong:"default='users',env='DB_NAME',help='Database name, or file path for sqlite3'"`
	SSLMode  string `kong:"name='sslmode',default='disable',env='DB_SSLMODE'"`

	MaxOpenConns       int           `kong:"default='25',env='DB_MAX_OPEN_CONNS'"`
	MaxIdleConns       int           `kong:"default='10',env='DB_MAX_IDLE_CONNS'"`
	ConnMaxLifetime    time.Duration `kong:"default='5m',env='DB_CONN_MAX_LIFETIME'"`
	ConnMaxIdleTime    time.Duration `kong:"default='2m',env='DB_CONN_MAX_IDLE_TIME'"`
	Timeout            time.Duration `kong:"default='10s',env='DB_TIMEOUT',help='Default statement timeout'"`
	SlowQueryThreshold time.Duration `kong:"default='200ms',env='SLOW_QUERY_THRESHOLD'"`
	LogArgs            bool          `kong:"env='DB_LOG_ARGS',help='Log bound query arguments (development only)'"`
}

// Parse reads args (without the program name) and the environment.
func Parse(args []string, opts ...kong.Option) (*Config, error) {
	var cfg Config
	options := append([]kong.Option{
		kong.Name("user-service"),
		kong.Description("HTTP service for user records"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
		kong.Vars{"version": fmt.Sprintf("%s (%s)", version, commit)},
	}, opts...)

	parser, err := kong.New(&cfg, options...)
	if err != nil {
		return nil, err
	}
	if _, err := parser.Parse(args); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Pool returns the db.Config for c. DSN is only filled when URL is set.
func (c DBConfig) Pool(logger *slog.Logger) db.Config {
	return db.Config{
		DSN:             c.URL,
		DriverName:      c.Driver,
		MaxOpenConns:    c.MaxOpenConns,
		MaxIdleConns:    c.MaxIdleConns,
		ConnMaxLifetime: c.ConnMaxLifetime,
		ConnMaxIdleTime: c.ConnMaxIdleTime,
		DefaultTimeout:  c.Timeout,
		Hooks: []db.Hook{
			db.NewLogHook(db.LogHookConfig{
				Logger:             logger,
				SlowQueryThreshold: c.SlowQueryThreshold,
				LogArgs:            c.LogArgs,
			}),
		},
	}
}

// DriverOptions returns the structured connection options used when no URL
// is configured.
func (c DBConfig) DriverOptions() db.DriverOptions {
	return db.DriverOptions{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Name,
		SSLMode:  c.SSLMode,
	}
}

// Open opens the pool described by c.
func (c DBConfig) Open(logger *slog.Logger) (*db.DB, error) {
	pool := c.Pool(logger)
	if c.URL != "" {
		return db.Open(pool)
	}
	return db.OpenWithDriver(c.Driver, c.DriverOptions(), pool)
}

// NewLogger builds the JSON logger at the given level.
func NewLogger(w io.Writer, level string) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: ParseLogLevel(level),
	}))
}

func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
