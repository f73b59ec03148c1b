// Command migrate manages the user-service schema using the migrations
// embedded in the migrations package.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Skryldev/user-service/config"
	"github.com/Skryldev/user-service/migrations"
)

type CLI struct {
	LogLevel string          `kong:"short='l',help='Log level',enum='debug,info,warn,error',default='info',env='LOG_LEVEL'"`
	DB       config.DBConfig `kong:"embed,prefix='db-'"`

	Up      UpCmd      `kong:"cmd,help='Apply all pending migrations'"`
	Down    DownCmd    `kong:"cmd,help='Roll back N migrations'"`
	Version VersionCmd `kong:"cmd,help='Print the current migration version'"`
	Force   ForceCmd   `kong:"cmd,help='Force the migration version (clears the dirty flag)'"`
	Drop    DropCmd    `kong:"cmd,help='Drop everything in the database (dev only)'"`
}

type UpCmd struct{}

func (UpCmd) Run(m *migrate.Migrate) error {
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("up failed: %w", err)
	}
	slog.Info("migrations: up completed")
	return nil
}

type DownCmd struct {
	Steps int `kong:"arg,optional,default='1',help='Number of migrations to roll back'"`
}

func (c DownCmd) Run(m *migrate.Migrate) error {
	if c.Steps < 1 {
		return fmt.Errorf("down: invalid steps argument %d", c.Steps)
	}
	if err := m.Steps(-c.Steps); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("down failed: %w", err)
	}
	slog.Info("migrations: down completed", "steps", c.Steps)
	return nil
}

type VersionCmd struct{}

func (VersionCmd) Run(m *migrate.Migrate) error {
	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("version failed: %w", err)
	}
	fmt.Printf("version: %d  dirty: %v\n", v, dirty)
	return nil
}

type ForceCmd struct {
	Version int `kong:"arg,help='Version to force'"`
}

func (c ForceCmd) Run(m *migrate.Migrate) error {
	if err := m.Force(c.Version); err != nil {
		return fmt.Errorf("force failed: %w", err)
	}
	slog.Info("migrations: forced", "version", c.Version)
	return nil
}

type DropCmd struct {
	Yes bool `kong:"help='Skip the confirmation prompt'"`
}

func (c DropCmd) Run(m *migrate.Migrate) error {
	if !c.Yes {
		fmt.Fprintln(os.Stderr, "WARNING: drop will destroy all tables. Type 'yes' to confirm:")
		answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
		if strings.TrimSpace(answer) != "yes" {
			fmt.Println("aborted")
			return nil
		}
	}
	if err := m.Drop(); err != nil {
		return fmt.Errorf("drop failed: %w", err)
	}
	slog.Info("migrations: all tables dropped")
	return nil
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("migrate"),
		kong.Description("Manage the user-service database schema"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{Compact: true}),
	)

	logger := config.NewLogger(os.Stderr, cli.LogLevel)
	slog.SetDefault(logger)

	database, err := cli.DB.Open(logger)
	if err != nil {
		fatalf("open database: %v", err)
	}
	defer database.Close()

	ctx := context.Background()
	m, release, err := migrations.New(ctx, database)
	if err != nil {
		fatalf("%v", err)
	}
	defer release()

	if err := kctx.Run(m); err != nil {
		fatalf("%v", err)
	}
}

func fatalf(format string, args ...any) {
	slog.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
