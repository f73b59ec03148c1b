// Command user-service serves the user CRUD API over HTTP.
//
// Configuration comes from flags or the environment (see config.Config);
// DATABASE_URL or DB_HOST/DB_NAME/... select the database.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Skryldev/user-service/config"
	"github.com/Skryldev/user-service/handler"
	"github.com/Skryldev/user-service/migrations"
	"github.com/Skryldev/user-service/service"
)

func main() {
	if err := run(); err != nil {
		slog.Error(err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	logger := config.NewLogger(os.Stdout, cfg.LogLevel)
	slog.SetDefault(logger)

	database, err := cfg.DB.Open(logger)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer database.Close()
	slog.Info("database connected", "driver", database.DriverName())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.AutoMigrate {
		if err := migrations.Up(ctx, database); err != nil {
			return err
		}
	}

	users := service.NewUserService(database, service.WithLogger(logger))

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), handler.LoggingMiddleware(logger))
	handler.NewUserHandler(users, logger).Register(router)
	router.GET("/health", handler.Health(database))

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("user service starting", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
