// Command scheduler serves the backlog scheduling HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/example/backlog-scheduler/internal/bootstrap"
	"github.com/example/backlog-scheduler/internal/config"
	httptransport "github.com/example/backlog-scheduler/internal/http"
	"github.com/example/backlog-scheduler/internal/logging"
	"github.com/example/backlog-scheduler/internal/persistence/sqlite"
	"github.com/example/backlog-scheduler/internal/userlock"
)

const shutdownTimeout = 10 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.HTTPPort))
	if err != nil {
		logger.Error("failed to listen", "port", cfg.HTTPPort, "error", err)
		os.Exit(1)
	}
	if err := run(ctx, cfg, listener, logger); err != nil {
		logger.Error("server encountered error", "error", err)
		os.Exit(1)
	}
}

// run serves on listener until ctx is done, then drains in-flight requests.
func run(ctx context.Context, cfg config.Config, listener net.Listener, logger *slog.Logger) error {
	storage, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close storage", "error", cerr)
		}
	}()

	applied, err := storage.Migrate(ctx, logger)
	if err != nil {
		return err
	}
	logger.Info("database ready", "path", cfg.SQLitePath, "migrations_applied", len(applied))

	files, err := userlock.NewFileLocker(cfg.LockDir, 0)
	if err != nil {
		return err
	}
	services := bootstrap.NewServices(storage, bootstrap.Options{
		SessionTTL:      cfg.SessionTTL,
		MaxWeeks:        cfg.MaxWeeks,
		DefaultTimezone: cfg.DefaultTimezone,
		Locker:          userlock.Chain(userlock.NewKeyedMutex(), files),
		Logger:          logger,
	})

	server := &http.Server{
		Handler:           newHandler(services, cfg, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(listener) }()
	logger.Info("backlog API listening", "addr", listener.Addr().String())

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newHandler(services *bootstrap.Services, cfg config.Config, logger *slog.Logger) http.Handler {
	return httptransport.NewRouter(httptransport.RouterConfig{
		Auth:         httptransport.NewAuthHandler(services.Auth, logger),
		Users:        httptransport.NewUserHandler(services.Users, logger),
		Games:        httptransport.NewGameHandler(services.Library, logger),
		Preferences:  httptransport.NewPreferenceHandler(services.Preferences, logger),
		Plans:        httptransport.NewPlanHandler(services.Plans, logger),
		Authenticate: httptransport.RequireSession(services.Auth, logger),
		PlanLimit:    httptransport.NewRateLimiter(cfg.PlanInterval(), cfg.PlanBurst, logger).Middleware,
		Middleware:   []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
}
