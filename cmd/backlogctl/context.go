package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/backlog-scheduler/internal/application"
	"github.com/example/backlog-scheduler/internal/bootstrap"
	"github.com/example/backlog-scheduler/internal/config"
	"github.com/example/backlog-scheduler/internal/logging"
	"github.com/example/backlog-scheduler/internal/persistence"
	"github.com/example/backlog-scheduler/internal/persistence/sqlite"
	"github.com/example/backlog-scheduler/internal/userlock"
)

type commandContext struct {
	jsonOutput bool
	envFile    string
	dbPath     string
	lockDir    string
	now        func() time.Time

	configOnce sync.Once
	config     config.Config
	configErr  error
}

func newCommandContext(now func() time.Time) *commandContext {
	return &commandContext{now: now}
}

func (c *commandContext) ensureConfig() (config.Config, error) {
	c.configOnce.Do(func() {
		var files []string
		if path := strings.TrimSpace(c.envFile); path != "" {
			files = append(files, path)
		}
		cfg, err := config.Load(files...)
		if err != nil {
			c.configErr = err
			return
		}
		if path := strings.TrimSpace(c.dbPath); path != "" {
			cfg.SQLitePath = path
		}
		if dir := strings.TrimSpace(c.lockDir); dir != "" {
			cfg.LockDir = dir
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
}

// withStorage opens the configured database for the duration of fn.
func (c *commandContext) withStorage(cmd *cobra.Command, fn func(*sqlite.Storage, *slog.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger(cmd)
	if err != nil {
		return err
	}
	storage, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return fmt.Errorf("open database %s: %w", cfg.SQLitePath, err)
	}
	defer func() {
		if cerr := storage.Close(); cerr != nil {
			logger.Error("failed to close database", "error", cerr)
		}
	}()
	return fn(storage, logger)
}

// withServices runs fn against a migrated database with file based locking,
// so runs started here exclude runs in the API server for the same user.
func (c *commandContext) withServices(cmd *cobra.Command, fn func(*sqlite.Storage, *bootstrap.Services) error) error {
	return c.withStorage(cmd, func(storage *sqlite.Storage, logger *slog.Logger) error {
		status, err := storage.MigrationStatus(cmd.Context())
		if err != nil {
			return err
		}
		if len(status.Pending) > 0 {
			return fmt.Errorf("database has %d pending migrations; run `backlogctl migrate` first", len(status.Pending))
		}

		cfg, _ := c.ensureConfig()
		locker, err := userlock.NewFileLocker(cfg.LockDir, 0)
		if err != nil {
			return err
		}
		services := bootstrap.NewServices(storage, bootstrap.Options{
			SessionTTL:      cfg.SessionTTL,
			MaxWeeks:        cfg.MaxWeeks,
			DefaultTimezone: cfg.DefaultTimezone,
			Locker:          locker,
			Now:             c.now,
			Logger:          logger,
		})
		return fn(storage, services)
	})
}

// principalFor resolves an account email into the principal that owns its data.
func principalFor(ctx context.Context, users persistence.UserRepository, email string) (application.Principal, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return application.Principal{}, errors.New("--user is required")
	}
	user, err := users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, persistence.ErrNotFound) {
			return application.Principal{}, fmt.Errorf("no account for %s", email)
		}
		return application.Principal{}, err
	}
	return application.Principal{UserID: user.ID}, nil
}
