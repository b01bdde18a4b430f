package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/example/backlog-scheduler/internal/capacity"
	"github.com/example/backlog-scheduler/internal/logging"
)

// DefaultDotenv is the optional file consulted before the environment.
const DefaultDotenv = ".env"

// Config captures environment driven configuration values for the backlog service.
type Config struct {
	HTTPPort        int           `env:"BACKLOG_HTTP_PORT" envDefault:"8080"`
	SQLitePath      string        `env:"BACKLOG_SQLITE_PATH" envDefault:"backlog.db"`
	SessionTTL      time.Duration `env:"BACKLOG_SESSION_TTL" envDefault:"24h"`
	LockDir         string        `env:"BACKLOG_LOCK_DIR"`
	PlanRate        int           `env:"BACKLOG_PLAN_RATE" envDefault:"6"`
	PlanBurst       int           `env:"BACKLOG_PLAN_BURST" envDefault:"3"`
	MaxWeeks        int           `env:"BACKLOG_MAX_WEEKS" envDefault:"52"`
	LogLevel        string        `env:"BACKLOG_LOG_LEVEL" envDefault:"info"`
	LogFormat       string        `env:"BACKLOG_LOG_FORMAT" envDefault:"json"`
	DefaultTimezone string        `env:"BACKLOG_DEFAULT_TIMEZONE" envDefault:"UTC"`
}

// Load parses configuration values from dotenv files and the process environment.
//
// Variables already present in the environment win over dotenv entries. When no
// file is named, DefaultDotenv is read if it exists. Every missing or invalid
// variable is reported in a single error.
func Load(dotenvFiles ...string) (Config, error) {
	if err := loadDotenv(dotenvFiles); err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse environment: %w", err)
	}
	cfg.SQLitePath = strings.TrimSpace(cfg.SQLitePath)
	if strings.TrimSpace(cfg.LockDir) == "" {
		cfg.LockDir = os.TempDir()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the semantic constraints env tags cannot express.
func (c Config) Validate() error {
	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 4)

	if c.SQLitePath == "" {
		missing = append(missing, "BACKLOG_SQLITE_PATH")
	}
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		invalid = append(invalid, "BACKLOG_HTTP_PORT")
	}
	if c.SessionTTL <= 0 {
		invalid = append(invalid, "BACKLOG_SESSION_TTL")
	}
	if c.PlanRate <= 0 {
		invalid = append(invalid, "BACKLOG_PLAN_RATE")
	}
	if c.PlanBurst <= 0 {
		invalid = append(invalid, "BACKLOG_PLAN_BURST")
	}
	if c.MaxWeeks <= 0 {
		invalid = append(invalid, "BACKLOG_MAX_WEEKS")
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		invalid = append(invalid, "BACKLOG_LOG_LEVEL")
	}
	switch strings.ToLower(c.LogFormat) {
	case "json", "text":
	default:
		invalid = append(invalid, "BACKLOG_LOG_FORMAT")
	}
	if _, err := capacity.LoadLocation(c.DefaultTimezone); err != nil {
		invalid = append(invalid, "BACKLOG_DEFAULT_TIMEZONE")
	}

	if len(missing) > 0 {
		return fmt.Errorf("config: required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return fmt.Errorf("config: invalid environment variable values: %s", strings.Join(invalid, ", "))
	}
	return nil
}

// PlanInterval is the refill period of the per-user plan generation limiter.
func (c Config) PlanInterval() time.Duration {
	if c.PlanRate <= 0 {
		return time.Minute
	}
	return time.Minute / time.Duration(c.PlanRate)
}

func loadDotenv(files []string) error {
	optional := len(files) == 0
	if optional {
		files = []string{DefaultDotenv}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil {
			if optional && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("config: load %s: %w", file, err)
		}
	}
	return nil
}
