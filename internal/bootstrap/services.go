// Package bootstrap wires the SQLite repositories into the application services.
package bootstrap

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/example/backlog-scheduler/internal/application"
	"github.com/example/backlog-scheduler/internal/persistence"
	"github.com/example/backlog-scheduler/internal/userlock"
)

// Store is the storage surface the services need. *sqlite.Storage satisfies it.
type Store interface {
	persistence.UserRepository
	persistence.GameRepository
	persistence.PreferenceRepository
	persistence.PlaySessionRepository
	persistence.AuthSessionRepository
}

// Options tunes the wiring. Zero values select production defaults.
type Options struct {
	SessionTTL      time.Duration
	MaxWeeks        int
	DefaultTimezone string
	Locker          userlock.Locker
	Hasher          application.PasswordHasher
	IDGenerator     func() string
	TokenGenerator  func() string
	Now             func() time.Time
	Logger          *slog.Logger
}

// Services groups the application services sharing one store.
type Services struct {
	Users       *application.UserService
	Auth        *application.AuthService
	Library     *application.LibraryService
	Preferences *application.PreferenceService
	Plans       *application.PlanService
}

// NewServices builds every application service over store.
func NewServices(store Store, opts Options) *Services {
	if opts.IDGenerator == nil {
		opts.IDGenerator = NewID
	}
	if opts.TokenGenerator == nil {
		opts.TokenGenerator = NewToken
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.MaxWeeks <= 0 {
		opts.MaxWeeks = 52
	}
	if opts.DefaultTimezone == "" {
		opts.DefaultTimezone = "UTC"
	}
	if opts.Locker == nil {
		opts.Locker = userlock.NewKeyedMutex()
	}
	if opts.Hasher == nil {
		opts.Hasher = application.HashPassword
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	users := newUserRepositoryAdapter(store)
	games := newGameRepositoryAdapter(store)
	prefs := newPreferenceRepositoryAdapter(store)
	defaults := application.DefaultPreference(opts.DefaultTimezone)

	preferences := application.NewPreferenceServiceWithLogger(prefs, defaults, opts.Now, logger)
	return &Services{
		Users:       application.NewUserServiceWithLogger(users, prefs, defaults, opts.Hasher, opts.IDGenerator, opts.Now, logger),
		Auth:        application.NewAuthServiceWithLogger(users, newSessionRepositoryAdapter(store), nil, opts.IDGenerator, opts.TokenGenerator, opts.Now, opts.SessionTTL, logger),
		Library:     application.NewLibraryServiceWithLogger(games, opts.IDGenerator, opts.Now, logger),
		Preferences: preferences,
		Plans:       application.NewPlanServiceWithLogger(games, preferences, newPlanRepositoryAdapter(store), opts.Locker, opts.IDGenerator, opts.Now, opts.MaxWeeks, logger),
	}
}

// NewID returns a random UUID string.
func NewID() string {
	return uuid.NewString()
}

// NewToken returns 32 random bytes hex encoded.
func NewToken() string {
	return randomHex(32)
}

func randomHex(bytes int) string {
	if bytes <= 0 {
		bytes = 16
	}
	buf := make([]byte, bytes)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
