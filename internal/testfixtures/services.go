package testfixtures

import (
	"log/slog"
	"time"

	"github.com/example/backlog-scheduler/internal/application"
	"github.com/example/backlog-scheduler/internal/bootstrap"
	"github.com/example/backlog-scheduler/internal/logging"
	"github.com/example/backlog-scheduler/internal/userlock"
)

// FastArgon2idParams keeps password hashing cheap in tests.
var FastArgon2idParams = application.Argon2idParams{Memory: 1024, Iterations: 1, Parallelism: 1, SaltLength: 8, KeyLength: 16}

// ServiceFactory assists tests with constructing application services using
// deterministic identifiers and clocks.
type ServiceFactory struct {
	Clock       *Clock
	IDGenerator *IDGenerator
	Tokens      *IDGenerator
	Logger      *slog.Logger
	MaxWeeks    int
}

// ServiceFactoryOption configures a ServiceFactory instance.
type ServiceFactoryOption func(*ServiceFactory)

// NewServiceFactory constructs a ServiceFactory with defaults.
func NewServiceFactory(opts ...ServiceFactoryOption) *ServiceFactory {
	factory := &ServiceFactory{
		Clock:       NewClock(time.Time{}),
		IDGenerator: NewIDGenerator("id"),
		Tokens:      NewIDGenerator("token"),
		Logger:      logging.Discard(),
		MaxWeeks:    52,
	}
	for _, opt := range opts {
		opt(factory)
	}
	if factory.Clock == nil {
		factory.Clock = NewClock(time.Time{})
	}
	if factory.IDGenerator == nil {
		factory.IDGenerator = NewIDGenerator("id")
	}
	if factory.Tokens == nil {
		factory.Tokens = NewIDGenerator("token")
	}
	return factory
}

// WithClock overrides the clock used by the factory.
func WithClock(clock *Clock) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.Clock = clock
	}
}

// WithIDGenerator overrides the identifier generator used by the factory.
func WithIDGenerator(generator *IDGenerator) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.IDGenerator = generator
	}
}

// WithMaxWeeks overrides the plan horizon limit.
func WithMaxWeeks(weeks int) ServiceFactoryOption {
	return func(factory *ServiceFactory) {
		factory.MaxWeeks = weeks
	}
}

// Options returns bootstrap options driven by the factory clock and generators.
func (f *ServiceFactory) Options() bootstrap.Options {
	return bootstrap.Options{
		SessionTTL:      time.Hour,
		MaxWeeks:        f.MaxWeeks,
		DefaultTimezone: "UTC",
		Locker:          userlock.NewKeyedMutex(),
		Hasher: func(password string) (string, error) {
			return application.CreatePasswordHash(password, FastArgon2idParams)
		},
		IDGenerator:    f.IDGenerator.NextFunc(),
		TokenGenerator: f.Tokens.NextFunc(),
		Now:            f.Clock.NowFunc(),
		Logger:         f.Logger,
	}
}

// NewServices wires every service over store using the factory defaults.
func (f *ServiceFactory) NewServices(store bootstrap.Store) *bootstrap.Services {
	return bootstrap.NewServices(store, f.Options())
}

// NewSQLiteServices wires services over the harness storage.
func (f *ServiceFactory) NewSQLiteServices(h *SQLiteHarness) *bootstrap.Services {
	return f.NewServices(h.Storage)
}
