package application

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
	"unicode/utf8"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, credentials UserCredentials) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// PreferenceRepository stores one preference per user.
type PreferenceRepository interface {
	GetPreference(ctx context.Context, userID string) (Preference, error)
	UpsertPreference(ctx context.Context, pref Preference) (Preference, error)
}

const maxDisplayNameLength = 100

// UserService registers accounts and exposes the caller's own profile.
type UserService struct {
	users       UserRepository
	preferences PreferenceRepository
	defaults    PreferenceInput
	hash        PasswordHasher
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, preferences PreferenceRepository, defaults PreferenceInput, hash PasswordHasher, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, preferences, defaults, hash, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a specific logger.
func NewUserServiceWithLogger(users UserRepository, preferences PreferenceRepository, defaults PreferenceInput, hash PasswordHasher, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = HashPassword
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:       users,
		preferences: preferences,
		defaults:    defaults,
		hash:        hash,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

// Register validates the request, stores the account with an argon2id hash
// and gives it the default preference.
func (s *UserService) Register(ctx context.Context, params RegisterParams) (user User, err error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	email := normalizeEmail(params.Email)
	displayName := strings.TrimSpace(params.DisplayName)
	logger := serviceLogger(ctx, s.logger, "UserService", "Register", "email", email)
	defer func() { logOutcome(ctx, logger, err, "registration", "user_id", user.ID) }()

	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	} else if _, parseErr := mail.ParseAddress(email); parseErr != nil {
		vErr.add("email", "email is invalid")
	}
	if displayName == "" {
		vErr.add("display_name", "display name is required")
	} else if utf8.RuneCountInString(displayName) > maxDisplayNameLength {
		vErr.add("display_name", fmt.Sprintf("display name must be at most %d characters", maxDisplayNameLength))
	}
	if msg := validatePassword(params.Password); msg != "" {
		vErr.add("password", msg)
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hash(params.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user, err = s.users.CreateUser(ctx, UserCredentials{
		User: User{
			ID:          s.idGenerator(),
			Email:       email,
			DisplayName: displayName,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		PasswordHash: hash,
	})
	if err != nil {
		return User{}, err
	}

	if s.preferences != nil {
		pref := Preference{
			UserID:         user.ID,
			WeeklyMinutes:  s.defaults.WeeklyMinutes,
			SessionMinutes: s.defaults.SessionMinutes,
			Timezone:       s.defaults.Timezone,
			DayStart:       s.defaults.DayStart,
			DayEnd:         s.defaults.DayEnd,
			UpdatedAt:      now,
		}
		if _, err = s.preferences.UpsertPreference(ctx, pref); err != nil {
			return User{}, fmt.Errorf("store default preference: %w", err)
		}
	}
	return user, nil
}

// GetUser returns the principal's own account. Other accounts are not visible.
func (s *UserService) GetUser(ctx context.Context, principal Principal, userID string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	if principal.UserID == "" {
		return User{}, ErrUnauthorized
	}
	if userID == "" {
		userID = principal.UserID
	}
	if userID != principal.UserID {
		return User{}, ErrNotFound
	}
	return s.users.GetUser(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
