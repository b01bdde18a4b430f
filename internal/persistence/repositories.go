package persistence

import (
	"context"
	"time"
)

// UserRepository stores accounts.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
}

// GameRepository stores library entries scoped to their owner.
type GameRepository interface {
	CreateGame(ctx context.Context, game Game) error
	UpdateGame(ctx context.Context, game Game) error
	GetGame(ctx context.Context, userID, id string) (Game, error)
	ListGames(ctx context.Context, userID string) ([]Game, error)
	DeleteGame(ctx context.Context, userID, id string) error
	// Reorder assigns priorities 1..n to the given games in one transaction.
	Reorder(ctx context.Context, userID string, orderedIDs []string) error
}

// PreferenceRepository stores one capacity preference per user.
type PreferenceRepository interface {
	GetPreference(ctx context.Context, userID string) (Preference, error)
	UpsertPreference(ctx context.Context, pref Preference) error
}

// PlaySessionRepository stores calendar entries and the runs that produced them.
type PlaySessionRepository interface {
	// ListSessions returns the sessions intersecting [from, to), ordered by start.
	// A zero bound leaves that side open.
	ListSessions(ctx context.Context, userID string, from, to time.Time) ([]PlaySession, error)
	// SaveRun stores the run and its sessions atomically. It fails with
	// ErrConflict when any session overlaps one already stored for the user.
	SaveRun(ctx context.Context, run PlanRun, sessions []PlaySession) error
	// DeleteRun removes a run and every session it produced.
	DeleteRun(ctx context.Context, userID, runID string) (int, error)
	ListRuns(ctx context.Context, userID string) ([]PlanRun, error)
}

// AuthSessionRepository stores authentication session state.
type AuthSessionRepository interface {
	CreateSession(ctx context.Context, session AuthSession) (AuthSession, error)
	GetSession(ctx context.Context, token string) (AuthSession, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (AuthSession, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}
