package persistence

import "time"

// User represents an account that owns a game library.
type User struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Game is one entry of a user's library.
//
// Priority is only meaningful while Status is planned or playing; lower values
// are played first. EstimateMinutes is nil when no estimate is known.
type Game struct {
	ID              string
	UserID          string
	Title           string
	Priority        int
	PlayedMinutes   int
	EstimateMinutes *int
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Preference stores a user's weekly play budget.
// DayStart and DayEnd are minutes after local midnight.
type Preference struct {
	UserID         string
	WeeklyMinutes  int
	SessionMinutes int
	Timezone       string
	DayStart       int
	DayEnd         int
	UpdatedAt      time.Time
}

// PlaySession is a calendar entry reserving time for a game.
// RunID is set when the session was produced by a plan run.
type PlaySession struct {
	ID        string
	UserID    string
	GameID    string
	Start     time.Time
	End       time.Time
	RunID     *string
	CreatedAt time.Time
}

// PlanRun records one allocation batch so it can be listed or undone.
type PlanRun struct {
	ID           string
	UserID       string
	Weeks        int
	SessionCount int
	CreatedAt    time.Time
}

// AuthSession represents an authentication session persisted for a user.
type AuthSession struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}
