package application

import (
	"time"

	"github.com/example/backlog-scheduler/internal/backlog"
	"github.com/example/backlog-scheduler/internal/capacity"
)

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID string
}

// User represents an account exposed by the application services.
type User struct {
	ID          string
	Email       string
	DisplayName string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// UserCredentials models the authentication attributes persisted for a user.
type UserCredentials struct {
	User         User
	PasswordHash string
}

// RegisterParams captures the data required to create an account.
type RegisterParams struct {
	Email       string
	DisplayName string
	Password    string
}

// Session represents an authenticated session issued to a user.
type Session struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthenticateParams captures the data required to authenticate a user.
type AuthenticateParams struct {
	Email       string
	Password    string
	Fingerprint string
}

// AuthenticateResult captures the outcome of a successful authentication attempt.
type AuthenticateResult struct {
	User    User
	Session Session
}

// Game is a library entry. Priority is zero for inactive games.
type Game struct {
	ID              string
	UserID          string
	Title           string
	Priority        int
	PlayedMinutes   int
	EstimateMinutes *int
	Status          backlog.Status
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Item converts the game into the engine's backlog record.
func (g Game) Item() backlog.Item {
	return backlog.Item{
		GameID:          g.ID,
		Title:           g.Title,
		Priority:        g.Priority,
		PlayedMinutes:   g.PlayedMinutes,
		EstimateMinutes: g.EstimateMinutes,
		Status:          g.Status,
	}
}

// GameInput captures caller provided fields for a new library entry.
type GameInput struct {
	Title           string
	Status          string
	PlayedMinutes   int
	EstimateMinutes *int
}

// GameUpdate lists the fields to change. Nil fields are left untouched;
// ClearEstimate removes a known estimate.
type GameUpdate struct {
	Title           *string
	Status          *string
	PlayedMinutes   *int
	EstimateMinutes *int
	ClearEstimate   bool
}

// Preference is the user's weekly play budget. DayStart and DayEnd are minutes
// after local midnight.
type Preference struct {
	UserID         string
	WeeklyMinutes  int
	SessionMinutes int
	Timezone       string
	DayStart       int
	DayEnd         int
	UpdatedAt      time.Time
}

// Capacity converts the preference into the capacity model input.
func (p Preference) Capacity() capacity.Preference {
	return capacity.Preference{
		WeeklyMinutes:  p.WeeklyMinutes,
		SessionMinutes: p.SessionMinutes,
		Timezone:       p.Timezone,
		DayStart:       p.DayStart,
		DayEnd:         p.DayEnd,
	}
}

// PreferenceInput captures caller provided preference fields.
type PreferenceInput struct {
	WeeklyMinutes  int
	SessionMinutes int
	Timezone       string
	DayStart       int
	DayEnd         int
}

// DefaultPreference is assigned to new accounts: ten hours a week in one hour
// sessions at any time of day.
func DefaultPreference(timezone string) PreferenceInput {
	return PreferenceInput{WeeklyMinutes: 600, SessionMinutes: 60, Timezone: timezone}
}

// PlaySession is a calendar entry reserving time for a game. RunID is empty
// for sessions not produced by a plan run.
type PlaySession struct {
	ID        string
	UserID    string
	GameID    string
	Start     time.Time
	End       time.Time
	RunID     string
	CreatedAt time.Time
}

// Minutes returns the session length.
func (s PlaySession) Minutes() int {
	return int(s.End.Sub(s.Start) / time.Minute)
}

// PlanRun records one allocation batch.
type PlanRun struct {
	ID           string
	UserID       string
	Weeks        int
	SessionCount int
	CreatedAt    time.Time
}

// GenerateParams captures a plan generation request.
type GenerateParams struct {
	Principal Principal
	Weeks     int
}

// PlanResult is the outcome of one plan generation.
type PlanResult struct {
	Run      PlanRun
	Sessions []PlaySession
}
