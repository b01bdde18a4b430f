package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/backlog-scheduler/internal/application"
	"github.com/example/backlog-scheduler/internal/backlog"
	"github.com/example/backlog-scheduler/internal/persistence"
)

var (
	userCounter    uint64
	gameCounter    uint64
	sessionCounter uint64
	authCounter    uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record that can be materialised
// for application or persistence tests.
type UserFixture struct {
	ID           string
	Email        string
	DisplayName  string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic user fixture with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:           id,
		Email:        fmt.Sprintf("%s@example.com", id),
		DisplayName:  fmt.Sprintf("User %03d", idx),
		PasswordHash: fmt.Sprintf("hash-%03d", idx),
		CreatedAt:    created,
		UpdatedAt:    created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUserPasswordHash overrides the generated password hash.
func WithUserPasswordHash(hash string) UserOption {
	return func(f *UserFixture) {
		f.PasswordHash = hash
	}
}

// Application returns the fixture as an application.User value.
func (f UserFixture) Application() application.User {
	return application.User{
		ID:          f.ID,
		Email:       f.Email,
		DisplayName: f.DisplayName,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

// Credentials returns the fixture as application.UserCredentials.
func (f UserFixture) Credentials() application.UserCredentials {
	return application.UserCredentials{User: f.Application(), PasswordHash: f.PasswordHash}
}

// Principal returns an application.Principal derived from the fixture.
func (f UserFixture) Principal() application.Principal {
	return application.Principal{UserID: f.ID}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:           f.ID,
		Email:        f.Email,
		DisplayName:  f.DisplayName,
		PasswordHash: f.PasswordHash,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ----------------------------- Game fixtures -----------------------------

// GameFixture represents a deterministic library entry. New fixtures are
// planned, unestimated and take their priority from the sequence number.
type GameFixture struct {
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

// GameOption configures the generated game fixture.
type GameOption func(*GameFixture)

// NewGameFixture returns a deterministic game fixture owned by userID.
func NewGameFixture(userID string, opts ...GameOption) GameFixture {
	idx := atomic.AddUint64(&gameCounter, 1)
	id := fmt.Sprintf("game-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := GameFixture{
		ID:        id,
		UserID:    userID,
		Title:     fmt.Sprintf("Game %03d", idx),
		Priority:  1,
		Status:    backlog.StatusPlanned,
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithGameID overrides the generated game ID.
func WithGameID(id string) GameOption {
	return func(f *GameFixture) {
		f.ID = id
	}
}

// WithGameTitle overrides the generated title.
func WithGameTitle(title string) GameOption {
	return func(f *GameFixture) {
		f.Title = title
	}
}

// WithGamePriority sets the backlog position.
func WithGamePriority(priority int) GameOption {
	return func(f *GameFixture) {
		f.Priority = priority
	}
}

// WithGameEstimate sets a known completion estimate.
func WithGameEstimate(minutes int) GameOption {
	return func(f *GameFixture) {
		value := minutes
		f.EstimateMinutes = &value
	}
}

// WithGamePlayed sets the minutes already played.
func WithGamePlayed(minutes int) GameOption {
	return func(f *GameFixture) {
		f.PlayedMinutes = minutes
	}
}

// WithGameStatus sets the lifecycle status. Inactive statuses clear the priority.
func WithGameStatus(status backlog.Status) GameOption {
	return func(f *GameFixture) {
		f.Status = status
		if !status.Active() {
			f.Priority = 0
		}
	}
}

// Application returns the fixture as an application.Game value.
func (f GameFixture) Application() application.Game {
	return application.Game{
		ID:              f.ID,
		UserID:          f.UserID,
		Title:           f.Title,
		Priority:        f.Priority,
		PlayedMinutes:   f.PlayedMinutes,
		EstimateMinutes: copyIntPtr(f.EstimateMinutes),
		Status:          f.Status,
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Game value.
func (f GameFixture) Persistence() persistence.Game {
	return persistence.Game{
		ID:              f.ID,
		UserID:          f.UserID,
		Title:           f.Title,
		Priority:        f.Priority,
		PlayedMinutes:   f.PlayedMinutes,
		EstimateMinutes: copyIntPtr(f.EstimateMinutes),
		Status:          string(f.Status),
		CreatedAt:       f.CreatedAt,
		UpdatedAt:       f.UpdatedAt,
	}
}

// Item returns the fixture as the engine's backlog record.
func (f GameFixture) Item() backlog.Item {
	return f.Application().Item()
}

// -------------------------- Preference fixtures --------------------------

// PreferenceFixture is a weekly play budget.
type PreferenceFixture struct {
	UserID         string
	WeeklyMinutes  int
	SessionMinutes int
	Timezone       string
	DayStart       int
	DayEnd         int
	UpdatedAt      time.Time
}

// PreferenceOption configures the generated preference fixture.
type PreferenceOption func(*PreferenceFixture)

// NewPreferenceFixture returns ten hours a week in one hour blocks, in UTC.
func NewPreferenceFixture(userID string, opts ...PreferenceOption) PreferenceFixture {
	fixture := PreferenceFixture{
		UserID:         userID,
		WeeklyMinutes:  600,
		SessionMinutes: 60,
		Timezone:       "UTC",
		UpdatedAt:      referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithWeeklyMinutes overrides the weekly budget.
func WithWeeklyMinutes(minutes int) PreferenceOption {
	return func(f *PreferenceFixture) {
		f.WeeklyMinutes = minutes
	}
}

// WithSessionMinutes overrides the preferred block length.
func WithSessionMinutes(minutes int) PreferenceOption {
	return func(f *PreferenceFixture) {
		f.SessionMinutes = minutes
	}
}

// WithTimezone overrides the IANA zone.
func WithTimezone(zone string) PreferenceOption {
	return func(f *PreferenceFixture) {
		f.Timezone = zone
	}
}

// WithDayWindow restricts sessions to [start, end) minutes after local midnight.
func WithDayWindow(start, end int) PreferenceOption {
	return func(f *PreferenceFixture) {
		f.DayStart = start
		f.DayEnd = end
	}
}

// Application returns the fixture as an application.Preference value.
func (f PreferenceFixture) Application() application.Preference {
	return application.Preference{
		UserID:         f.UserID,
		WeeklyMinutes:  f.WeeklyMinutes,
		SessionMinutes: f.SessionMinutes,
		Timezone:       f.Timezone,
		DayStart:       f.DayStart,
		DayEnd:         f.DayEnd,
		UpdatedAt:      f.UpdatedAt,
	}
}

// Persistence returns the fixture as a persistence.Preference value.
func (f PreferenceFixture) Persistence() persistence.Preference {
	return persistence.Preference{
		UserID:         f.UserID,
		WeeklyMinutes:  f.WeeklyMinutes,
		SessionMinutes: f.SessionMinutes,
		Timezone:       f.Timezone,
		DayStart:       f.DayStart,
		DayEnd:         f.DayEnd,
		UpdatedAt:      f.UpdatedAt,
	}
}

// ------------------------- Play session fixtures -------------------------

// PlaySessionFixture is a calendar entry. The default is one hour starting at
// the reference time.
type PlaySessionFixture struct {
	ID        string
	UserID    string
	GameID    string
	Start     time.Time
	End       time.Time
	RunID     string
	CreatedAt time.Time
}

// PlaySessionOption configures the generated session fixture.
type PlaySessionOption func(*PlaySessionFixture)

// NewPlaySessionFixture returns a session for the given owner and game.
func NewPlaySessionFixture(userID, gameID string, opts ...PlaySessionOption) PlaySessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := PlaySessionFixture{
		ID:        fmt.Sprintf("play-%03d", idx),
		UserID:    userID,
		GameID:    gameID,
		Start:     referenceTime.Truncate(time.Minute),
		End:       referenceTime.Truncate(time.Minute).Add(time.Hour),
		CreatedAt: referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionWindow sets the start and length of the session.
func WithSessionWindow(start time.Time, length time.Duration) PlaySessionOption {
	return func(f *PlaySessionFixture) {
		f.Start = start
		f.End = start.Add(length)
	}
}

// WithSessionRun tags the session with a plan run.
func WithSessionRun(runID string) PlaySessionOption {
	return func(f *PlaySessionFixture) {
		f.RunID = runID
	}
}

// Application returns the fixture as an application.PlaySession value.
func (f PlaySessionFixture) Application() application.PlaySession {
	return application.PlaySession{
		ID:        f.ID,
		UserID:    f.UserID,
		GameID:    f.GameID,
		Start:     f.Start,
		End:       f.End,
		RunID:     f.RunID,
		CreatedAt: f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.PlaySession value.
func (f PlaySessionFixture) Persistence() persistence.PlaySession {
	var runID *string
	if f.RunID != "" {
		value := f.RunID
		runID = &value
	}
	return persistence.PlaySession{
		ID:        f.ID,
		UserID:    f.UserID,
		GameID:    f.GameID,
		Start:     f.Start,
		End:       f.End,
		RunID:     runID,
		CreatedAt: f.CreatedAt,
	}
}

// ------------------------- Auth session fixtures -------------------------

// AuthSessionFixture represents a deterministic authentication session.
type AuthSessionFixture struct {
	ID          string
	UserID      string
	Token       string
	Fingerprint string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	RevokedAt   *time.Time
}

// AuthSessionOption configures the generated session fixture.
type AuthSessionOption func(*AuthSessionFixture)

// NewAuthSessionFixture returns a session valid for a day after the reference time.
func NewAuthSessionFixture(userID string, opts ...AuthSessionOption) AuthSessionFixture {
	idx := atomic.AddUint64(&authCounter, 1)
	fixture := AuthSessionFixture{
		ID:          fmt.Sprintf("session-%03d", idx),
		UserID:      userID,
		Token:       fmt.Sprintf("token-%03d", idx),
		Fingerprint: "test-agent",
		ExpiresAt:   referenceTime.Add(24 * time.Hour),
		CreatedAt:   referenceTime,
		UpdatedAt:   referenceTime,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionToken overrides the generated token.
func WithSessionToken(token string) AuthSessionOption {
	return func(f *AuthSessionFixture) {
		f.Token = token
	}
}

// WithSessionExpiry overrides the expiry.
func WithSessionExpiry(expires time.Time) AuthSessionOption {
	return func(f *AuthSessionFixture) {
		f.ExpiresAt = expires
	}
}

// Application returns the fixture as an application.Session value.
func (f AuthSessionFixture) Application() application.Session {
	return application.Session{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   copyTimePtr(f.RevokedAt),
	}
}

// Persistence returns the fixture as a persistence.AuthSession value.
func (f AuthSessionFixture) Persistence() persistence.AuthSession {
	return persistence.AuthSession{
		ID:          f.ID,
		UserID:      f.UserID,
		Token:       f.Token,
		Fingerprint: f.Fingerprint,
		ExpiresAt:   f.ExpiresAt,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
		RevokedAt:   copyTimePtr(f.RevokedAt),
	}
}

func copyIntPtr(v *int) *int {
	if v == nil {
		return nil
	}
	value := *v
	return &value
}

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	value := *t
	return &value
}
