package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/backlog-scheduler/internal/application"
	"github.com/example/backlog-scheduler/internal/backlog"
	"github.com/example/backlog-scheduler/internal/persistence"
)

// storageError translates persistence sentinels into the application errors
// the services branch on. The original error stays in the chain.
func storageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %w", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %w", application.ErrAlreadyExists, err)
	case errors.Is(err, persistence.ErrConflict):
		return fmt.Errorf("%w: %w", application.ErrConflict, err)
	case errors.Is(err, persistence.ErrForeignKeyViolation):
		return fmt.Errorf("%w: %w", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrConstraintViolation):
		return fmt.Errorf("%w: %w", application.ErrIntegrity, err)
	}
	return err
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, creds application.UserCredentials) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(creds)); err != nil {
		return application.User{}, storageError(err)
	}
	return a.GetUser(ctx, creds.User.ID)
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, storageError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserCredentialsByEmail(ctx context.Context, email string) (application.UserCredentials, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.UserCredentials{}, storageError(err)
	}
	return application.UserCredentials{
		User:         toApplicationUser(stored),
		PasswordHash: stored.PasswordHash,
	}, nil
}

type gameRepositoryAdapter struct {
	repo persistence.GameRepository
}

func newGameRepositoryAdapter(repo persistence.GameRepository) *gameRepositoryAdapter {
	return &gameRepositoryAdapter{repo: repo}
}

func (a *gameRepositoryAdapter) CreateGame(ctx context.Context, game application.Game) (application.Game, error) {
	if err := a.repo.CreateGame(ctx, toPersistenceGame(game)); err != nil {
		return application.Game{}, storageError(err)
	}
	return a.GetGame(ctx, game.UserID, game.ID)
}

func (a *gameRepositoryAdapter) UpdateGame(ctx context.Context, game application.Game) (application.Game, error) {
	if err := a.repo.UpdateGame(ctx, toPersistenceGame(game)); err != nil {
		return application.Game{}, storageError(err)
	}
	return a.GetGame(ctx, game.UserID, game.ID)
}

func (a *gameRepositoryAdapter) GetGame(ctx context.Context, userID, id string) (application.Game, error) {
	stored, err := a.repo.GetGame(ctx, userID, id)
	if err != nil {
		return application.Game{}, storageError(err)
	}
	return toApplicationGame(stored), nil
}

func (a *gameRepositoryAdapter) ListGames(ctx context.Context, userID string) ([]application.Game, error) {
	models, err := a.repo.ListGames(ctx, userID)
	if err != nil {
		return nil, storageError(err)
	}
	games := make([]application.Game, 0, len(models))
	for _, model := range models {
		games = append(games, toApplicationGame(model))
	}
	return games, nil
}

func (a *gameRepositoryAdapter) DeleteGame(ctx context.Context, userID, id string) error {
	return storageError(a.repo.DeleteGame(ctx, userID, id))
}

func (a *gameRepositoryAdapter) Reorder(ctx context.Context, userID string, orderedIDs []string) error {
	return storageError(a.repo.Reorder(ctx, userID, orderedIDs))
}

type preferenceRepositoryAdapter struct {
	repo persistence.PreferenceRepository
}

func newPreferenceRepositoryAdapter(repo persistence.PreferenceRepository) *preferenceRepositoryAdapter {
	return &preferenceRepositoryAdapter{repo: repo}
}

func (a *preferenceRepositoryAdapter) GetPreference(ctx context.Context, userID string) (application.Preference, error) {
	stored, err := a.repo.GetPreference(ctx, userID)
	if err != nil {
		return application.Preference{}, storageError(err)
	}
	return application.Preference(stored), nil
}

func (a *preferenceRepositoryAdapter) UpsertPreference(ctx context.Context, pref application.Preference) (application.Preference, error) {
	if err := a.repo.UpsertPreference(ctx, persistence.Preference(pref)); err != nil {
		return application.Preference{}, storageError(err)
	}
	return a.GetPreference(ctx, pref.UserID)
}

type planRepositoryAdapter struct {
	repo persistence.PlaySessionRepository
}

func newPlanRepositoryAdapter(repo persistence.PlaySessionRepository) *planRepositoryAdapter {
	return &planRepositoryAdapter{repo: repo}
}

func (a *planRepositoryAdapter) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]application.PlaySession, error) {
	models, err := a.repo.ListSessions(ctx, userID, from, to)
	if err != nil {
		return nil, storageError(err)
	}
	sessions := make([]application.PlaySession, 0, len(models))
	for _, model := range models {
		sessions = append(sessions, toApplicationPlaySession(model))
	}
	return sessions, nil
}

func (a *planRepositoryAdapter) SaveRun(ctx context.Context, run application.PlanRun, sessions []application.PlaySession) error {
	models := make([]persistence.PlaySession, 0, len(sessions))
	for _, session := range sessions {
		models = append(models, toPersistencePlaySession(session))
	}
	return storageError(a.repo.SaveRun(ctx, persistence.PlanRun(run), models))
}

func (a *planRepositoryAdapter) DeleteRun(ctx context.Context, userID, runID string) (int, error) {
	removed, err := a.repo.DeleteRun(ctx, userID, runID)
	return removed, storageError(err)
}

func (a *planRepositoryAdapter) ListRuns(ctx context.Context, userID string) ([]application.PlanRun, error) {
	models, err := a.repo.ListRuns(ctx, userID)
	if err != nil {
		return nil, storageError(err)
	}
	runs := make([]application.PlanRun, 0, len(models))
	for _, model := range models {
		runs = append(runs, application.PlanRun(model))
	}
	return runs, nil
}

type sessionRepositoryAdapter struct {
	repo persistence.AuthSessionRepository
}

func newSessionRepositoryAdapter(repo persistence.AuthSessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.Session) (application.Session, error) {
	stored, err := a.repo.CreateSession(ctx, persistence.AuthSession(session))
	if err != nil {
		return application.Session{}, storageError(err)
	}
	return application.Session(stored), nil
}

func (a *sessionRepositoryAdapter) GetSession(ctx context.Context, token string) (application.Session, error) {
	stored, err := a.repo.GetSession(ctx, token)
	if err != nil {
		return application.Session{}, storageError(err)
	}
	return application.Session(stored), nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (application.Session, error) {
	stored, err := a.repo.RevokeSession(ctx, token, revokedAt)
	if err != nil {
		return application.Session{}, storageError(err)
	}
	return application.Session(stored), nil
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return storageError(a.repo.DeleteExpiredSessions(ctx, reference))
}

func toApplicationUser(model persistence.User) application.User {
	return application.User{
		ID:          model.ID,
		Email:       model.Email,
		DisplayName: model.DisplayName,
		CreatedAt:   model.CreatedAt,
		UpdatedAt:   model.UpdatedAt,
	}
}

func toPersistenceUser(creds application.UserCredentials) persistence.User {
	return persistence.User{
		ID:           creds.User.ID,
		Email:        creds.User.Email,
		DisplayName:  creds.User.DisplayName,
		PasswordHash: creds.PasswordHash,
		CreatedAt:    creds.User.CreatedAt,
		UpdatedAt:    creds.User.UpdatedAt,
	}
}

func toApplicationGame(model persistence.Game) application.Game {
	status, err := backlog.ParseStatus(model.Status)
	if err != nil {
		// Unknown values read as inactive.
		status = backlog.Status(model.Status)
	}
	return application.Game{
		ID:              model.ID,
		UserID:          model.UserID,
		Title:           model.Title,
		Priority:        model.Priority,
		PlayedMinutes:   model.PlayedMinutes,
		EstimateMinutes: cloneInt(model.EstimateMinutes),
		Status:          status,
		CreatedAt:       model.CreatedAt,
		UpdatedAt:       model.UpdatedAt,
	}
}

func toPersistenceGame(game application.Game) persistence.Game {
	return persistence.Game{
		ID:              game.ID,
		UserID:          game.UserID,
		Title:           game.Title,
		Priority:        game.Priority,
		PlayedMinutes:   game.PlayedMinutes,
		EstimateMinutes: cloneInt(game.EstimateMinutes),
		Status:          string(game.Status),
		CreatedAt:       game.CreatedAt,
		UpdatedAt:       game.UpdatedAt,
	}
}

func toApplicationPlaySession(model persistence.PlaySession) application.PlaySession {
	runID := ""
	if model.RunID != nil {
		runID = *model.RunID
	}
	return application.PlaySession{
		ID:        model.ID,
		UserID:    model.UserID,
		GameID:    model.GameID,
		Start:     model.Start,
		End:       model.End,
		RunID:     runID,
		CreatedAt: model.CreatedAt,
	}
}

func toPersistencePlaySession(session application.PlaySession) persistence.PlaySession {
	var runID *string
	if session.RunID != "" {
		value := session.RunID
		runID = &value
	}
	return persistence.PlaySession{
		ID:        session.ID,
		UserID:    session.UserID,
		GameID:    session.GameID,
		Start:     session.Start,
		End:       session.End,
		RunID:     runID,
		CreatedAt: session.CreatedAt,
	}
}

func cloneInt(value *int) *int {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
