package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/example/backlog-scheduler/internal/backlog"
	"github.com/example/backlog-scheduler/internal/capacity"
	"github.com/example/backlog-scheduler/internal/projection"
	"github.com/example/backlog-scheduler/internal/scheduler"
	"github.com/example/backlog-scheduler/internal/userlock"
)

// PlanRepository stores generated sessions and the runs that produced them.
type PlanRepository interface {
	ListSessions(ctx context.Context, userID string, from, to time.Time) ([]PlaySession, error)
	SaveRun(ctx context.Context, run PlanRun, sessions []PlaySession) error
	DeleteRun(ctx context.Context, userID, runID string) (int, error)
	ListRuns(ctx context.Context, userID string) ([]PlanRun, error)
}

// PlanService generates, undoes and forecasts play plans.
//
// Generation holds the user's lock from reading the stored sessions until the
// new run is written, so two runs for one user never allocate against the same
// free time.
type PlanService struct {
	games       GameRepository
	preferences *PreferenceService
	plans       PlanRepository
	locker      userlock.Locker
	idGenerator func() string
	now         func() time.Time
	maxWeeks    int
	logger      *slog.Logger
}

// NewPlanService wires dependencies for plan operations.
func NewPlanService(games GameRepository, preferences *PreferenceService, plans PlanRepository, locker userlock.Locker, idGenerator func() string, now func() time.Time, maxWeeks int) *PlanService {
	return NewPlanServiceWithLogger(games, preferences, plans, locker, idGenerator, now, maxWeeks, nil)
}

// NewPlanServiceWithLogger wires dependencies with a specific logger.
func NewPlanServiceWithLogger(games GameRepository, preferences *PreferenceService, plans PlanRepository, locker userlock.Locker, idGenerator func() string, now func() time.Time, maxWeeks int, logger *slog.Logger) *PlanService {
	if locker == nil {
		locker = userlock.NewKeyedMutex()
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if maxWeeks <= 0 {
		maxWeeks = 52
	}
	return &PlanService{
		games:       games,
		preferences: preferences,
		plans:       plans,
		locker:      locker,
		idGenerator: idGenerator,
		now:         now,
		maxWeeks:    maxWeeks,
		logger:      defaultLogger(logger),
	}
}

func (s *PlanService) ready(principal Principal) error {
	if s == nil {
		return fmt.Errorf("PlanService is nil")
	}
	if s.games == nil || s.preferences == nil || s.plans == nil {
		return fmt.Errorf("plan service dependencies not configured")
	}
	if principal.UserID == "" {
		return ErrUnauthorized
	}
	return nil
}

// Generate allocates sessions for the next params.Weeks weeks and stores them as one run.
func (s *PlanService) Generate(ctx context.Context, params GenerateParams) (result PlanResult, err error) {
	if err = s.ready(params.Principal); err != nil {
		return PlanResult{}, err
	}
	userID := params.Principal.UserID
	logger := serviceLogger(ctx, s.logger, "PlanService", "Generate", "principal_id", userID, "weeks", params.Weeks)
	defer func() {
		logOutcome(ctx, logger, err, "plan generation", "run_id", result.Run.ID, "sessions", len(result.Sessions))
	}()

	if params.Weeks < 1 || params.Weeks > s.maxWeeks {
		return PlanResult{}, fieldError("weeks", fmt.Sprintf("weeks must be between 1 and %d", s.maxWeeks))
	}

	unlock, err := s.locker.Lock(ctx, userID)
	if err != nil {
		return PlanResult{}, fmt.Errorf("acquire plan lock: %w", err)
	}
	defer unlock()

	pref, games, now, err := s.inputs(ctx, params.Principal)
	if err != nil {
		return PlanResult{}, err
	}
	model, err := capacity.New(pref.Capacity())
	if err != nil {
		return PlanResult{}, engineError(err)
	}
	horizonStart, _ := model.WeekWindow(now)
	horizonEnd := horizonStart.AddDate(0, 0, 7*params.Weeks)

	stored, err := s.plans.ListSessions(ctx, userID, horizonStart, horizonEnd)
	if err != nil {
		return PlanResult{}, err
	}
	existing := make([]scheduler.Session, 0, len(stored))
	for _, session := range stored {
		existing = append(existing, scheduler.Session{GameID: session.GameID, Start: session.Start, End: session.End})
	}

	runID := s.idGenerator()
	generated, err := scheduler.Allocate(scheduler.Request{
		Backlog:  items(games),
		Capacity: pref.Capacity(),
		Existing: existing,
		Weeks:    params.Weeks,
		Now:      now,
		RunID:    runID,
	})
	if err != nil {
		return PlanResult{}, engineError(err)
	}

	createdAt := s.now()
	sessions := make([]PlaySession, 0, len(generated))
	for _, g := range generated {
		sessions = append(sessions, PlaySession{
			ID:        s.idGenerator(),
			UserID:    userID,
			GameID:    g.GameID,
			Start:     g.Start,
			End:       g.End,
			RunID:     runID,
			CreatedAt: createdAt,
		})
	}
	run := PlanRun{ID: runID, UserID: userID, Weeks: params.Weeks, SessionCount: len(sessions), CreatedAt: createdAt}
	if err = s.plans.SaveRun(ctx, run, sessions); err != nil {
		return PlanResult{}, err
	}
	return PlanResult{Run: run, Sessions: sessions}, nil
}

// UndoRun removes every session of a run and returns how many were removed.
func (s *PlanService) UndoRun(ctx context.Context, principal Principal, runID string) (removed int, err error) {
	if err = s.ready(principal); err != nil {
		return 0, err
	}
	logger := serviceLogger(ctx, s.logger, "PlanService", "UndoRun", "principal_id", principal.UserID, "run_id", runID)
	defer func() { logOutcome(ctx, logger, err, "undo run", "removed", removed) }()

	if runID == "" {
		return 0, fieldError("run_id", "run id is required")
	}
	unlock, err := s.locker.Lock(ctx, principal.UserID)
	if err != nil {
		return 0, fmt.Errorf("acquire plan lock: %w", err)
	}
	defer unlock()

	return s.plans.DeleteRun(ctx, principal.UserID, runID)
}

// ListSessions returns the principal's sessions intersecting [from, to).
// A zero bound leaves that side open.
func (s *PlanService) ListSessions(ctx context.Context, principal Principal, from, to time.Time) ([]PlaySession, error) {
	if err := s.ready(principal); err != nil {
		return nil, err
	}
	if !from.IsZero() && !to.IsZero() && !to.After(from) {
		return nil, fieldError("to", "to must be after from")
	}
	return s.plans.ListSessions(ctx, principal.UserID, from, to)
}

// ListRuns returns the principal's plan runs, newest first.
func (s *PlanService) ListRuns(ctx context.Context, principal Principal) ([]PlanRun, error) {
	if err := s.ready(principal); err != nil {
		return nil, err
	}
	return s.plans.ListRuns(ctx, principal.UserID)
}

// Project forecasts completion dates for the principal's backlog. Nothing is stored.
func (s *PlanService) Project(ctx context.Context, principal Principal) (result projection.Result, err error) {
	if err = s.ready(principal); err != nil {
		return projection.Result{}, err
	}

	pref, games, now, err := s.inputs(ctx, principal)
	if err != nil {
		return projection.Result{}, err
	}
	result, err = projection.Project(projection.Request{Backlog: items(games), Capacity: pref.Capacity(), Now: now})
	if err != nil {
		err = engineError(err)
		serviceLogger(ctx, s.logger, "PlanService", "Project", "principal_id", principal.UserID).
			ErrorContext(ctx, "projection failed", "error", err, "error_kind", ErrorKind(err))
		return projection.Result{}, err
	}
	return result, nil
}

func (s *PlanService) inputs(ctx context.Context, principal Principal) (Preference, []Game, time.Time, error) {
	pref, err := s.preferences.GetPreference(ctx, principal)
	if err != nil {
		return Preference{}, nil, time.Time{}, err
	}
	games, err := s.games.ListGames(ctx, principal.UserID)
	if err != nil {
		return Preference{}, nil, time.Time{}, err
	}
	return pref, games, nextMinute(s.now()), nil
}

// nextMinute rounds t up to a whole minute so generated sessions start on
// minute boundaries.
func nextMinute(t time.Time) time.Time {
	truncated := t.Truncate(time.Minute)
	if truncated.Equal(t) {
		return t
	}
	return truncated.Add(time.Minute)
}

func items(games []Game) []backlog.Item {
	out := make([]backlog.Item, 0, len(games))
	for _, game := range games {
		out = append(out, game.Item())
	}
	return out
}
