package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/example/backlog-scheduler/internal/backlog"
)

// GameRepository captures the persistence operations needed for a user's library.
type GameRepository interface {
	CreateGame(ctx context.Context, game Game) (Game, error)
	UpdateGame(ctx context.Context, game Game) (Game, error)
	GetGame(ctx context.Context, userID, id string) (Game, error)
	ListGames(ctx context.Context, userID string) ([]Game, error)
	DeleteGame(ctx context.Context, userID, id string) error
	Reorder(ctx context.Context, userID string, orderedIDs []string) error
}

const maxTitleLength = 200

// LibraryService manages library entries and keeps active priorities dense.
//
// Active games (planned or playing) hold priorities 1..n without gaps; finished
// and dropped games hold priority 0.
type LibraryService struct {
	games       GameRepository
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewLibraryService wires dependencies for library operations.
func NewLibraryService(games GameRepository, idGenerator func() string, now func() time.Time) *LibraryService {
	return NewLibraryServiceWithLogger(games, idGenerator, now, nil)
}

// NewLibraryServiceWithLogger wires dependencies with a specific logger.
func NewLibraryServiceWithLogger(games GameRepository, idGenerator func() string, now func() time.Time, logger *slog.Logger) *LibraryService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &LibraryService{games: games, idGenerator: idGenerator, now: now, logger: defaultLogger(logger)}
}

func (s *LibraryService) loggerWith(ctx context.Context, operation string, principal Principal, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "LibraryService", operation, append([]any{"principal_id", principal.UserID}, attrs...)...)
}

func (s *LibraryService) ready(principal Principal) error {
	if s == nil {
		return fmt.Errorf("LibraryService is nil")
	}
	if s.games == nil {
		return fmt.Errorf("game repository not configured")
	}
	if principal.UserID == "" {
		return ErrUnauthorized
	}
	return nil
}

// ListGames returns every game in the principal's library.
func (s *LibraryService) ListGames(ctx context.Context, principal Principal) ([]Game, error) {
	if err := s.ready(principal); err != nil {
		return nil, err
	}
	return s.games.ListGames(ctx, principal.UserID)
}

// GetGame returns one game of the principal's library.
func (s *LibraryService) GetGame(ctx context.Context, principal Principal, gameID string) (Game, error) {
	if err := s.ready(principal); err != nil {
		return Game{}, err
	}
	return s.games.GetGame(ctx, principal.UserID, gameID)
}

// AddGame stores a new entry. Active entries are appended at the lowest priority.
func (s *LibraryService) AddGame(ctx context.Context, principal Principal, input GameInput) (game Game, err error) {
	if err = s.ready(principal); err != nil {
		return Game{}, err
	}
	logger := s.loggerWith(ctx, "AddGame", principal)
	defer func() { logOutcome(ctx, logger, err, "add game", "game_id", game.ID, "priority", game.Priority) }()

	status, vErr := validateGameFields(input.Title, input.Status, input.PlayedMinutes, input.EstimateMinutes)
	if vErr.HasErrors() {
		return Game{}, vErr
	}

	now := s.now()
	game = Game{
		ID:              s.idGenerator(),
		UserID:          principal.UserID,
		Title:           strings.TrimSpace(input.Title),
		PlayedMinutes:   input.PlayedMinutes,
		EstimateMinutes: copyInt(input.EstimateMinutes),
		Status:          status,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if status.Active() {
		if game.Priority, err = s.nextPriority(ctx, principal.UserID); err != nil {
			return Game{}, err
		}
	}

	priority := game.Priority
	if game, err = s.games.CreateGame(ctx, game); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			err = fmt.Errorf("%w: priority %d was taken concurrently", ErrConflict, priority)
		}
		return Game{}, err
	}
	return game, nil
}

// UpdateGame applies a partial update. Leaving the active set closes the gap in
// priorities; entering it appends the game at the lowest priority.
func (s *LibraryService) UpdateGame(ctx context.Context, principal Principal, gameID string, update GameUpdate) (game Game, err error) {
	if err = s.ready(principal); err != nil {
		return Game{}, err
	}
	logger := s.loggerWith(ctx, "UpdateGame", principal, "game_id", gameID)
	defer func() { logOutcome(ctx, logger, err, "update game", "status", game.Status, "priority", game.Priority) }()

	existing, err := s.games.GetGame(ctx, principal.UserID, gameID)
	if err != nil {
		return Game{}, err
	}

	title := existing.Title
	if update.Title != nil {
		title = *update.Title
	}
	statusValue := string(existing.Status)
	if update.Status != nil {
		statusValue = *update.Status
	}
	played := existing.PlayedMinutes
	if update.PlayedMinutes != nil {
		played = *update.PlayedMinutes
	}
	estimate := existing.EstimateMinutes
	if update.EstimateMinutes != nil {
		estimate = update.EstimateMinutes
	}
	if update.ClearEstimate {
		estimate = nil
	}

	status, vErr := validateGameFields(title, statusValue, played, estimate)
	if vErr.HasErrors() {
		return Game{}, vErr
	}

	game = existing
	game.Title = strings.TrimSpace(title)
	game.Status = status
	game.PlayedMinutes = played
	game.EstimateMinutes = copyInt(estimate)
	game.UpdatedAt = s.now()

	wasActive := existing.Status.Active()
	switch {
	case wasActive && !status.Active():
		game.Priority = 0
	case !wasActive && status.Active():
		if game.Priority, err = s.nextPriority(ctx, principal.UserID); err != nil {
			return Game{}, err
		}
	}

	if game, err = s.games.UpdateGame(ctx, game); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			err = fmt.Errorf("%w: priority was taken concurrently", ErrConflict)
		}
		return Game{}, err
	}
	if wasActive && !status.Active() {
		err = s.compact(ctx, principal.UserID)
	}
	return game, err
}

// RemoveGame deletes an entry and its play sessions.
func (s *LibraryService) RemoveGame(ctx context.Context, principal Principal, gameID string) (err error) {
	if err = s.ready(principal); err != nil {
		return err
	}
	logger := s.loggerWith(ctx, "RemoveGame", principal, "game_id", gameID)
	defer func() { logOutcome(ctx, logger, err, "remove game") }()

	existing, err := s.games.GetGame(ctx, principal.UserID, gameID)
	if err != nil {
		return err
	}
	if err = s.games.DeleteGame(ctx, principal.UserID, gameID); err != nil {
		return err
	}
	if existing.Status.Active() {
		return s.compact(ctx, principal.UserID)
	}
	return nil
}

// Reorder sets the backlog order. gameIDs must name every active game exactly once.
func (s *LibraryService) Reorder(ctx context.Context, principal Principal, gameIDs []string) (err error) {
	if err = s.ready(principal); err != nil {
		return err
	}
	logger := s.loggerWith(ctx, "Reorder", principal, "count", len(gameIDs))
	defer func() { logOutcome(ctx, logger, err, "reorder backlog") }()

	active, err := s.activeGames(ctx, principal.UserID)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(active))
	for _, game := range active {
		known[game.ID] = true
	}

	seen := make(map[string]bool, len(gameIDs))
	for _, id := range gameIDs {
		switch {
		case !known[id]:
			return fieldError("game_ids", fmt.Sprintf("%q is not an active game", id))
		case seen[id]:
			return fieldError("game_ids", fmt.Sprintf("%q is listed twice", id))
		}
		seen[id] = true
	}
	if len(seen) != len(active) {
		return fieldError("game_ids", fmt.Sprintf("expected all %d active games, got %d", len(active), len(seen)))
	}
	return s.games.Reorder(ctx, principal.UserID, gameIDs)
}

// OrderedBacklog returns the active games in the order the engine consumes them.
func (s *LibraryService) OrderedBacklog(ctx context.Context, principal Principal) ([]Game, error) {
	if err := s.ready(principal); err != nil {
		return nil, err
	}
	games, err := s.games.ListGames(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]Game, len(games))
	items := make([]backlog.Item, 0, len(games))
	for _, game := range games {
		byID[game.ID] = game
		items = append(items, game.Item())
	}
	ordered, err := backlog.Order(items)
	if err != nil {
		return nil, engineError(err)
	}

	out := make([]Game, 0, len(ordered))
	for _, item := range ordered {
		out = append(out, byID[item.GameID])
	}
	return out, nil
}

func (s *LibraryService) activeGames(ctx context.Context, userID string) ([]Game, error) {
	games, err := s.games.ListGames(ctx, userID)
	if err != nil {
		return nil, err
	}
	active := make([]Game, 0, len(games))
	for _, game := range games {
		if game.Status.Active() {
			active = append(active, game)
		}
	}
	sort.SliceStable(active, func(i, j int) bool { return active[i].Priority < active[j].Priority })
	return active, nil
}

func (s *LibraryService) nextPriority(ctx context.Context, userID string) (int, error) {
	active, err := s.activeGames(ctx, userID)
	if err != nil {
		return 0, err
	}
	if len(active) == 0 {
		return 1, nil
	}
	return active[len(active)-1].Priority + 1, nil
}

// compact renumbers the active games 1..n keeping their relative order.
func (s *LibraryService) compact(ctx context.Context, userID string) error {
	active, err := s.activeGames(ctx, userID)
	if err != nil {
		return err
	}
	ids := make([]string, len(active))
	dense := true
	for i, game := range active {
		ids[i] = game.ID
		if game.Priority != i+1 {
			dense = false
		}
	}
	if dense {
		return nil
	}
	return s.games.Reorder(ctx, userID, ids)
}

func validateGameFields(title, status string, played int, estimate *int) (backlog.Status, *ValidationError) {
	vErr := &ValidationError{}

	trimmed := strings.TrimSpace(title)
	if trimmed == "" {
		vErr.add("title", "title is required")
	} else if utf8.RuneCountInString(trimmed) > maxTitleLength {
		vErr.add("title", fmt.Sprintf("title must be at most %d characters", maxTitleLength))
	}

	parsed, err := backlog.ParseStatus(status)
	if err != nil {
		vErr.add("status", "status must be planned, playing, finished or dropped")
	}
	if played < 0 {
		vErr.add("played_minutes", "played minutes must not be negative")
	}
	if estimate != nil && *estimate < 0 {
		vErr.add("estimate_minutes", "estimate must not be negative")
	}
	return parsed, vErr
}

func copyInt(value *int) *int {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
