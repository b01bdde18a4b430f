package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// credentialStoreStub implements CredentialStore for tests.
type credentialStoreStub struct {
	credentials UserCredentials
	err         error
}

func (c *credentialStoreStub) GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error) {
	if c.err != nil {
		return UserCredentials{}, c.err
	}
	if c.credentials.User.ID == "" || c.credentials.User.Email != email {
		return UserCredentials{}, ErrNotFound
	}
	return c.credentials, nil
}

func (c *credentialStoreStub) GetUser(ctx context.Context, id string) (User, error) {
	if c.err != nil {
		return User{}, c.err
	}
	if c.credentials.User.ID == id {
		return c.credentials.User, nil
	}
	return User{}, ErrNotFound
}

// sessionRepositoryStub provides an in-memory implementation of SessionRepository for tests.
type sessionRepositoryStub struct {
	sessionsByToken map[string]Session

	createErr error
	getErr    error
	revokeErr error
	deleteErr error

	deleteCalls []time.Time
}

func newSessionRepositoryStub() *sessionRepositoryStub {
	return &sessionRepositoryStub{sessionsByToken: make(map[string]Session)}
}

func (s *sessionRepositoryStub) seed(session Session) {
	s.sessionsByToken[session.Token] = session
}

func (s *sessionRepositoryStub) CreateSession(ctx context.Context, session Session) (Session, error) {
	if s.createErr != nil {
		return Session{}, s.createErr
	}
	s.seed(session)
	return session, nil
}

func (s *sessionRepositoryStub) GetSession(ctx context.Context, token string) (Session, error) {
	if s.getErr != nil {
		return Session{}, s.getErr
	}
	session, ok := s.sessionsByToken[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	return session, nil
}

func (s *sessionRepositoryStub) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error) {
	if s.revokeErr != nil {
		return Session{}, s.revokeErr
	}
	session, ok := s.sessionsByToken[token]
	if !ok {
		return Session{}, ErrNotFound
	}
	revoked := revokedAt.UTC()
	session.RevokedAt = &revoked
	session.UpdatedAt = revoked
	s.sessionsByToken[token] = session
	return session, nil
}

func (s *sessionRepositoryStub) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.deleteCalls = append(s.deleteCalls, reference)
	for token, session := range s.sessionsByToken {
		if !session.ExpiresAt.After(reference) {
			delete(s.sessionsByToken, token)
		}
	}
	return nil
}

// userRepositoryStub stores accounts keyed by id with unique emails.
type userRepositoryStub struct {
	users     map[string]UserCredentials
	createErr error
}

func newUserRepositoryStub() *userRepositoryStub {
	return &userRepositoryStub{users: make(map[string]UserCredentials)}
}

func (r *userRepositoryStub) CreateUser(ctx context.Context, creds UserCredentials) (User, error) {
	if r.createErr != nil {
		return User{}, r.createErr
	}
	for _, existing := range r.users {
		if existing.User.Email == creds.User.Email {
			return User{}, ErrAlreadyExists
		}
	}
	r.users[creds.User.ID] = creds
	return creds.User, nil
}

func (r *userRepositoryStub) GetUser(ctx context.Context, id string) (User, error) {
	creds, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return creds.User, nil
}

// preferenceRepositoryStub keeps one preference per user.
type preferenceRepositoryStub struct {
	prefs map[string]Preference
}

func newPreferenceRepositoryStub() *preferenceRepositoryStub {
	return &preferenceRepositoryStub{prefs: make(map[string]Preference)}
}

func (r *preferenceRepositoryStub) GetPreference(ctx context.Context, userID string) (Preference, error) {
	pref, ok := r.prefs[userID]
	if !ok {
		return Preference{}, ErrNotFound
	}
	return pref, nil
}

func (r *preferenceRepositoryStub) UpsertPreference(ctx context.Context, pref Preference) (Preference, error) {
	r.prefs[pref.UserID] = pref
	return pref, nil
}

// gameRepositoryStub mirrors the storage rule that active priorities are unique per user.
type gameRepositoryStub struct {
	mu         sync.Mutex
	games      map[string]Game
	reorderLog [][]string
}

func newGameRepositoryStub(games ...Game) *gameRepositoryStub {
	r := &gameRepositoryStub{games: make(map[string]Game)}
	for _, g := range games {
		r.games[g.ID] = g
	}
	return r
}

func (r *gameRepositoryStub) priorityTaken(game Game) bool {
	if !game.Status.Active() {
		return false
	}
	for _, other := range r.games {
		if other.ID != game.ID && other.UserID == game.UserID && other.Status.Active() && other.Priority == game.Priority {
			return true
		}
	}
	return false
}

func (r *gameRepositoryStub) CreateGame(ctx context.Context, game Game) (Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.games[game.ID]; ok || r.priorityTaken(game) {
		return Game{}, ErrAlreadyExists
	}
	r.games[game.ID] = game
	return game, nil
}

func (r *gameRepositoryStub) UpdateGame(ctx context.Context, game Game) (Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.games[game.ID]
	if !ok || current.UserID != game.UserID {
		return Game{}, ErrNotFound
	}
	if r.priorityTaken(game) {
		return Game{}, ErrAlreadyExists
	}
	r.games[game.ID] = game
	return game, nil
}

func (r *gameRepositoryStub) GetGame(ctx context.Context, userID, id string) (Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	game, ok := r.games[id]
	if !ok || game.UserID != userID {
		return Game{}, ErrNotFound
	}
	return game, nil
}

func (r *gameRepositoryStub) ListGames(ctx context.Context, userID string) ([]Game, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Game, 0)
	for _, game := range r.games {
		if game.UserID == userID {
			out = append(out, game)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *gameRepositoryStub) DeleteGame(ctx context.Context, userID, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	game, ok := r.games[id]
	if !ok || game.UserID != userID {
		return ErrNotFound
	}
	delete(r.games, id)
	return nil
}

func (r *gameRepositoryStub) Reorder(ctx context.Context, userID string, orderedIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, id := range orderedIDs {
		game, ok := r.games[id]
		if !ok || game.UserID != userID {
			return ErrNotFound
		}
		game.Priority = i + 1
		r.games[id] = game
	}
	r.reorderLog = append(r.reorderLog, append([]string(nil), orderedIDs...))
	return nil
}

func (r *gameRepositoryStub) priorities(userID string) map[string]int {
	games, _ := r.ListGames(context.Background(), userID)
	out := make(map[string]int, len(games))
	for _, g := range games {
		out[g.ID] = g.Priority
	}
	return out
}

// planRepositoryStub stores runs in memory and rejects overlapping sessions.
type planRepositoryStub struct {
	mu       sync.Mutex
	runs     map[string]PlanRun
	sessions []PlaySession
	saveErr  error
}

func newPlanRepositoryStub(existing ...PlaySession) *planRepositoryStub {
	return &planRepositoryStub{runs: make(map[string]PlanRun), sessions: existing}
}

func (r *planRepositoryStub) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]PlaySession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PlaySession, 0)
	for _, s := range r.sessions {
		if s.UserID != userID {
			continue
		}
		if !to.IsZero() && !s.Start.Before(to) {
			continue
		}
		if !from.IsZero() && !s.End.After(from) {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (r *planRepositoryStub) SaveRun(ctx context.Context, run PlanRun, sessions []PlaySession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	for _, candidate := range sessions {
		for _, stored := range r.sessions {
			if stored.UserID == candidate.UserID && stored.Start.Before(candidate.End) && candidate.Start.Before(stored.End) {
				return fmt.Errorf("%w: %s overlaps %s", ErrConflict, candidate.ID, stored.ID)
			}
		}
	}
	r.runs[run.ID] = run
	r.sessions = append(r.sessions, sessions...)
	return nil
}

func (r *planRepositoryStub) DeleteRun(ctx context.Context, userID, runID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[runID]
	if !ok || run.UserID != userID {
		return 0, ErrNotFound
	}
	kept := r.sessions[:0]
	removed := 0
	for _, s := range r.sessions {
		if s.RunID == runID {
			removed++
			continue
		}
		kept = append(kept, s)
	}
	r.sessions = kept
	delete(r.runs, runID)
	return removed, nil
}

func (r *planRepositoryStub) ListRuns(ctx context.Context, userID string) ([]PlanRun, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]PlanRun, 0)
	for _, run := range r.runs {
		if run.UserID == userID {
			out = append(out, run)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func sequence(prefix string) func() string {
	var mu sync.Mutex
	n := 0
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}
