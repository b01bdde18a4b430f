package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// CredentialStore looks up accounts for login and for resolving a session's owner.
type CredentialStore interface {
	GetUserCredentialsByEmail(ctx context.Context, email string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
}

// SessionRepository persists issued bearer tokens.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) (Session, error)
	GetSession(ctx context.Context, token string) (Session, error)
	RevokeSession(ctx context.Context, token string, revokedAt time.Time) (Session, error)
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

var errAuthNotConfigured = errors.New("application: auth service is not configured")

// AuthService turns email and password into opaque session tokens and
// resolves those tokens back into the principal whose backlog is accessed.
type AuthService struct {
	credentials CredentialStore
	sessions    SessionRepository
	verify      PasswordVerifier
	newToken    func() string
	newID       func() string
	now         func() time.Time
	ttl         time.Duration
	logger      *slog.Logger
}

// NewAuthService constructs an AuthService that logs through slog.Default.
func NewAuthService(credentials CredentialStore, sessions SessionRepository, verify PasswordVerifier, idGenerator, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration) *AuthService {
	return NewAuthServiceWithLogger(credentials, sessions, verify, idGenerator, tokenGenerator, now, sessionTTL, nil)
}

// NewAuthServiceWithLogger constructs an AuthService. Session ids fall back to
// the token generator when idGenerator is nil; the TTL defaults to 24h.
func NewAuthServiceWithLogger(credentials CredentialStore, sessions SessionRepository, verify PasswordVerifier, idGenerator, tokenGenerator func() string, now func() time.Time, sessionTTL time.Duration, logger *slog.Logger) *AuthService {
	svc := &AuthService{
		credentials: credentials,
		sessions:    sessions,
		verify:      verify,
		newToken:    tokenGenerator,
		newID:       idGenerator,
		now:         now,
		ttl:         sessionTTL,
		logger:      defaultLogger(logger),
	}
	if svc.verify == nil {
		svc.verify = VerifyPassword
	}
	if svc.newToken == nil {
		svc.newToken = func() string { return "" }
	}
	if svc.newID == nil {
		svc.newID = svc.newToken
	}
	if svc.now == nil {
		svc.now = time.Now
	}
	if svc.ttl <= 0 {
		svc.ttl = 24 * time.Hour
	}
	return svc
}

func (s *AuthService) ready() error {
	if s == nil || s.credentials == nil || s.sessions == nil {
		return errAuthNotConfigured
	}
	return nil
}

// Authenticate checks the password and issues a session valid for the TTL.
// Unknown emails and wrong passwords both yield ErrInvalidCredentials.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if err = s.ready(); err != nil {
		return
	}

	email := normalizeEmail(params.Email)
	logger := serviceLogger(ctx, s.logger, "AuthService", "Authenticate", "email", email)
	defer func() {
		logOutcome(ctx, logger, err, "authentication", "user_id", result.User.ID, "session_id", result.Session.ID)
	}()

	if email == "" || params.Password == "" {
		err = ErrInvalidCredentials
		return
	}
	creds, lookupErr := s.credentials.GetUserCredentialsByEmail(ctx, email)
	switch {
	case errors.Is(lookupErr, ErrNotFound):
		err = ErrInvalidCredentials
		return
	case lookupErr != nil:
		err = lookupErr
		return
	}
	if s.verify(creds.PasswordHash, params.Password) != nil {
		err = ErrInvalidCredentials
		return
	}

	session, err := s.issue(ctx, creds.User.ID, params.Fingerprint)
	if err != nil {
		return
	}
	result = AuthenticateResult{User: creds.User, Session: session}
	return
}

// issue prunes expired tokens and stores a fresh one for userID.
func (s *AuthService) issue(ctx context.Context, userID, fingerprint string) (Session, error) {
	now := s.now()
	token := s.newToken()
	if token == "" {
		return Session{}, fmt.Errorf("application: token generator returned an empty token")
	}
	if err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return Session{}, err
	}
	return s.sessions.CreateSession(ctx, Session{
		ID:          s.newID(),
		UserID:      userID,
		Token:       token,
		Fingerprint: strings.TrimSpace(fingerprint),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(s.ttl),
	})
}

// ValidateSession resolves a bearer or cookie token into a principal.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if err = s.ready(); err != nil {
		return
	}

	token = strings.TrimSpace(token)
	logger := serviceLogger(ctx, s.logger, "AuthService", "ValidateSession", "token_provided", token != "")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.DebugContext(ctx, "session validated", "principal_id", principal.UserID)
	}()

	session, err := s.resolve(ctx, token)
	if err != nil {
		return
	}
	switch now := s.now(); {
	case session.RevokedAt != nil && !session.RevokedAt.IsZero():
		err = ErrSessionRevoked
		return
	case !session.ExpiresAt.After(now):
		err = ErrSessionExpired
		return
	}

	user, err := s.credentials.GetUser(ctx, session.UserID)
	if errors.Is(err, ErrNotFound) {
		err = ErrUnauthorized
	}
	if err != nil {
		return
	}
	principal = Principal{UserID: user.ID}
	return
}

// resolve loads the stored session for token. A blank token is an invalid
// credential and an unknown one is unauthorized.
func (s *AuthService) resolve(ctx context.Context, token string) (Session, error) {
	if token == "" {
		return Session{}, ErrInvalidCredentials
	}
	session, err := s.sessions.GetSession(ctx, token)
	if errors.Is(err, ErrNotFound) {
		return Session{}, ErrUnauthorized
	}
	return session, err
}

// RevokeSession ends the session behind token (logout).
func (s *AuthService) RevokeSession(ctx context.Context, token string) (err error) {
	if s == nil || s.sessions == nil {
		return errAuthNotConfigured
	}

	token = strings.TrimSpace(token)
	logger := serviceLogger(ctx, s.logger, "AuthService", "RevokeSession", "token_provided", token != "")
	defer func() { logOutcome(ctx, logger, err, "session revocation") }()

	if token == "" {
		return ErrInvalidCredentials
	}
	now := s.now()
	if _, err = s.sessions.RevokeSession(ctx, token, now); err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return err
	}
	return s.sessions.DeleteExpiredSessions(ctx, now)
}
