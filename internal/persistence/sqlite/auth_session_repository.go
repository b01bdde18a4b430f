package sqlite

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/example/backlog-scheduler/internal/persistence"
)

// AuthSessionRepository implements persistence.AuthSessionRepository using SQLite.
type AuthSessionRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewAuthSessionRepository creates a new SQLite session repository.
func NewAuthSessionRepository(pool *ConnectionPool) *AuthSessionRepository {
	return &AuthSessionRepository{pool: pool, mapper: NewErrorMapper()}
}

const authSessionColumns = `id, user_id, token, fingerprint, expires_at, revoked_at, created_at, updated_at`

// CreateSession stores a new session token for a user
func (r *AuthSessionRepository) CreateSession(ctx context.Context, session persistence.AuthSession) (persistence.AuthSession, error) {
	session.Token = strings.TrimSpace(session.Token)
	session.Fingerprint = strings.TrimSpace(session.Fingerprint)
	if session.ID == "" || session.UserID == "" || session.Token == "" {
		return persistence.AuthSession{}, persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = session.CreatedAt

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO auth_sessions (`+authSessionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		session.ID,
		session.UserID,
		session.Token,
		session.Fingerprint,
		formatTime(session.ExpiresAt),
		nullableTime(session.RevokedAt),
		formatTime(session.CreatedAt),
		formatTime(session.UpdatedAt),
	)
	if err != nil {
		return persistence.AuthSession{}, r.mapper.MapError(err)
	}
	return r.GetSession(ctx, session.Token)
}

// GetSession retrieves a session by its token value
func (r *AuthSessionRepository) GetSession(ctx context.Context, token string) (persistence.AuthSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}
	return r.scanSession(r.pool.DB().QueryRowContext(ctx,
		`SELECT `+authSessionColumns+` FROM auth_sessions WHERE token = ?`, token))
}

// RevokeSession marks a session as revoked. Revoking twice keeps the first timestamp.
func (r *AuthSessionRepository) RevokeSession(ctx context.Context, token string, revokedAt time.Time) (persistence.AuthSession, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return persistence.AuthSession{}, persistence.ErrNotFound
	}

	var revoked persistence.AuthSession
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		current, err := r.scanSession(tx.QueryRowContext(ctx,
			`SELECT `+authSessionColumns+` FROM auth_sessions WHERE token = ?`, token))
		if err != nil {
			return err
		}
		if current.RevokedAt != nil {
			revoked = current
			return nil
		}

		at := revokedAt.UTC().Truncate(time.Second)
		if _, err := tx.ExecContext(ctx,
			`UPDATE auth_sessions SET revoked_at = ?, updated_at = ? WHERE token = ?`,
			formatTime(at), formatTime(at), token); err != nil {
			return r.mapper.MapError(err)
		}
		current.RevokedAt = &at
		current.UpdatedAt = at
		revoked = current
		return nil
	})
	if err != nil {
		return persistence.AuthSession{}, err
	}
	return revoked, nil
}

// DeleteExpiredSessions removes sessions that expired on or before reference.
func (r *AuthSessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	_, err := r.pool.DB().ExecContext(ctx, `DELETE FROM auth_sessions WHERE expires_at <= ?`, formatTime(reference))
	return r.mapper.MapError(err)
}

func (r *AuthSessionRepository) scanSession(row rowScanner) (persistence.AuthSession, error) {
	var session persistence.AuthSession
	var expiresAt, createdAt, updatedAt string
	var revokedAt sql.NullString
	err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.Token,
		&session.Fingerprint,
		&expiresAt,
		&revokedAt,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.AuthSession{}, r.mapper.MapError(err)
	}

	if session.ExpiresAt, err = parseTime(expiresAt, "expires_at"); err != nil {
		return persistence.AuthSession{}, err
	}
	if session.RevokedAt, err = parseNullableTime(revokedAt, "revoked_at"); err != nil {
		return persistence.AuthSession{}, err
	}
	if session.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return persistence.AuthSession{}, err
	}
	if session.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return persistence.AuthSession{}, err
	}
	return session, nil
}
