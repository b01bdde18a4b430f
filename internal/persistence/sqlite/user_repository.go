package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/backlog-scheduler/internal/persistence"
)

// UserRepository implements persistence.UserRepository using SQLite
type UserRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewUserRepository creates a new SQLite user repository
func NewUserRepository(pool *ConnectionPool) *UserRepository {
	return &UserRepository{pool: pool, mapper: NewErrorMapper()}
}

const userColumns = `id, email, display_name, password_hash, created_at, updated_at`

// CreateUser inserts a new user. Emails are stored lower-cased so lookups are
// case-insensitive.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" || user.PasswordHash == "" {
		return persistence.ErrConstraintViolation
	}

	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		user.ID,
		normalizeEmail(user.Email),
		strings.TrimSpace(user.DisplayName),
		user.PasswordHash,
		formatTime(user.CreatedAt),
		formatTime(user.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// GetUser retrieves a user by ID from the database
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.scanUser(r.pool.DB().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
}

// GetUserByEmail retrieves a user by email address from the database
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	normalized := normalizeEmail(email)
	if normalized == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	return r.scanUser(r.pool.DB().QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, normalized))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *UserRepository) scanUser(row rowScanner) (persistence.User, error) {
	var user persistence.User
	var createdAt, updatedAt string
	if err := row.Scan(&user.ID, &user.Email, &user.DisplayName, &user.PasswordHash, &createdAt, &updatedAt); err != nil {
		return persistence.User{}, r.mapper.MapError(err)
	}

	var err error
	if user.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return persistence.User{}, err
	}
	if user.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return persistence.User{}, err
	}
	return user, nil
}

// normalizeEmail normalizes email addresses for consistent storage and lookup
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
