package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/example/backlog-scheduler/internal/persistence"
)

// PreferenceRepository implements persistence.PreferenceRepository using SQLite.
type PreferenceRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewPreferenceRepository creates a new SQLite preference repository.
func NewPreferenceRepository(pool *ConnectionPool) *PreferenceRepository {
	return &PreferenceRepository{pool: pool, mapper: NewErrorMapper()}
}

// GetPreference returns the stored preference or ErrNotFound.
func (r *PreferenceRepository) GetPreference(ctx context.Context, userID string) (persistence.Preference, error) {
	var pref persistence.Preference
	var updatedAt string
	err := r.pool.DB().QueryRowContext(ctx, `
		SELECT user_id, weekly_minutes, session_minutes, timezone, day_start, day_end, updated_at
		FROM preferences
		WHERE user_id = ?
	`, userID).Scan(
		&pref.UserID,
		&pref.WeeklyMinutes,
		&pref.SessionMinutes,
		&pref.Timezone,
		&pref.DayStart,
		&pref.DayEnd,
		&updatedAt,
	)
	if err != nil {
		return persistence.Preference{}, r.mapper.MapError(err)
	}
	if pref.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return persistence.Preference{}, err
	}
	return pref, nil
}

// UpsertPreference inserts or replaces the user's preference.
func (r *PreferenceRepository) UpsertPreference(ctx context.Context, pref persistence.Preference) error {
	if pref.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	if pref.UpdatedAt.IsZero() {
		pref.UpdatedAt = time.Now()
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO preferences (user_id, weekly_minutes, session_minutes, timezone, day_start, day_end, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			weekly_minutes = excluded.weekly_minutes,
			session_minutes = excluded.session_minutes,
			timezone = excluded.timezone,
			day_start = excluded.day_start,
			day_end = excluded.day_end,
			updated_at = excluded.updated_at
	`,
		pref.UserID,
		pref.WeeklyMinutes,
		pref.SessionMinutes,
		strings.TrimSpace(pref.Timezone),
		pref.DayStart,
		pref.DayEnd,
		formatTime(pref.UpdatedAt),
	)
	return r.mapper.MapError(err)
}
