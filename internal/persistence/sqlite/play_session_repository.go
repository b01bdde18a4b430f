package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/example/backlog-scheduler/internal/persistence"
)

// PlaySessionRepository implements persistence.PlaySessionRepository using SQLite.
type PlaySessionRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
	retry  *RetryHelper
}

// NewPlaySessionRepository creates a new SQLite play session repository.
func NewPlaySessionRepository(pool *ConnectionPool) *PlaySessionRepository {
	return &PlaySessionRepository{
		pool:   pool,
		mapper: NewErrorMapper(),
		retry:  NewRetryHelper(DefaultRetryConfig()),
	}
}

const playSessionColumns = `id, user_id, game_id, start_unix, end_unix, run_id, created_at`

// ListSessions returns sessions intersecting [from, to) ordered by start.
func (r *PlaySessionRepository) ListSessions(ctx context.Context, userID string, from, to time.Time) ([]persistence.PlaySession, error) {
	return r.listSessions(ctx, r.pool.DB(), userID, from, to)
}

func (r *PlaySessionRepository) listSessions(ctx context.Context, q queryer, userID string, from, to time.Time) ([]persistence.PlaySession, error) {
	query := `SELECT ` + playSessionColumns + ` FROM play_sessions WHERE user_id = ?`
	args := []any{userID}
	if !to.IsZero() {
		query += ` AND start_unix < ?`
		args = append(args, to.Unix())
	}
	if !from.IsZero() {
		query += ` AND end_unix > ?`
		args = append(args, from.Unix())
	}
	query += ` ORDER BY start_unix ASC, id ASC`

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	sessions := make([]persistence.PlaySession, 0)
	for rows.Next() {
		session, err := r.scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return sessions, nil
}

// SaveRun inserts the run and its sessions in one write transaction.
//
// Each session is checked against the stored sessions of the user inside the
// transaction, so a concurrent writer that got there first yields ErrConflict
// instead of an overlapping calendar.
func (r *PlaySessionRepository) SaveRun(ctx context.Context, run persistence.PlanRun, sessions []persistence.PlaySession) error {
	if run.ID == "" || run.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.SessionCount = len(sessions)

	return r.retry.WithRetry(ctx, func() error {
		return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO plan_runs (id, user_id, weeks, session_count, created_at)
				VALUES (?, ?, ?, ?, ?)
			`, run.ID, run.UserID, run.Weeks, run.SessionCount, formatTime(run.CreatedAt)); err != nil {
				return r.mapper.MapError(err)
			}

			for _, session := range sessions {
				if session.UserID != run.UserID {
					return fmt.Errorf("%w: session %s belongs to another user", persistence.ErrConstraintViolation, session.ID)
				}
				var clashes int
				if err := tx.QueryRowContext(ctx, `
					SELECT COUNT(*) FROM play_sessions
					WHERE user_id = ? AND start_unix < ? AND end_unix > ?
				`, run.UserID, session.End.Unix(), session.Start.Unix()).Scan(&clashes); err != nil {
					return r.mapper.MapError(err)
				}
				if clashes > 0 {
					return fmt.Errorf("%w: session %s overlaps %d stored sessions", persistence.ErrConflict, session.ID, clashes)
				}

				createdAt := session.CreatedAt
				if createdAt.IsZero() {
					createdAt = run.CreatedAt
				}
				if _, err := tx.ExecContext(ctx, `
					INSERT INTO play_sessions (`+playSessionColumns+`)
					VALUES (?, ?, ?, ?, ?, ?, ?)
				`,
					session.ID,
					session.UserID,
					session.GameID,
					session.Start.Unix(),
					session.End.Unix(),
					run.ID,
					formatTime(createdAt),
				); err != nil {
					return r.mapper.MapError(err)
				}
			}
			return nil
		})
	})
}

// DeleteRun removes a run and returns how many sessions went with it.
func (r *PlaySessionRepository) DeleteRun(ctx context.Context, userID, runID string) (int, error) {
	var removed int
	err := r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `DELETE FROM play_sessions WHERE run_id = ? AND user_id = ?`, runID, userID)
		if err != nil {
			return r.mapper.MapError(err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to get rows affected: %w", err)
		}
		removed = int(affected)

		result, err = tx.ExecContext(ctx, `DELETE FROM plan_runs WHERE id = ? AND user_id = ?`, runID, userID)
		if err != nil {
			return r.mapper.MapError(err)
		}
		return requireRows(result)
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}

// ListRuns returns the user's plan runs, newest first.
func (r *PlaySessionRepository) ListRuns(ctx context.Context, userID string) ([]persistence.PlanRun, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT id, user_id, weeks, session_count, created_at
		FROM plan_runs
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	runs := make([]persistence.PlanRun, 0)
	for rows.Next() {
		var run persistence.PlanRun
		var createdAt string
		if err := rows.Scan(&run.ID, &run.UserID, &run.Weeks, &run.SessionCount, &createdAt); err != nil {
			return nil, r.mapper.MapError(err)
		}
		if run.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return runs, nil
}

func (r *PlaySessionRepository) scanSession(row rowScanner) (persistence.PlaySession, error) {
	var session persistence.PlaySession
	var start, end int64
	var runID sql.NullString
	var createdAt string
	if err := row.Scan(&session.ID, &session.UserID, &session.GameID, &start, &end, &runID, &createdAt); err != nil {
		return persistence.PlaySession{}, r.mapper.MapError(err)
	}

	session.Start = time.Unix(start, 0).UTC()
	session.End = time.Unix(end, 0).UTC()
	if runID.Valid {
		id := runID.String
		session.RunID = &id
	}
	var err error
	if session.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return persistence.PlaySession{}, err
	}
	return session, nil
}
