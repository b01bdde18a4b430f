package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/backlog-scheduler/internal/persistence"
)

// GameRepository implements persistence.GameRepository using SQLite.
type GameRepository struct {
	pool   *ConnectionPool
	mapper *ErrorMapper
}

// NewGameRepository creates a new SQLite game repository.
func NewGameRepository(pool *ConnectionPool) *GameRepository {
	return &GameRepository{pool: pool, mapper: NewErrorMapper()}
}

const gameColumns = `id, user_id, title, priority, played_minutes, estimate_minutes, status, created_at, updated_at`

// CreateGame inserts a library entry. An active game whose priority is already
// taken by another active game of the same user fails with ErrDuplicate.
func (r *GameRepository) CreateGame(ctx context.Context, game persistence.Game) error {
	if game.ID == "" || game.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	game = normalizeGame(game)

	now := time.Now().UTC()
	if game.CreatedAt.IsZero() {
		game.CreatedAt = now
	}
	if game.UpdatedAt.IsZero() {
		game.UpdatedAt = game.CreatedAt
	}

	_, err := r.pool.DB().ExecContext(ctx, `
		INSERT INTO games (`+gameColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		game.ID,
		game.UserID,
		game.Title,
		game.Priority,
		game.PlayedMinutes,
		nullableInt(game.EstimateMinutes),
		game.Status,
		formatTime(game.CreatedAt),
		formatTime(game.UpdatedAt),
	)
	return r.mapper.MapError(err)
}

// UpdateGame replaces the mutable fields of a game owned by game.UserID.
func (r *GameRepository) UpdateGame(ctx context.Context, game persistence.Game) error {
	if game.ID == "" || game.UserID == "" {
		return persistence.ErrConstraintViolation
	}
	game = normalizeGame(game)
	if game.UpdatedAt.IsZero() {
		game.UpdatedAt = time.Now().UTC()
	}

	result, err := r.pool.DB().ExecContext(ctx, `
		UPDATE games
		SET title = ?, priority = ?, played_minutes = ?, estimate_minutes = ?, status = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`,
		game.Title,
		game.Priority,
		game.PlayedMinutes,
		nullableInt(game.EstimateMinutes),
		game.Status,
		formatTime(game.UpdatedAt),
		game.ID,
		game.UserID,
	)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

// GetGame returns one game. Games of other users are reported as not found.
func (r *GameRepository) GetGame(ctx context.Context, userID, id string) (persistence.Game, error) {
	row := r.pool.DB().QueryRowContext(ctx, `SELECT `+gameColumns+` FROM games WHERE id = ? AND user_id = ?`, id, userID)
	return r.scanGame(row)
}

// ListGames returns every game of the user ordered by priority, then creation.
func (r *GameRepository) ListGames(ctx context.Context, userID string) ([]persistence.Game, error) {
	rows, err := r.pool.DB().QueryContext(ctx, `
		SELECT `+gameColumns+`
		FROM games
		WHERE user_id = ?
		ORDER BY priority ASC, created_at ASC, id ASC
	`, userID)
	if err != nil {
		return nil, r.mapper.MapError(err)
	}
	defer rows.Close()

	games := make([]persistence.Game, 0)
	for rows.Next() {
		game, err := r.scanGame(rows)
		if err != nil {
			return nil, err
		}
		games = append(games, game)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapper.MapError(err)
	}
	return games, nil
}

// DeleteGame removes a game together with its play sessions.
func (r *GameRepository) DeleteGame(ctx context.Context, userID, id string) error {
	result, err := r.pool.DB().ExecContext(ctx, `DELETE FROM games WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return r.mapper.MapError(err)
	}
	return requireRows(result)
}

// Reorder assigns priorities 1..n following orderedIDs.
//
// Priorities are first moved to negative placeholders so the partial unique
// index never sees two active games on the same value mid-transaction.
func (r *GameRepository) Reorder(ctx context.Context, userID string, orderedIDs []string) error {
	if len(orderedIDs) == 0 {
		return nil
	}
	updatedAt := formatTime(time.Now())

	return r.pool.WithTransaction(ctx, func(tx *sql.Tx) error {
		for i, id := range orderedIDs {
			result, err := tx.ExecContext(ctx,
				`UPDATE games SET priority = ? WHERE id = ? AND user_id = ?`, -(i + 1), id, userID)
			if err != nil {
				return r.mapper.MapError(err)
			}
			if err := requireRows(result); err != nil {
				return fmt.Errorf("reorder game %s: %w", id, err)
			}
		}
		for i, id := range orderedIDs {
			if _, err := tx.ExecContext(ctx,
				`UPDATE games SET priority = ?, updated_at = ? WHERE id = ? AND user_id = ?`, i+1, updatedAt, id, userID); err != nil {
				return r.mapper.MapError(err)
			}
		}
		return nil
	})
}

func (r *GameRepository) scanGame(row rowScanner) (persistence.Game, error) {
	var game persistence.Game
	var estimate sql.NullInt64
	var createdAt, updatedAt string
	err := row.Scan(
		&game.ID,
		&game.UserID,
		&game.Title,
		&game.Priority,
		&game.PlayedMinutes,
		&estimate,
		&game.Status,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return persistence.Game{}, r.mapper.MapError(err)
	}

	if estimate.Valid {
		value := int(estimate.Int64)
		game.EstimateMinutes = &value
	}
	if game.CreatedAt, err = parseTime(createdAt, "created_at"); err != nil {
		return persistence.Game{}, err
	}
	if game.UpdatedAt, err = parseTime(updatedAt, "updated_at"); err != nil {
		return persistence.Game{}, err
	}
	return game, nil
}

func normalizeGame(game persistence.Game) persistence.Game {
	game.Title = strings.TrimSpace(game.Title)
	game.Status = strings.ToLower(strings.TrimSpace(game.Status))
	if game.Status == "" {
		game.Status = "planned"
	}
	return game
}

func nullableInt(value *int) sql.NullInt64 {
	if value == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*value), Valid: true}
}

func requireRows(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}
