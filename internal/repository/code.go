// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"shift-code-redeemer/internal/model"
)

// Common errors for repository operations.
var (
	ErrCodeNotFound = errors.New("code not found")
	ErrUserNotFound = errors.New("user not found")
)

const codeColumns = "id, game, platform, code, type, reward, time_gathered, expires, attempts, is_valid, created_at"

// CodeRepository handles code persistence. All mutations are single atomic
// statements so concurrent ingestion and redemption never race on a row.
type CodeRepository struct {
	pool *pgxpool.Pool
}

// NewCodeRepository creates a new CodeRepository instance.
func NewCodeRepository(pool *pgxpool.Pool) *CodeRepository {
	return &CodeRepository{pool: pool}
}

// Upsert inserts a code, ignoring the insert when the (game, code) pair
// already exists. Duplicate inserts from independent feed pipelines are
// expected and are not errors. Returns whether a new row was created.
func (r *CodeRepository) Upsert(ctx context.Context, c *model.Code) (bool, error) {
	const query = `
		INSERT INTO codes (game, platform, code, type, reward, time_gathered, expires, is_valid)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (game, code) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query,
		c.Game, c.Platform, c.Code, c.Type, c.Reward, c.TimeGathered, c.Expires, c.IsValid)
	if err != nil {
		return false, fmt.Errorf("failed to upsert code: %w", err)
	}

	return tag.RowsAffected() > 0, nil
}

// GetByID retrieves a code by its id.
func (r *CodeRepository) GetByID(ctx context.Context, id int64) (*model.Code, error) {
	query := `SELECT ` + codeColumns + ` FROM codes WHERE id = $1`

	c, err := scanCode(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCodeNotFound
		}
		return nil, fmt.Errorf("failed to get code: %w", err)
	}
	return c, nil
}

// GetByValue retrieves all codes with the given code string. The same string
// can exist once per game.
func (r *CodeRepository) GetByValue(ctx context.Context, code string) ([]*model.Code, error) {
	query := `SELECT ` + codeColumns + ` FROM codes WHERE code = $1 ORDER BY id`

	return r.queryCodes(ctx, query, code)
}

// List retrieves all codes in insertion order.
func (r *CodeRepository) List(ctx context.Context) ([]*model.Code, error) {
	query := `SELECT ` + codeColumns + ` FROM codes ORDER BY id`

	return r.queryCodes(ctx, query)
}

// ListValid retrieves all codes still marked valid, in insertion order.
func (r *CodeRepository) ListValid(ctx context.Context) ([]*model.Code, error) {
	query := `SELECT ` + codeColumns + ` FROM codes WHERE is_valid ORDER BY id`

	return r.queryCodes(ctx, query)
}

// EligibleForUser retrieves valid codes whose game matches one of the user's
// preferences and which have no recorded attempt yet for that
// (user, code, game, platform) tuple. Order is by insertion so re-runs are
// reproducible given the same store state.
func (r *CodeRepository) EligibleForUser(ctx context.Context, userID int64) ([]*model.Code, error) {
	const query = `
		SELECT DISTINCT c.id, c.game, c.platform, c.code, c.type, c.reward,
		       c.time_gathered, c.expires, c.attempts, c.is_valid, c.created_at
		FROM codes c
		JOIN user_game_preferences p
		  ON p.user_id = $1 AND p.game = c.game
		LEFT JOIN user_code_attempts a
		  ON a.user_id = $1 AND a.code_id = c.id AND a.game = p.game AND a.platform = p.platform
		WHERE c.is_valid AND a.id IS NULL
		ORDER BY c.id
	`

	return r.queryCodes(ctx, query, userID)
}

// Invalidate marks a code permanently unredeemable. The flag only ever moves
// to false; re-ingesting the same (game, code) later is a no-op and cannot
// re-validate it.
func (r *CodeRepository) Invalidate(ctx context.Context, id int64) error {
	const query = `UPDATE codes SET is_valid = FALSE WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to invalidate code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeNotFound
	}
	return nil
}

// IncrementAttempts bumps the informational submission counter.
func (r *CodeRepository) IncrementAttempts(ctx context.Context, id int64) error {
	const query = `UPDATE codes SET attempts = attempts + 1 WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}
	return nil
}

// Delete removes a code. Administrative purge only; the orchestrator never
// deletes, it invalidates.
func (r *CodeRepository) Delete(ctx context.Context, id int64) error {
	const query = `DELETE FROM codes WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to delete code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeNotFound
	}
	return nil
}

func (r *CodeRepository) queryCodes(ctx context.Context, query string, args ...any) ([]*model.Code, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query codes: %w", err)
	}
	defer rows.Close()

	var codes []*model.Code
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan code: %w", err)
		}
		codes = append(codes, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating codes: %w", err)
	}

	return codes, nil
}

func scanCode(row pgx.Row) (*model.Code, error) {
	var c model.Code
	err := row.Scan(
		&c.ID,
		&c.Game,
		&c.Platform,
		&c.Code,
		&c.Type,
		&c.Reward,
		&c.TimeGathered,
		&c.Expires,
		&c.Attempts,
		&c.IsValid,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
