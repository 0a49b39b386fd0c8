package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"shift-code-redeemer/internal/model"
)

// AttemptRepository handles redemption attempt persistence. The unique
// (user_id, code_id, game, platform) index is the idempotency guarantee:
// at most one outcome is ever recorded per tuple.
type AttemptRepository struct {
	pool *pgxpool.Pool
}

// NewAttemptRepository creates a new AttemptRepository instance.
func NewAttemptRepository(pool *pgxpool.Pool) *AttemptRepository {
	return &AttemptRepository{pool: pool}
}

// Record stores one attempt outcome. A conflicting insert means the outcome
// was already recorded by an earlier run and is a no-op. Returns whether a
// row was written.
func (r *AttemptRepository) Record(ctx context.Context, userID, codeID int64, game, platform string, success bool) (bool, error) {
	const query = `
		INSERT INTO user_code_attempts (user_id, code_id, game, platform, success, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id, code_id, game, platform) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, userID, codeID, game, platform, success)
	if err != nil {
		return false, fmt.Errorf("failed to record attempt: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Exists reports whether an outcome is already recorded for the tuple.
func (r *AttemptRepository) Exists(ctx context.Context, userID, codeID int64, game, platform string) (bool, error) {
	const query = `
		SELECT EXISTS(
			SELECT 1 FROM user_code_attempts
			WHERE user_id = $1 AND code_id = $2 AND game = $3 AND platform = $4
		)
	`

	var exists bool
	err := r.pool.QueryRow(ctx, query, userID, codeID, game, platform).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check attempt existence: %w", err)
	}
	return exists, nil
}

// ListByUser retrieves a user's recorded attempts in insertion order.
func (r *AttemptRepository) ListByUser(ctx context.Context, userID int64) ([]*model.CodeAttempt, error) {
	const query = `
		SELECT id, user_id, code_id, game, platform, success, created_at
		FROM user_code_attempts
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempts: %w", err)
	}
	defer rows.Close()

	var attempts []*model.CodeAttempt
	for rows.Next() {
		var a model.CodeAttempt
		err := rows.Scan(&a.ID, &a.UserID, &a.CodeID, &a.Game, &a.Platform, &a.Success, &a.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan attempt: %w", err)
		}
		attempts = append(attempts, &a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating attempts: %w", err)
	}

	return attempts, nil
}
