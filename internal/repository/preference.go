package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"shift-code-redeemer/internal/model"
)

// ErrPreferenceNotFound is returned when a preference triple does not exist.
var ErrPreferenceNotFound = errors.New("game preference not found")

// PreferenceRepository handles user game/platform preference persistence.
type PreferenceRepository struct {
	pool *pgxpool.Pool
}

// NewPreferenceRepository creates a new PreferenceRepository instance.
func NewPreferenceRepository(pool *pgxpool.Pool) *PreferenceRepository {
	return &PreferenceRepository{pool: pool}
}

// Upsert adds a (user, game, platform) preference. A duplicate triple is a
// no-op. Returns whether a new row was created.
func (r *PreferenceRepository) Upsert(ctx context.Context, userID int64, game, platform string) (bool, error) {
	const query = `
		INSERT INTO user_game_preferences (user_id, game, platform, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (user_id, game, platform) DO NOTHING
	`

	tag, err := r.pool.Exec(ctx, query, userID, game, platform)
	if err != nil {
		return false, fmt.Errorf("failed to upsert preference: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListByUser retrieves a user's preferences in insertion order.
func (r *PreferenceRepository) ListByUser(ctx context.Context, userID int64) ([]*model.GamePreference, error) {
	const query = `
		SELECT id, user_id, game, platform, created_at
		FROM user_game_preferences
		WHERE user_id = $1
		ORDER BY id
	`

	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list preferences: %w", err)
	}
	defer rows.Close()

	var prefs []*model.GamePreference
	for rows.Next() {
		var p model.GamePreference
		err := rows.Scan(&p.ID, &p.UserID, &p.Game, &p.Platform, &p.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan preference: %w", err)
		}
		prefs = append(prefs, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating preferences: %w", err)
	}

	return prefs, nil
}

// Delete removes one preference triple.
func (r *PreferenceRepository) Delete(ctx context.Context, userID int64, game, platform string) error {
	const query = `
		DELETE FROM user_game_preferences
		WHERE user_id = $1 AND game = $2 AND platform = $3
	`

	tag, err := r.pool.Exec(ctx, query, userID, game, platform)
	if err != nil {
		return fmt.Errorf("failed to delete preference: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrPreferenceNotFound
	}
	return nil
}
