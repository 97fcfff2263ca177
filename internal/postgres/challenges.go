package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gamification-ledger/internal/domain"
)

// InsertChallenge stores a daily challenge instance
func (r *Repository) InsertChallenge(ctx context.Context, c *domain.DailyChallenge) error {
	query := `
		INSERT INTO daily_challenges (id, name, kind, start_time, end_time, is_active, target_value, reward_points, reward_xp, premium_only, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, query,
		c.ID,
		c.Name,
		string(c.Kind),
		c.StartTime,
		c.EndTime,
		c.IsActive,
		c.TargetValue,
		c.RewardPoints,
		c.RewardXP,
		c.PremiumOnly,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("inserting challenge: %w", err)
	}
	return nil
}

// ListActiveChallenges returns the challenge instances whose window covers now
func (r *Repository) ListActiveChallenges(ctx context.Context, now time.Time) ([]domain.DailyChallenge, error) {
	query := `
		SELECT id, name, kind, start_time, end_time, is_active, target_value, reward_points, reward_xp, premium_only, created_at
		FROM daily_challenges
		WHERE is_active = TRUE AND start_time <= $1 AND end_time >= $1
		ORDER BY created_at
	`
	rows, err := r.pool.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("listing active challenges: %w", err)
	}
	defer rows.Close()

	var challenges []domain.DailyChallenge
	for rows.Next() {
		var c domain.DailyChallenge
		err := rows.Scan(
			&c.ID,
			&c.Name,
			&c.Kind,
			&c.StartTime,
			&c.EndTime,
			&c.IsActive,
			&c.TargetValue,
			&c.RewardPoints,
			&c.RewardXP,
			&c.PremiumOnly,
			&c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning challenge: %w", err)
		}
		challenges = append(challenges, c)
	}
	return challenges, rows.Err()
}

// CountActiveChallenges returns the number of instances active at now
func (r *Repository) CountActiveChallenges(ctx context.Context, now time.Time) (int64, error) {
	query := `SELECT COUNT(*) FROM daily_challenges WHERE is_active = TRUE AND start_time <= $1 AND end_time >= $1`
	var count int64
	if err := r.pool.QueryRow(ctx, query, now).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting active challenges: %w", err)
	}
	return count, nil
}

// LastChallengeCreatedAt returns when a challenge instance was last
// created, nil when none have ever been.
func (r *Repository) LastChallengeCreatedAt(ctx context.Context) (*time.Time, error) {
	var last *time.Time
	if err := r.pool.QueryRow(ctx, `SELECT MAX(created_at) FROM daily_challenges`).Scan(&last); err != nil {
		return nil, fmt.Errorf("getting last challenge creation: %w", err)
	}
	return last, nil
}

// GetProgress retrieves a player's progress toward one challenge
func (r *Repository) GetProgress(ctx context.Context, challengeID, playerID string) (*domain.ChallengeProgress, error) {
	query := `
		SELECT challenge_id, player_id, current_progress, is_completed, completed_at, updated_at
		FROM challenge_progress
		WHERE challenge_id = $1 AND player_id = $2
	`
	var p domain.ChallengeProgress
	err := r.pool.QueryRow(ctx, query, challengeID, playerID).Scan(
		&p.ChallengeID,
		&p.PlayerID,
		&p.CurrentProgress,
		&p.IsCompleted,
		&p.CompletedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrChallengeNotFound
		}
		return nil, fmt.Errorf("getting challenge progress: %w", err)
	}
	return &p, nil
}

// IncrementProgress advances a player's progress, idempotent per
// session: the applied-session marker is claimed in the same database
// transaction, and a session that already counted returns nil without
// moving the counter.
func (r *Repository) IncrementProgress(ctx context.Context, challengeID, playerID, sessionID string, delta int64) (*domain.ChallengeProgress, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	component := fmt.Sprintf("challenge:%s", challengeID)
	tag, err := tx.Exec(ctx, `
		INSERT INTO applied_sessions (session_id, player_id, component)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, component) DO NOTHING
	`, sessionID, playerID, component)
	if err != nil {
		return nil, fmt.Errorf("claiming session marker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return nil, nil
	}

	var p domain.ChallengeProgress
	err = tx.QueryRow(ctx, `
		INSERT INTO challenge_progress (challenge_id, player_id, current_progress, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (challenge_id, player_id) DO UPDATE SET
			current_progress = challenge_progress.current_progress + EXCLUDED.current_progress,
			updated_at = EXCLUDED.updated_at
		RETURNING challenge_id, player_id, current_progress, is_completed, completed_at, updated_at
	`, challengeID, playerID, delta, time.Now()).Scan(
		&p.ChallengeID,
		&p.PlayerID,
		&p.CurrentProgress,
		&p.IsCompleted,
		&p.CompletedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("incrementing progress: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing: %w", err)
	}
	return &p, nil
}

// CompleteProgress marks a challenge completed exactly once for a
// player; the is_completed guard makes the first caller win.
func (r *Repository) CompleteProgress(ctx context.Context, challengeID, playerID string, at time.Time) (bool, error) {
	query := `
		UPDATE challenge_progress
		SET is_completed = TRUE, completed_at = $3, updated_at = $3
		WHERE challenge_id = $1 AND player_id = $2 AND is_completed = FALSE
	`
	tag, err := r.pool.Exec(ctx, query, challengeID, playerID, at)
	if err != nil {
		return false, fmt.Errorf("completing challenge: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
