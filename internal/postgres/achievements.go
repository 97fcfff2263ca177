package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gamification-ledger/internal/domain"
)

const achievementColumns = `
	id, name, description, category, tier, is_hidden, premium_only,
	criteria_kind, criteria_target, reward_points, reward_xp, reward_title,
	is_active, unlock_count, created_at
`

func scanAchievement(row pgx.Row) (*domain.Achievement, error) {
	var a domain.Achievement
	var kind domain.CriteriaKind
	var target int64
	err := row.Scan(
		&a.ID,
		&a.Name,
		&a.Description,
		&a.Category,
		&a.Tier,
		&a.IsHidden,
		&a.PremiumOnly,
		&kind,
		&target,
		&a.RewardPoints,
		&a.RewardXP,
		&a.RewardTitle,
		&a.IsActive,
		&a.UnlockCount,
		&a.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	criteria, err := domain.CriteriaFrom(kind, target)
	if err != nil {
		return nil, fmt.Errorf("decoding criteria for %s: %w", a.ID, err)
	}
	a.Criteria = criteria
	return &a, nil
}

// InsertAchievement stores an achievement definition
func (r *Repository) InsertAchievement(ctx context.Context, a *domain.Achievement) error {
	if a.Criteria == nil {
		return fmt.Errorf("%w: achievement criteria is required", domain.ErrValidation)
	}
	query := `
		INSERT INTO achievements (
			id, name, description, category, tier, is_hidden, premium_only,
			criteria_kind, criteria_target, reward_points, reward_xp, reward_title,
			is_active, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := r.pool.Exec(ctx, query,
		a.ID,
		a.Name,
		a.Description,
		a.Category,
		string(a.Tier),
		a.IsHidden,
		a.PremiumOnly,
		string(a.Criteria.Kind()),
		a.Criteria.Target(),
		a.RewardPoints,
		a.RewardXP,
		a.RewardTitle,
		a.IsActive,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("inserting achievement: %w", err)
	}
	return nil
}

// ListActive returns every active achievement definition
func (r *Repository) ListActive(ctx context.Context) ([]domain.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE is_active = TRUE ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing achievements: %w", err)
	}
	defer rows.Close()

	var achievements []domain.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning achievement: %w", err)
		}
		achievements = append(achievements, *a)
	}
	return achievements, rows.Err()
}

// GetAchievement retrieves one achievement definition by id
func (r *Repository) GetAchievement(ctx context.Context, achievementID string) (*domain.Achievement, error) {
	query := `SELECT ` + achievementColumns + ` FROM achievements WHERE id = $1`
	a, err := scanAchievement(r.pool.QueryRow(ctx, query, achievementID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAchievementNotFound
		}
		return nil, fmt.Errorf("getting achievement: %w", err)
	}
	return a, nil
}

// CountAchievements returns the total number of achievement definitions
func (r *Repository) CountAchievements(ctx context.Context) (int64, error) {
	var count int64
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM achievements`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting achievements: %w", err)
	}
	return count, nil
}

// ListActiveAchievements is the verifier's view of the active set
func (r *Repository) ListActiveAchievements(ctx context.Context) ([]domain.Achievement, error) {
	return r.ListActive(ctx)
}

// GetUnlock retrieves one player's progress record for an achievement
func (r *Repository) GetUnlock(ctx context.Context, playerID, achievementID string) (*domain.AchievementUnlock, error) {
	query := `
		SELECT player_id, achievement_id, progress, current_value, unlocked_at, source_session_id, notified, updated_at
		FROM achievement_unlocks
		WHERE player_id = $1 AND achievement_id = $2
	`
	var u domain.AchievementUnlock
	err := r.pool.QueryRow(ctx, query, playerID, achievementID).Scan(
		&u.PlayerID,
		&u.AchievementID,
		&u.Progress,
		&u.CurrentValue,
		&u.UnlockedAt,
		&u.SourceSessionID,
		&u.Notified,
		&u.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrAchievementNotFound
		}
		return nil, fmt.Errorf("getting unlock: %w", err)
	}
	return &u, nil
}

// UpsertProgress writes a player's progress toward an achievement. The
// GREATEST guards keep stored progress monotonic even if two evaluations
// race with snapshots taken at different times.
func (r *Repository) UpsertProgress(ctx context.Context, u *domain.AchievementUnlock) error {
	query := `
		INSERT INTO achievement_unlocks (player_id, achievement_id, progress, current_value, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (player_id, achievement_id) DO UPDATE SET
			progress = GREATEST(achievement_unlocks.progress, EXCLUDED.progress),
			current_value = GREATEST(achievement_unlocks.current_value, EXCLUDED.current_value),
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query, u.PlayerID, u.AchievementID, u.Progress, u.CurrentValue, u.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upserting progress: %w", err)
	}
	return nil
}

// FinalizeUnlock stamps unlocked_at exactly once. The unlocked_at IS
// NULL guard makes the first writer win; a losing concurrent caller
// gets false, not an error.
func (r *Repository) FinalizeUnlock(ctx context.Context, playerID, achievementID string, at time.Time, sourceSessionID string) (bool, error) {
	query := `
		UPDATE achievement_unlocks
		SET unlocked_at = $3, progress = 100, source_session_id = $4, updated_at = $3
		WHERE player_id = $1 AND achievement_id = $2 AND unlocked_at IS NULL
	`
	tag, err := r.pool.Exec(ctx, query, playerID, achievementID, at, sourceSessionID)
	if err != nil {
		return false, fmt.Errorf("finalizing unlock: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IncrementUnlockCount bumps the global unlock counter on a definition
func (r *Repository) IncrementUnlockCount(ctx context.Context, achievementID string) error {
	_, err := r.pool.Exec(ctx, `UPDATE achievements SET unlock_count = unlock_count + 1 WHERE id = $1`, achievementID)
	if err != nil {
		return fmt.Errorf("incrementing unlock count: %w", err)
	}
	return nil
}

// MarkNotified records that the unlock notification was delivered
func (r *Repository) MarkNotified(ctx context.Context, playerID, achievementID string) error {
	query := `UPDATE achievement_unlocks SET notified = TRUE WHERE player_id = $1 AND achievement_id = $2`
	_, err := r.pool.Exec(ctx, query, playerID, achievementID)
	if err != nil {
		return fmt.Errorf("marking notified: %w", err)
	}
	return nil
}

// ListUnlocksForPlayer returns all of a player's progress records
func (r *Repository) ListUnlocksForPlayer(ctx context.Context, playerID string) ([]domain.AchievementUnlock, error) {
	query := `
		SELECT player_id, achievement_id, progress, current_value, unlocked_at, source_session_id, notified, updated_at
		FROM achievement_unlocks
		WHERE player_id = $1
	`
	rows, err := r.pool.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("listing unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []domain.AchievementUnlock
	for rows.Next() {
		var u domain.AchievementUnlock
		err := rows.Scan(
			&u.PlayerID,
			&u.AchievementID,
			&u.Progress,
			&u.CurrentValue,
			&u.UnlockedAt,
			&u.SourceSessionID,
			&u.Notified,
			&u.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scanning unlock: %w", err)
		}
		unlocks = append(unlocks, u)
	}
	return unlocks, rows.Err()
}

// UnlockedAchievementIDs returns the ids of a player's finalized unlocks
func (r *Repository) UnlockedAchievementIDs(ctx context.Context, playerID string) (map[string]bool, error) {
	query := `SELECT achievement_id FROM achievement_unlocks WHERE player_id = $1 AND unlocked_at IS NOT NULL`
	rows, err := r.pool.Query(ctx, query, playerID)
	if err != nil {
		return nil, fmt.Errorf("listing unlocked ids: %w", err)
	}
	defer rows.Close()

	unlocked := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning unlocked id: %w", err)
		}
		unlocked[id] = true
	}
	return unlocked, rows.Err()
}
