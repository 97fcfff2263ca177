package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/gamification-ledger/internal/domain"
)

// GetProgression retrieves a player's progression aggregate
func (r *Repository) GetProgression(ctx context.Context, playerID string) (*domain.PlayerProgression, error) {
	query := `
		SELECT player_id, level, current_xp, total_xp, total_points,
		       total_games_played, total_wins, total_losses, total_draws,
		       current_streak, best_streak, achievements_total, courses_completed, updated_at
		FROM player_progressions
		WHERE player_id = $1
	`
	var p domain.PlayerProgression
	err := r.pool.QueryRow(ctx, query, playerID).Scan(
		&p.PlayerID,
		&p.Level,
		&p.CurrentXP,
		&p.TotalXP,
		&p.TotalPoints,
		&p.Statistics.TotalGamesPlayed,
		&p.Statistics.TotalWins,
		&p.Statistics.TotalLosses,
		&p.Statistics.TotalDraws,
		&p.Statistics.CurrentStreak,
		&p.Statistics.BestStreak,
		&p.AchievementsTotal,
		&p.CoursesCompleted,
		&p.UpdatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting progression: %w", err)
	}
	return &p, nil
}

const upsertProgressionQuery = `
	INSERT INTO player_progressions (
		player_id, level, current_xp, total_xp, total_points,
		total_games_played, total_wins, total_losses, total_draws,
		current_streak, best_streak, achievements_total, courses_completed, updated_at
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	ON CONFLICT (player_id) DO UPDATE SET
		level = EXCLUDED.level,
		current_xp = EXCLUDED.current_xp,
		total_xp = EXCLUDED.total_xp,
		total_points = EXCLUDED.total_points,
		total_games_played = EXCLUDED.total_games_played,
		total_wins = EXCLUDED.total_wins,
		total_losses = EXCLUDED.total_losses,
		total_draws = EXCLUDED.total_draws,
		current_streak = EXCLUDED.current_streak,
		best_streak = EXCLUDED.best_streak,
		achievements_total = EXCLUDED.achievements_total,
		courses_completed = EXCLUDED.courses_completed,
		updated_at = EXCLUDED.updated_at
`

func progressionArgs(p *domain.PlayerProgression) []any {
	return []any{
		p.PlayerID,
		p.Level,
		p.CurrentXP,
		p.TotalXP,
		p.TotalPoints,
		p.Statistics.TotalGamesPlayed,
		p.Statistics.TotalWins,
		p.Statistics.TotalLosses,
		p.Statistics.TotalDraws,
		p.Statistics.CurrentStreak,
		p.Statistics.BestStreak,
		p.AchievementsTotal,
		p.CoursesCompleted,
		p.UpdatedAt,
	}
}

// SaveProgression upserts a player's progression aggregate
func (r *Repository) SaveProgression(ctx context.Context, p *domain.PlayerProgression) error {
	if _, err := r.pool.Exec(ctx, upsertProgressionQuery, progressionArgs(p)...); err != nil {
		return fmt.Errorf("saving progression: %w", err)
	}
	return nil
}

// SaveProgressionApplied claims the session's applied marker and
// upserts the aggregate in the same transaction, so a failure between
// the two cannot strand a claimed-but-unapplied session. Reports false
// when the session was already applied to the component, leaving the
// stored row untouched.
func (r *Repository) SaveProgressionApplied(ctx context.Context, p *domain.PlayerProgression, sessionID, component string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO applied_sessions (session_id, player_id, component)
		VALUES ($1, $2, $3)
		ON CONFLICT (session_id, component) DO NOTHING
	`, sessionID, p.PlayerID, component)
	if err != nil {
		return false, fmt.Errorf("claiming session marker: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, upsertProgressionQuery, progressionArgs(p)...); err != nil {
		return false, fmt.Errorf("saving progression: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("committing progression: %w", err)
	}
	return true, nil
}
