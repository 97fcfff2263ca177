package postgres

import (
	"context"
	"fmt"

	"github.com/gamification-ledger/internal/domain"
)

// ListPlayerIDs returns every player known to the system: registered
// players plus any player id that appears in the session ledger.
func (r *Repository) ListPlayerIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT id FROM players
		UNION
		SELECT DISTINCT player_id FROM sessions
	`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing player ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning player id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountSessions returns the number of non-voided ledger entries
func (r *Repository) CountSessions(ctx context.Context) (int64, error) {
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM sessions WHERE status = 'completed'`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting sessions: %w", err)
	}
	return count, nil
}

// SessionStats recomputes a player's rollup directly from non-voided
// ledger entries. This is the verifier's ground truth.
func (r *Repository) SessionStats(ctx context.Context, playerID string) (domain.SessionStats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE outcome = 'win'),
			COUNT(*) FILTER (WHERE outcome = 'loss'),
			COUNT(*) FILTER (WHERE outcome = 'draw'),
			COALESCE(SUM(points_earned), 0),
			COALESCE(SUM(xp_earned), 0)
		FROM sessions
		WHERE player_id = $1 AND status = 'completed'
	`
	var stats domain.SessionStats
	err := r.pool.QueryRow(ctx, query, playerID).Scan(
		&stats.GamesPlayed,
		&stats.Wins,
		&stats.Losses,
		&stats.Draws,
		&stats.Points,
		&stats.XP,
	)
	if err != nil {
		return domain.SessionStats{}, fmt.Errorf("recomputing session stats: %w", err)
	}
	return stats, nil
}
