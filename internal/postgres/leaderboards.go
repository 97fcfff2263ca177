package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gamification-ledger/internal/domain"
)

// PlayerValues reads the aggregate values a scope ranks on. All-time
// scopes read the progression table directly; windowed or game-scoped
// rankings recompute from non-voided ledger entries inside the window.
func (r *Repository) PlayerValues(ctx context.Context, scope domain.LeaderboardScope, since time.Time) ([]domain.PlayerValue, error) {
	if since.IsZero() && scope.GameID == "" {
		return r.progressionValues(ctx, scope.Metric)
	}
	return r.sessionValues(ctx, scope, since)
}

func (r *Repository) progressionValues(ctx context.Context, metric domain.Metric) ([]domain.PlayerValue, error) {
	var column string
	switch metric {
	case domain.MetricTotalPoints:
		column = "total_points"
	case domain.MetricTotalXP:
		column = "total_xp"
	case domain.MetricTotalWins:
		column = "total_wins"
	case domain.MetricBestStreak:
		column = "best_streak"
	case domain.MetricGamesPlayed:
		column = "total_games_played"
	default:
		return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrValidation, metric)
	}

	query := fmt.Sprintf(`SELECT player_id, %s FROM player_progressions WHERE %s > 0`, column, column)
	return r.queryValues(ctx, query)
}

func (r *Repository) sessionValues(ctx context.Context, scope domain.LeaderboardScope, since time.Time) ([]domain.PlayerValue, error) {
	var agg string
	switch scope.Metric {
	case domain.MetricTotalPoints:
		agg = "COALESCE(SUM(points_earned), 0)"
	case domain.MetricTotalXP:
		agg = "COALESCE(SUM(xp_earned), 0)"
	case domain.MetricTotalWins:
		agg = "COUNT(*) FILTER (WHERE outcome = 'win')"
	case domain.MetricGamesPlayed:
		agg = "COUNT(*)"
	case domain.MetricBestStreak:
		// Streaks are not reconstructable from a window; fall back to
		// the lifetime aggregate.
		return r.progressionValues(ctx, scope.Metric)
	default:
		return nil, fmt.Errorf("%w: unknown metric %q", domain.ErrValidation, scope.Metric)
	}

	query := fmt.Sprintf(`
		SELECT player_id, %s AS value
		FROM sessions
		WHERE status = 'completed'
	`, agg)
	args := []any{}
	arg := 1
	if !since.IsZero() {
		query += fmt.Sprintf(" AND completed_at >= $%d", arg)
		args = append(args, since)
		arg++
	}
	if scope.GameID != "" {
		query += fmt.Sprintf(" AND game_id = $%d", arg)
		args = append(args, scope.GameID)
	}
	query += " GROUP BY player_id HAVING " + agg + " > 0"

	return r.queryValues(ctx, query, args...)
}

func (r *Repository) queryValues(ctx context.Context, query string, args ...any) ([]domain.PlayerValue, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying player values: %w", err)
	}
	defer rows.Close()

	var values []domain.PlayerValue
	for rows.Next() {
		var v domain.PlayerValue
		if err := rows.Scan(&v.PlayerID, &v.Value); err != nil {
			return nil, fmt.Errorf("scanning player value: %w", err)
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// ReplaceEntries atomically swaps a scope's ranked rows
func (r *Repository) ReplaceEntries(ctx context.Context, scope domain.LeaderboardScope, entries []domain.LeaderboardEntry) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM leaderboard_entries WHERE scope_key = $1`, scope.Key()); err != nil {
		return fmt.Errorf("clearing entries: %w", err)
	}

	batch := &pgx.Batch{}
	for _, e := range entries {
		batch.Queue(`
			INSERT INTO leaderboard_entries (scope_key, player_id, rank, value, last_calculated, needs_recalculation)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, scope.Key(), e.PlayerID, e.Rank, e.Value, e.LastCalculated, e.NeedsRecalculation)
	}
	br := tx.SendBatch(ctx, batch)
	for range entries {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("inserting entry: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("closing batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	return nil
}

// TopEntries returns a scope's ranked rows up to limit
func (r *Repository) TopEntries(ctx context.Context, scope domain.LeaderboardScope, limit int) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT scope_key, player_id, rank, value, last_calculated, needs_recalculation
		FROM leaderboard_entries
		WHERE scope_key = $1
		ORDER BY rank
		LIMIT $2
	`
	return r.queryEntries(ctx, query, scope.Key(), limit)
}

// ListLeaderboardEntries returns every projected entry across scopes
func (r *Repository) ListLeaderboardEntries(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	query := `
		SELECT scope_key, player_id, rank, value, last_calculated, needs_recalculation
		FROM leaderboard_entries
	`
	return r.queryEntries(ctx, query)
}

func (r *Repository) queryEntries(ctx context.Context, query string, args ...any) ([]domain.LeaderboardEntry, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var e domain.LeaderboardEntry
		var key string
		if err := rows.Scan(&key, &e.PlayerID, &e.Rank, &e.Value, &e.LastCalculated, &e.NeedsRecalculation); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		scope, err := domain.ParseScope(key)
		if err != nil {
			return nil, fmt.Errorf("parsing scope %q: %w", key, err)
		}
		e.Scope = scope
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
