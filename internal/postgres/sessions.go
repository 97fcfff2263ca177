package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gamification-ledger/internal/domain"
)

// InsertSession appends a ledger entry. The session id is the conflict
// key, so replaying an already-appended session reports false without
// touching the stored row.
func (r *Repository) InsertSession(ctx context.Context, session *domain.Session) (bool, error) {
	query := `
		INSERT INTO sessions (id, player_id, game_id, outcome, score, duration_seconds, points_earned, xp_earned, completed_at, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := r.pool.Exec(ctx, query,
		session.ID,
		session.PlayerID,
		session.GameID,
		string(session.Outcome),
		session.Score,
		session.DurationSeconds,
		session.PointsEarned,
		session.XPEarned,
		session.CompletedAt,
		string(session.Status),
	)
	if err != nil {
		return false, fmt.Errorf("inserting session: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetSession retrieves a ledger entry by id
func (r *Repository) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	query := `
		SELECT id, player_id, game_id, outcome, score, duration_seconds, points_earned, xp_earned, completed_at, status
		FROM sessions
		WHERE id = $1
	`
	var s domain.Session
	err := r.pool.QueryRow(ctx, query, sessionID).Scan(
		&s.ID,
		&s.PlayerID,
		&s.GameID,
		&s.Outcome,
		&s.Score,
		&s.DurationSeconds,
		&s.PointsEarned,
		&s.XPEarned,
		&s.CompletedAt,
		&s.Status,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("getting session: %w", err)
	}
	return &s, nil
}

// VoidSession transitions a ledger entry to voided. The entry itself is
// never deleted; voiding only excludes it from recomputation.
func (r *Repository) VoidSession(ctx context.Context, sessionID string) error {
	query := `UPDATE sessions SET status = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, sessionID, string(domain.SessionVoided))
	if err != nil {
		return fmt.Errorf("voiding session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// UpsertPlayer records or refreshes a player's display name
func (r *Repository) UpsertPlayer(ctx context.Context, playerID, name string) error {
	query := `
		INSERT INTO players (id, name, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query, playerID, name, time.Now())
	if err != nil {
		return fmt.Errorf("upserting player: %w", err)
	}
	return nil
}

// PlayerName returns a player's display name
func (r *Repository) PlayerName(ctx context.Context, playerID string) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM players WHERE id = $1`, playerID).Scan(&name)
	if err != nil {
		if err == pgx.ErrNoRows {
			return "", domain.ErrPlayerNotFound
		}
		return "", fmt.Errorf("getting player name: %w", err)
	}
	return name, nil
}

// SetPremiumStatus records a premium grant or revocation
func (r *Repository) SetPremiumStatus(ctx context.Context, playerID string, granted bool, expiresAt *time.Time) error {
	query := `
		INSERT INTO premium_statuses (player_id, granted, expires_at, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (player_id) DO UPDATE SET
			granted = EXCLUDED.granted,
			expires_at = EXCLUDED.expires_at,
			updated_at = EXCLUDED.updated_at
	`
	_, err := r.pool.Exec(ctx, query, playerID, granted, expiresAt, time.Now())
	if err != nil {
		return fmt.Errorf("setting premium status: %w", err)
	}
	return nil
}

// HasPremium reports whether a player holds an unexpired premium grant
// at the given moment.
func (r *Repository) HasPremium(ctx context.Context, playerID string, at time.Time) (bool, error) {
	query := `SELECT granted, expires_at FROM premium_statuses WHERE player_id = $1`
	var granted bool
	var expiresAt *time.Time
	err := r.pool.QueryRow(ctx, query, playerID).Scan(&granted, &expiresAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("checking premium status: %w", err)
	}
	if !granted {
		return false, nil
	}
	if expiresAt != nil && at.After(*expiresAt) {
		return false, nil
	}
	return true, nil
}
