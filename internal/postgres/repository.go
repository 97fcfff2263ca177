package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gamification-ledger/internal/config"
)

// Repository provides PostgreSQL-based data access. It backs every
// store interface in the service layer: the session ledger, wallets,
// progression aggregates, achievements, challenges, leaderboard
// entries and the verifier's read-only view.
type Repository struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewRepository creates a new PostgreSQL repository
func NewRepository(cfg *config.PostgresConfig, logger *slog.Logger) (*Repository, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.ConnectionString())
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConnections)
	poolConfig.MinConns = int32(cfg.MinConnections)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(context.Background()); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger,
	}, nil
}

// Close closes the database connection pool
func (r *Repository) Close() {
	r.pool.Close()
}

// Pool returns the underlying connection pool
func (r *Repository) Pool() *pgxpool.Pool {
	return r.pool
}

// RunMigrations executes database migrations
func (r *Repository) RunMigrations(ctx context.Context) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS players (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS premium_statuses (
			player_id VARCHAR(64) PRIMARY KEY,
			granted BOOLEAN NOT NULL DEFAULT FALSE,
			expires_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id VARCHAR(64) PRIMARY KEY,
			player_id VARCHAR(64) NOT NULL,
			game_id VARCHAR(64) NOT NULL,
			outcome VARCHAR(10) NOT NULL,
			score BIGINT NOT NULL DEFAULT 0,
			duration_seconds BIGINT NOT NULL,
			points_earned BIGINT NOT NULL DEFAULT 0,
			xp_earned BIGINT NOT NULL DEFAULT 0,
			completed_at TIMESTAMPTZ NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'completed'
		)`,
		`CREATE TABLE IF NOT EXISTS applied_sessions (
			session_id VARCHAR(64) NOT NULL,
			player_id VARCHAR(64) NOT NULL,
			component VARCHAR(128) NOT NULL,
			applied_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (session_id, component)
		)`,
		`CREATE TABLE IF NOT EXISTS points_wallets (
			player_id VARCHAR(64) PRIMARY KEY,
			current_balance BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS points_transactions (
			id VARCHAR(64) PRIMARY KEY,
			player_id VARCHAR(64) NOT NULL,
			type VARCHAR(10) NOT NULL,
			amount BIGINT NOT NULL,
			reason VARCHAR(255) NOT NULL DEFAULT '',
			session_id VARCHAR(64),
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS player_progressions (
			player_id VARCHAR(64) PRIMARY KEY,
			level INT NOT NULL DEFAULT 1,
			current_xp BIGINT NOT NULL DEFAULT 0,
			total_xp BIGINT NOT NULL DEFAULT 0,
			total_points BIGINT NOT NULL DEFAULT 0,
			total_games_played BIGINT NOT NULL DEFAULT 0,
			total_wins BIGINT NOT NULL DEFAULT 0,
			total_losses BIGINT NOT NULL DEFAULT 0,
			total_draws BIGINT NOT NULL DEFAULT 0,
			current_streak BIGINT NOT NULL DEFAULT 0,
			best_streak BIGINT NOT NULL DEFAULT 0,
			achievements_total BIGINT NOT NULL DEFAULT 0,
			courses_completed BIGINT NOT NULL DEFAULT 0,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS achievements (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category VARCHAR(64) NOT NULL DEFAULT '',
			tier VARCHAR(20) NOT NULL DEFAULT 'bronze',
			is_hidden BOOLEAN NOT NULL DEFAULT FALSE,
			premium_only BOOLEAN NOT NULL DEFAULT FALSE,
			criteria_kind VARCHAR(32) NOT NULL,
			criteria_target BIGINT NOT NULL,
			reward_points BIGINT NOT NULL DEFAULT 0,
			reward_xp BIGINT NOT NULL DEFAULT 0,
			reward_title VARCHAR(255) NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			unlock_count BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS achievement_unlocks (
			player_id VARCHAR(64) NOT NULL,
			achievement_id VARCHAR(64) NOT NULL,
			progress INT NOT NULL DEFAULT 0,
			current_value BIGINT NOT NULL DEFAULT 0,
			unlocked_at TIMESTAMPTZ,
			source_session_id VARCHAR(64) NOT NULL DEFAULT '',
			notified BOOLEAN NOT NULL DEFAULT FALSE,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (player_id, achievement_id)
		)`,
		`CREATE TABLE IF NOT EXISTS daily_challenges (
			id VARCHAR(64) PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			kind VARCHAR(32) NOT NULL,
			start_time TIMESTAMPTZ NOT NULL,
			end_time TIMESTAMPTZ NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			target_value BIGINT NOT NULL,
			reward_points BIGINT NOT NULL DEFAULT 0,
			reward_xp BIGINT NOT NULL DEFAULT 0,
			premium_only BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS challenge_progress (
			challenge_id VARCHAR(64) NOT NULL,
			player_id VARCHAR(64) NOT NULL,
			current_progress BIGINT NOT NULL DEFAULT 0,
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			completed_at TIMESTAMPTZ,
			updated_at TIMESTAMPTZ DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (challenge_id, player_id)
		)`,
		`CREATE TABLE IF NOT EXISTS leaderboard_entries (
			scope_key VARCHAR(128) NOT NULL,
			player_id VARCHAR(64) NOT NULL,
			rank BIGINT NOT NULL,
			value BIGINT NOT NULL,
			last_calculated TIMESTAMPTZ NOT NULL,
			needs_recalculation BOOLEAN NOT NULL DEFAULT FALSE,
			PRIMARY KEY (scope_key, player_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_player ON sessions(player_id, completed_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_sessions_game ON sessions(game_id, completed_at DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transactions_session ON points_transactions(session_id) WHERE session_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_transactions_player ON points_transactions(player_id, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_unlocks_player ON achievement_unlocks(player_id)`,
		`CREATE INDEX IF NOT EXISTS idx_challenges_window ON daily_challenges(start_time, end_time)`,
		`CREATE INDEX IF NOT EXISTS idx_entries_rank ON leaderboard_entries(scope_key, rank)`,
	}

	for _, migration := range migrations {
		_, err := r.pool.Exec(ctx, migration)
		if err != nil {
			return fmt.Errorf("executing migration: %w", err)
		}
	}

	r.logger.Info("database migrations completed")
	return nil
}
