package domain

import "time"

// PlayerStatistics holds the per-player rollup counters maintained by
// the progression aggregator.
type PlayerStatistics struct {
	TotalGamesPlayed int64 `json:"total_games_played"`
	TotalWins        int64 `json:"total_wins"`
	TotalLosses      int64 `json:"total_losses"`
	TotalDraws       int64 `json:"total_draws"`
	CurrentStreak    int64 `json:"current_streak"`
	BestStreak       int64 `json:"best_streak"`
}

// PlayerProgression is the per-player aggregate derived from the session
// ledger. One record per player, created lazily on first session.
type PlayerProgression struct {
	PlayerID          string           `json:"player_id"`
	Level             int              `json:"level"`
	CurrentXP         int64            `json:"current_xp"`
	TotalXP           int64            `json:"total_xp"`
	TotalPoints       int64            `json:"total_points"`
	Statistics        PlayerStatistics `json:"statistics"`
	AchievementsTotal int64            `json:"achievements_unlocked"`
	CoursesCompleted  int64            `json:"courses_completed"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// NewPlayerProgression returns the zero-state progression for a player
func NewPlayerProgression(playerID string) *PlayerProgression {
	return &PlayerProgression{
		PlayerID: playerID,
		Level:    1,
	}
}
