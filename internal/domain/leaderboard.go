package domain

import (
	"fmt"
	"strings"
	"time"
)

// Metric identifies the aggregate value a leaderboard ranks on
type Metric string

const (
	MetricTotalPoints Metric = "total_points"
	MetricTotalXP     Metric = "total_xp"
	MetricTotalWins   Metric = "total_wins"
	MetricBestStreak  Metric = "best_streak"
	MetricGamesPlayed Metric = "games_played"
)

// Valid reports whether the metric is a known ranking metric
func (m Metric) Valid() bool {
	switch m {
	case MetricTotalPoints, MetricTotalXP, MetricTotalWins, MetricBestStreak, MetricGamesPlayed:
		return true
	}
	return false
}

// Period bounds the window of ledger entries a ranking draws from
type Period string

const (
	PeriodAllTime Period = "alltime"
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// WindowStart returns the start of the period's window relative to now.
// The zero time means the window is unbounded.
func (p Period) WindowStart(now time.Time) time.Time {
	switch p {
	case PeriodDaily:
		return now.AddDate(0, 0, -1)
	case PeriodWeekly:
		return now.AddDate(0, 0, -7)
	case PeriodMonthly:
		return now.AddDate(0, -1, 0)
	default:
		return time.Time{}
	}
}

// LeaderboardScope identifies one ranking: a metric over a period,
// optionally restricted to a single game.
type LeaderboardScope struct {
	Metric Metric `json:"metric"`
	Period Period `json:"period"`
	GameID string `json:"game_id,omitempty"`
}

// Key returns the canonical string form "metric:period[:gameID]"
func (s LeaderboardScope) Key() string {
	if s.GameID != "" {
		return fmt.Sprintf("%s:%s:%s", s.Metric, s.Period, s.GameID)
	}
	return fmt.Sprintf("%s:%s", s.Metric, s.Period)
}

// ParseScope parses the canonical key form back into a scope
func ParseScope(key string) (LeaderboardScope, error) {
	parts := strings.Split(key, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return LeaderboardScope{}, fmt.Errorf("%w: malformed scope %q", ErrValidation, key)
	}
	scope := LeaderboardScope{
		Metric: Metric(parts[0]),
		Period: Period(parts[1]),
	}
	if len(parts) == 3 {
		scope.GameID = parts[2]
	}
	if !scope.Metric.Valid() {
		return LeaderboardScope{}, fmt.Errorf("%w: unknown metric %q", ErrValidation, parts[0])
	}
	return scope, nil
}

// LeaderboardEntry is one ranked row in a projected leaderboard.
// Entirely derived; safe to drop and rebuild from aggregates.
type LeaderboardEntry struct {
	Scope              LeaderboardScope `json:"scope"`
	PlayerID           string           `json:"player_id"`
	Rank               int64            `json:"rank"`
	Value              int64            `json:"value"`
	LastCalculated     time.Time        `json:"last_calculated"`
	NeedsRecalculation bool             `json:"needs_recalculation"`
}

// PlayerValue is the projector's unranked input: one player's aggregate
// value within a scope.
type PlayerValue struct {
	PlayerID string
	Value    int64
}
