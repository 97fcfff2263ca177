package domain

import "time"

// SystemHealth classifies the outcome of a completed verification scan
type SystemHealth string

const (
	HealthHealthy  SystemHealth = "healthy"
	HealthWarning  SystemHealth = "warning"
	HealthCritical SystemHealth = "critical"
)

// IssueType identifies which aggregate field a discrepancy was found in
type IssueType string

const (
	IssueGamesPlayed IssueType = "games_played"
	IssueWins        IssueType = "wins"
	IssueLosses      IssueType = "losses"
	IssuePoints      IssueType = "points"
)

// Issue is one detected mismatch between a stored aggregate field and
// the value recomputed from the ledger.
type Issue struct {
	Type       IssueType `json:"type"`
	Expected   int64     `json:"expected"`
	Actual     int64     `json:"actual"`
	Difference int64     `json:"difference"`
}

// PlayerDetail is the per-player discrepancy list, included only when
// a detailed report is requested.
type PlayerDetail struct {
	PlayerID   string  `json:"playerId"`
	PlayerName string  `json:"playerName"`
	Issues     []Issue `json:"issues"`
}

// ReportSummary is the headline counters of a verification report
type ReportSummary struct {
	TotalPlayers          int64 `json:"totalPlayers"`
	PlayersWithIssues     int64 `json:"playersWithIssues"`
	TotalSessions         int64 `json:"totalSessions"`
	AchievementsCount     int64 `json:"achievementsCount"`
	ActiveChallengesCount int64 `json:"activeChallengesCount"`
	LeaderboardsCount     int64 `json:"leaderboardsCount"`
}

// ProgressionDiscrepancies aggregates mismatches between progression
// records and ledger-derived stats.
type ProgressionDiscrepancies struct {
	PlayersAffected int64 `json:"playersAffected"`
	TotalGapGames   int64 `json:"totalGapGames"`
	TotalGapPoints  int64 `json:"totalGapPoints"`
}

// WalletDiscrepancies aggregates cached-balance mismatches
type WalletDiscrepancies struct {
	PlayersAffected int64 `json:"playersAffected"`
	TotalMismatch   int64 `json:"totalMismatch"`
}

// LeaderboardDiscrepancies reports projection staleness
type LeaderboardDiscrepancies struct {
	StaleEntries           int64 `json:"staleEntries"`
	OldestUpdateMinutesAgo int64 `json:"oldestUpdateMinutesAgo"`
	NeedingRecalculation   int64 `json:"needingRecalculation"`
}

// ChallengeDiscrepancies reports missing active challenge instances
type ChallengeDiscrepancies struct {
	MissingForToday bool       `json:"missingForToday"`
	LastCreatedAt   *time.Time `json:"lastCreatedAt,omitempty"`
}

// AchievementDiscrepancies reports unlock anomalies
type AchievementDiscrepancies struct {
	TotalInDatabase               int64 `json:"totalInDatabase"`
	PlayersEligibleButNotUnlocked int64 `json:"playersEligibleButNotUnlocked"`
}

// Discrepancies groups every category of detected drift
type Discrepancies struct {
	ProgressionStats ProgressionDiscrepancies `json:"progressionStats"`
	PointsBalance    WalletDiscrepancies      `json:"pointsBalance"`
	Leaderboards     LeaderboardDiscrepancies `json:"leaderboards"`
	Challenges       ChallengeDiscrepancies   `json:"challenges"`
	Achievements     AchievementDiscrepancies `json:"achievements"`
}

// VerificationReport is the complete output of a verification scan.
// It is only ever produced by a scan that ran to completion; an
// interrupted scan fails instead of reporting a partial verdict.
type VerificationReport struct {
	Timestamp     time.Time      `json:"timestamp"`
	SystemHealth  SystemHealth   `json:"systemHealth"`
	Summary       ReportSummary  `json:"summary"`
	Discrepancies Discrepancies  `json:"discrepancies"`
	PlayerDetails []PlayerDetail `json:"playerDetails,omitempty"`
}
