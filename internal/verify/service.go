package verify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamification-ledger/internal/domain"
)

// Store is the read-only view the verifier audits. The scan takes no
// locks and mutates nothing; every method is a plain read.
type Store interface {
	ListPlayerIDs(ctx context.Context) ([]string, error)
	PlayerName(ctx context.Context, playerID string) (string, error)
	CountSessions(ctx context.Context) (int64, error)
	SessionStats(ctx context.Context, playerID string) (domain.SessionStats, error)
	GetProgression(ctx context.Context, playerID string) (*domain.PlayerProgression, error)
	WalletBalance(ctx context.Context, playerID string) (int64, error)
	TransactionSum(ctx context.Context, playerID string) (int64, error)
	ListLeaderboardEntries(ctx context.Context) ([]domain.LeaderboardEntry, error)
	CountActiveChallenges(ctx context.Context, now time.Time) (int64, error)
	LastChallengeCreatedAt(ctx context.Context) (*time.Time, error)
	CountAchievements(ctx context.Context) (int64, error)
	ListActiveAchievements(ctx context.Context) ([]domain.Achievement, error)
	UnlockedAchievementIDs(ctx context.Context, playerID string) (map[string]bool, error)
}

// Config tunes the scan bounds and health thresholds
type Config struct {
	ScanTimeout            time.Duration
	StalenessThreshold     time.Duration
	StaleCriticalCount     int64
	CriticalPlayerFraction float64
}

// Options scopes a single scan
type Options struct {
	PlayerID string
	Detailed bool
}

// Service audits every derived store against the session ledger. The
// ledger is ground truth; everything else is a cache whose expected
// value the scan recomputes and diffs.
type Service struct {
	store  Store
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// NewService creates a new verification service
func NewService(store Store, cfg Config, logger *slog.Logger) *Service {
	if cfg.ScanTimeout == 0 {
		cfg.ScanTimeout = 2 * time.Minute
	}
	if cfg.StalenessThreshold == 0 {
		cfg.StalenessThreshold = 30 * time.Minute
	}
	if cfg.StaleCriticalCount == 0 {
		cfg.StaleCriticalCount = 5
	}
	if cfg.CriticalPlayerFraction == 0 {
		cfg.CriticalPlayerFraction = 0.10
	}
	return &Service{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// Verify runs a full consistency scan and returns the health report.
// The scan is bounded by ScanTimeout and honors caller cancellation; an
// interrupted scan fails with ErrVerificationFailed rather than
// reporting a partial verdict as complete.
func (s *Service) Verify(ctx context.Context, opts Options) (*domain.VerificationReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ScanTimeout)
	defer cancel()

	started := s.now()

	report := &domain.VerificationReport{
		Timestamp:    started,
		SystemHealth: domain.HealthHealthy,
	}

	playerIDs, err := s.scanPlayers(ctx, opts, report)
	if err != nil {
		return nil, err
	}

	if err := s.scanLeaderboards(ctx, report); err != nil {
		return nil, err
	}
	if err := s.scanChallenges(ctx, report); err != nil {
		return nil, err
	}
	if err := s.scanAchievements(ctx, playerIDs, report); err != nil {
		return nil, err
	}

	totalSessions, err := s.store.CountSessions(ctx)
	if err != nil {
		return nil, s.failed(err)
	}
	report.Summary.TotalSessions = totalSessions

	s.classify(report)

	s.logger.Info("verification scan completed",
		"duration", s.now().Sub(started),
		"players", report.Summary.TotalPlayers,
		"players_with_issues", report.Summary.PlayersWithIssues,
		"health", report.SystemHealth,
	)
	return report, nil
}

// failed wraps any abort condition so callers can distinguish a scan
// that could not complete from a completed scan reporting critical.
func (s *Service) failed(err error) error {
	return fmt.Errorf("%w: %v", domain.ErrVerificationFailed, err)
}

func (s *Service) scanPlayers(ctx context.Context, opts Options, report *domain.VerificationReport) ([]string, error) {
	var playerIDs []string
	if opts.PlayerID != "" {
		playerIDs = []string{opts.PlayerID}
	} else {
		ids, err := s.store.ListPlayerIDs(ctx)
		if err != nil {
			return nil, s.failed(err)
		}
		playerIDs = ids
	}
	report.Summary.TotalPlayers = int64(len(playerIDs))

	for _, playerID := range playerIDs {
		if err := ctx.Err(); err != nil {
			return nil, s.failed(err)
		}

		issues, err := s.checkPlayer(ctx, playerID, report)
		if err != nil {
			if ctx.Err() != nil {
				return nil, s.failed(ctx.Err())
			}
			// One bad record must not blind the operator to the rest.
			s.logger.Warn("skipping player during scan",
				"player_id", playerID,
				"error", err,
			)
			continue
		}
		if len(issues) == 0 {
			continue
		}

		report.Summary.PlayersWithIssues++
		if opts.Detailed {
			name, err := s.store.PlayerName(ctx, playerID)
			if err != nil || name == "" {
				name = playerID
			}
			report.PlayerDetails = append(report.PlayerDetails, domain.PlayerDetail{
				PlayerID:   playerID,
				PlayerName: name,
				Issues:     issues,
			})
		}
	}
	return playerIDs, nil
}

// checkPlayer recomputes one player's expected aggregates from the
// ledger and transaction log and diffs them against the stored values.
func (s *Service) checkPlayer(ctx context.Context, playerID string, report *domain.VerificationReport) ([]domain.Issue, error) {
	actual, err := s.store.SessionStats(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("recomputing session stats: %w", err)
	}

	var issues []domain.Issue

	// A player with sessions but no progression record is a full
	// discrepancy, not an error.
	prog, err := s.store.GetProgression(ctx, playerID)
	if err != nil && !domain.IsNotFoundError(err) {
		return nil, fmt.Errorf("reading progression: %w", err)
	}
	var stored domain.SessionStats
	if prog != nil {
		stored = domain.SessionStats{
			GamesPlayed: prog.Statistics.TotalGamesPlayed,
			Wins:        prog.Statistics.TotalWins,
			Losses:      prog.Statistics.TotalLosses,
			Points:      prog.TotalPoints,
		}
	}

	progIssues := diffStats(actual, stored)
	if len(progIssues) > 0 {
		report.Discrepancies.ProgressionStats.PlayersAffected++
		for _, issue := range progIssues {
			switch issue.Type {
			case domain.IssueGamesPlayed:
				report.Discrepancies.ProgressionStats.TotalGapGames += abs(issue.Difference)
			case domain.IssuePoints:
				report.Discrepancies.ProgressionStats.TotalGapPoints += abs(issue.Difference)
			}
		}
		issues = append(issues, progIssues...)
	}

	expectedBalance, err := s.store.TransactionSum(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("summing transactions: %w", err)
	}
	cachedBalance, err := s.store.WalletBalance(ctx, playerID)
	if err != nil && !domain.IsNotFoundError(err) {
		return nil, fmt.Errorf("reading wallet: %w", err)
	}
	if expectedBalance != cachedBalance {
		report.Discrepancies.PointsBalance.PlayersAffected++
		report.Discrepancies.PointsBalance.TotalMismatch += abs(expectedBalance - cachedBalance)
		issues = append(issues, domain.Issue{
			Type:       domain.IssuePoints,
			Expected:   expectedBalance,
			Actual:     cachedBalance,
			Difference: expectedBalance - cachedBalance,
		})
	}

	return issues, nil
}

// diffStats produces a typed issue per mismatched progression field
func diffStats(expected, stored domain.SessionStats) []domain.Issue {
	var issues []domain.Issue
	if expected.GamesPlayed != stored.GamesPlayed {
		issues = append(issues, domain.Issue{
			Type:       domain.IssueGamesPlayed,
			Expected:   expected.GamesPlayed,
			Actual:     stored.GamesPlayed,
			Difference: expected.GamesPlayed - stored.GamesPlayed,
		})
	}
	if expected.Wins != stored.Wins {
		issues = append(issues, domain.Issue{
			Type:       domain.IssueWins,
			Expected:   expected.Wins,
			Actual:     stored.Wins,
			Difference: expected.Wins - stored.Wins,
		})
	}
	if expected.Losses != stored.Losses {
		issues = append(issues, domain.Issue{
			Type:       domain.IssueLosses,
			Expected:   expected.Losses,
			Actual:     stored.Losses,
			Difference: expected.Losses - stored.Losses,
		})
	}
	if expected.Points != stored.Points {
		issues = append(issues, domain.Issue{
			Type:       domain.IssuePoints,
			Expected:   expected.Points,
			Actual:     stored.Points,
			Difference: expected.Points - stored.Points,
		})
	}
	return issues
}

func (s *Service) scanLeaderboards(ctx context.Context, report *domain.VerificationReport) error {
	entries, err := s.store.ListLeaderboardEntries(ctx)
	if err != nil {
		return s.failed(err)
	}

	now := s.now()
	scopes := make(map[string]bool)
	var oldest time.Time

	for _, entry := range entries {
		scopes[entry.Scope.Key()] = true
		if oldest.IsZero() || entry.LastCalculated.Before(oldest) {
			oldest = entry.LastCalculated
		}
		if now.Sub(entry.LastCalculated) > s.cfg.StalenessThreshold {
			report.Discrepancies.Leaderboards.StaleEntries++
		}
		if entry.NeedsRecalculation {
			report.Discrepancies.Leaderboards.NeedingRecalculation++
		}
	}

	report.Summary.LeaderboardsCount = int64(len(scopes))
	if !oldest.IsZero() {
		report.Discrepancies.Leaderboards.OldestUpdateMinutesAgo = int64(now.Sub(oldest).Minutes())
	}
	return nil
}

func (s *Service) scanChallenges(ctx context.Context, report *domain.VerificationReport) error {
	active, err := s.store.CountActiveChallenges(ctx, s.now())
	if err != nil {
		return s.failed(err)
	}
	report.Summary.ActiveChallengesCount = active
	report.Discrepancies.Challenges.MissingForToday = active == 0

	lastCreated, err := s.store.LastChallengeCreatedAt(ctx)
	if err != nil {
		return s.failed(err)
	}
	report.Discrepancies.Challenges.LastCreatedAt = lastCreated
	return nil
}

func (s *Service) scanAchievements(ctx context.Context, playerIDs []string, report *domain.VerificationReport) error {
	total, err := s.store.CountAchievements(ctx)
	if err != nil {
		return s.failed(err)
	}
	report.Summary.AchievementsCount = total
	report.Discrepancies.Achievements.TotalInDatabase = total

	active, err := s.store.ListActiveAchievements(ctx)
	if err != nil {
		return s.failed(err)
	}
	if len(active) == 0 {
		return nil
	}

	for _, playerID := range playerIDs {
		if err := ctx.Err(); err != nil {
			return s.failed(err)
		}

		prog, err := s.store.GetProgression(ctx, playerID)
		if err != nil {
			if domain.IsNotFoundError(err) {
				continue
			}
			s.logger.Warn("skipping player during achievement audit",
				"player_id", playerID, "error", err)
			continue
		}
		unlocked, err := s.store.UnlockedAchievementIDs(ctx, playerID)
		if err != nil {
			s.logger.Warn("skipping player during achievement audit",
				"player_id", playerID, "error", err)
			continue
		}

		snap := domain.AggregateSnapshot{Progression: prog}
		for _, a := range active {
			if a.Criteria == nil || unlocked[a.ID] {
				continue
			}
			if a.Criteria.CurrentValue(snap) >= a.Criteria.Target() {
				report.Discrepancies.Achievements.PlayersEligibleButNotUnlocked++
				break
			}
		}
	}
	return nil
}

// classify derives the overall health verdict. Critical conditions
// override warning; warning requires at least one affected player or a
// missing challenge set.
func (s *Service) classify(report *domain.VerificationReport) {
	critical := false
	warning := false

	if report.Discrepancies.Challenges.MissingForToday {
		critical = true
	}
	if report.Discrepancies.Leaderboards.StaleEntries > s.cfg.StaleCriticalCount {
		critical = true
	}
	if report.Summary.TotalPlayers > 0 {
		fraction := float64(report.Summary.PlayersWithIssues) / float64(report.Summary.TotalPlayers)
		if fraction > s.cfg.CriticalPlayerFraction {
			critical = true
		}
	}
	if report.Summary.PlayersWithIssues > 0 {
		warning = true
	}

	switch {
	case critical:
		report.SystemHealth = domain.HealthCritical
	case warning:
		report.SystemHealth = domain.HealthWarning
	default:
		report.SystemHealth = domain.HealthHealthy
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
