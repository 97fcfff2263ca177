package progression

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/gamification-ledger/internal/domain"
)

// Marker component for the per-session idempotency record
const component = "progression"

// Store persists progression aggregates. SaveProgressionApplied claims
// the per-session marker and writes the aggregate in one store
// transaction, reporting false when the session was already applied to
// this component; the marker must never exist without its effect.
type Store interface {
	GetProgression(ctx context.Context, playerID string) (*domain.PlayerProgression, error)
	SaveProgression(ctx context.Context, prog *domain.PlayerProgression) error
	SaveProgressionApplied(ctx context.Context, prog *domain.PlayerProgression, sessionID, component string) (bool, error)
}

// Service is the progression aggregator: per-player rollup counters,
// streaks and level/XP, all derived from the session ledger.
type Service struct {
	store          Store
	baseXPPerLevel int64
	logger         *slog.Logger
}

// NewService creates a new progression aggregator
func NewService(store Store, baseXPPerLevel int64, logger *slog.Logger) *Service {
	if baseXPPerLevel <= 0 {
		baseXPPerLevel = 100
	}
	return &Service{
		store:          store,
		baseXPPerLevel: baseXPPerLevel,
		logger:         logger,
	}
}

// xpForNextLevel returns the XP required to go from level to level+1,
// on a gently super-linear curve.
func (s *Service) xpForNextLevel(level int) int64 {
	if level < 1 {
		level = 1
	}
	return int64(float64(s.baseXPPerLevel) * math.Pow(float64(level), 1.2))
}

// ApplySession folds one non-voided ledger entry into the player's
// aggregate. Idempotent per session id: the applied marker is claimed
// in the same store transaction that writes the aggregate, so a
// failure rolls back both and the at-least-once redelivery applies
// cleanly, while a true redelivery is a no-op.
func (s *Service) ApplySession(ctx context.Context, session *domain.Session) (*domain.PlayerProgression, error) {
	if session.Voided() {
		return nil, nil
	}

	prog, err := s.getOrCreate(ctx, session.PlayerID)
	if err != nil {
		return nil, err
	}

	s.applyOutcome(prog, session)
	s.applyRewards(prog, session)
	prog.UpdatedAt = time.Now()

	applied, err := s.store.SaveProgressionApplied(ctx, prog, session.ID, component)
	if err != nil {
		return nil, fmt.Errorf("saving progression for %s: %w", session.PlayerID, err)
	}
	if !applied {
		s.logger.Debug("session already aggregated, skipping",
			"session_id", session.ID,
			"player_id", session.PlayerID,
		)
		return nil, nil
	}

	s.logger.Debug("session aggregated",
		"session_id", session.ID,
		"player_id", session.PlayerID,
		"games_played", prog.Statistics.TotalGamesPlayed,
		"level", prog.Level,
	)
	return prog, nil
}

// applyOutcome updates the win/loss/draw counters and the streak.
// A draw leaves the streak untouched; only a loss resets it.
func (s *Service) applyOutcome(prog *domain.PlayerProgression, session *domain.Session) {
	prog.Statistics.TotalGamesPlayed++

	switch session.Outcome {
	case domain.OutcomeWin:
		prog.Statistics.TotalWins++
		prog.Statistics.CurrentStreak++
		if prog.Statistics.CurrentStreak > prog.Statistics.BestStreak {
			prog.Statistics.BestStreak = prog.Statistics.CurrentStreak
		}
	case domain.OutcomeLoss:
		prog.Statistics.TotalLosses++
		prog.Statistics.CurrentStreak = 0
	case domain.OutcomeDraw:
		prog.Statistics.TotalDraws++
	}
}

// applyRewards adds the session's points and XP to lifetime totals and
// runs level-ups, carrying remainder XP forward so none is lost.
func (s *Service) applyRewards(prog *domain.PlayerProgression, session *domain.Session) {
	prog.TotalPoints += session.PointsEarned
	prog.TotalXP += session.XPEarned
	prog.CurrentXP += session.XPEarned

	for prog.CurrentXP >= s.xpForNextLevel(prog.Level) {
		prog.CurrentXP -= s.xpForNextLevel(prog.Level)
		prog.Level++
	}
}

// RecordCourseCompleted bumps the courses counter used by
// course-scoped achievement criteria.
func (s *Service) RecordCourseCompleted(ctx context.Context, playerID string) (*domain.PlayerProgression, error) {
	prog, err := s.getOrCreate(ctx, playerID)
	if err != nil {
		return nil, err
	}
	prog.CoursesCompleted++
	prog.UpdatedAt = time.Now()
	if err := s.store.SaveProgression(ctx, prog); err != nil {
		return nil, fmt.Errorf("saving progression for %s: %w", playerID, err)
	}
	return prog, nil
}

// AwardXP grants XP outside the session pipeline (achievement and
// challenge rewards), running the same level-up carry logic.
func (s *Service) AwardXP(ctx context.Context, playerID string, xp int64) error {
	if xp <= 0 {
		return nil
	}
	prog, err := s.getOrCreate(ctx, playerID)
	if err != nil {
		return err
	}
	prog.TotalXP += xp
	prog.CurrentXP += xp
	for prog.CurrentXP >= s.xpForNextLevel(prog.Level) {
		prog.CurrentXP -= s.xpForNextLevel(prog.Level)
		prog.Level++
	}
	prog.UpdatedAt = time.Now()
	return s.store.SaveProgression(ctx, prog)
}

// RecordUnlock bumps the achievements-unlocked counter
func (s *Service) RecordUnlock(ctx context.Context, playerID string) error {
	prog, err := s.getOrCreate(ctx, playerID)
	if err != nil {
		return err
	}
	prog.AchievementsTotal++
	prog.UpdatedAt = time.Now()
	return s.store.SaveProgression(ctx, prog)
}

// Get returns a player's progression record
func (s *Service) Get(ctx context.Context, playerID string) (*domain.PlayerProgression, error) {
	return s.store.GetProgression(ctx, playerID)
}

// Snapshot returns the aggregate snapshot achievement criteria read.
// A missing progression record degrades to an empty snapshot instead
// of an error.
func (s *Service) Snapshot(ctx context.Context, playerID string) (domain.AggregateSnapshot, error) {
	prog, err := s.store.GetProgression(ctx, playerID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return domain.AggregateSnapshot{}, nil
		}
		return domain.AggregateSnapshot{}, fmt.Errorf("snapshot for %s: %w", playerID, err)
	}
	return domain.AggregateSnapshot{Progression: prog}, nil
}

func (s *Service) getOrCreate(ctx context.Context, playerID string) (*domain.PlayerProgression, error) {
	prog, err := s.store.GetProgression(ctx, playerID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return domain.NewPlayerProgression(playerID), nil
		}
		return nil, fmt.Errorf("getting progression for %s: %w", playerID, err)
	}
	return prog, nil
}
