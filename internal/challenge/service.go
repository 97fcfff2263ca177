package challenge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamification-ledger/internal/domain"
)

// Store persists challenge instances and per-player progress.
// IncrementProgress must be idempotent per (challenge, session) via the
// applied-session marker; CompleteProgress marks completion exactly
// once and reports whether this caller was first.
type Store interface {
	ListActiveChallenges(ctx context.Context, now time.Time) ([]domain.DailyChallenge, error)
	GetProgress(ctx context.Context, challengeID, playerID string) (*domain.ChallengeProgress, error)
	IncrementProgress(ctx context.Context, challengeID, playerID, sessionID string, delta int64) (*domain.ChallengeProgress, error)
	CompleteProgress(ctx context.Context, challengeID, playerID string, at time.Time) (bool, error)
	HasPremium(ctx context.Context, playerID string, at time.Time) (bool, error)
}

// RewardCrediter credits completion rewards through the points wallet
type RewardCrediter interface {
	Credit(ctx context.Context, playerID string, amount int64, reason string) (*domain.PointsTransaction, error)
}

// XPAwarder applies completion XP to the player's progression
type XPAwarder interface {
	AwardXP(ctx context.Context, playerID string, xp int64) error
}

// Service is the challenge scheduler: it tracks the active daily
// challenge set and per-player completion driven by session events.
type Service struct {
	store   Store
	wallet  RewardCrediter
	awarder XPAwarder
	logger  *slog.Logger
}

// NewService creates a new challenge service
func NewService(store Store, wallet RewardCrediter, awarder XPAwarder, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		wallet:  wallet,
		awarder: awarder,
		logger:  logger,
	}
}

// ActiveNow returns the challenge instances active at the given moment
func (s *Service) ActiveNow(ctx context.Context, now time.Time) ([]domain.DailyChallenge, error) {
	return s.store.ListActiveChallenges(ctx, now)
}

// ApplySession advances every active challenge the session contributes
// to. A challenge failing never blocks the rest of the set.
func (s *Service) ApplySession(ctx context.Context, session *domain.Session) error {
	if session.Voided() {
		return nil
	}

	active, err := s.store.ListActiveChallenges(ctx, session.CompletedAt)
	if err != nil {
		return fmt.Errorf("listing active challenges: %w", err)
	}

	var premium *bool
	for _, c := range active {
		if c.PremiumOnly {
			if premium == nil {
				has, err := s.store.HasPremium(ctx, session.PlayerID, session.CompletedAt)
				if err != nil {
					s.logger.Warn("premium check failed, skipping premium challenges",
						"player_id", session.PlayerID, "error", err)
					has = false
				}
				premium = &has
			}
			if !*premium {
				continue
			}
		}

		if err := s.applyOne(ctx, c, session); err != nil {
			s.logger.Warn("challenge progress update failed",
				"challenge_id", c.ID,
				"player_id", session.PlayerID,
				"error", err,
			)
		}
	}
	return nil
}

func (s *Service) applyOne(ctx context.Context, c domain.DailyChallenge, session *domain.Session) error {
	delta := c.Kind.ProgressDelta(session)
	if delta == 0 {
		return nil
	}

	existing, err := s.store.GetProgress(ctx, c.ID, session.PlayerID)
	if err != nil && !domain.IsNotFoundError(err) {
		return fmt.Errorf("getting progress: %w", err)
	}
	if existing != nil && existing.IsCompleted {
		// Terminal for this instance.
		return nil
	}

	progress, err := s.store.IncrementProgress(ctx, c.ID, session.PlayerID, session.ID, delta)
	if err != nil {
		return fmt.Errorf("incrementing progress: %w", err)
	}
	if progress == nil {
		// Session already counted toward this challenge.
		return nil
	}

	if progress.CurrentProgress < c.TargetValue {
		return nil
	}

	first, err := s.store.CompleteProgress(ctx, c.ID, session.PlayerID, session.CompletedAt)
	if err != nil {
		return fmt.Errorf("completing challenge: %w", err)
	}
	if !first {
		return nil
	}

	s.logger.Info("challenge completed",
		"challenge_id", c.ID,
		"player_id", session.PlayerID,
	)
	return s.grantRewards(ctx, c, session.PlayerID)
}

func (s *Service) grantRewards(ctx context.Context, c domain.DailyChallenge, playerID string) error {
	if c.RewardPoints > 0 {
		reason := fmt.Sprintf("challenge:%s", c.ID)
		if _, err := s.wallet.Credit(ctx, playerID, c.RewardPoints, reason); err != nil {
			return fmt.Errorf("crediting challenge reward: %w", err)
		}
	}
	if c.RewardXP > 0 {
		if err := s.awarder.AwardXP(ctx, playerID, c.RewardXP); err != nil {
			return fmt.Errorf("awarding challenge xp: %w", err)
		}
	}
	return nil
}

// ProgressFor returns a player's progress toward one challenge
func (s *Service) ProgressFor(ctx context.Context, challengeID, playerID string) (*domain.ChallengeProgress, error) {
	return s.store.GetProgress(ctx, challengeID, playerID)
}
