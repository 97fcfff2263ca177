package achievement

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamification-ledger/internal/domain"
)

// Store persists achievement definitions and per-player unlock records.
// UpsertProgress must be monotonic: a stored progress or current value
// is never lowered. FinalizeUnlock stamps unlocked_at exactly once and
// reports whether this caller was the first writer; the unique
// (player, achievement) key is the concurrency guard, so a losing
// concurrent unlock resolves to false, not an error.
type Store interface {
	ListActive(ctx context.Context) ([]domain.Achievement, error)
	GetAchievement(ctx context.Context, achievementID string) (*domain.Achievement, error)
	GetUnlock(ctx context.Context, playerID, achievementID string) (*domain.AchievementUnlock, error)
	UpsertProgress(ctx context.Context, unlock *domain.AchievementUnlock) error
	FinalizeUnlock(ctx context.Context, playerID, achievementID string, at time.Time, sourceSessionID string) (bool, error)
	IncrementUnlockCount(ctx context.Context, achievementID string) error
	MarkNotified(ctx context.Context, playerID, achievementID string) error
	ListUnlocksForPlayer(ctx context.Context, playerID string) ([]domain.AchievementUnlock, error)
	HasPremium(ctx context.Context, playerID string, at time.Time) (bool, error)
}

// AggregateSource supplies the authoritative aggregate snapshot
// criteria evaluate against; never ad hoc counters.
type AggregateSource interface {
	Snapshot(ctx context.Context, playerID string) (domain.AggregateSnapshot, error)
}

// RewardCrediter credits unlock rewards through the points wallet
type RewardCrediter interface {
	Credit(ctx context.Context, playerID string, amount int64, reason string) (*domain.PointsTransaction, error)
}

// RewardGranter applies XP rewards and the unlocked counter to the
// player's progression record.
type RewardGranter interface {
	AwardXP(ctx context.Context, playerID string, xp int64) error
	RecordUnlock(ctx context.Context, playerID string) error
}

// Notifier pushes unlock notifications to connected players
type Notifier interface {
	NotifyUnlock(playerID string, achievement domain.Achievement, unlock domain.AchievementUnlock)
}

// Engine evaluates achievement criteria and drives the per-player
// state machine: Locked (progress < 100) to Unlocked (terminal).
type Engine struct {
	store      Store
	aggregates AggregateSource
	wallet     RewardCrediter
	granter    RewardGranter
	notifier   Notifier
	logger     *slog.Logger
}

// NewEngine creates a new achievement engine. The notifier may be nil.
func NewEngine(
	store Store,
	aggregates AggregateSource,
	wallet RewardCrediter,
	granter RewardGranter,
	notifier Notifier,
	logger *slog.Logger,
) *Engine {
	return &Engine{
		store:      store,
		aggregates: aggregates,
		wallet:     wallet,
		granter:    granter,
		notifier:   notifier,
		logger:     logger,
	}
}

// SessionTriggers are the criteria kinds a completed session can move
var SessionTriggers = []domain.CriteriaKind{
	domain.CriteriaGamesPlayed,
	domain.CriteriaWins,
	domain.CriteriaStreak,
	domain.CriteriaPointsEarned,
	domain.CriteriaLevelReached,
}

// SessionTriggers returns the trigger set a session ingest evaluates
func (e *Engine) SessionTriggers() []domain.CriteriaKind {
	return SessionTriggers
}

// Evaluate re-evaluates every active achievement whose criteria kind is
// in the trigger set. One achievement failing never blocks the rest;
// its error is logged and the pass continues.
func (e *Engine) Evaluate(ctx context.Context, playerID string, triggers []domain.CriteriaKind, sourceSessionID string) error {
	achievements, err := e.store.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("listing active achievements: %w", err)
	}

	triggered := make(map[domain.CriteriaKind]bool, len(triggers))
	for _, kind := range triggers {
		triggered[kind] = true
	}

	snap, err := e.aggregates.Snapshot(ctx, playerID)
	if err != nil {
		return fmt.Errorf("aggregate snapshot for %s: %w", playerID, err)
	}

	var premium *bool
	for _, a := range achievements {
		if a.Criteria == nil || !triggered[a.Criteria.Kind()] {
			continue
		}
		if a.PremiumOnly {
			if premium == nil {
				has, err := e.store.HasPremium(ctx, playerID, time.Now())
				if err != nil {
					e.logger.Warn("premium check failed, skipping premium achievements",
						"player_id", playerID, "error", err)
					has = false
				}
				premium = &has
			}
			if !*premium {
				continue
			}
		}

		if err := e.evaluateOne(ctx, playerID, a, snap, sourceSessionID); err != nil {
			e.logger.Warn("achievement evaluation failed",
				"player_id", playerID,
				"achievement_id", a.ID,
				"error", err,
			)
		}
	}
	return nil
}

// evaluateOne recomputes one achievement's progress from the snapshot
// and drives the unlock transition when 100 is crossed the first time.
func (e *Engine) evaluateOne(ctx context.Context, playerID string, a domain.Achievement, snap domain.AggregateSnapshot, sourceSessionID string) error {
	existing, err := e.store.GetUnlock(ctx, playerID, a.ID)
	if err != nil && !domain.IsNotFoundError(err) {
		return fmt.Errorf("getting unlock record: %w", err)
	}
	if existing != nil && existing.IsUnlocked() {
		// Terminal; an achievement is never re-locked.
		return nil
	}

	value := a.Criteria.CurrentValue(snap)
	progress := domain.ProgressFor(value, a.Criteria.Target())

	if existing != nil {
		// Monotonic guard; the store enforces this too.
		if progress < existing.Progress {
			progress = existing.Progress
		}
		if value < existing.CurrentValue {
			value = existing.CurrentValue
		}
	}

	unlock := &domain.AchievementUnlock{
		PlayerID:      playerID,
		AchievementID: a.ID,
		Progress:      progress,
		CurrentValue:  value,
		UpdatedAt:     time.Now(),
	}
	if err := e.store.UpsertProgress(ctx, unlock); err != nil {
		return fmt.Errorf("upserting progress: %w", err)
	}

	if progress < 100 {
		return nil
	}

	first, err := e.store.FinalizeUnlock(ctx, playerID, a.ID, time.Now(), sourceSessionID)
	if err != nil {
		return fmt.Errorf("finalizing unlock: %w", err)
	}
	if !first {
		// A concurrent trigger won the race; the desired end state
		// already holds.
		return nil
	}

	return e.grantRewards(ctx, playerID, a, unlock)
}

func (e *Engine) grantRewards(ctx context.Context, playerID string, a domain.Achievement, unlock *domain.AchievementUnlock) error {
	if err := e.store.IncrementUnlockCount(ctx, a.ID); err != nil {
		e.logger.Warn("failed to increment unlock count",
			"achievement_id", a.ID, "error", err)
	}
	if err := e.granter.RecordUnlock(ctx, playerID); err != nil {
		e.logger.Warn("failed to record unlock on progression",
			"player_id", playerID, "error", err)
	}

	if a.RewardPoints > 0 {
		reason := fmt.Sprintf("achievement:%s", a.ID)
		if _, err := e.wallet.Credit(ctx, playerID, a.RewardPoints, reason); err != nil {
			return fmt.Errorf("crediting unlock reward: %w", err)
		}
	}
	if a.RewardXP > 0 {
		if err := e.granter.AwardXP(ctx, playerID, a.RewardXP); err != nil {
			return fmt.Errorf("awarding unlock xp: %w", err)
		}
	}

	e.logger.Info("achievement unlocked",
		"player_id", playerID,
		"achievement_id", a.ID,
		"tier", a.Tier,
	)

	if e.notifier != nil {
		e.notifier.NotifyUnlock(playerID, a, *unlock)
		if err := e.store.MarkNotified(ctx, playerID, a.ID); err != nil {
			e.logger.Warn("failed to mark unlock notified",
				"player_id", playerID, "achievement_id", a.ID, "error", err)
		}
	}
	return nil
}

// ListActive returns every active achievement definition
func (e *Engine) ListActive(ctx context.Context) ([]domain.Achievement, error) {
	return e.store.ListActive(ctx)
}

// PlayerView is one achievement with the player's progress toward it
type PlayerView struct {
	Achievement domain.Achievement        `json:"achievement"`
	Unlock      *domain.AchievementUnlock `json:"unlock,omitempty"`
}

// ListForPlayer returns the player-facing achievement list. Hidden
// achievements are excluded until the player has unlocked them.
func (e *Engine) ListForPlayer(ctx context.Context, playerID string) ([]PlayerView, error) {
	achievements, err := e.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing achievements: %w", err)
	}
	unlocks, err := e.store.ListUnlocksForPlayer(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("listing unlocks for %s: %w", playerID, err)
	}

	byID := make(map[string]*domain.AchievementUnlock, len(unlocks))
	for i := range unlocks {
		byID[unlocks[i].AchievementID] = &unlocks[i]
	}

	views := make([]PlayerView, 0, len(achievements))
	for _, a := range achievements {
		unlock := byID[a.ID]
		if a.IsHidden && (unlock == nil || !unlock.IsUnlocked()) {
			continue
		}
		views = append(views, PlayerView{Achievement: a, Unlock: unlock})
	}
	return views, nil
}
