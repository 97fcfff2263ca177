package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gamification-ledger/internal/domain"
	"github.com/gamification-ledger/internal/retry"
)

// Ledger appends completed sessions to the source-of-truth log
type Ledger interface {
	Append(ctx context.Context, session *domain.Session) (bool, error)
}

// Aggregator folds sessions into the per-player progression record
type Aggregator interface {
	ApplySession(ctx context.Context, session *domain.Session) (*domain.PlayerProgression, error)
}

// Wallet credits session points keyed on the session id
type Wallet interface {
	CreditForSession(ctx context.Context, playerID string, amount int64, reason, sessionID string) (*domain.PointsTransaction, error)
}

// AchievementEngine re-evaluates criteria after an aggregate change
type AchievementEngine interface {
	Evaluate(ctx context.Context, playerID string, triggers []domain.CriteriaKind, sourceSessionID string) error
	SessionTriggers() []domain.CriteriaKind
}

// ChallengeTracker advances active challenge progress for a session
type ChallengeTracker interface {
	ApplySession(ctx context.Context, session *domain.Session) error
}

// PlayerStore records player display names and premium status changes
type PlayerStore interface {
	UpsertPlayer(ctx context.Context, playerID, name string) error
	SetPremiumStatus(ctx context.Context, playerID string, granted bool, expiresAt *time.Time) error
}

// Pipeline drives the full update sequence for one inbound event:
// ledger append, progression, wallet credit, achievement evaluation,
// challenge progress. Events for the same player are serialized so two
// concurrent sessions cannot interleave their aggregate updates.
type Pipeline struct {
	ledger       Ledger
	aggregator   Aggregator
	wallet       Wallet
	achievements AchievementEngine
	challenges   ChallengeTracker
	players      PlayerStore
	policy       retry.Policy
	logger       *slog.Logger

	mu    sync.Mutex
	locks map[string]*playerLock
}

type playerLock struct {
	mu   sync.Mutex
	refs int
}

// NewPipeline creates a new ingestion pipeline
func NewPipeline(
	ledger Ledger,
	aggregator Aggregator,
	wallet Wallet,
	achievements AchievementEngine,
	challenges ChallengeTracker,
	players PlayerStore,
	policy retry.Policy,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		ledger:       ledger,
		aggregator:   aggregator,
		wallet:       wallet,
		achievements: achievements,
		challenges:   challenges,
		players:      players,
		policy:       policy,
		logger:       logger,
		locks:        make(map[string]*playerLock),
	}
}

// lockPlayer acquires the per-player mutex, creating it on first use
// and dropping it once no event holds or waits on it.
func (p *Pipeline) lockPlayer(playerID string) func() {
	p.mu.Lock()
	l, ok := p.locks[playerID]
	if !ok {
		l = &playerLock{}
		p.locks[playerID] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, playerID)
		}
		p.mu.Unlock()
	}
}

// HandleSessionCompleted processes one session event end to end.
// Every step is idempotent per session id, so the whole pipeline is
// safe to re-run after a partial failure: completed steps no-op and
// the failed step resumes. The ledger append result is deliberately
// ignored when deciding whether to continue, because a crash after
// append but before the downstream updates must not strand them.
func (p *Pipeline) HandleSessionCompleted(ctx context.Context, event *domain.SessionCompletedEvent) error {
	session := event.ToSession()
	if err := session.Validate(); err != nil {
		return err
	}

	unlock := p.lockPlayer(session.PlayerID)
	defer unlock()

	if event.PlayerName != "" {
		if err := p.players.UpsertPlayer(ctx, session.PlayerID, event.PlayerName); err != nil {
			p.logger.Warn("failed to upsert player name",
				"player_id", session.PlayerID, "error", err)
		}
	}

	if _, err := p.ledger.Append(ctx, session); err != nil {
		return fmt.Errorf("ledger append: %w", err)
	}

	if _, err := p.aggregator.ApplySession(ctx, session); err != nil {
		return fmt.Errorf("progression update: %w", err)
	}

	if session.PointsEarned > 0 {
		reason := fmt.Sprintf("session:%s", session.GameID)
		if _, err := p.wallet.CreditForSession(ctx, session.PlayerID, session.PointsEarned, reason, session.ID); err != nil {
			return fmt.Errorf("wallet credit: %w", err)
		}
	}

	if err := p.achievements.Evaluate(ctx, session.PlayerID, p.achievements.SessionTriggers(), session.ID); err != nil {
		return fmt.Errorf("achievement evaluation: %w", err)
	}

	if err := p.challenges.ApplySession(ctx, session); err != nil {
		return fmt.Errorf("challenge update: %w", err)
	}

	p.logger.Info("session ingested",
		"session_id", session.ID,
		"player_id", session.PlayerID,
		"outcome", session.Outcome,
	)
	return nil
}

// HandleSessionBatch processes a batch of session events, retrying each
// failed event with backoff before giving up on it. A poisoned event is
// logged and dropped rather than wedging the partition.
func (p *Pipeline) HandleSessionBatch(ctx context.Context, events []*domain.SessionCompletedEvent) error {
	for _, event := range events {
		err := p.policy.Do(ctx, func(ctx context.Context) error {
			return p.HandleSessionCompleted(ctx, event)
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if domain.IsValidationError(err) {
				p.logger.Error("dropping malformed session event",
					"session_id", event.SessionID, "error", err)
				continue
			}
			p.logger.Error("dropping session event after retries",
				"session_id", event.SessionID,
				"player_id", event.PlayerID,
				"error", err,
			)
		}
	}
	return nil
}

// HandlePremiumStatus records a premium grant or revocation
func (p *Pipeline) HandlePremiumStatus(ctx context.Context, event *domain.PremiumStatusEvent) error {
	if event.PlayerID == "" {
		return fmt.Errorf("%w: player id is required", domain.ErrValidation)
	}
	if err := p.players.SetPremiumStatus(ctx, event.PlayerID, event.Granted, event.ExpiresAt); err != nil {
		return fmt.Errorf("setting premium status: %w", err)
	}
	p.logger.Info("premium status updated",
		"player_id", event.PlayerID,
		"granted", event.Granted,
	)
	return nil
}
