package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gamification-ledger/internal/domain"
	"github.com/google/uuid"
)

// Store persists wallets and their transaction logs. ApplyTransaction
// must, in one atomic unit, append the transaction and move the cached
// balance by its signed amount while the wallet row is locked; it
// returns domain.ErrInsufficientBalance when a spend would drive the
// balance negative, and applied=false when a session-keyed transaction
// was already recorded.
type Store interface {
	ApplyTransaction(ctx context.Context, tx *domain.PointsTransaction) (applied bool, newBalance int64, err error)
	GetWallet(ctx context.Context, playerID string) (*domain.PointsWallet, error)
	ListTransactions(ctx context.Context, playerID string, limit int) ([]domain.PointsTransaction, error)
}

// Service is the points wallet: a double-entry balance per player whose
// cached value must always equal the signed sum of the transaction log.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new wallet service
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Credit appends an earn transaction and moves the balance up
func (s *Service) Credit(ctx context.Context, playerID string, amount int64, reason string) (*domain.PointsTransaction, error) {
	return s.apply(ctx, playerID, domain.TransactionEarn, amount, reason, "")
}

// CreditForSession credits points earned by a ledger entry. The session
// id keys the transaction so a redelivered session event cannot credit
// the same points twice.
func (s *Service) CreditForSession(ctx context.Context, playerID string, amount int64, reason, sessionID string) (*domain.PointsTransaction, error) {
	return s.apply(ctx, playerID, domain.TransactionEarn, amount, reason, sessionID)
}

// Debit appends a spend transaction and moves the balance down. It
// fails with InsufficientBalance rather than letting the balance go
// negative; no transaction is written on failure.
func (s *Service) Debit(ctx context.Context, playerID string, amount int64, reason string) (*domain.PointsTransaction, error) {
	return s.apply(ctx, playerID, domain.TransactionSpend, amount, reason, "")
}

func (s *Service) apply(ctx context.Context, playerID string, txType domain.TransactionType, amount int64, reason, sessionID string) (*domain.PointsTransaction, error) {
	if playerID == "" {
		return nil, fmt.Errorf("%w: player id is required", domain.ErrValidation)
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", domain.ErrValidation)
	}

	tx := &domain.PointsTransaction{
		ID:        uuid.NewString(),
		PlayerID:  playerID,
		Type:      txType,
		Amount:    amount,
		Reason:    reason,
		SessionID: sessionID,
		CreatedAt: time.Now(),
	}

	applied, newBalance, err := s.store.ApplyTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("applying %s of %d for %s: %w", txType, amount, playerID, err)
	}
	if !applied {
		s.logger.Debug("transaction already recorded for session, skipping",
			"player_id", playerID,
			"session_id", sessionID,
		)
		return nil, nil
	}

	s.logger.Debug("wallet transaction applied",
		"player_id", playerID,
		"type", txType,
		"amount", amount,
		"balance", newBalance,
	)
	return tx, nil
}

// Balance returns the cached balance, zero for players with no wallet
func (s *Service) Balance(ctx context.Context, playerID string) (int64, error) {
	wallet, err := s.store.GetWallet(ctx, playerID)
	if err != nil {
		if domain.IsNotFoundError(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("getting wallet for %s: %w", playerID, err)
	}
	return wallet.CurrentBalance, nil
}

// Wallet returns the wallet record for a player
func (s *Service) Wallet(ctx context.Context, playerID string) (*domain.PointsWallet, error) {
	return s.store.GetWallet(ctx, playerID)
}

// Transactions returns the most recent transactions for a player
func (s *Service) Transactions(ctx context.Context, playerID string, limit int) ([]domain.PointsTransaction, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	return s.store.ListTransactions(ctx, playerID, limit)
}
