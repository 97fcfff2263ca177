package wallet

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamification-ledger/internal/domain"
)

type fakeStore struct {
	balances     map[string]int64
	transactions []domain.PointsTransaction
	bySession    map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		balances:  make(map[string]int64),
		bySession: make(map[string]bool),
	}
}

func (s *fakeStore) ApplyTransaction(_ context.Context, t *domain.PointsTransaction) (bool, int64, error) {
	if t.SessionID != "" && s.bySession[t.SessionID] {
		return false, s.balances[t.PlayerID], nil
	}
	newBalance := s.balances[t.PlayerID] + t.SignedAmount()
	if newBalance < 0 {
		return false, 0, fmt.Errorf("balance %d, spend %d: %w", s.balances[t.PlayerID], t.Amount, domain.ErrInsufficientBalance)
	}
	if t.SessionID != "" {
		s.bySession[t.SessionID] = true
	}
	s.balances[t.PlayerID] = newBalance
	s.transactions = append(s.transactions, *t)
	return true, newBalance, nil
}

func (s *fakeStore) GetWallet(_ context.Context, playerID string) (*domain.PointsWallet, error) {
	balance, ok := s.balances[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	return &domain.PointsWallet{PlayerID: playerID, CurrentBalance: balance, UpdatedAt: time.Now()}, nil
}

func (s *fakeStore) ListTransactions(_ context.Context, playerID string, limit int) ([]domain.PointsTransaction, error) {
	var out []domain.PointsTransaction
	for i := len(s.transactions) - 1; i >= 0 && len(out) < limit; i-- {
		if s.transactions[i].PlayerID == playerID {
			out = append(out, s.transactions[i])
		}
	}
	return out, nil
}

func (s *fakeStore) signedSum(playerID string) int64 {
	var sum int64
	for _, t := range s.transactions {
		if t.PlayerID == playerID {
			sum += t.SignedAmount()
		}
	}
	return sum
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCreditAndDebit(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testLogger())
	ctx := context.Background()

	tx, err := svc.Credit(ctx, "p-1", 500, "signup bonus")
	require.NoError(t, err)
	require.NotNil(t, tx)
	assert.Equal(t, domain.TransactionEarn, tx.Type)

	_, err = svc.Debit(ctx, "p-1", 200, "avatar purchase")
	require.NoError(t, err)

	balance, err := svc.Balance(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(300), balance)

	// The cached balance must equal the signed sum of the log.
	assert.Equal(t, store.signedSum("p-1"), balance)
}

func TestDebitRejectsOverdraft(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testLogger())
	ctx := context.Background()

	_, err := svc.Credit(ctx, "p-1", 100, "earn")
	require.NoError(t, err)

	_, err = svc.Debit(ctx, "p-1", 250, "spend")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	// No transaction is written on a failed spend.
	balance, err := svc.Balance(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(100), balance)
	assert.Len(t, store.transactions, 1)
}

func TestCreditForSessionDeduplicates(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testLogger())
	ctx := context.Background()

	tx, err := svc.CreditForSession(ctx, "p-1", 50, "session:quickmatch", "s-1")
	require.NoError(t, err)
	require.NotNil(t, tx)

	// Redelivered session event must not credit twice.
	tx, err = svc.CreditForSession(ctx, "p-1", 50, "session:quickmatch", "s-1")
	require.NoError(t, err)
	assert.Nil(t, tx)

	balance, err := svc.Balance(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestApplyValidatesInput(t *testing.T) {
	svc := NewService(newFakeStore(), testLogger())
	ctx := context.Background()

	_, err := svc.Credit(ctx, "", 50, "earn")
	assert.True(t, domain.IsValidationError(err))

	_, err = svc.Credit(ctx, "p-1", 0, "earn")
	assert.True(t, domain.IsValidationError(err))

	_, err = svc.Debit(ctx, "p-1", -5, "spend")
	assert.True(t, domain.IsValidationError(err))
}

func TestBalanceZeroForUnknownPlayer(t *testing.T) {
	svc := NewService(newFakeStore(), testLogger())
	balance, err := svc.Balance(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Equal(t, int64(0), balance)
}

func TestTransactionsLimitClamped(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testLogger())
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		_, err := svc.Credit(ctx, "p-1", 10, "earn")
		require.NoError(t, err)
	}

	transactions, err := svc.Transactions(ctx, "p-1", 0)
	require.NoError(t, err)
	assert.Len(t, transactions, 50)
}
