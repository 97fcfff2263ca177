package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gamification-ledger/internal/domain"
)

// ApplyTransaction appends a transaction and moves the cached balance
// in one database transaction, holding a row lock on the wallet so
// concurrent updates for the same player serialize. A session-keyed
// transaction that already exists reports applied=false and leaves the
// balance untouched; a spend that would go negative rolls everything
// back with ErrInsufficientBalance.
func (r *Repository) ApplyTransaction(ctx context.Context, t *domain.PointsTransaction) (bool, int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, 0, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO points_wallets (player_id, current_balance)
		VALUES ($1, 0)
		ON CONFLICT (player_id) DO NOTHING
	`, t.PlayerID)
	if err != nil {
		return false, 0, fmt.Errorf("ensuring wallet: %w", err)
	}

	var balance int64
	err = tx.QueryRow(ctx, `
		SELECT current_balance FROM points_wallets WHERE player_id = $1 FOR UPDATE
	`, t.PlayerID).Scan(&balance)
	if err != nil {
		return false, 0, fmt.Errorf("locking wallet: %w", err)
	}

	var sessionID *string
	if t.SessionID != "" {
		sessionID = &t.SessionID
	}
	tag, err := tx.Exec(ctx, `
		INSERT INTO points_transactions (id, player_id, type, amount, reason, session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT DO NOTHING
	`, t.ID, t.PlayerID, string(t.Type), t.Amount, t.Reason, sessionID, t.CreatedAt)
	if err != nil {
		return false, 0, fmt.Errorf("inserting transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Session already credited; commit keeps the wallet row.
		if err := tx.Commit(ctx); err != nil {
			return false, 0, fmt.Errorf("committing: %w", err)
		}
		return false, balance, nil
	}

	newBalance := balance + t.SignedAmount()
	if newBalance < 0 {
		return false, 0, fmt.Errorf("balance %d, spend %d: %w", balance, t.Amount, domain.ErrInsufficientBalance)
	}

	_, err = tx.Exec(ctx, `
		UPDATE points_wallets SET current_balance = $2, updated_at = $3 WHERE player_id = $1
	`, t.PlayerID, newBalance, time.Now())
	if err != nil {
		return false, 0, fmt.Errorf("updating balance: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, 0, fmt.Errorf("committing: %w", err)
	}
	return true, newBalance, nil
}

// GetWallet retrieves a player's wallet
func (r *Repository) GetWallet(ctx context.Context, playerID string) (*domain.PointsWallet, error) {
	query := `SELECT player_id, current_balance, updated_at FROM points_wallets WHERE player_id = $1`
	var w domain.PointsWallet
	err := r.pool.QueryRow(ctx, query, playerID).Scan(&w.PlayerID, &w.CurrentBalance, &w.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrPlayerNotFound
		}
		return nil, fmt.Errorf("getting wallet: %w", err)
	}
	return &w, nil
}

// ListTransactions returns a player's most recent transactions
func (r *Repository) ListTransactions(ctx context.Context, playerID string, limit int) ([]domain.PointsTransaction, error) {
	query := `
		SELECT id, player_id, type, amount, reason, COALESCE(session_id, ''), created_at
		FROM points_transactions
		WHERE player_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.pool.Query(ctx, query, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("listing transactions: %w", err)
	}
	defer rows.Close()

	var transactions []domain.PointsTransaction
	for rows.Next() {
		var t domain.PointsTransaction
		if err := rows.Scan(&t.ID, &t.PlayerID, &t.Type, &t.Amount, &t.Reason, &t.SessionID, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning transaction: %w", err)
		}
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

// TransactionSum returns the signed sum of a player's transaction log,
// the value the cached balance must always equal.
func (r *Repository) TransactionSum(ctx context.Context, playerID string) (int64, error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN type = 'spend' THEN -amount ELSE amount END), 0)
		FROM points_transactions
		WHERE player_id = $1
	`
	var sum int64
	if err := r.pool.QueryRow(ctx, query, playerID).Scan(&sum); err != nil {
		return 0, fmt.Errorf("summing transactions: %w", err)
	}
	return sum, nil
}

// WalletBalance returns the cached balance, zero for players with no wallet
func (r *Repository) WalletBalance(ctx context.Context, playerID string) (int64, error) {
	var balance int64
	err := r.pool.QueryRow(ctx, `SELECT current_balance FROM points_wallets WHERE player_id = $1`, playerID).Scan(&balance)
	if err != nil {
		if err == pgx.ErrNoRows {
			return 0, nil
		}
		return 0, fmt.Errorf("getting wallet balance: %w", err)
	}
	return balance, nil
}
