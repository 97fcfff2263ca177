package domain

import "time"

// TransactionType represents the direction of a points transaction
type TransactionType string

const (
	TransactionEarn  TransactionType = "earn"
	TransactionSpend TransactionType = "spend"
)

// PointsWallet caches the signed sum of a player's transactions. The
// balance is a projection; the transaction log is the record of truth.
type PointsWallet struct {
	PlayerID       string    `json:"player_id"`
	CurrentBalance int64     `json:"current_balance"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PointsTransaction is one append-only entry in a player's transaction
// log. SessionID, when set, keys the transaction to the ledger entry
// that produced it so redelivered session events cannot double-credit.
type PointsTransaction struct {
	ID        string          `json:"id"`
	PlayerID  string          `json:"player_id"`
	Type      TransactionType `json:"type"`
	Amount    int64           `json:"amount"`
	Reason    string          `json:"reason"`
	SessionID string          `json:"session_id,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// SignedAmount returns the amount with the sign implied by the type
func (t *PointsTransaction) SignedAmount() int64 {
	if t.Type == TransactionSpend {
		return -t.Amount
	}
	return t.Amount
}
