package domain

import "time"

// SessionCompletedEvent is the inbound event emitted by the game
// engines when a session finishes. SessionID is caller-supplied and is
// the idempotency key for every downstream update.
type SessionCompletedEvent struct {
	SessionID       string    `json:"session_id"`
	PlayerID        string    `json:"player_id"`
	PlayerName      string    `json:"player_name,omitempty"`
	GameID          string    `json:"game_id"`
	Outcome         Outcome   `json:"outcome"`
	Score           int64     `json:"score"`
	DurationSeconds int64     `json:"duration_seconds"`
	PointsEarned    int64     `json:"points_earned"`
	XPEarned        int64     `json:"xp_earned"`
	CompletedAt     time.Time `json:"completed_at"`
}

// ToSession converts the event into the ledger entry it will append
func (e *SessionCompletedEvent) ToSession() *Session {
	return &Session{
		ID:              e.SessionID,
		PlayerID:        e.PlayerID,
		GameID:          e.GameID,
		Outcome:         e.Outcome,
		Score:           e.Score,
		DurationSeconds: e.DurationSeconds,
		PointsEarned:    e.PointsEarned,
		XPEarned:        e.XPEarned,
		CompletedAt:     e.CompletedAt,
		Status:          SessionCompleted,
	}
}

// PremiumStatusEvent is the inbound event from the payment subsystem.
// Only granted/revoked and expiry are consumed here; payment details
// stay with their owner.
type PremiumStatusEvent struct {
	PlayerID   string     `json:"player_id"`
	Granted    bool       `json:"granted"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}
