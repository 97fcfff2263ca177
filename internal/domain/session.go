package domain

import (
	"fmt"
	"time"
)

// Outcome represents the result of a completed game session
type Outcome string

const (
	OutcomeWin  Outcome = "win"
	OutcomeLoss Outcome = "loss"
	OutcomeDraw Outcome = "draw"
)

// Valid reports whether the outcome is one of the known values
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeWin, OutcomeLoss, OutcomeDraw:
		return true
	}
	return false
}

// SessionStatus represents the lifecycle state of a ledger entry
type SessionStatus string

const (
	SessionCompleted SessionStatus = "completed"
	SessionVoided    SessionStatus = "voided"
)

// Session is an immutable ledger entry for a completed game session.
// The only permitted mutation after append is the voided status transition.
type Session struct {
	ID              string        `json:"id"`
	PlayerID        string        `json:"player_id"`
	GameID          string        `json:"game_id"`
	Outcome         Outcome       `json:"outcome"`
	Score           int64         `json:"score"`
	DurationSeconds int64         `json:"duration_seconds"`
	PointsEarned    int64         `json:"points_earned"`
	XPEarned        int64         `json:"xp_earned"`
	CompletedAt     time.Time     `json:"completed_at"`
	Status          SessionStatus `json:"status"`
}

// Voided reports whether the session has been excluded from recomputation
func (s *Session) Voided() bool {
	return s.Status == SessionVoided
}

// Validate rejects malformed ledger entries before they are appended
func (s *Session) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: session id is required", ErrValidation)
	}
	if s.PlayerID == "" {
		return fmt.Errorf("%w: player id is required", ErrValidation)
	}
	if s.GameID == "" {
		return fmt.Errorf("%w: game id is required", ErrValidation)
	}
	if !s.Outcome.Valid() {
		return fmt.Errorf("%w: outcome must be win, loss or draw", ErrValidation)
	}
	if s.Score < 0 {
		return fmt.Errorf("%w: score must not be negative", ErrValidation)
	}
	if s.DurationSeconds <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrValidation)
	}
	if s.PointsEarned < 0 || s.XPEarned < 0 {
		return fmt.Errorf("%w: points and xp must not be negative", ErrValidation)
	}
	if s.CompletedAt.IsZero() {
		return fmt.Errorf("%w: completed_at is required", ErrValidation)
	}
	return nil
}

// SessionStats is a per-player rollup recomputed directly from
// non-voided ledger entries. It is the verifier's ground truth.
type SessionStats struct {
	GamesPlayed int64 `json:"games_played"`
	Wins        int64 `json:"wins"`
	Losses      int64 `json:"losses"`
	Draws       int64 `json:"draws"`
	Points      int64 `json:"points"`
	XP          int64 `json:"xp"`
}
