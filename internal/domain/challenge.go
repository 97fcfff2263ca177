package domain

import "time"

// ChallengeKind determines what a session contributes to a challenge
type ChallengeKind string

const (
	ChallengePlayGames  ChallengeKind = "play_games"
	ChallengeWinGames   ChallengeKind = "win_games"
	ChallengeEarnPoints ChallengeKind = "earn_points"
)

// ProgressDelta returns what a non-voided session contributes to the
// challenge's progress counter.
func (k ChallengeKind) ProgressDelta(s *Session) int64 {
	switch k {
	case ChallengePlayGames:
		return 1
	case ChallengeWinGames:
		if s.Outcome == OutcomeWin {
			return 1
		}
		return 0
	case ChallengeEarnPoints:
		return s.PointsEarned
	default:
		return 0
	}
}

// DailyChallenge is one scheduled challenge instance. It is active only
// within its [StartTime, EndTime] window while IsActive is set.
type DailyChallenge struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Kind         ChallengeKind `json:"kind"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	IsActive     bool          `json:"is_active"`
	TargetValue  int64         `json:"target_value"`
	RewardPoints int64         `json:"reward_points"`
	RewardXP     int64         `json:"reward_xp"`
	PremiumOnly  bool          `json:"premium_only"`
	CreatedAt    time.Time     `json:"created_at"`
}

// ActiveAt reports whether the instance is active at the given moment
func (c *DailyChallenge) ActiveAt(t time.Time) bool {
	return c.IsActive && !t.Before(c.StartTime) && !t.After(c.EndTime)
}

// ChallengeProgress is a player's progress toward one challenge
// instance. Completion is terminal for the instance.
type ChallengeProgress struct {
	ChallengeID     string     `json:"challenge_id"`
	PlayerID        string     `json:"player_id"`
	CurrentProgress int64      `json:"current_progress"`
	IsCompleted     bool       `json:"is_completed"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}
