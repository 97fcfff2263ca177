package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Tier represents the rarity tier of an achievement
type Tier string

const (
	TierBronze   Tier = "bronze"
	TierSilver   Tier = "silver"
	TierGold     Tier = "gold"
	TierPlatinum Tier = "platinum"
)

// CriteriaKind identifies the aggregate a criteria variant reads
type CriteriaKind string

const (
	CriteriaGamesPlayed     CriteriaKind = "games_played"
	CriteriaWins            CriteriaKind = "wins"
	CriteriaStreak          CriteriaKind = "streak"
	CriteriaPointsEarned    CriteriaKind = "points_earned"
	CriteriaLevelReached    CriteriaKind = "level_reached"
	CriteriaCourseCompleted CriteriaKind = "course_completed"
)

// AggregateSnapshot carries the authoritative aggregate values criteria
// evaluate against. A nil Progression means the player has no record
// yet; every variant treats that as a current value of zero.
type AggregateSnapshot struct {
	Progression *PlayerProgression
}

// Criteria is an achievement's unlock condition. One concrete variant
// exists per criteria kind so adding a kind is a compile-time change,
// not a string switch that can silently fall through.
type Criteria interface {
	Kind() CriteriaKind
	Target() int64
	CurrentValue(snap AggregateSnapshot) int64
}

// GamesPlayedCriteria unlocks after a number of completed sessions
type GamesPlayedCriteria struct {
	TargetValue int64
}

func (c GamesPlayedCriteria) Kind() CriteriaKind { return CriteriaGamesPlayed }
func (c GamesPlayedCriteria) Target() int64      { return c.TargetValue }
func (c GamesPlayedCriteria) CurrentValue(snap AggregateSnapshot) int64 {
	if snap.Progression == nil {
		return 0
	}
	return snap.Progression.Statistics.TotalGamesPlayed
}

// WinsCriteria unlocks after a number of wins
type WinsCriteria struct {
	TargetValue int64
}

func (c WinsCriteria) Kind() CriteriaKind { return CriteriaWins }
func (c WinsCriteria) Target() int64      { return c.TargetValue }
func (c WinsCriteria) CurrentValue(snap AggregateSnapshot) int64 {
	if snap.Progression == nil {
		return 0
	}
	return snap.Progression.Statistics.TotalWins
}

// StreakCriteria unlocks when the best win streak reaches the target.
// Best streak rather than current streak keeps progress monotonic.
type StreakCriteria struct {
	TargetValue int64
}

func (c StreakCriteria) Kind() CriteriaKind { return CriteriaStreak }
func (c StreakCriteria) Target() int64      { return c.TargetValue }
func (c StreakCriteria) CurrentValue(snap AggregateSnapshot) int64 {
	if snap.Progression == nil {
		return 0
	}
	return snap.Progression.Statistics.BestStreak
}

// PointsEarnedCriteria unlocks on lifetime points earned
type PointsEarnedCriteria struct {
	TargetValue int64
}

func (c PointsEarnedCriteria) Kind() CriteriaKind { return CriteriaPointsEarned }
func (c PointsEarnedCriteria) Target() int64      { return c.TargetValue }
func (c PointsEarnedCriteria) CurrentValue(snap AggregateSnapshot) int64 {
	if snap.Progression == nil {
		return 0
	}
	return snap.Progression.TotalPoints
}

// LevelReachedCriteria unlocks when the player reaches a level
type LevelReachedCriteria struct {
	TargetValue int64
}

func (c LevelReachedCriteria) Kind() CriteriaKind { return CriteriaLevelReached }
func (c LevelReachedCriteria) Target() int64      { return c.TargetValue }
func (c LevelReachedCriteria) CurrentValue(snap AggregateSnapshot) int64 {
	if snap.Progression == nil {
		return 0
	}
	return int64(snap.Progression.Level)
}

// CourseCompletedCriteria unlocks on completed courses
type CourseCompletedCriteria struct {
	TargetValue int64
}

func (c CourseCompletedCriteria) Kind() CriteriaKind { return CriteriaCourseCompleted }
func (c CourseCompletedCriteria) Target() int64      { return c.TargetValue }
func (c CourseCompletedCriteria) CurrentValue(snap AggregateSnapshot) int64 {
	if snap.Progression == nil {
		return 0
	}
	return snap.Progression.CoursesCompleted
}

// CriteriaFrom reconstructs the criteria variant from its stored form.
// This is the single decode boundary; everything past it dispatches
// through the Criteria interface.
func CriteriaFrom(kind CriteriaKind, target int64) (Criteria, error) {
	if target <= 0 {
		return nil, fmt.Errorf("%w: criteria target must be positive", ErrValidation)
	}
	switch kind {
	case CriteriaGamesPlayed:
		return GamesPlayedCriteria{TargetValue: target}, nil
	case CriteriaWins:
		return WinsCriteria{TargetValue: target}, nil
	case CriteriaStreak:
		return StreakCriteria{TargetValue: target}, nil
	case CriteriaPointsEarned:
		return PointsEarnedCriteria{TargetValue: target}, nil
	case CriteriaLevelReached:
		return LevelReachedCriteria{TargetValue: target}, nil
	case CriteriaCourseCompleted:
		return CourseCompletedCriteria{TargetValue: target}, nil
	default:
		return nil, fmt.Errorf("%w: unknown criteria kind %q", ErrValidation, kind)
	}
}

// ProgressFor converts a current value into a 0-100 progress figure
func ProgressFor(value, target int64) int {
	if target <= 0 {
		return 0
	}
	if value >= target {
		return 100
	}
	return int(value * 100 / target)
}

// Achievement is an admin-authored achievement definition
type Achievement struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description,omitempty"`
	Category     string    `json:"category"`
	Tier         Tier      `json:"tier"`
	IsHidden     bool      `json:"is_hidden"`
	PremiumOnly  bool      `json:"premium_only"`
	Criteria     Criteria  `json:"-"`
	RewardPoints int64     `json:"reward_points"`
	RewardXP     int64     `json:"reward_xp"`
	RewardTitle  string    `json:"reward_title,omitempty"`
	IsActive     bool      `json:"is_active"`
	UnlockCount  int64     `json:"unlock_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// criteriaView is the wire form of an unlock condition
type criteriaView struct {
	Kind   CriteriaKind `json:"kind"`
	Target int64        `json:"target"`
}

// MarshalJSON surfaces the criteria variant as {kind, target} so
// catalog responses carry the unlock condition, not just the rewards.
func (a Achievement) MarshalJSON() ([]byte, error) {
	type alias Achievement
	out := struct {
		alias
		Criteria *criteriaView `json:"criteria,omitempty"`
	}{alias: alias(a)}
	if a.Criteria != nil {
		out.Criteria = &criteriaView{Kind: a.Criteria.Kind(), Target: a.Criteria.Target()}
	}
	return json.Marshal(out)
}

// UnmarshalJSON reconstructs the criteria variant through CriteriaFrom,
// keeping it the single decode boundary.
func (a *Achievement) UnmarshalJSON(data []byte) error {
	type alias Achievement
	aux := struct {
		*alias
		Criteria *criteriaView `json:"criteria"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if aux.Criteria == nil {
		return nil
	}
	criteria, err := CriteriaFrom(aux.Criteria.Kind, aux.Criteria.Target)
	if err != nil {
		return err
	}
	a.Criteria = criteria
	return nil
}

// AchievementUnlock is the per-player progress record for one
// achievement. At most one exists per (player, achievement); progress
// is monotonically non-decreasing and 100 is terminal.
type AchievementUnlock struct {
	PlayerID        string     `json:"player_id"`
	AchievementID   string     `json:"achievement_id"`
	Progress        int        `json:"progress"`
	CurrentValue    int64      `json:"current_value"`
	UnlockedAt      *time.Time `json:"unlocked_at,omitempty"`
	SourceSessionID string     `json:"source_session_id,omitempty"`
	Notified        bool       `json:"notified"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsUnlocked derives the terminal state from progress; progress >= 100
// is the single source of truth for unlocked.
func (u *AchievementUnlock) IsUnlocked() bool {
	return u.Progress >= 100
}
