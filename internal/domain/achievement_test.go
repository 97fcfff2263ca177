package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCriteriaFrom(t *testing.T) {
	kinds := []CriteriaKind{
		CriteriaGamesPlayed,
		CriteriaWins,
		CriteriaStreak,
		CriteriaPointsEarned,
		CriteriaLevelReached,
		CriteriaCourseCompleted,
	}
	for _, kind := range kinds {
		c, err := CriteriaFrom(kind, 10)
		require.NoError(t, err)
		assert.Equal(t, kind, c.Kind())
		assert.Equal(t, int64(10), c.Target())
	}

	_, err := CriteriaFrom("unknown", 10)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	_, err = CriteriaFrom(CriteriaWins, 0)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestAchievementJSONCarriesCriteria(t *testing.T) {
	a := Achievement{
		ID:           "a-1",
		Name:         "Winner",
		Category:     "combat",
		Tier:         TierGold,
		Criteria:     WinsCriteria{TargetValue: 25},
		RewardPoints: 100,
		IsActive:     true,
	}

	data, err := json.Marshal(a)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"criteria":{"kind":"wins","target":25}`)

	var decoded Achievement
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.NotNil(t, decoded.Criteria)
	assert.Equal(t, CriteriaWins, decoded.Criteria.Kind())
	assert.Equal(t, int64(25), decoded.Criteria.Target())
	assert.Equal(t, "Winner", decoded.Name)
}

func TestAchievementJSONWithoutCriteria(t *testing.T) {
	data, err := json.Marshal(Achievement{ID: "a-1", Name: "Bare"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"criteria"`)

	var decoded Achievement
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Nil(t, decoded.Criteria)
}

func TestCriteriaCurrentValue(t *testing.T) {
	snap := AggregateSnapshot{
		Progression: &PlayerProgression{
			PlayerID:         "p-1",
			Level:            7,
			TotalPoints:      1500,
			CoursesCompleted: 3,
			Statistics: PlayerStatistics{
				TotalGamesPlayed: 42,
				TotalWins:        20,
				CurrentStreak:    2,
				BestStreak:       9,
			},
		},
	}

	assert.Equal(t, int64(42), GamesPlayedCriteria{TargetValue: 50}.CurrentValue(snap))
	assert.Equal(t, int64(20), WinsCriteria{TargetValue: 25}.CurrentValue(snap))
	assert.Equal(t, int64(9), StreakCriteria{TargetValue: 10}.CurrentValue(snap))
	assert.Equal(t, int64(1500), PointsEarnedCriteria{TargetValue: 2000}.CurrentValue(snap))
	assert.Equal(t, int64(7), LevelReachedCriteria{TargetValue: 10}.CurrentValue(snap))
	assert.Equal(t, int64(3), CourseCompletedCriteria{TargetValue: 5}.CurrentValue(snap))
}

func TestCriteriaCurrentValueMissingAggregate(t *testing.T) {
	empty := AggregateSnapshot{}
	assert.Equal(t, int64(0), GamesPlayedCriteria{TargetValue: 5}.CurrentValue(empty))
	assert.Equal(t, int64(0), WinsCriteria{TargetValue: 5}.CurrentValue(empty))
	assert.Equal(t, int64(0), StreakCriteria{TargetValue: 5}.CurrentValue(empty))
	assert.Equal(t, int64(0), PointsEarnedCriteria{TargetValue: 5}.CurrentValue(empty))
	assert.Equal(t, int64(0), LevelReachedCriteria{TargetValue: 5}.CurrentValue(empty))
	assert.Equal(t, int64(0), CourseCompletedCriteria{TargetValue: 5}.CurrentValue(empty))
}

func TestProgressFor(t *testing.T) {
	assert.Equal(t, 0, ProgressFor(0, 10))
	assert.Equal(t, 50, ProgressFor(5, 10))
	assert.Equal(t, 100, ProgressFor(10, 10))
	assert.Equal(t, 100, ProgressFor(15, 10))
	assert.Equal(t, 99, ProgressFor(999, 1000))
	assert.Equal(t, 0, ProgressFor(5, 0))
}

func TestUnlockIsTerminalAtFullProgress(t *testing.T) {
	u := &AchievementUnlock{Progress: 99}
	assert.False(t, u.IsUnlocked())
	u.Progress = 100
	assert.True(t, u.IsUnlocked())
}
