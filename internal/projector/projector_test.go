package projector

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gamification-ledger/internal/domain"
)

type fakeStore struct {
	values   []domain.PlayerValue
	replaced map[string][]domain.LeaderboardEntry
}

func (s *fakeStore) PlayerValues(_ context.Context, _ domain.LeaderboardScope, _ time.Time) ([]domain.PlayerValue, error) {
	return s.values, nil
}

func (s *fakeStore) ReplaceEntries(_ context.Context, scope domain.LeaderboardScope, entries []domain.LeaderboardEntry) error {
	if s.replaced == nil {
		s.replaced = make(map[string][]domain.LeaderboardEntry)
	}
	s.replaced[scope.Key()] = entries
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRankOrdersByValueDescending(t *testing.T) {
	scope := domain.LeaderboardScope{Metric: domain.MetricTotalPoints, Period: domain.PeriodAllTime}
	values := []domain.PlayerValue{
		{PlayerID: "carol", Value: 300},
		{PlayerID: "alice", Value: 900},
		{PlayerID: "bob", Value: 600},
	}

	entries := Rank(scope, values, 100, time.Now())
	require.Len(t, entries, 3)
	assert.Equal(t, "alice", entries[0].PlayerID)
	assert.Equal(t, int64(1), entries[0].Rank)
	assert.Equal(t, "bob", entries[1].PlayerID)
	assert.Equal(t, "carol", entries[2].PlayerID)
	assert.Equal(t, int64(3), entries[2].Rank)
}

func TestRankBreaksTiesByPlayerID(t *testing.T) {
	scope := domain.LeaderboardScope{Metric: domain.MetricTotalWins, Period: domain.PeriodWeekly}
	values := []domain.PlayerValue{
		{PlayerID: "zoe", Value: 500},
		{PlayerID: "amy", Value: 500},
		{PlayerID: "mel", Value: 500},
	}

	entries := Rank(scope, values, 100, time.Now())
	require.Len(t, entries, 3)
	assert.Equal(t, "amy", entries[0].PlayerID)
	assert.Equal(t, "mel", entries[1].PlayerID)
	assert.Equal(t, "zoe", entries[2].PlayerID)
}

func TestRankIsDeterministic(t *testing.T) {
	scope := domain.LeaderboardScope{Metric: domain.MetricTotalPoints, Period: domain.PeriodAllTime}
	values := []domain.PlayerValue{
		{PlayerID: "a", Value: 10},
		{PlayerID: "b", Value: 10},
		{PlayerID: "c", Value: 20},
	}
	now := time.Now()

	first := Rank(scope, values, 100, now)
	second := Rank(scope, values, 100, now)
	assert.Equal(t, first, second)
}

func TestRankTruncatesToTopN(t *testing.T) {
	scope := domain.LeaderboardScope{Metric: domain.MetricTotalPoints, Period: domain.PeriodAllTime}
	values := []domain.PlayerValue{
		{PlayerID: "a", Value: 10},
		{PlayerID: "b", Value: 30},
		{PlayerID: "c", Value: 20},
		{PlayerID: "d", Value: 40},
	}

	entries := Rank(scope, values, 2, time.Now())
	require.Len(t, entries, 2)
	assert.Equal(t, "d", entries[0].PlayerID)
	assert.Equal(t, "b", entries[1].PlayerID)
}

func TestProjectWritesEntries(t *testing.T) {
	scope := domain.LeaderboardScope{Metric: domain.MetricTotalPoints, Period: domain.PeriodAllTime}
	store := &fakeStore{values: []domain.PlayerValue{
		{PlayerID: "alice", Value: 900},
		{PlayerID: "bob", Value: 600},
	}}
	p := New(store, nil, []domain.LeaderboardScope{scope}, 100, testLogger())

	require.NoError(t, p.Project(context.Background(), scope))

	entries := store.replaced[scope.Key()]
	require.Len(t, entries, 2)
	assert.Equal(t, scope, entries[0].Scope)
	assert.Equal(t, "alice", entries[0].PlayerID)
	assert.False(t, entries[0].LastCalculated.IsZero())
}
