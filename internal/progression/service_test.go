package progression

import (
	"context"
	"errors"
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
	progressions map[string]*domain.PlayerProgression
	applied      map[string]bool
	failSaves    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		progressions: make(map[string]*domain.PlayerProgression),
		applied:      make(map[string]bool),
	}
}

func (s *fakeStore) GetProgression(_ context.Context, playerID string) (*domain.PlayerProgression, error) {
	p, ok := s.progressions[playerID]
	if !ok {
		return nil, domain.ErrPlayerNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *fakeStore) SaveProgression(_ context.Context, p *domain.PlayerProgression) error {
	copied := *p
	s.progressions[p.PlayerID] = &copied
	return nil
}

// SaveProgressionApplied mirrors the store contract: marker and
// aggregate land together or not at all.
func (s *fakeStore) SaveProgressionApplied(_ context.Context, p *domain.PlayerProgression, sessionID, component string) (bool, error) {
	if s.failSaves > 0 {
		s.failSaves--
		return false, errors.New("store unavailable")
	}
	key := fmt.Sprintf("%s:%s", sessionID, component)
	if s.applied[key] {
		return false, nil
	}
	s.applied[key] = true
	copied := *p
	s.progressions[p.PlayerID] = &copied
	return true, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func session(id string, outcome domain.Outcome) *domain.Session {
	return &domain.Session{
		ID:              id,
		PlayerID:        "p-1",
		GameID:          "quickmatch",
		Outcome:         outcome,
		DurationSeconds: 120,
		PointsEarned:    50,
		XPEarned:        60,
		CompletedAt:     time.Now(),
		Status:          domain.SessionCompleted,
	}
}

func TestApplySessionUpdatesAggregates(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, 100, testLogger())

	prog, err := svc.ApplySession(context.Background(), session("s-1", domain.OutcomeWin))
	require.NoError(t, err)
	require.NotNil(t, prog)

	assert.Equal(t, int64(1), prog.Statistics.TotalGamesPlayed)
	assert.Equal(t, int64(1), prog.Statistics.TotalWins)
	assert.Equal(t, int64(50), prog.TotalPoints)
	assert.Equal(t, int64(60), prog.TotalXP)
}

func TestApplySessionIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, 100, testLogger())
	ctx := context.Background()

	s := session("s-1", domain.OutcomeWin)
	_, err := svc.ApplySession(ctx, s)
	require.NoError(t, err)

	// Redelivery of the same session must not move anything.
	again, err := svc.ApplySession(ctx, s)
	require.NoError(t, err)
	assert.Nil(t, again)

	prog, err := svc.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), prog.Statistics.TotalGamesPlayed)
	assert.Equal(t, int64(50), prog.TotalPoints)
}

func TestFailedSaveLeavesSessionUnclaimed(t *testing.T) {
	store := newFakeStore()
	store.failSaves = 1
	svc := NewService(store, 100, testLogger())
	ctx := context.Background()

	s := session("s-1", domain.OutcomeWin)
	_, err := svc.ApplySession(ctx, s)
	require.Error(t, err)

	// The failed attempt must not have claimed the session: the
	// redelivery applies it in full instead of skipping it.
	prog, err := svc.ApplySession(ctx, s)
	require.NoError(t, err)
	require.NotNil(t, prog)
	assert.Equal(t, int64(1), prog.Statistics.TotalGamesPlayed)
	assert.Equal(t, int64(50), prog.TotalPoints)

	stored, err := svc.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Statistics.TotalGamesPlayed)
}

func TestApplySessionSkipsVoided(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, 100, testLogger())

	s := session("s-1", domain.OutcomeWin)
	s.Status = domain.SessionVoided
	prog, err := svc.ApplySession(context.Background(), s)
	require.NoError(t, err)
	assert.Nil(t, prog)
	assert.Empty(t, store.progressions)
}

func TestStreakTracking(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, 100, testLogger())
	ctx := context.Background()

	outcomes := []domain.Outcome{domain.OutcomeWin, domain.OutcomeWin, domain.OutcomeLoss, domain.OutcomeWin}
	for i, outcome := range outcomes {
		_, err := svc.ApplySession(ctx, session(fmt.Sprintf("s-%d", i), outcome))
		require.NoError(t, err)
	}

	prog, err := svc.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), prog.Statistics.CurrentStreak)
	assert.Equal(t, int64(2), prog.Statistics.BestStreak)
	assert.Equal(t, int64(3), prog.Statistics.TotalWins)
	assert.Equal(t, int64(1), prog.Statistics.TotalLosses)
}

func TestDrawLeavesStreakUntouched(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, 100, testLogger())
	ctx := context.Background()

	_, err := svc.ApplySession(ctx, session("s-1", domain.OutcomeWin))
	require.NoError(t, err)
	_, err = svc.ApplySession(ctx, session("s-2", domain.OutcomeDraw))
	require.NoError(t, err)

	prog, err := svc.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), prog.Statistics.CurrentStreak)
	assert.Equal(t, int64(1), prog.Statistics.TotalDraws)
}

func TestLevelUpCarriesRemainderXP(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, 100, testLogger())
	ctx := context.Background()

	// Level 1 needs 100 XP; 160 XP lands at level 2 with 60 carried.
	s := session("s-1", domain.OutcomeWin)
	s.XPEarned = 160
	prog, err := svc.ApplySession(ctx, s)
	require.NoError(t, err)

	assert.Equal(t, 2, prog.Level)
	assert.Equal(t, int64(60), prog.CurrentXP)
	assert.Equal(t, int64(160), prog.TotalXP)
}

func TestLevelUpCurveIsSuperLinear(t *testing.T) {
	svc := NewService(newFakeStore(), 100, testLogger())
	assert.Equal(t, int64(100), svc.xpForNextLevel(1))
	assert.Greater(t, svc.xpForNextLevel(5), svc.xpForNextLevel(4))
	assert.Greater(t, svc.xpForNextLevel(10), int64(1000))
}

func TestAwardXPRunsLevelLoop(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, 100, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.AwardXP(ctx, "p-1", 250))

	prog, err := svc.Get(ctx, "p-1")
	require.NoError(t, err)
	// 100 to reach level 2, then 229 needed for level 3; 150 remain.
	assert.Equal(t, 2, prog.Level)
	assert.Equal(t, int64(150), prog.CurrentXP)
	assert.Equal(t, int64(250), prog.TotalXP)
}

func TestRecordUnlockAndCourse(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, 100, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.RecordUnlock(ctx, "p-1"))
	_, err := svc.RecordCourseCompleted(ctx, "p-1")
	require.NoError(t, err)

	prog, err := svc.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), prog.AchievementsTotal)
	assert.Equal(t, int64(1), prog.CoursesCompleted)
}

func TestSnapshotDegradesToEmpty(t *testing.T) {
	svc := NewService(newFakeStore(), 100, testLogger())
	snap, err := svc.Snapshot(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, snap.Progression)
}
