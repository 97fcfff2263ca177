package challenge

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
	challenges []domain.DailyChallenge
	progress   map[string]*domain.ChallengeProgress
	counted    map[string]bool
	premium    map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		progress: make(map[string]*domain.ChallengeProgress),
		counted:  make(map[string]bool),
		premium:  make(map[string]bool),
	}
}

func key(challengeID, playerID string) string {
	return challengeID + "/" + playerID
}

func (s *fakeStore) ListActiveChallenges(_ context.Context, now time.Time) ([]domain.DailyChallenge, error) {
	var active []domain.DailyChallenge
	for _, c := range s.challenges {
		if c.ActiveAt(now) {
			active = append(active, c)
		}
	}
	return active, nil
}

func (s *fakeStore) GetProgress(_ context.Context, challengeID, playerID string) (*domain.ChallengeProgress, error) {
	p, ok := s.progress[key(challengeID, playerID)]
	if !ok {
		return nil, domain.ErrChallengeNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *fakeStore) IncrementProgress(_ context.Context, challengeID, playerID, sessionID string, delta int64) (*domain.ChallengeProgress, error) {
	marker := challengeID + ":" + sessionID
	if s.counted[marker] {
		return nil, nil
	}
	s.counted[marker] = true

	k := key(challengeID, playerID)
	p, ok := s.progress[k]
	if !ok {
		p = &domain.ChallengeProgress{ChallengeID: challengeID, PlayerID: playerID}
		s.progress[k] = p
	}
	p.CurrentProgress += delta
	p.UpdatedAt = time.Now()
	copied := *p
	return &copied, nil
}

func (s *fakeStore) CompleteProgress(_ context.Context, challengeID, playerID string, at time.Time) (bool, error) {
	p, ok := s.progress[key(challengeID, playerID)]
	if !ok || p.IsCompleted {
		return false, nil
	}
	p.IsCompleted = true
	p.CompletedAt = &at
	return true, nil
}

func (s *fakeStore) HasPremium(_ context.Context, playerID string, _ time.Time) (bool, error) {
	return s.premium[playerID], nil
}

type fakeWallet struct {
	credits map[string]int64
}

func (f *fakeWallet) Credit(_ context.Context, playerID string, amount int64, _ string) (*domain.PointsTransaction, error) {
	if f.credits == nil {
		f.credits = make(map[string]int64)
	}
	f.credits[playerID] += amount
	return &domain.PointsTransaction{PlayerID: playerID, Amount: amount}, nil
}

type fakeAwarder struct {
	xp map[string]int64
}

func (f *fakeAwarder) AwardXP(_ context.Context, playerID string, xp int64) error {
	if f.xp == nil {
		f.xp = make(map[string]int64)
	}
	f.xp[playerID] += xp
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func dayChallenge(id string, kind domain.ChallengeKind, target int64, now time.Time) domain.DailyChallenge {
	return domain.DailyChallenge{
		ID:           id,
		Name:         "Daily " + string(kind),
		Kind:         kind,
		StartTime:    now.Add(-time.Hour),
		EndTime:      now.Add(23 * time.Hour),
		IsActive:     true,
		TargetValue:  target,
		RewardPoints: 75,
		RewardXP:     30,
	}
}

func winSession(id string, now time.Time) *domain.Session {
	return &domain.Session{
		ID:              id,
		PlayerID:        "p-1",
		GameID:          "quickmatch",
		Outcome:         domain.OutcomeWin,
		DurationSeconds: 120,
		PointsEarned:    40,
		XPEarned:        25,
		CompletedAt:     now,
		Status:          domain.SessionCompleted,
	}
}

func TestApplySessionAdvancesProgress(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.challenges = []domain.DailyChallenge{dayChallenge("c-1", domain.ChallengeWinGames, 3, now)}
	svc := NewService(store, &fakeWallet{}, &fakeAwarder{}, testLogger())

	require.NoError(t, svc.ApplySession(context.Background(), winSession("s-1", now)))

	p := store.progress[key("c-1", "p-1")]
	require.NotNil(t, p)
	assert.Equal(t, int64(1), p.CurrentProgress)
	assert.False(t, p.IsCompleted)
}

func TestCompletionGrantsRewardsOnce(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.challenges = []domain.DailyChallenge{dayChallenge("c-1", domain.ChallengeWinGames, 2, now)}
	wallet := &fakeWallet{}
	awarder := &fakeAwarder{}
	svc := NewService(store, wallet, awarder, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.ApplySession(ctx, winSession("s-1", now)))
	require.NoError(t, svc.ApplySession(ctx, winSession("s-2", now)))
	// Completed is terminal; further sessions change nothing.
	require.NoError(t, svc.ApplySession(ctx, winSession("s-3", now)))

	p := store.progress[key("c-1", "p-1")]
	require.NotNil(t, p)
	assert.True(t, p.IsCompleted)
	assert.Equal(t, int64(2), p.CurrentProgress)
	assert.Equal(t, int64(75), wallet.credits["p-1"])
	assert.Equal(t, int64(30), awarder.xp["p-1"])
}

func TestRedeliveredSessionCountsOnce(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.challenges = []domain.DailyChallenge{dayChallenge("c-1", domain.ChallengePlayGames, 5, now)}
	svc := NewService(store, &fakeWallet{}, &fakeAwarder{}, testLogger())
	ctx := context.Background()

	s := winSession("s-1", now)
	require.NoError(t, svc.ApplySession(ctx, s))
	require.NoError(t, svc.ApplySession(ctx, s))

	p := store.progress[key("c-1", "p-1")]
	require.NotNil(t, p)
	assert.Equal(t, int64(1), p.CurrentProgress)
}

func TestVoidedSessionIgnored(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.challenges = []domain.DailyChallenge{dayChallenge("c-1", domain.ChallengePlayGames, 5, now)}
	svc := NewService(store, &fakeWallet{}, &fakeAwarder{}, testLogger())

	s := winSession("s-1", now)
	s.Status = domain.SessionVoided
	require.NoError(t, svc.ApplySession(context.Background(), s))
	assert.Empty(t, store.progress)
}

func TestPremiumChallengeGated(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	c := dayChallenge("c-1", domain.ChallengePlayGames, 5, now)
	c.PremiumOnly = true
	store.challenges = []domain.DailyChallenge{c}
	svc := NewService(store, &fakeWallet{}, &fakeAwarder{}, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.ApplySession(ctx, winSession("s-1", now)))
	assert.Empty(t, store.progress)

	store.premium["p-1"] = true
	require.NoError(t, svc.ApplySession(ctx, winSession("s-2", now)))
	assert.NotEmpty(t, store.progress)
}

func TestEarnPointsChallengeUsesPointsDelta(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	store.challenges = []domain.DailyChallenge{dayChallenge("c-1", domain.ChallengeEarnPoints, 100, now)}
	wallet := &fakeWallet{}
	svc := NewService(store, wallet, &fakeAwarder{}, testLogger())
	ctx := context.Background()

	require.NoError(t, svc.ApplySession(ctx, winSession("s-1", now)))
	require.NoError(t, svc.ApplySession(ctx, winSession("s-2", now)))
	require.NoError(t, svc.ApplySession(ctx, winSession("s-3", now)))

	p := store.progress[key("c-1", "p-1")]
	require.NotNil(t, p)
	assert.Equal(t, int64(120), p.CurrentProgress)
	assert.True(t, p.IsCompleted)
	assert.Equal(t, int64(75), wallet.credits["p-1"])
}

func TestExpiredChallengeNotActive(t *testing.T) {
	now := time.Now()
	store := newFakeStore()
	expired := dayChallenge("c-old", domain.ChallengePlayGames, 5, now.Add(-48*time.Hour))
	expired.EndTime = now.Add(-24 * time.Hour)
	store.challenges = []domain.DailyChallenge{expired}
	svc := NewService(store, &fakeWallet{}, &fakeAwarder{}, testLogger())

	active, err := svc.ActiveNow(context.Background(), now)
	require.NoError(t, err)
	assert.Empty(t, active)
}
