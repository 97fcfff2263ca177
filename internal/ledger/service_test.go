package ledger

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
	sessions map[string]*domain.Session
}

func newFakeStore() *fakeStore {
	return &fakeStore{sessions: make(map[string]*domain.Session)}
}

func (s *fakeStore) InsertSession(_ context.Context, session *domain.Session) (bool, error) {
	if _, ok := s.sessions[session.ID]; ok {
		return false, nil
	}
	copied := *session
	s.sessions[session.ID] = &copied
	return true, nil
}

func (s *fakeStore) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	copied := *session
	return &copied, nil
}

func (s *fakeStore) VoidSession(_ context.Context, sessionID string) error {
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.Status = domain.SessionVoided
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func validSession(id string) *domain.Session {
	return &domain.Session{
		ID:              id,
		PlayerID:        "p-1",
		GameID:          "quickmatch",
		Outcome:         domain.OutcomeWin,
		DurationSeconds: 120,
		PointsEarned:    40,
		XPEarned:        25,
		CompletedAt:     time.Now(),
	}
}

func TestAppendWritesOnce(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testLogger())
	ctx := context.Background()

	created, err := svc.Append(ctx, validSession("s-1"))
	require.NoError(t, err)
	assert.True(t, created)

	// Re-appending the same id is a no-op, not an error.
	created, err = svc.Append(ctx, validSession("s-1"))
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, store.sessions, 1)
}

func TestAppendDefaultsStatus(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testLogger())

	s := validSession("s-1")
	s.Status = ""
	created, err := svc.Append(context.Background(), s)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, domain.SessionCompleted, store.sessions["s-1"].Status)
}

func TestAppendRejectsInvalid(t *testing.T) {
	svc := NewService(newFakeStore(), testLogger())

	s := validSession("s-1")
	s.Outcome = "banana"
	_, err := svc.Append(context.Background(), s)
	require.Error(t, err)
	assert.True(t, domain.IsValidationError(err))
}

func TestVoidMarksSession(t *testing.T) {
	store := newFakeStore()
	svc := NewService(store, testLogger())
	ctx := context.Background()

	_, err := svc.Append(ctx, validSession("s-1"))
	require.NoError(t, err)

	require.NoError(t, svc.Void(ctx, "s-1"))

	got, err := svc.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.SessionVoided, got.Status)
	assert.True(t, got.Voided())
}

func TestVoidUnknownSession(t *testing.T) {
	svc := NewService(newFakeStore(), testLogger())
	err := svc.Void(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, domain.IsNotFoundError(err))
}
