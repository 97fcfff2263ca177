package ledger

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gamification-ledger/internal/domain"
)

// Store is the persistence the session ledger needs. Inserts must be
// keyed on the session id so a replayed append is a no-op.
type Store interface {
	InsertSession(ctx context.Context, session *domain.Session) (bool, error)
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)
	VoidSession(ctx context.Context, sessionID string) error
}

// Service owns the append-only session ledger, the system's source of
// truth. Entries are never updated or deleted; voiding is the only
// permitted status transition.
type Service struct {
	store  Store
	logger *slog.Logger
}

// NewService creates a new ledger service
func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		store:  store,
		logger: logger,
	}
}

// Append validates and records a completed session. Re-appending an id
// that already exists is a no-op; the bool reports whether a new entry
// was written.
func (s *Service) Append(ctx context.Context, session *domain.Session) (bool, error) {
	if session.Status == "" {
		session.Status = domain.SessionCompleted
	}
	if err := session.Validate(); err != nil {
		return false, err
	}

	created, err := s.store.InsertSession(ctx, session)
	if err != nil {
		return false, fmt.Errorf("appending session: %w", err)
	}
	if !created {
		s.logger.Debug("session already in ledger, skipping append",
			"session_id", session.ID,
			"player_id", session.PlayerID,
		)
	}
	return created, nil
}

// Get returns a ledger entry by id
func (s *Service) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}

// Void marks a session voided, excluding it from all recomputation.
// Already-applied aggregates are not decremented here; the verifier
// surfaces the resulting drift for an operator-driven rebuild.
func (s *Service) Void(ctx context.Context, sessionID string) error {
	if err := s.store.VoidSession(ctx, sessionID); err != nil {
		return fmt.Errorf("voiding session %s: %w", sessionID, err)
	}
	s.logger.Info("session voided", "session_id", sessionID)
	return nil
}
