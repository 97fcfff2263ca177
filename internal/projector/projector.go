package projector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/gamification-ledger/internal/domain"
)

// Store supplies the projector's inputs and persists its output.
// PlayerValues reads the aggregate each scope ranks on (the window
// start is zero for all-time scopes); ReplaceEntries atomically swaps
// a scope's ranked rows and stamps last_calculated.
type Store interface {
	PlayerValues(ctx context.Context, scope domain.LeaderboardScope, since time.Time) ([]domain.PlayerValue, error)
	ReplaceEntries(ctx context.Context, scope domain.LeaderboardScope, entries []domain.LeaderboardEntry) error
}

// RankCache mirrors rankings into the serving cache
type RankCache interface {
	SetRanking(ctx context.Context, scope domain.LeaderboardScope, entries []domain.LeaderboardEntry) error
}

// Projector periodically re-ranks players per scope from the aggregate
// stores. Rankings are entirely derived and safe to rebuild at any time.
type Projector struct {
	store   Store
	cache   RankCache
	scopes  []domain.LeaderboardScope
	topN    int
	logger  *slog.Logger
	stopCh  chan struct{}
	doneCh  chan struct{}
	mu      sync.Mutex
	running bool
}

// New creates a new leaderboard projector. The cache may be nil.
func New(store Store, cache RankCache, scopes []domain.LeaderboardScope, topN int, logger *slog.Logger) *Projector {
	if topN <= 0 {
		topN = 100
	}
	return &Projector{
		store:  store,
		cache:  cache,
		scopes: scopes,
		topN:   topN,
		logger: logger,
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

// Start begins the background projection loop
func (p *Projector) Start(ctx context.Context, interval time.Duration) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = true
	p.mu.Unlock()

	p.logger.Info("leaderboard projector started",
		"interval", interval,
		"scopes", len(p.scopes),
	)

	go p.run(ctx, interval)
	return nil
}

// Stop stops the background projection loop
func (p *Projector) Stop() error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)
	<-p.doneCh

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	p.logger.Info("leaderboard projector stopped")
	return nil
}

func (p *Projector) run(ctx context.Context, interval time.Duration) {
	defer close(p.doneCh)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.projectAll(ctx)
		}
	}
}

// RunOnce runs a single projection cycle (useful for manual triggers)
func (p *Projector) RunOnce(ctx context.Context) {
	p.projectAll(ctx)
}

func (p *Projector) projectAll(ctx context.Context) {
	startTime := time.Now()
	projected := 0
	errored := 0

	for _, scope := range p.scopes {
		if err := p.Project(ctx, scope); err != nil {
			p.logger.Error("failed to project leaderboard",
				"scope", scope.Key(),
				"error", err,
			)
			errored++
		} else {
			projected++
		}
	}

	p.logger.Info("projection cycle completed",
		"duration", time.Since(startTime),
		"projected", projected,
		"errors", errored,
	)
}

// Project recomputes one scope's ranking. Players sort on value
// descending with a playerId tie-break, so re-running on unchanged
// input always produces an identical ordering.
func (p *Projector) Project(ctx context.Context, scope domain.LeaderboardScope) error {
	now := time.Now()
	values, err := p.store.PlayerValues(ctx, scope, scope.Period.WindowStart(now))
	if err != nil {
		return fmt.Errorf("reading aggregate values: %w", err)
	}

	entries := Rank(scope, values, p.topN, now)

	if err := p.store.ReplaceEntries(ctx, scope, entries); err != nil {
		return fmt.Errorf("replacing entries: %w", err)
	}

	if p.cache != nil {
		if err := p.cache.SetRanking(ctx, scope, entries); err != nil {
			p.logger.Warn("failed to mirror ranking to cache",
				"scope", scope.Key(),
				"error", err,
			)
		}
	}

	p.logger.Debug("projected leaderboard",
		"scope", scope.Key(),
		"entries", len(entries),
	)
	return nil
}

// Rank orders player values into leaderboard entries: value descending,
// ties broken by playerId ascending, ranks assigned 1..n.
func Rank(scope domain.LeaderboardScope, values []domain.PlayerValue, topN int, now time.Time) []domain.LeaderboardEntry {
	sorted := make([]domain.PlayerValue, len(values))
	copy(sorted, values)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Value != sorted[j].Value {
			return sorted[i].Value > sorted[j].Value
		}
		return sorted[i].PlayerID < sorted[j].PlayerID
	})

	if topN > 0 && len(sorted) > topN {
		sorted = sorted[:topN]
	}

	entries := make([]domain.LeaderboardEntry, len(sorted))
	for i, pv := range sorted {
		entries[i] = domain.LeaderboardEntry{
			Scope:          scope,
			PlayerID:       pv.PlayerID,
			Rank:           int64(i + 1),
			Value:          pv.Value,
			LastCalculated: now,
		}
	}
	return entries
}
