package redis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/gamification-ledger/internal/config"
	"github.com/gamification-ledger/internal/domain"
)

// RankCache mirrors projected leaderboards into Redis sorted sets for
// cheap top-N reads. The cache is entirely derived: Postgres holds the
// authoritative entries and the projector rewrites the cache on every
// cycle, so losing it costs nothing but a cache miss.
type RankCache struct {
	client *redis.Client
	logger *slog.Logger
}

// NewRankCache creates a new Redis rank cache
func NewRankCache(cfg *config.RedisConfig, logger *slog.Logger) (*RankCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	// Test connection
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	return &RankCache{
		client: client,
		logger: logger,
	}, nil
}

// Close closes the Redis connection
func (c *RankCache) Close() error {
	return c.client.Close()
}

// rankingKey returns the Redis key for a scope's sorted set
func (c *RankCache) rankingKey(scope domain.LeaderboardScope) string {
	return fmt.Sprintf("ranking:%s", scope.Key())
}

// SetRanking replaces a scope's cached ranking with freshly projected
// entries. The swap goes through a pipeline so readers never observe a
// half-written set for longer than one round trip.
func (c *RankCache) SetRanking(ctx context.Context, scope domain.LeaderboardScope, entries []domain.LeaderboardEntry) error {
	key := c.rankingKey(scope)

	pipe := c.client.TxPipeline()
	pipe.Del(ctx, key)
	if len(entries) > 0 {
		members := make([]redis.Z, len(entries))
		for i, e := range entries {
			members[i] = redis.Z{
				Score:  float64(e.Value),
				Member: e.PlayerID,
			}
		}
		pipe.ZAdd(ctx, key, members...)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("replacing cached ranking: %w", err)
	}
	return nil
}

// TopN returns the highest-ranked players for a scope from the cache.
// A missing key returns an empty slice; callers fall back to Postgres.
func (c *RankCache) TopN(ctx context.Context, scope domain.LeaderboardScope, n int) ([]domain.PlayerValue, error) {
	key := c.rankingKey(scope)
	results, err := c.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading cached ranking: %w", err)
	}

	values := make([]domain.PlayerValue, 0, len(results))
	for _, z := range results {
		member, ok := z.Member.(string)
		if !ok {
			continue
		}
		values = append(values, domain.PlayerValue{
			PlayerID: member,
			Value:    int64(z.Score),
		})
	}
	return values, nil
}

// PlayerRank returns a player's 1-based rank within a scope, zero when
// the player is not ranked.
func (c *RankCache) PlayerRank(ctx context.Context, scope domain.LeaderboardScope, playerID string) (int64, error) {
	key := c.rankingKey(scope)
	rank, err := c.client.ZRevRank(ctx, key, playerID).Result()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, fmt.Errorf("reading cached rank: %w", err)
	}
	return rank + 1, nil
}
