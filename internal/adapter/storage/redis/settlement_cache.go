package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// SettlementCache implements ports.SettlementCache using Redis.
// It only short-circuits replays; the ledger stays authoritative.
type SettlementCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewSettlementCache creates a new Redis-backed settlement replay cache.
func NewSettlementCache(client goredis.UniversalClient) *SettlementCache {
	return &SettlementCache{
		client: client,
		prefix: "settlement-outcome:",
	}
}

// Get retrieves a cached outcome by settlement key.
// Returns nil, nil if the key does not exist.
func (c *SettlementCache) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis settlement cache get: %w", err)
	}
	return val, nil
}

// Set stores an outcome with TTL.
func (c *SettlementCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis settlement cache set: %w", err)
	}
	return nil
}
