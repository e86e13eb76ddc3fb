package alerts

import (
	"context"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// Ledger records which violations have already been notified. Claim returns
// true exactly once per key within the ledger's retention.
type Ledger interface {
	Claim(ctx context.Context, key string) (bool, error)
}

// MemoryLedger is a process-local ledger.
type MemoryLedger struct {
	c *gocache.Cache
}

// NewMemoryLedger creates a ledger that forgets keys after ttl.
func NewMemoryLedger(ttl time.Duration) *MemoryLedger {
	return &MemoryLedger{c: gocache.New(ttl, time.Minute)}
}

func (l *MemoryLedger) Claim(ctx context.Context, key string) (bool, error) {
	// Add fails when the key is already present and unexpired.
	return l.c.Add(key, struct{}{}, gocache.DefaultExpiration) == nil, nil
}

// RedisLedger shares claims across processes through Redis SETNX.
type RedisLedger struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisLedger connects to the Redis URL and verifies the connection.
func NewRedisLedger(ctx context.Context, redisURL string, ttl time.Duration) (*RedisLedger, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewRedisLedgerFromClient(client, ttl), nil
}

// NewRedisLedgerFromClient wraps an existing client.
func NewRedisLedgerFromClient(client *redis.Client, ttl time.Duration) *RedisLedger {
	return &RedisLedger{client: client, prefix: "vitalsync:alert:", ttl: ttl}
}

func (l *RedisLedger) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.prefix+key, time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim alert key: %w", err)
	}
	return ok, nil
}

// Close releases the Redis connection.
func (l *RedisLedger) Close() error {
	return l.client.Close()
}
