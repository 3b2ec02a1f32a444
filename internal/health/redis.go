package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// redisPinger is satisfied by every go-redis client.
type redisPinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisChecker checks the Redis instance holding shared corpus snapshots
// and rate limit counters.
type RedisChecker struct {
	client redisPinger
}

// NewRedisChecker creates a Redis checker.
func NewRedisChecker(client redisPinger) *RedisChecker {
	return &RedisChecker{client: client}
}

// Name implements api.HealthChecker.
func (r *RedisChecker) Name() string { return "redis" }

// HealthCheck sends PING.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
