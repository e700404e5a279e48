package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window counter shared by every gateway replica
type RedisLimiter struct {
	client  redis.Cmdable
	prefix  string
	window  time.Duration
	maxReqs int64
}

// NewRedisLimiter creates a limiter whose keys live under prefix
func NewRedisLimiter(client redis.Cmdable, prefix string, window time.Duration, maxReqs int) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, window: window, maxReqs: int64(maxReqs)}
}

// Allow increments the counter for key, starting its expiry on the first hit of a window.
// A counter left without an expiry (the first EXPIRE failed) is re-armed once it starts
// rejecting, so a Redis blip blocks an IP for at most one window.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := fmt.Sprintf("ratelimit:%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("increment rate limit: %w", err)
	}

	if count == 1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("expire rate limit: %w", err)
		}
	}

	if count <= l.maxReqs {
		return true, nil
	}

	ttl, err := l.client.TTL(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("read rate limit ttl: %w", err)
	}
	// -1 means the key exists without an expiry
	if ttl == -1 {
		if err := l.client.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("re-arm rate limit: %w", err)
		}
	}
	return false, nil
}
