// Package ratelimit throttles OTP sends per client IP with a fixed-window Redis counter.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrRateLimited      = errors.New("rate limited")
	ErrRedisUnavailable = errors.New("rate limit redis unavailable")
)

const keyPrefix = "otpsend:"

// Config bounds requests per key per window.
type Config struct {
	Limit  int
	Window time.Duration
}

// Limiter counts hits per key in Redis. Every hit arms the key's expiry if it has none, so a
// counter can never outlive its window.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// NewLimiter returns a Limiter. Limit < 1 is treated as 1 and a non-positive window as 15 minutes.
func NewLimiter(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Limit < 1 {
		cfg.Limit = 1
	}
	if cfg.Window <= 0 {
		cfg.Window = 15 * time.Minute
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// Allow records one hit for key. Returns ErrRateLimited once the window's limit is exceeded,
// or an error wrapping ErrRedisUnavailable when the counter cannot be updated.
func (l *Limiter) Allow(ctx context.Context, key string) error {
	k := keyPrefix + key
	var incr *redis.IntCmd
	_, err := l.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		pipe.ExpireNX(ctx, k, l.config.Window)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	count := incr.Val()
	if count > int64(l.config.Limit) {
		return ErrRateLimited
	}
	return nil
}

// RetryAfter returns how long until key's window resets. Zero if unknown.
func (l *Limiter) RetryAfter(ctx context.Context, key string) time.Duration {
	ttl, err := l.redis.TTL(ctx, keyPrefix+key).Result()
	if err != nil || ttl < 0 {
		return 0
	}
	return ttl
}
