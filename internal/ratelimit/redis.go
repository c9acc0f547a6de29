package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrBackendUnavailable wraps Redis transport failures so HTTP callers
// can apply their fail-open/fail-closed policy.
var ErrBackendUnavailable = errors.New("rate limit backend unavailable")

// RedisLimiter mirrors MemoryLimiter semantics on shared Redis state so
// counters coordinate across replicas. Window counts use a fixed-window
// INCR with a TTL stamped on the first hit; failure state lives in a
// small hash keyed separately so the two mechanisms age independently.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisLimiter(client redis.UniversalClient, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = "shopiq:rl"
	}
	return &RedisLimiter{client: client, prefix: prefix}
}

func (l *RedisLimiter) countKey(key string) string { return l.prefix + ":c:" + key }
func (l *RedisLimiter) failKey(key string) string  { return l.prefix + ":f:" + key }

func (l *RedisLimiter) Check(ctx context.Context, key string, cfg Config) (Result, error) {
	failures, lastFailure, err := l.failureState(ctx, key)
	if err != nil {
		return Result{}, err
	}
	if cfg.MaxFailures > 0 && failures >= cfg.MaxFailures {
		expires := blockExpiry(lastFailure, failures, cfg)
		now := time.Now()
		if now.Before(expires) {
			return Result{Allowed: false, RetryAfter: expires.Sub(now), Blocked: true}, nil
		}
		if err := l.ResetFailures(ctx, key); err != nil {
			return Result{}, err
		}
	}

	count, err := l.client.Incr(ctx, l.countKey(key)).Result()
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if count == 1 {
		if err := l.client.PExpire(ctx, l.countKey(key), cfg.Window).Err(); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}
	if count > int64(cfg.MaxRequests) {
		ttl, err := l.client.PTTL(ctx, l.countKey(key)).Result()
		if err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
		if ttl < 0 {
			ttl = cfg.Window
		}
		return Result{Allowed: false, RetryAfter: ttl}, nil
	}
	return Result{Allowed: true}, nil
}

func (l *RedisLimiter) RecordFailure(ctx context.Context, key string) error {
	now := time.Now()
	pipe := l.client.TxPipeline()
	pipe.HIncrBy(ctx, l.failKey(key), "failures", 1)
	pipe.HSet(ctx, l.failKey(key), "last_failure_ms", now.UnixMilli())
	// Failure state self-expires once no block could still be active.
	pipe.PExpire(ctx, l.failKey(key), MaxBlock+time.Minute)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (l *RedisLimiter) ResetFailures(ctx context.Context, key string) error {
	if err := l.client.Del(ctx, l.failKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}

func (l *RedisLimiter) failureState(ctx context.Context, key string) (int, time.Time, error) {
	vals, err := l.client.HGetAll(ctx, l.failKey(key)).Result()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	if len(vals) == 0 {
		return 0, time.Time{}, nil
	}
	failures, err := strconv.Atoi(vals["failures"])
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse failure count: %w", err)
	}
	lastMs, err := strconv.ParseInt(vals["last_failure_ms"], 10, 64)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("parse last failure stamp: %w", err)
	}
	return failures, time.UnixMilli(lastMs), nil
}
