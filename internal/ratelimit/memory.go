package ratelimit

import (
	"context"
	"sync"
	"time"
)

const cleanupInterval = 5 * time.Minute

// MemoryLimiter is the process-local implementation. It is correct for a
// single-process deployment only; replicas do not see each other's
// counters. Multi-replica deployments use RedisLimiter instead.
type MemoryLimiter struct {
	mu          sync.Mutex
	entries     map[string]*entry
	nextCleanup time.Time
	now         func() time.Time
}

type entry struct {
	count         int
	resetAt       time.Time
	failures      int
	lastFailureAt time.Time
	// lastCfg is remembered so garbage collection can compute the
	// entry's backoff block without a config in hand.
	lastCfg Config
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		entries:     make(map[string]*entry),
		nextCleanup: time.Now().Add(cleanupInterval),
		now:         time.Now,
	}
}

func (l *MemoryLimiter) Check(_ context.Context, key string, cfg Config) (Result, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	l.maybeCleanup(now)

	e, ok := l.entries[key]
	if !ok {
		e = &entry{resetAt: now.Add(cfg.Window)}
		l.entries[key] = e
	}
	e.lastCfg = cfg

	if !now.Before(e.resetAt) {
		e.count = 0
		e.resetAt = now.Add(cfg.Window)
	}

	if cfg.MaxFailures > 0 && e.failures >= cfg.MaxFailures {
		expires := blockExpiry(e.lastFailureAt, e.failures, cfg)
		if now.Before(expires) {
			return Result{Allowed: false, RetryAfter: expires.Sub(now), Blocked: true}, nil
		}
		// Block served out; the failure streak is forgiven.
		e.failures = 0
		e.lastFailureAt = time.Time{}
	}

	if e.count >= cfg.MaxRequests {
		return Result{Allowed: false, RetryAfter: e.resetAt.Sub(now)}, nil
	}
	e.count++
	return Result{Allowed: true}, nil
}

func (l *MemoryLimiter) RecordFailure(_ context.Context, key string) error {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok {
		e = &entry{resetAt: now}
		l.entries[key] = e
	}
	e.failures++
	e.lastFailureAt = now
	return nil
}

func (l *MemoryLimiter) ResetFailures(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e, ok := l.entries[key]; ok {
		e.failures = 0
		e.lastFailureAt = time.Time{}
	}
	return nil
}

// maybeCleanup runs at most once per cleanupInterval, under l.mu. An
// entry is evicted only when its request window has lapsed and any
// failure block has fully expired; an actively blocking entry survives.
func (l *MemoryLimiter) maybeCleanup(now time.Time) {
	if now.Before(l.nextCleanup) {
		return
	}
	l.nextCleanup = now.Add(cleanupInterval)
	for key, e := range l.entries {
		if now.Before(e.resetAt) {
			continue
		}
		if e.failures > 0 {
			expires := blockExpiry(e.lastFailureAt, e.failures, e.lastCfg)
			if expires.IsZero() {
				// Below the failure threshold; the streak still matters
				// until it ages past the longest possible block.
				expires = e.lastFailureAt.Add(MaxBlock)
			}
			if now.Before(expires) {
				continue
			}
		}
		delete(l.entries, key)
	}
}
