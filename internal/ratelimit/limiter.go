package ratelimit

import (
	"context"
	"time"
)

// MaxBlock caps the exponential backoff so a long failure streak cannot
// lock a key out forever.
const MaxBlock = time.Hour

// SharedUnknownKey is the bucket for requests whose client identity
// cannot be derived. Unattributable traffic shares one stricter-limited
// bucket instead of bypassing rate limiting.
const SharedUnknownKey = "unknown"

// Route-tier scopes. Handlers that record or reset failures must use
// the same scope as the limiter middleware guarding their route, or the
// failure counters accrue on buckets no check ever reads.
const (
	ScopeAPI   = "api"
	ScopeAuth  = "auth"
	ScopeTrial = "trial"
)

type Config struct {
	MaxRequests int
	Window      time.Duration
	MaxFailures int
	BaseBlock   time.Duration
}

type Result struct {
	Allowed    bool
	RetryAfter time.Duration
	Blocked    bool
}

// Limiter combines two independent mechanisms on the same key: a
// fixed-window request counter and a failure counter whose block grows
// exponentially with consecutive failures. Failures are recorded by the
// caller only on security-relevant outcomes, not on ordinary requests.
type Limiter interface {
	Check(ctx context.Context, key string, cfg Config) (Result, error)
	RecordFailure(ctx context.Context, key string) error
	ResetFailures(ctx context.Context, key string) error
}

// Key builds the canonical "action:client" bucket key. Empty client
// identities collapse into the shared unknown bucket.
func Key(action, clientID string) string {
	if clientID == "" {
		clientID = SharedUnknownKey
	}
	return action + ":" + clientID
}

func blockExpiry(lastFailureAt time.Time, failures int, cfg Config) time.Time {
	if cfg.MaxFailures <= 0 || failures < cfg.MaxFailures {
		return time.Time{}
	}
	block := cfg.BaseBlock
	for i := cfg.MaxFailures; i < failures; i++ {
		block *= 2
		if block >= MaxBlock {
			block = MaxBlock
			break
		}
	}
	if block > MaxBlock {
		block = MaxBlock
	}
	return lastFailureAt.Add(block)
}
