package ratelimit

import (
	"sync"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/ports"
)

// PolicyScope selects how bucket keys are derived.
type PolicyScope string

const (
	// ScopeMerchant gives every merchant its own bucket.
	ScopeMerchant PolicyScope = "merchant"
	// ScopeGlobal shares a single bucket across all callers.
	ScopeGlobal PolicyScope = "global"
)

// Policy defines one token-bucket rate limit.
type Policy struct {
	Rate  float64 // tokens per second
	Burst float64 // bucket capacity
	Scope PolicyScope
}

// DefaultPolicies returns the shipped rate limits.
func DefaultPolicies() map[string]Policy {
	return map[string]Policy{
		"api":          {Rate: 100, Burst: 200, Scope: ScopeMerchant},
		"payment_init": {Rate: 20, Burst: 20, Scope: ScopeMerchant},
		"processing":   {Rate: 50, Burst: 50, Scope: ScopeGlobal},
	}
}

// Limiter implements ports.RateLimiter with lazily refilled token buckets
// per (policy, scope). Buckets start full, so bursts up to capacity pass.
type Limiter struct {
	policies map[string]Policy
	now      func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// New creates a limiter over the given policies.
func New(policies map[string]Policy) *Limiter {
	return &Limiter{
		policies: policies,
		now:      time.Now,
		buckets:  make(map[string]*bucket),
	}
}

// TryAcquire spends cost tokens from the (policy, scope) bucket. Policies the
// limiter does not know fail open: an unconfigured endpoint is not a reason
// to reject traffic.
func (l *Limiter) TryAcquire(policy, scope string, cost int) ports.Decision {
	p, ok := l.policies[policy]
	if !ok {
		return ports.Decision{Allowed: true}
	}

	key := policy
	if p.Scope == ScopeMerchant {
		key = policy + "|" + scope
	}

	b := l.bucket(key, p)
	now := l.now()

	b.mu.Lock()
	defer b.mu.Unlock()

	// Lazy refill since the last stamp, clamped to capacity.
	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * p.Rate
		if b.tokens > p.Burst {
			b.tokens = p.Burst
		}
		b.last = now
	}

	fcost := float64(cost)
	if b.tokens >= fcost {
		b.tokens -= fcost
		return ports.Decision{Allowed: true}
	}

	// Time until the next whole token (or the full cost) accrues.
	deficit := fcost - b.tokens
	retryAfter := time.Duration(deficit / p.Rate * float64(time.Second))
	if retryAfter <= 0 {
		retryAfter = time.Millisecond
	}
	return ports.Decision{Allowed: false, RetryAfter: retryAfter}
}

func (l *Limiter) bucket(key string, p Policy) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: p.Burst, last: l.now()}
		l.buckets[key] = b
	}
	return b
}
