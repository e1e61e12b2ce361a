package ports

import (
	"context"
	"errors"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
)

// TokenAuthenticator verifies request signatures per the acquiring protocol:
// SHA-256 over the sorted scalar request values plus the merchant password hash.
type TokenAuthenticator interface {
	ComputeToken(params map[string]any, passwordHash string) string
	Verify(params map[string]any, providedToken, passwordHash string) bool
}

// TeamStore resolves merchant snapshots with a bounded read-through cache.
type TeamStore interface {
	// Lookup returns (nil, nil) when the slug is unknown.
	Lookup(ctx context.Context, teamSlug string) (*domain.Team, error)
	// Invalidate drops the cached entry; called on every merchant write.
	Invalidate(teamSlug string)
}

// --- Locking ---

// ErrLockWaitTimeout is returned by Acquire when wait elapses before a lease
// is granted.
var ErrLockWaitTimeout = errors.New("lock wait timeout")

// Lease is the right to mutate a locked resource until ExpiresAt.
type Lease struct {
	Key        string
	Holder     string
	Token      string // release fencing token
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// LeaseInfo describes a live lease for diagnostics.
type LeaseInfo struct {
	Holder     string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// LockSnapshot is the wait-for metadata the deadlock detector walks.
type LockSnapshot struct {
	// Holders maps key -> live lease.
	Holders map[string]LeaseInfo
	// Waiters maps key -> holder ids blocked on it, in arrival order.
	Waiters map[string][]string
}

// LockService grants at most one live lease per key, FIFO among waiters.
// Expired leases are treated as absent.
type LockService interface {
	Acquire(ctx context.Context, key, holder string, lease, wait time.Duration) (*Lease, error)
	// Release is idempotent; releasing an expired or foreign lease is a no-op.
	Release(lease *Lease)
	// ForceRelease evicts the live lease on key regardless of holder,
	// reporting whether one existed. Used by deadlock resolution.
	ForceRelease(key string) bool
	// Snapshot returns current holder/waiter metadata.
	Snapshot() LockSnapshot
}

// --- Rate limiting ---

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // time until the next whole token when denied
}

// RateLimiter implements policy-keyed token buckets.
type RateLimiter interface {
	TryAcquire(policy, scope string, cost int) Decision
}

// --- Queue ---

// ErrQueueFull signals admission backpressure.
var ErrQueueFull = errors.New("payment queue full")

// TaskQueue admits background jobs for the worker pool. Idempotent jobs may
// be retried after cancellation; non-idempotent ones are dropped.
type TaskQueue interface {
	Enqueue(name string, idempotent bool, fn func(ctx context.Context) error) error
}

// --- Acquirer ---

// ErrAcquirerUnavailable signals a transport failure or acquirer 5xx; the
// caller retries within its idempotent budget.
var ErrAcquirerUnavailable = errors.New("card acquirer unavailable")

// AuthorizeRequest carries one authorization attempt to the card network.
type AuthorizeRequest struct {
	IdempotencyKey string
	PaymentID      string
	Amount         int64
	Currency       string
	CardNumber     string
	ExpDate        string
	CVV            string
	PayType        domain.PayType
}

// AuthorizeResult is the acquirer's answer. Approved=false with a Reason is a
// business decline, not a transport error.
type AuthorizeResult struct {
	Approved        bool
	RequiresThreeDS bool
	AcquirerTxID    string
	Reason          string
}

// CardAcquirer is the external card network adapter. The gateway calls it;
// its internals are out of scope.
type CardAcquirer interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error)
	Confirm(ctx context.Context, idempotencyKey, paymentID string, amount int64) error
	Reverse(ctx context.Context, idempotencyKey, paymentID string) error
	Refund(ctx context.Context, idempotencyKey, paymentID string, amount int64) error
}

// --- Webhooks ---

// WebhookNotifier records a state-change notification for at-least-once
// delivery to the merchant's notification URL.
type WebhookNotifier interface {
	EnqueueStateChange(ctx context.Context, p *domain.Payment, tr domain.PaymentTransition) error
}

// WebhookSender performs one delivery attempt. Split from the notifier so
// the dispatch loop can be tested against a mock transport.
type WebhookSender interface {
	// Send posts the payload and returns the HTTP status code.
	Send(ctx context.Context, url string, payload []byte) (int, error)
}

// --- Observability ---

// MetricsSink receives gateway counters; a prometheus implementation is wired
// in production and a nop in tests.
type MetricsSink interface {
	PaymentTransition(to domain.Status)
	RateLimitDenied(policy string)
	LockWaitObserved(d time.Duration)
	QueueDepth(depth int)
	WebhookAttempt(delivered bool)
}

// HealthChecker verifies one external dependency.
type HealthChecker interface {
	Ping(ctx context.Context) error
	Name() string
}

// --- Admin ---

// AdminTokenService issues and validates bearer tokens for the admin API.
type AdminTokenService interface {
	Generate(subject string) (string, time.Time, error)
	Validate(token string) (string, error)
}
