package ports

import (
	"context"
	"errors"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"

	"github.com/google/uuid"
)

// Sentinel errors shared by all repository implementations.
var (
	// ErrDuplicateOrder signals a (team_slug, order_id) uniqueness violation.
	ErrDuplicateOrder = errors.New("order already exists for team")
	// ErrVersionConflict signals an optimistic concurrency failure on Transition.
	ErrVersionConflict = errors.New("payment version conflict")
	// ErrTeamExists signals a duplicate team slug on registration.
	ErrTeamExists = errors.New("team slug already registered")
)

// TransitionParams carries one atomic status change. The repository checks
// ExpectedVersion, writes NewStatus, increments the version, stamps the
// status-specific timestamp and appends the transition row in one database
// transaction.
type TransitionParams struct {
	PaymentRef      uuid.UUID
	ExpectedVersion int64
	NewStatus       domain.Status
	Actor           domain.Actor
	Reason          string
	CorrelationID   string
	// MaskedPan is recorded when the transition carries card data (AUTHORIZING).
	MaskedPan string
	// RefundDelta is added to the payment's refunded amount (REFUNDED paths).
	RefundDelta int64
	// CaptureAmount, when positive, overwrites the payment amount on a
	// partial capture; the uncaptured remainder is released by the acquirer.
	CaptureAmount int64
}

// PaymentRepository persists payments and their transition audit trail.
// Lookup methods return (nil, nil) when no row matches.
type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error)
	GetByOrderKey(ctx context.Context, teamSlug, orderID string) (*domain.Payment, error)
	Transition(ctx context.Context, params TransitionParams) (*domain.Payment, error)
	ListTransitions(ctx context.Context, paymentRef uuid.UUID) ([]domain.PaymentTransition, error)
	// ConfirmedTotalForDay returns confirmed minus refunded minor units for a
	// team within the UTC calendar day containing at. Feeds the daily limit.
	ConfirmedTotalForDay(ctx context.Context, teamSlug string, at time.Time) (int64, error)
}

// TeamRepository persists merchant records.
type TeamRepository interface {
	Create(ctx context.Context, team *domain.Team) error
	GetBySlug(ctx context.Context, slug string) (*domain.Team, error)
	Update(ctx context.Context, team *domain.Team) error
}

// WebhookRepository persists pending and completed webhook deliveries.
type WebhookRepository interface {
	Create(ctx context.Context, d *domain.WebhookDelivery) error
	// Due returns undelivered, non-terminal deliveries whose next attempt is
	// at or before now, ordered by event timestamp, limited to limit rows.
	Due(ctx context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error)
	MarkDelivered(ctx context.Context, id uuid.UUID, httpCode int, at time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time, terminal bool, lastError string, httpCode *int) error
}

// AuditRepository persists API audit entries.
type AuditRepository interface {
	Create(ctx context.Context, entry *domain.AuditLog) error
}
