package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PaymentRepo implements ports.PaymentRepository.
type PaymentRepo struct {
	pool Pool
}

// NewPaymentRepo creates a new PaymentRepo.
func NewPaymentRepo(pool Pool) *PaymentRepo {
	return &PaymentRepo{pool: pool}
}

const paymentColumns = `id, payment_id, team_slug, order_id, amount, refunded_amount, currency, pay_type,
	status, success_url, fail_url, notification_url, customer_email, customer_phone, receipt, masked_pan,
	created_at, updated_at, expires_at, authorized_at, confirmed_at, cancelled_at, version`

// Create inserts a new payment. A (team_slug, order_id) uniqueness violation
// maps to ports.ErrDuplicateOrder.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	query := `INSERT INTO payments (` + paymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.PaymentID, p.TeamSlug, p.OrderID, p.Amount, p.RefundedAmount, p.Currency, p.PayType,
		p.Status, p.SuccessURL, p.FailURL, p.NotificationURL, p.CustomerEmail, p.CustomerPhone, p.Receipt, p.MaskedPan,
		p.CreatedAt, p.UpdatedAt, p.ExpiresAt, p.AuthorizedAt, p.ConfirmedAt, p.CancelledAt, p.Version,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ports.ErrDuplicateOrder
		}
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

// GetByPaymentID fetches a payment by its external identifier.
func (r *PaymentRepo) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE payment_id = $1`
	return r.scanPayment(r.pool.QueryRow(ctx, query, paymentID))
}

// GetByOrderKey fetches a payment by merchant slug and order id.
func (r *PaymentRepo) GetByOrderKey(ctx context.Context, teamSlug, orderID string) (*domain.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE team_slug = $1 AND order_id = $2`
	return r.scanPayment(r.pool.QueryRow(ctx, query, teamSlug, orderID))
}

// Transition applies one status change and appends the transition row in a
// single database transaction. The version check makes it a compare-and-swap:
// a concurrent writer surfaces as ports.ErrVersionConflict.
func (r *PaymentRepo) Transition(ctx context.Context, params ports.TransitionParams) (*domain.Payment, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer tx.Rollback(ctx)

	var fromStatus domain.Status
	err = tx.QueryRow(ctx, `SELECT status FROM payments WHERE id = $1 FOR UPDATE`, params.PaymentRef).Scan(&fromStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment not found: %s", params.PaymentRef)
		}
		return nil, fmt.Errorf("lock payment row: %w", err)
	}

	now := time.Now().UTC()
	query := `UPDATE payments SET
			status = $3,
			version = version + 1,
			updated_at = $4,
			masked_pan = CASE WHEN $5 <> '' THEN $5 ELSE masked_pan END,
			refunded_amount = refunded_amount + $6,
			amount = CASE WHEN $7 > 0 THEN $7 ELSE amount END,
			authorized_at = CASE WHEN $3 = 'AUTHORIZED' THEN $4 ELSE authorized_at END,
			confirmed_at = CASE WHEN $3 = 'CONFIRMED' THEN $4 ELSE confirmed_at END,
			cancelled_at = CASE WHEN $3 IN ('CANCELLED', 'REVERSED') THEN $4 ELSE cancelled_at END
		WHERE id = $1 AND version = $2
		RETURNING ` + paymentColumns

	updated, err := r.scanPayment(tx.QueryRow(ctx, query,
		params.PaymentRef, params.ExpectedVersion, params.NewStatus, now, params.MaskedPan, params.RefundDelta, params.CaptureAmount,
	))
	if err != nil {
		return nil, err
	}
	if updated == nil {
		// The row exists but the version moved on.
		return nil, ports.ErrVersionConflict
	}

	_, err = tx.Exec(ctx, `INSERT INTO payment_transitions
			(id, payment_ref, from_status, to_status, actor, reason, correlation_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		uuid.New(), params.PaymentRef, fromStatus, params.NewStatus, params.Actor, params.Reason, params.CorrelationID, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert transition: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}
	return updated, nil
}

// ListTransitions returns the transition trail for a payment, oldest first.
func (r *PaymentRepo) ListTransitions(ctx context.Context, paymentRef uuid.UUID) ([]domain.PaymentTransition, error) {
	query := `SELECT id, payment_ref, from_status, to_status, actor, reason, correlation_id, created_at
		FROM payment_transitions WHERE payment_ref = $1 ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, paymentRef)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	defer rows.Close()

	var out []domain.PaymentTransition
	for rows.Next() {
		var tr domain.PaymentTransition
		if err := rows.Scan(&tr.ID, &tr.PaymentRef, &tr.FromStatus, &tr.ToStatus, &tr.Actor, &tr.Reason, &tr.CorrelationID, &tr.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transition row: %w", err)
		}
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transition rows: %w", err)
	}
	return out, nil
}

// ConfirmedTotalForDay sums confirmed minus refunded minor units for a team
// within the UTC calendar day containing at.
func (r *PaymentRepo) ConfirmedTotalForDay(ctx context.Context, teamSlug string, at time.Time) (int64, error) {
	dayStart := at.UTC().Truncate(24 * time.Hour)
	query := `SELECT COALESCE(SUM(amount - refunded_amount), 0) FROM payments
		WHERE team_slug = $1 AND confirmed_at >= $2 AND confirmed_at < $3`

	var total int64
	if err := r.pool.QueryRow(ctx, query, teamSlug, dayStart, dayStart.Add(24*time.Hour)).Scan(&total); err != nil {
		return 0, fmt.Errorf("confirmed total for day: %w", err)
	}
	return total, nil
}

// scanPayment is a helper to scan a single row into a Payment.
func (r *PaymentRepo) scanPayment(row pgx.Row) (*domain.Payment, error) {
	p := &domain.Payment{}
	err := row.Scan(
		&p.ID, &p.PaymentID, &p.TeamSlug, &p.OrderID, &p.Amount, &p.RefundedAmount, &p.Currency, &p.PayType,
		&p.Status, &p.SuccessURL, &p.FailURL, &p.NotificationURL, &p.CustomerEmail, &p.CustomerPhone, &p.Receipt, &p.MaskedPan,
		&p.CreatedAt, &p.UpdatedAt, &p.ExpiresAt, &p.AuthorizedAt, &p.ConfirmedAt, &p.CancelledAt, &p.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan payment: %w", err)
	}
	return p, nil
}
