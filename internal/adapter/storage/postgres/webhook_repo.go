package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"

	"github.com/google/uuid"
)

// WebhookRepo implements ports.WebhookRepository.
type WebhookRepo struct {
	pool Pool
}

// NewWebhookRepo creates a new WebhookRepo.
func NewWebhookRepo(pool Pool) *WebhookRepo {
	return &WebhookRepo{pool: pool}
}

// Create inserts a pending delivery.
func (r *WebhookRepo) Create(ctx context.Context, d *domain.WebhookDelivery) error {
	query := `INSERT INTO webhook_deliveries
			(id, payment_ref, team_slug, url, payload, attempts, next_attempt_at, event_at,
			delivered, terminal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		d.ID, d.PaymentRef, d.TeamSlug, d.URL, d.Payload, d.Attempts, d.NextAttemptAt, d.EventAt,
		d.Delivered, d.Terminal, d.CreatedAt, d.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

// Due returns undelivered, non-terminal deliveries ready for an attempt,
// ordered by event time so per-payment notifications keep their order.
func (r *WebhookRepo) Due(ctx context.Context, now time.Time, limit int) ([]domain.WebhookDelivery, error) {
	query := `SELECT id, payment_ref, team_slug, url, payload, attempts, next_attempt_at, event_at,
			delivered, terminal, last_error, last_http_code, created_at, updated_at, delivered_at
		FROM webhook_deliveries
		WHERE delivered = false AND terminal = false AND next_attempt_at <= $1
		ORDER BY event_at ASC
		LIMIT $2`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due deliveries: %w", err)
	}
	defer rows.Close()

	var out []domain.WebhookDelivery
	for rows.Next() {
		var d domain.WebhookDelivery
		err := rows.Scan(
			&d.ID, &d.PaymentRef, &d.TeamSlug, &d.URL, &d.Payload, &d.Attempts, &d.NextAttemptAt, &d.EventAt,
			&d.Delivered, &d.Terminal, &d.LastError, &d.LastHTTPCode, &d.CreatedAt, &d.UpdatedAt, &d.DeliveredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan delivery row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate delivery rows: %w", err)
	}
	return out, nil
}

// MarkDelivered closes a delivery after a 2xx answer.
func (r *WebhookRepo) MarkDelivered(ctx context.Context, id uuid.UUID, httpCode int, at time.Time) error {
	query := `UPDATE webhook_deliveries SET delivered = true, attempts = attempts + 1,
			last_http_code = $2, delivered_at = $3, updated_at = $3
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, httpCode, at)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delivery not found: %s", id)
	}
	return nil
}

// MarkFailed records a failed attempt and its reschedule.
func (r *WebhookRepo) MarkFailed(ctx context.Context, id uuid.UUID, attempts int, nextAttemptAt time.Time, terminal bool, lastError string, httpCode *int) error {
	query := `UPDATE webhook_deliveries SET attempts = $2, next_attempt_at = $3, terminal = $4,
			last_error = $5, last_http_code = $6, updated_at = $7
		WHERE id = $1`

	tag, err := r.pool.Exec(ctx, query, id, attempts, nextAttemptAt, terminal, lastError, httpCode, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delivery not found: %s", id)
	}
	return nil
}
