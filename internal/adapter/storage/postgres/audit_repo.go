package postgres

import (
	"context"
	"fmt"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
)

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Create inserts an audit entry.
func (r *AuditRepo) Create(ctx context.Context, entry *domain.AuditLog) error {
	query := `INSERT INTO audit_logs (id, team_slug, action, payment_id, http_status, correlation_id, ip_address, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.pool.Exec(ctx, query,
		entry.ID, entry.TeamSlug, entry.Action, entry.PaymentID,
		entry.HTTPStatus, entry.CorrelationID, entry.IPAddress, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}
