package service

import (
	"context"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AuditService records audited API calls. Writes are fire-and-forget from
// the request's point of view: a failed audit insert is logged, never
// surfaced to the caller.
type AuditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates an AuditService.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditService {
	return &AuditService{repo: repo, log: log}
}

// RecordParams describes one audited call.
type RecordParams struct {
	TeamSlug      string
	Action        domain.AuditAction
	PaymentID     string
	HTTPStatus    int
	CorrelationID string
	IPAddress     string
}

// Record persists one audit entry.
func (s *AuditService) Record(ctx context.Context, p RecordParams) {
	entry := &domain.AuditLog{
		ID:            uuid.New(),
		TeamSlug:      p.TeamSlug,
		Action:        p.Action,
		PaymentID:     p.PaymentID,
		HTTPStatus:    p.HTTPStatus,
		CorrelationID: p.CorrelationID,
		IPAddress:     p.IPAddress,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, entry); err != nil {
		s.log.Error().Err(err).
			Str("action", string(p.Action)).
			Str("team_slug", p.TeamSlug).
			Msg("audit entry not recorded")
	}
}
