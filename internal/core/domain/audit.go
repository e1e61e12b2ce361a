package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited API action.
type AuditAction string

const (
	AuditActionInit     AuditAction = "INIT"
	AuditActionConfirm  AuditAction = "CONFIRM"
	AuditActionCancel   AuditAction = "CANCEL"
	AuditActionRefund   AuditAction = "REFUND"
	AuditActionStatus   AuditAction = "STATUS"
	AuditActionRegister AuditAction = "TEAM_REGISTER"
)

// AuditLog records a single audited API call.
type AuditLog struct {
	ID            uuid.UUID   `json:"id"`
	TeamSlug      string      `json:"team_slug,omitempty"`
	Action        AuditAction `json:"action"`
	PaymentID     string      `json:"payment_id,omitempty"`
	HTTPStatus    int         `json:"http_status"`
	CorrelationID string      `json:"correlation_id"`
	IPAddress     string      `json:"ip_address"`
	CreatedAt     time.Time   `json:"created_at"`
}
