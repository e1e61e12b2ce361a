package domain

import (
	"time"

	"github.com/google/uuid"
)

// WebhookDelivery is a pending or completed notification about a payment
// state change. Deliveries are at-least-once; Terminal marks exhausted ones.
type WebhookDelivery struct {
	ID            uuid.UUID  `json:"id"`
	PaymentRef    uuid.UUID  `json:"payment_ref"`
	TeamSlug      string     `json:"team_slug"`
	URL           string     `json:"url"`
	Payload       []byte     `json:"payload"` // signed JSON event body
	Attempts      int        `json:"attempts"`
	NextAttemptAt time.Time  `json:"next_attempt_at"`
	EventAt       time.Time  `json:"event_at"` // state-change timestamp, orders per-payment deliveries
	Delivered     bool       `json:"delivered"`
	Terminal      bool       `json:"terminal"`
	LastError     *string    `json:"last_error,omitempty"`
	LastHTTPCode  *int       `json:"last_http_code,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
}
