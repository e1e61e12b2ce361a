package domain

import (
	"time"

	"github.com/google/uuid"
)

// Actor identifies who caused a state transition.
type Actor string

const (
	ActorSystem   Actor = "SYSTEM"
	ActorMerchant Actor = "MERCHANT"
	ActorAcquirer Actor = "ACQUIRER"
)

// PaymentTransition is an append-only audit record of one status change.
// Rows for a payment form a legal path through the state machine with
// strictly increasing timestamps; they are never updated or deleted.
type PaymentTransition struct {
	ID            uuid.UUID `json:"id"`
	PaymentRef    uuid.UUID `json:"payment_ref"` // internal payment id
	FromStatus    Status    `json:"from_status"`
	ToStatus      Status    `json:"to_status"`
	Actor         Actor     `json:"actor"`
	Reason        string    `json:"reason,omitempty"`
	CorrelationID string    `json:"correlation_id"`
	CreatedAt     time.Time `json:"created_at"`
}
