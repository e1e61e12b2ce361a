package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Status represents the lifecycle state of a payment.
type Status string

const (
	StatusInit            Status = "INIT"
	StatusNew             Status = "NEW"
	StatusFormShowed      Status = "FORM_SHOWED"
	StatusAuthorizing     Status = "AUTHORIZING"
	Status3DSChecking     Status = "3DS_CHECKING"
	Status3DSChecked      Status = "3DS_CHECKED"
	StatusAuthorized      Status = "AUTHORIZED"
	StatusAuthFail        Status = "AUTH_FAIL"
	StatusConfirming      Status = "CONFIRMING"
	StatusConfirmed       Status = "CONFIRMED"
	StatusCancelling      Status = "CANCELLING"
	StatusCancelled       Status = "CANCELLED"
	StatusReversing       Status = "REVERSING"
	StatusReversed        Status = "REVERSED"
	StatusRefunding       Status = "REFUNDING"
	StatusRefunded        Status = "REFUNDED"
	StatusPartialRefunded Status = "PARTIAL_REFUNDED"
	StatusRejected        Status = "REJECTED"
	StatusDeadlineExpired Status = "DEADLINE_EXPIRED"
	StatusFailed          Status = "FAILED"
)

// PayType selects the capture mode of a payment.
type PayType string

const (
	PayTypeSingleStage PayType = "O" // authorize and capture atomically
	PayTypeTwoStage    PayType = "T" // authorize now, capture via Confirm
)

// Payment is the central entity of the gateway. The amount never changes
// after creation; the status moves only through the state machine, and every
// move increments Version.
type Payment struct {
	ID              uuid.UUID       `json:"id"`
	PaymentID       string          `json:"payment_id"` // external id, <=20 printable chars
	TeamSlug        string          `json:"team_slug"`
	OrderID         string          `json:"order_id"` // merchant-supplied, unique with TeamSlug
	Amount          int64           `json:"amount"`   // minor units
	RefundedAmount  int64           `json:"refunded_amount"`
	Currency        string          `json:"currency"`
	PayType         PayType         `json:"pay_type"`
	Status          Status          `json:"status"`
	SuccessURL      string          `json:"success_url,omitempty"`
	FailURL         string          `json:"fail_url,omitempty"`
	NotificationURL string          `json:"notification_url,omitempty"`
	CustomerEmail   *string         `json:"customer_email,omitempty"`
	CustomerPhone   *string         `json:"customer_phone,omitempty"`
	Receipt         json.RawMessage `json:"receipt,omitempty"` // opaque fiscal blob
	MaskedPan       string          `json:"masked_pan,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ExpiresAt       time.Time       `json:"expires_at"`
	AuthorizedAt    *time.Time      `json:"authorized_at,omitempty"`
	ConfirmedAt     *time.Time      `json:"confirmed_at,omitempty"`
	CancelledAt     *time.Time      `json:"cancelled_at,omitempty"`
	Version         int64           `json:"version"`
}

// DefaultCurrency is applied when the merchant omits one.
const DefaultCurrency = "RUB"

// MaxPaymentIDLen bounds the external payment identifier.
const MaxPaymentIDLen = 20

// MaxOrderIDLen bounds the merchant-supplied order identifier.
const MaxOrderIDLen = 36

// terminalStatuses is the set of states a payment never leaves.
var terminalStatuses = map[Status]struct{}{
	StatusConfirmed:       {},
	StatusCancelled:       {},
	StatusReversed:        {},
	StatusRefunded:        {},
	StatusAuthFail:        {},
	StatusRejected:        {},
	StatusDeadlineExpired: {},
	StatusFailed:          {},
}

// IsTerminal reports whether the payment can no longer change state.
func (p *Payment) IsTerminal() bool {
	_, ok := terminalStatuses[p.Status]
	return ok
}

// IsExpired reports whether the payment deadline has passed.
func (p *Payment) IsExpired(now time.Time) bool {
	return !p.ExpiresAt.IsZero() && now.After(p.ExpiresAt)
}

// RemainingRefundable returns the amount still refundable on a captured payment.
func (p *Payment) RemainingRefundable() int64 {
	return p.Amount - p.RefundedAmount
}

// IsTerminalStatus reports whether s is terminal without a Payment value.
func IsTerminalStatus(s Status) bool {
	_, ok := terminalStatuses[s]
	return ok
}

// MaskPAN reduces a card number to first 6 + "*" + last 4. Anything shorter
// than 10 digits is fully masked; the full PAN must never leave this function.
func MaskPAN(pan string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, pan)
	if len(digits) < 10 {
		return strings.Repeat("*", len(digits))
	}
	return digits[:6] + "*" + digits[len(digits)-4:]
}
