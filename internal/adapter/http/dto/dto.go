// Package dto defines the wire-level request shapes of the acquiring
// protocol. Field names follow the protocol's PascalCase casing; the
// response envelope lives in pkg/response.
package dto

import "encoding/json"

// InitRequest creates a new payment session.
type InitRequest struct {
	TeamSlug        string          `json:"TeamSlug"`
	Token           string          `json:"Token"`
	Amount          int64           `json:"Amount"`
	OrderID         string          `json:"OrderId"`
	Currency        string          `json:"Currency"`
	PayType         string          `json:"PayType"` // "O" single-stage, "T" two-stage
	Description     string          `json:"Description"`
	SuccessURL      string          `json:"SuccessURL"`
	FailURL         string          `json:"FailURL"`
	NotificationURL string          `json:"NotificationURL"`
	Email           *string         `json:"Email"`
	Phone           *string         `json:"Phone"`
	Receipt         json.RawMessage `json:"Receipt"` // opaque fiscal data, stored as-is
}

// ConfirmRequest captures an authorized two-stage payment. Amount, when
// present, may be at most the authorized amount; a lesser value is a partial
// capture and releases the remainder of the hold.
type ConfirmRequest struct {
	TeamSlug  string `json:"TeamSlug"`
	Token     string `json:"Token"`
	PaymentID string `json:"PaymentId"`
	Amount    *int64 `json:"Amount"`
}

// CancelRequest voids, reverses or refunds a payment depending on its state.
type CancelRequest struct {
	TeamSlug  string `json:"TeamSlug"`
	Token     string `json:"Token"`
	PaymentID string `json:"PaymentId"`
}

// RefundRequest returns part or all of a confirmed payment.
type RefundRequest struct {
	TeamSlug  string `json:"TeamSlug"`
	Token     string `json:"Token"`
	PaymentID string `json:"PaymentId"`
	Amount    int64  `json:"Amount"`
}

// StatusRequest looks a payment up by PaymentId or, failing that, OrderId.
type StatusRequest struct {
	TeamSlug  string `json:"TeamSlug"`
	Token     string `json:"Token"`
	PaymentID string `json:"PaymentId"`
	OrderID   string `json:"OrderId"`
}

// SubmitCardRequest carries card data from the hosted payment form. Card
// fields are validated, used for the authorization call and never stored.
type SubmitCardRequest struct {
	CardNumber string `json:"CardNumber" form:"CardNumber"`
	ExpDate    string `json:"ExpDate" form:"ExpDate"` // MMYY
	CVV        string `json:"CVV" form:"CVV"`
}

// ThreeDSCallbackRequest reports the 3-D Secure challenge outcome.
type ThreeDSCallbackRequest struct {
	Success bool `json:"Success" form:"Success"`
}

// RegisterTeamRequest creates a merchant via the admin API.
type RegisterTeamRequest struct {
	TeamSlug        string   `json:"TeamSlug"`
	Password        string   `json:"Password"`
	SuccessURL      string   `json:"SuccessURL"`
	FailURL         string   `json:"FailURL"`
	NotificationURL string   `json:"NotificationURL"`
	Currencies      []string `json:"Currencies"`
	MinAmount       int64    `json:"MinAmount"`
	MaxAmount       int64    `json:"MaxAmount"`
	DailyLimit      int64    `json:"DailyLimit"`
}

// AdminLoginRequest exchanges the admin password for a bearer token.
type AdminLoginRequest struct {
	Password string `json:"Password"`
}
