package dto

import (
	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/pkg/apperror"
)

// Validate checks protocol-level requirements. Merchant limits and currency
// support are enforced by the lifecycle service, which knows the team.
func (r *InitRequest) Validate() error {
	if r.Amount <= 0 {
		return apperror.ErrMissingField("Amount")
	}
	if r.OrderID == "" {
		return apperror.ErrMissingField("OrderId")
	}
	if len(r.OrderID) > domain.MaxOrderIDLen {
		return apperror.ErrValidation("OrderId exceeds maximum length")
	}
	switch r.PayType {
	case "", string(domain.PayTypeSingleStage), string(domain.PayTypeTwoStage):
	default:
		return apperror.ErrValidation("PayType must be O or T")
	}
	if r.Currency != "" && len(r.Currency) != 3 {
		return apperror.ErrValidation("Currency must be a 3-letter ISO 4217 code")
	}
	return nil
}

func (r *ConfirmRequest) Validate() error {
	if r.PaymentID == "" {
		return apperror.ErrMissingField("PaymentId")
	}
	if r.Amount != nil && *r.Amount <= 0 {
		return apperror.ErrValidation("Amount must be a positive number of minor units")
	}
	return nil
}

func (r *CancelRequest) Validate() error {
	if r.PaymentID == "" {
		return apperror.ErrMissingField("PaymentId")
	}
	return nil
}

func (r *RefundRequest) Validate() error {
	if r.PaymentID == "" {
		return apperror.ErrMissingField("PaymentId")
	}
	if r.Amount <= 0 {
		return apperror.ErrMissingField("Amount")
	}
	return nil
}

// Validate requires at least one lookup key.
func (r *StatusRequest) Validate() error {
	if r.PaymentID == "" && r.OrderID == "" {
		return apperror.ErrMissingField("PaymentId")
	}
	return nil
}

func (r *SubmitCardRequest) Validate() error {
	if r.CardNumber == "" {
		return apperror.ErrMissingField("CardNumber")
	}
	if r.ExpDate == "" {
		return apperror.ErrMissingField("ExpDate")
	}
	if r.CVV == "" {
		return apperror.ErrMissingField("CVV")
	}
	return nil
}

func (r *RegisterTeamRequest) Validate() error {
	if r.TeamSlug == "" {
		return apperror.ErrMissingField("TeamSlug")
	}
	if r.Password == "" {
		return apperror.ErrMissingField("Password")
	}
	return nil
}
