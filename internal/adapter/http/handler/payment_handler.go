// Package handler exposes the payment API over gin.
package handler

import (
	"github.com/hackload-kz/payment-sub010/internal/adapter/http/dto"
	"github.com/hackload-kz/payment-sub010/internal/adapter/http/middleware"
	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/service"
	"github.com/hackload-kz/payment-sub010/pkg/apperror"
	"github.com/hackload-kz/payment-sub010/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PaymentHandler serves the merchant-facing payment operations.
type PaymentHandler struct {
	lifecycle *service.LifecycleService
	log       zerolog.Logger
}

// NewPaymentHandler creates a PaymentHandler.
func NewPaymentHandler(lifecycle *service.LifecycleService, log zerolog.Logger) *PaymentHandler {
	return &PaymentHandler{lifecycle: lifecycle, log: log}
}

// Init handles POST /api/payment/init.
func (h *PaymentHandler) Init(c *gin.Context) {
	team := middleware.TeamFromContext(c)

	var req dto.InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrValidation("malformed request body"), "")
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err, "")
		return
	}

	p, err := h.lifecycle.Init(c.Request.Context(), service.InitParams{
		Team:            team,
		OrderID:         req.OrderID,
		Amount:          req.Amount,
		Currency:        req.Currency,
		PayType:         domain.PayType(req.PayType),
		Description:     req.Description,
		SuccessURL:      req.SuccessURL,
		FailURL:         req.FailURL,
		NotificationURL: req.NotificationURL,
		CustomerEmail:   req.Email,
		CustomerPhone:   req.Phone,
		Receipt:         req.Receipt,
	})
	if err != nil {
		response.Error(c, err, "")
		return
	}

	c.Set(middleware.CtxAuditPaymentID, p.PaymentID)
	response.OK(c, response.Envelope{
		Status:     string(p.Status),
		PaymentID:  p.PaymentID,
		OrderID:    p.OrderID,
		Amount:     p.Amount,
		PaymentURL: h.lifecycle.PaymentURL(p),
	})
}

// Confirm handles POST /api/payment/confirm.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	team := middleware.TeamFromContext(c)

	var req dto.ConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrValidation("malformed request body"), "")
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err, "")
		return
	}
	c.Set(middleware.CtxAuditPaymentID, req.PaymentID)

	p, err := h.lifecycle.Confirm(c.Request.Context(), team, req.PaymentID, req.Amount)
	if err != nil {
		response.Error(c, err, h.currentStatus(c, team, req.PaymentID))
		return
	}

	response.OK(c, response.Envelope{
		Status:    string(p.Status),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
	})
}

// Cancel handles POST /api/payment/cancel. The resulting state depends on
// how far the payment had progressed.
func (h *PaymentHandler) Cancel(c *gin.Context) {
	team := middleware.TeamFromContext(c)

	var req dto.CancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrValidation("malformed request body"), "")
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err, "")
		return
	}
	c.Set(middleware.CtxAuditPaymentID, req.PaymentID)

	p, err := h.lifecycle.Cancel(c.Request.Context(), team, req.PaymentID)
	if err != nil {
		response.Error(c, err, h.currentStatus(c, team, req.PaymentID))
		return
	}

	response.OK(c, response.Envelope{
		Status:    string(p.Status),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
	})
}

// Refund handles POST /api/payment/refund.
func (h *PaymentHandler) Refund(c *gin.Context) {
	team := middleware.TeamFromContext(c)

	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrValidation("malformed request body"), "")
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err, "")
		return
	}
	c.Set(middleware.CtxAuditPaymentID, req.PaymentID)

	p, err := h.lifecycle.Refund(c.Request.Context(), team, req.PaymentID, req.Amount)
	if err != nil {
		response.Error(c, err, h.currentStatus(c, team, req.PaymentID))
		return
	}

	response.OK(c, response.Envelope{
		Status:    string(p.Status),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Amount:    p.Amount - p.RefundedAmount,
	})
}

// Status handles POST /api/payment/status, looking up by PaymentId first and
// by OrderId when no PaymentId was sent.
func (h *PaymentHandler) Status(c *gin.Context) {
	team := middleware.TeamFromContext(c)

	var req dto.StatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.ErrValidation("malformed request body"), "")
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err, "")
		return
	}

	var (
		p   *domain.Payment
		err error
	)
	if req.PaymentID != "" {
		p, err = h.lifecycle.Status(c.Request.Context(), team, req.PaymentID)
	} else {
		p, err = h.lifecycle.StatusByOrder(c.Request.Context(), team, req.OrderID)
	}
	if err != nil {
		response.Error(c, err, "")
		return
	}

	c.Set(middleware.CtxAuditPaymentID, p.PaymentID)
	response.OK(c, response.Envelope{
		Status:    string(p.Status),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
	})
}

// currentStatus best-effort reads the payment's state so error envelopes can
// report which status blocked the operation. Empty when unknown.
func (h *PaymentHandler) currentStatus(c *gin.Context, team *domain.Team, paymentID string) string {
	p, err := h.lifecycle.Status(c.Request.Context(), team, paymentID)
	if err != nil || p == nil {
		return ""
	}
	return string(p.Status)
}
