package handler

import (
	"html/template"
	"net/http"

	"github.com/hackload-kz/payment-sub010/internal/adapter/http/dto"
	"github.com/hackload-kz/payment-sub010/internal/service"
	"github.com/hackload-kz/payment-sub010/pkg/apperror"
	"github.com/hackload-kz/payment-sub010/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// PayHandler serves the hosted payment form: the page the customer lands on,
// the card submission endpoint and the 3-D Secure callback.
type PayHandler struct {
	lifecycle *service.LifecycleService
	log       zerolog.Logger
}

// NewPayHandler creates a PayHandler.
func NewPayHandler(lifecycle *service.LifecycleService, log zerolog.Logger) *PayHandler {
	return &PayHandler{lifecycle: lifecycle, log: log}
}

var formTemplate = template.Must(template.New("form").Parse(`<!DOCTYPE html>
<html>
<head><title>Payment {{.PaymentID}}</title></head>
<body>
<h1>Pay {{.Amount}} {{.Currency}}</h1>
<form method="POST" action="/pay/{{.PaymentID}}/submit">
<label>Card number <input name="CardNumber" autocomplete="cc-number"></label>
<label>Expiry (MMYY) <input name="ExpDate" autocomplete="cc-exp"></label>
<label>CVV <input name="CVV" type="password" autocomplete="cc-csc"></label>
<button type="submit">Pay</button>
</form>
</body>
</html>
`))

// ShowForm handles GET /pay/:id. Rendering the form moves the payment to
// FORM_SHOWED; repeat loads are tolerated.
func (h *PayHandler) ShowForm(c *gin.Context) {
	p, err := h.lifecycle.MarkFormShowed(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err, "")
		return
	}

	c.Header(response.HeaderCorrelationID, response.CorrelationID(c))
	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := formTemplate.Execute(c.Writer, gin.H{
		"PaymentID": p.PaymentID,
		"Amount":    p.Amount,
		"Currency":  p.Currency,
	}); err != nil {
		h.log.Error().Err(err).Str("payment_id", p.PaymentID).Msg("form render failed")
	}
}

// SubmitCard handles POST /pay/:id/submit from the hosted form. Card data is
// validated, handed to the authorization worker and discarded.
func (h *PayHandler) SubmitCard(c *gin.Context) {
	var req dto.SubmitCardRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, apperror.ErrValidation("malformed request body"), "")
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, err, "")
		return
	}

	p, err := h.lifecycle.SubmitCard(c.Request.Context(), service.SubmitCardParams{
		PaymentID:  c.Param("id"),
		CardNumber: req.CardNumber,
		ExpDate:    req.ExpDate,
		CVV:        req.CVV,
	})
	if err != nil {
		response.Error(c, err, "")
		return
	}

	response.OK(c, response.Envelope{
		Status:    string(p.Status),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
	})
}

// ThreeDSCallback handles POST /pay/:id/3ds, completing or failing the
// 3-D Secure challenge.
func (h *PayHandler) ThreeDSCallback(c *gin.Context) {
	var req dto.ThreeDSCallbackRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, apperror.ErrValidation("malformed request body"), "")
		return
	}

	p, err := h.lifecycle.Complete3DS(c.Request.Context(), c.Param("id"), req.Success)
	if err != nil {
		response.Error(c, err, "")
		return
	}

	response.OK(c, response.Envelope{
		Status:    string(p.Status),
		PaymentID: p.PaymentID,
		OrderID:   p.OrderID,
		Amount:    p.Amount,
	})
}
