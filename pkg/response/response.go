package response

import (
	"errors"
	"net/http"

	"github.com/hackload-kz/payment-sub010/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxCorrelationID is the gin context key under which middleware stores the
// request correlation id.
const CtxCorrelationID = "correlation_id"

// HeaderCorrelationID echoes the correlation id back to the caller.
const HeaderCorrelationID = "X-Correlation-Id"

// Envelope is the shared response body for all payment API endpoints.
// ErrorCode "0" means success. Payment fields are present when known.
type Envelope struct {
	Success    bool   `json:"Success"`
	Status     string `json:"Status,omitempty"`
	ErrorCode  string `json:"ErrorCode"`
	Message    string `json:"Message,omitempty"`
	Details    string `json:"Details,omitempty"`
	PaymentID  string `json:"PaymentId,omitempty"`
	OrderID    string `json:"OrderId,omitempty"`
	Amount     int64  `json:"Amount,omitempty"`
	PaymentURL string `json:"PaymentURL,omitempty"`
}

// OK sends a 200 envelope with ErrorCode "0".
func OK(c *gin.Context, env Envelope) {
	env.Success = true
	env.ErrorCode = "0"
	c.Header(HeaderCorrelationID, CorrelationID(c))
	c.JSON(http.StatusOK, env)
}

// Error sends an error envelope. AppError values carry their own HTTP status
// and protocol code; anything else becomes a 999 internal error. The payment
// status, when known to the caller, is reported so clients can see which
// state blocked the operation.
func Error(c *gin.Context, err error, paymentStatus string) {
	cid := CorrelationID(c)
	c.Header(HeaderCorrelationID, cid)

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, Envelope{
			Success:   false,
			Status:    paymentStatus,
			ErrorCode: appErr.Code,
			Message:   appErr.Message,
			Details:   "correlation_id=" + cid,
		})
		return
	}

	c.JSON(http.StatusInternalServerError, Envelope{
		Success:   false,
		Status:    paymentStatus,
		ErrorCode: "999",
		Message:   "Internal error",
		Details:   "correlation_id=" + cid,
	})
}

// CorrelationID retrieves the request correlation id, generating one if the
// middleware has not run (direct handler tests).
func CorrelationID(c *gin.Context) string {
	if id, exists := c.Get(CtxCorrelationID); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	id := uuid.New().String()
	c.Set(CtxCorrelationID, id)
	return id
}
