package middleware

import (
	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/service"
	"github.com/hackload-kz/payment-sub010/pkg/response"

	"github.com/gin-gonic/gin"
)

// CtxAuditPaymentID lets handlers attach the affected payment id to the
// audit entry once it is known.
const CtxAuditPaymentID = "audit_payment_id"

// AuditLog records every payment API call after the handler responds,
// including rejected ones. Reads of unauthenticated routes are skipped.
func AuditLog(audit *service.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		action := mapPathToAction(c.Request.URL.Path)
		if action == "" {
			return
		}

		teamSlug := ""
		if team := TeamFromContext(c); team != nil {
			teamSlug = team.Slug
		}

		audit.Record(c.Request.Context(), service.RecordParams{
			TeamSlug:      teamSlug,
			Action:        action,
			PaymentID:     c.GetString(CtxAuditPaymentID),
			HTTPStatus:    c.Writer.Status(),
			CorrelationID: response.CorrelationID(c),
			IPAddress:     c.ClientIP(),
		})
	}
}

func mapPathToAction(path string) domain.AuditAction {
	switch path {
	case "/api/payment/init":
		return domain.AuditActionInit
	case "/api/payment/confirm":
		return domain.AuditActionConfirm
	case "/api/payment/cancel":
		return domain.AuditActionCancel
	case "/api/payment/refund":
		return domain.AuditActionRefund
	case "/api/payment/status":
		return domain.AuditActionStatus
	case "/api/team/register":
		return domain.AuditActionRegister
	}
	return ""
}
