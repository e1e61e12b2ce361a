package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSingleStagePurchase(t *testing.T) {
	g := newGateway(t)

	env := g.initPayment(t, "O1", 15000, "O")
	assert.True(t, env.Success)
	assert.Equal(t, "0", env.ErrorCode)
	assert.Equal(t, "NEW", env.Status)
	assert.Equal(t, "O1", env.OrderID)
	assert.Equal(t, int64(15000), env.Amount)
	assert.Equal(t, publicBaseURL+"/pay/"+env.PaymentID, env.PaymentURL)

	g.payCard(t, env.PaymentID)
	assert.Equal(t, "CONFIRMED", g.paymentStatus(t, env.PaymentID))

	// The trail walks the state machine: card submission authorizes, then the
	// single-stage capture runs without a merchant confirm call.
	path := g.statusTrail(t, env.PaymentID)
	assert.True(t, domain.ValidPath(path), "trail %v breaks the state machine", path)
	assert.Equal(t, domain.StatusConfirmed, path[len(path)-1])
	assert.Contains(t, path, domain.StatusAuthorizing)
	assert.Contains(t, path, domain.StatusAuthorized)
	assert.Contains(t, path, domain.StatusConfirming)
}

func TestTwoStagePartialCapture(t *testing.T) {
	g := newGateway(t)

	env := g.initPayment(t, "order-hold", 200000, "T")
	g.payCard(t, env.PaymentID)
	require.Equal(t, "AUTHORIZED", g.paymentStatus(t, env.PaymentID))

	w, cenv := g.postSigned(t, "/api/payment/confirm", map[string]any{
		"TeamSlug":  merchantSlug,
		"PaymentId": env.PaymentID,
		"Amount":    150000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "CONFIRMED", cenv.Status)
	assert.Equal(t, int64(150000), cenv.Amount, "captured amount replaces the hold")

	// The uncaptured remainder was released with the partial capture; a second
	// confirm for it has no hold to act on.
	w, cenv = g.postSigned(t, "/api/payment/confirm", map[string]any{
		"TeamSlug":  merchantSlug,
		"PaymentId": env.PaymentID,
		"Amount":    50000,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, cenv.Success)
	assert.Equal(t, "1003", cenv.ErrorCode)
	assert.Equal(t, "CONFIRMED", cenv.Status)
}

func TestConfirmBeforeAuthorization(t *testing.T) {
	g := newGateway(t)
	env := g.initPayment(t, "order-early", 15000, "T")

	w, cenv := g.postSigned(t, "/api/payment/confirm", map[string]any{
		"TeamSlug":  merchantSlug,
		"PaymentId": env.PaymentID,
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.False(t, cenv.Success)
	assert.Equal(t, "1003", cenv.ErrorCode)
	assert.Equal(t, "NEW", cenv.Status, "error envelope names the blocking status")
}

func TestTamperedRequestRejected(t *testing.T) {
	g := newGateway(t)

	params := g.signParams(map[string]any{
		"TeamSlug": merchantSlug,
		"OrderId":  "order-tampered",
		"Amount":   15000,
		"Currency": "RUB",
	})
	params["Amount"] = 1

	w, env := g.postJSON(t, "/api/payment/init", params)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.False(t, env.Success)
	assert.Equal(t, "204", env.ErrorCode)

	// Nothing was created under the tampered order.
	w, env = g.postSigned(t, "/api/payment/status", map[string]any{
		"TeamSlug": merchantSlug,
		"OrderId":  "order-tampered",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "254", env.ErrorCode)
}

func TestAmountOutsideMerchantLimits(t *testing.T) {
	g := newGateway(t)

	w, env := g.postSigned(t, "/api/payment/init", map[string]any{
		"TeamSlug": merchantSlug,
		"OrderId":  "order-small",
		"Amount":   999,
		"Currency": "RUB",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "251", env.ErrorCode)

	// The boundary itself is accepted.
	env = g.initPayment(t, "order-minimum", 1000, "O")
	assert.Equal(t, "NEW", env.Status)
}

func TestRefundAfterCapture(t *testing.T) {
	g := newGateway(t)

	env := g.initPayment(t, "order-refund", 15000, "O")
	g.payCard(t, env.PaymentID)
	require.Equal(t, "CONFIRMED", g.paymentStatus(t, env.PaymentID))

	w, renv := g.postSigned(t, "/api/payment/refund", map[string]any{
		"TeamSlug":  merchantSlug,
		"PaymentId": env.PaymentID,
		"Amount":    5000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "PARTIAL_REFUNDED", renv.Status)
	assert.Equal(t, int64(10000), renv.Amount, "envelope reports the remaining balance")

	w, renv = g.postSigned(t, "/api/payment/refund", map[string]any{
		"TeamSlug":  merchantSlug,
		"PaymentId": env.PaymentID,
		"Amount":    10000,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "REFUNDED", renv.Status)
	assert.Equal(t, int64(0), renv.Amount)
}

func TestWebhookDelivery(t *testing.T) {
	g := newGateway(t)

	env := g.initPayment(t, "order-hook", 15000, "O")
	g.payCard(t, env.PaymentID)
	require.Equal(t, "CONFIRMED", g.paymentStatus(t, env.PaymentID))

	// AUTHORIZED and CONFIRMED are merchant-visible; processing states are not.
	delivered := g.hooks.DispatchDue(context.Background())
	require.Equal(t, 2, delivered)

	urls, payloads := g.sender.sent()
	require.Len(t, payloads, 2)
	assert.Equal(t, notificationURL, urls[0])

	var event service.WebhookEvent
	require.NoError(t, json.Unmarshal(payloads[1], &event))
	assert.Equal(t, env.PaymentID, event.PaymentID)
	assert.Equal(t, "order-hook", event.OrderID)
	assert.Equal(t, merchantSlug, event.TeamSlug)
	assert.Equal(t, domain.StatusConfirmed, event.Status)
	assert.Equal(t, int64(15000), event.Amount)

	// The merchant verifies the payload with its own password hash, exactly
	// like it signs requests.
	var fields map[string]any
	require.NoError(t, json.Unmarshal(payloads[1], &fields))
	assert.True(t, service.NewSHA256TokenService().Verify(fields, event.Token, g.hash))

	for _, d := range g.webhooks.snapshot() {
		assert.True(t, d.Delivered)
		assert.Equal(t, 1, d.Attempts)
	}
}

func TestWebhookRetryOnFailure(t *testing.T) {
	g := newGateway(t)
	g.sender.code = http.StatusBadGateway

	env := g.initPayment(t, "order-retry", 15000, "O")
	g.payCard(t, env.PaymentID)

	assert.Equal(t, 0, g.hooks.DispatchDue(context.Background()))
	for _, d := range g.webhooks.snapshot() {
		assert.False(t, d.Delivered)
		assert.Equal(t, 1, d.Attempts)
		assert.False(t, d.Terminal)
		require.NotNil(t, d.LastHTTPCode)
		assert.Equal(t, http.StatusBadGateway, *d.LastHTTPCode)
	}

	// Failed deliveries back off; an immediate second pass picks up nothing.
	assert.Equal(t, 0, g.hooks.DispatchDue(context.Background()))
	urls, _ := g.sender.sent()
	assert.Len(t, urls, 2)
}
