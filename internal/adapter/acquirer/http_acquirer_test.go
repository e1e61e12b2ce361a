package acquirer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL, APIKey: "test-key", Timeout: time.Second}, zerolog.Nop())
}

func TestClient_AuthorizeApproved(t *testing.T) {
	var got authorizeRequest
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/authorizations", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(authorizeResponse{Approved: true, TransactionID: "tx-9"})
	}))

	result, err := c.Authorize(context.Background(), ports.AuthorizeRequest{
		IdempotencyKey: "pay-1:3",
		PaymentID:      "pay-1",
		Amount:         10_000,
		Currency:       "RUB",
		CardNumber:     "4242424242424242",
		ExpDate:        "1230",
		CVV:            "123",
		PayType:        domain.PayTypeSingleStage,
	})
	require.NoError(t, err)
	assert.True(t, result.Approved)
	assert.Equal(t, "tx-9", result.AcquirerTxID)

	assert.Equal(t, "pay-1:3", got.IdempotencyKey)
	assert.True(t, got.Capture, "single stage requests capture")
}

func TestClient_AuthorizeDecline(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(authorizeResponse{Approved: false, DeclineReason: "stolen card"})
	}))

	result, err := c.Authorize(context.Background(), ports.AuthorizeRequest{PaymentID: "pay-1"})
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, "stolen card", result.Reason)
}

func TestClient_Authorize4xxIsDeclineNotOutage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		json.NewEncoder(w).Encode(map[string]string{"error": "unsupported card scheme"})
	}))

	result, err := c.Authorize(context.Background(), ports.AuthorizeRequest{PaymentID: "pay-1"})
	require.NoError(t, err)
	assert.False(t, result.Approved)
	assert.Equal(t, "unsupported card scheme", result.Reason)
}

func TestClient_ServerErrorIsUnavailable(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := c.Authorize(context.Background(), ports.AuthorizeRequest{PaymentID: "pay-1"})
	assert.ErrorIs(t, err, ports.ErrAcquirerUnavailable)
}

func TestClient_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := c.Authorize(ctx, ports.AuthorizeRequest{PaymentID: "pay-1"})
		assert.ErrorIs(t, err, ports.ErrAcquirerUnavailable)
	}
	seen := hits.Load()

	// The open breaker answers without touching the wire.
	_, err := c.Authorize(ctx, ports.AuthorizeRequest{PaymentID: "pay-1"})
	assert.ErrorIs(t, err, ports.ErrAcquirerUnavailable)
	assert.Equal(t, seen, hits.Load())
}

func TestClient_Operations(t *testing.T) {
	var paths []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		json.NewEncoder(w).Encode(operationResponse{})
	}))
	ctx := context.Background()

	require.NoError(t, c.Confirm(ctx, "k1", "pay-1", 10_000))
	require.NoError(t, c.Reverse(ctx, "k2", "pay-1"))
	require.NoError(t, c.Refund(ctx, "k3", "pay-1", 5_000))
	assert.Equal(t, []string{"/v1/captures", "/v1/reversals", "/v1/refunds"}, paths)
}

func TestClient_OperationBusinessError(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{"error": "already captured"})
	}))

	err := c.Confirm(context.Background(), "k1", "pay-1", 10_000)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ports.ErrAcquirerUnavailable)
	assert.Contains(t, err.Error(), "already captured")
}

var _ ports.CardAcquirer = (*Client)(nil)
