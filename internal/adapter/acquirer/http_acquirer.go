// Package acquirer adapts the external card processor behind the
// ports.CardAcquirer interface.
package acquirer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hackload-kz/payment-sub010/internal/core/domain"
	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// Config holds the processor endpoint settings.
type Config struct {
	BaseURL        string
	APIKey         string
	Timeout        time.Duration
	BreakerTimeout time.Duration // open-state duration before a probe
}

// Client talks to the processor's REST API. A circuit breaker sits in front
// of every call: once the processor looks down, requests fail fast as
// ports.ErrAcquirerUnavailable instead of tying up workers in timeouts.
type Client struct {
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	log     zerolog.Logger
}

// NewClient creates the processor client.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetAuthToken(cfg.APIKey)
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "acquirer",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("acquirer breaker state change")
		},
	})

	return &Client{http: httpClient, breaker: breaker, log: log}
}

type authorizeRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	PaymentID      string `json:"payment_id"`
	Amount         int64  `json:"amount"`
	Currency       string `json:"currency"`
	CardNumber     string `json:"card_number,omitempty"`
	ExpDate        string `json:"exp_date,omitempty"`
	CVV            string `json:"cvv,omitempty"`
	Capture        bool   `json:"capture"`
}

type authorizeResponse struct {
	Approved        bool   `json:"approved"`
	ThreeDSRequired bool   `json:"three_ds_required"`
	TransactionID   string `json:"transaction_id"`
	DeclineReason   string `json:"decline_reason"`
	Error           string `json:"error"`
}

type operationRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	PaymentID      string `json:"payment_id"`
	Amount         int64  `json:"amount,omitempty"`
}

type operationResponse struct {
	Error string `json:"error"`
}

// Authorize places a hold (or a capture for single-stage) on the card.
func (c *Client) Authorize(ctx context.Context, req ports.AuthorizeRequest) (*ports.AuthorizeResult, error) {
	body := authorizeRequest{
		IdempotencyKey: req.IdempotencyKey,
		PaymentID:      req.PaymentID,
		Amount:         req.Amount,
		Currency:       req.Currency,
		CardNumber:     req.CardNumber,
		ExpDate:        req.ExpDate,
		CVV:            req.CVV,
		Capture:        req.PayType == domain.PayTypeSingleStage,
	}

	var out authorizeResponse
	resp, err := c.post(ctx, "/v1/authorizations", body, &out)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		// A business decline, not an outage.
		reason := out.Error
		if reason == "" {
			reason = fmt.Sprintf("processor returned %d", resp.StatusCode())
		}
		return &ports.AuthorizeResult{Approved: false, Reason: reason}, nil
	}
	return &ports.AuthorizeResult{
		Approved:        out.Approved,
		RequiresThreeDS: out.ThreeDSRequired,
		AcquirerTxID:    out.TransactionID,
		Reason:          out.DeclineReason,
	}, nil
}

// Confirm captures a previously authorized amount.
func (c *Client) Confirm(ctx context.Context, idempotencyKey, paymentID string, amount int64) error {
	return c.operation(ctx, "/v1/captures", idempotencyKey, paymentID, amount)
}

// Reverse releases an uncaptured hold.
func (c *Client) Reverse(ctx context.Context, idempotencyKey, paymentID string) error {
	return c.operation(ctx, "/v1/reversals", idempotencyKey, paymentID, 0)
}

// Refund returns captured funds.
func (c *Client) Refund(ctx context.Context, idempotencyKey, paymentID string, amount int64) error {
	return c.operation(ctx, "/v1/refunds", idempotencyKey, paymentID, amount)
}

func (c *Client) operation(ctx context.Context, path, idempotencyKey, paymentID string, amount int64) error {
	var out operationResponse
	resp, err := c.post(ctx, path, operationRequest{
		IdempotencyKey: idempotencyKey,
		PaymentID:      paymentID,
		Amount:         amount,
	}, &out)
	if err != nil {
		return err
	}
	if resp.IsError() {
		if out.Error != "" {
			return errors.New(out.Error)
		}
		return fmt.Errorf("processor returned %d", resp.StatusCode())
	}
	return nil
}

// post runs one request through the breaker. Transport errors, 5xx answers
// and an open breaker all surface as ports.ErrAcquirerUnavailable.
func (c *Client) post(ctx context.Context, path string, body, out any) (*resty.Response, error) {
	result, err := c.breaker.Execute(func() (any, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(body).
			SetResult(out).
			SetError(out).
			Post(path)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= 500 {
			return nil, fmt.Errorf("processor returned %d", resp.StatusCode())
		}
		return resp, nil
	})
	if err != nil {
		c.log.Warn().Err(err).Str("path", path).Msg("acquirer call failed")
		return nil, fmt.Errorf("%w: %v", ports.ErrAcquirerUnavailable, err)
	}
	return result.(*resty.Response), nil
}
