// Package webhook delivers signed state-change notifications to merchant
// endpoints.
package webhook

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// HTTPSender implements ports.WebhookSender over plain HTTP POST. Retry
// scheduling lives in the dispatch loop; one Send is one attempt.
type HTTPSender struct {
	http *resty.Client
	log  zerolog.Logger
}

// NewHTTPSender creates a sender with the given per-attempt timeout.
func NewHTTPSender(timeout time.Duration, log zerolog.Logger) *HTTPSender {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetRetryCount(0) // the dispatch loop owns retries
	return &HTTPSender{http: client, log: log}
}

// Send posts the payload and returns the merchant's HTTP status code.
func (s *HTTPSender) Send(ctx context.Context, url string, payload []byte) (int, error) {
	resp, err := s.http.R().
		SetContext(ctx).
		SetBody(payload).
		Post(url)
	if err != nil {
		return 0, fmt.Errorf("posting webhook to %s: %w", url, err)
	}
	return resp.StatusCode(), nil
}
