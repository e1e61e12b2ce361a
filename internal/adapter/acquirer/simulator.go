package acquirer

import (
	"context"
	"strings"
	"sync"

	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/google/uuid"
)

// Simulator is a deterministic in-process acquirer for development and load
// testing. The card number selects the outcome:
//
//	ending 0002  -> declined
//	ending 3220  -> 3-D Secure challenge
//	anything else -> approved
//
// Repeated calls with the same idempotency key replay the first answer.
type Simulator struct {
	mu      sync.Mutex
	results map[string]*ports.AuthorizeResult
	// pending3DS remembers challenged payments so the post-3DS replay approves.
	pending3DS map[string]bool
}

// NewSimulator creates an empty simulator.
func NewSimulator() *Simulator {
	return &Simulator{
		results:    make(map[string]*ports.AuthorizeResult),
		pending3DS: make(map[string]bool),
	}
}

func (s *Simulator) Authorize(ctx context.Context, req ports.AuthorizeRequest) (*ports.AuthorizeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.results[req.IdempotencyKey]; ok {
		return prev, nil
	}

	var result *ports.AuthorizeResult
	switch {
	case strings.HasSuffix(req.CardNumber, "0002"):
		result = &ports.AuthorizeResult{Approved: false, Reason: "insufficient funds"}
	case strings.HasSuffix(req.CardNumber, "3220"):
		result = &ports.AuthorizeResult{RequiresThreeDS: true}
		s.pending3DS[req.PaymentID] = true
	case req.CardNumber == "" && s.pending3DS[req.PaymentID]:
		// Post-challenge replay carries no card data.
		delete(s.pending3DS, req.PaymentID)
		result = &ports.AuthorizeResult{Approved: true, AcquirerTxID: uuid.NewString()}
	default:
		result = &ports.AuthorizeResult{Approved: true, AcquirerTxID: uuid.NewString()}
	}

	s.results[req.IdempotencyKey] = result
	return result, nil
}

func (s *Simulator) Confirm(ctx context.Context, idempotencyKey, paymentID string, amount int64) error {
	return nil
}

func (s *Simulator) Reverse(ctx context.Context, idempotencyKey, paymentID string) error {
	return nil
}

func (s *Simulator) Refund(ctx context.Context, idempotencyKey, paymentID string, amount int64) error {
	return nil
}

var _ ports.CardAcquirer = (*Simulator)(nil)
