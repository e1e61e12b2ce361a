package acquirer

import (
	"context"
	"testing"

	"github.com/hackload-kz/payment-sub010/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSimulator_Outcomes(t *testing.T) {
	s := NewSimulator()
	ctx := context.Background()

	approved, err := s.Authorize(ctx, ports.AuthorizeRequest{
		IdempotencyKey: "k1", PaymentID: "p1", CardNumber: "4242424242424242",
	})
	require.NoError(t, err)
	assert.True(t, approved.Approved)
	assert.NotEmpty(t, approved.AcquirerTxID)

	declined, err := s.Authorize(ctx, ports.AuthorizeRequest{
		IdempotencyKey: "k2", PaymentID: "p2", CardNumber: "4000000000000002",
	})
	require.NoError(t, err)
	assert.False(t, declined.Approved)
	assert.Equal(t, "insufficient funds", declined.Reason)

	challenged, err := s.Authorize(ctx, ports.AuthorizeRequest{
		IdempotencyKey: "k3", PaymentID: "p3", CardNumber: "4000000000003220",
	})
	require.NoError(t, err)
	assert.True(t, challenged.RequiresThreeDS)
}

func TestSimulator_IdempotencyReplay(t *testing.T) {
	s := NewSimulator()
	ctx := context.Background()

	first, err := s.Authorize(ctx, ports.AuthorizeRequest{
		IdempotencyKey: "k1", PaymentID: "p1", CardNumber: "4242424242424242",
	})
	require.NoError(t, err)

	second, err := s.Authorize(ctx, ports.AuthorizeRequest{
		IdempotencyKey: "k1", PaymentID: "p1", CardNumber: "4242424242424242",
	})
	require.NoError(t, err)
	assert.Equal(t, first.AcquirerTxID, second.AcquirerTxID, "same key replays the same answer")
}

func TestSimulator_ThreeDSReplayApproves(t *testing.T) {
	s := NewSimulator()
	ctx := context.Background()

	challenged, err := s.Authorize(ctx, ports.AuthorizeRequest{
		IdempotencyKey: "k1", PaymentID: "p1", CardNumber: "4000000000003220",
	})
	require.NoError(t, err)
	require.True(t, challenged.RequiresThreeDS)

	// The gateway replays without card data once the challenge is done.
	settled, err := s.Authorize(ctx, ports.AuthorizeRequest{
		IdempotencyKey: "k2", PaymentID: "p1",
	})
	require.NoError(t, err)
	assert.True(t, settled.Approved)
}

func TestSimulator_OperationsSucceed(t *testing.T) {
	s := NewSimulator()
	ctx := context.Background()
	assert.NoError(t, s.Confirm(ctx, "k1", "p1", 100))
	assert.NoError(t, s.Reverse(ctx, "k2", "p1"))
	assert.NoError(t, s.Refund(ctx, "k3", "p1", 50))
}
