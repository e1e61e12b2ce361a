package dto

import (
	"errors"
	"strings"
	"testing"

	"github.com/hackload-kz/payment-sub010/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func errCode(t *testing.T, err error) string {
	t.Helper()
	var appErr *apperror.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %v", err)
	return appErr.Code
}

func TestInitRequestValidate(t *testing.T) {
	valid := InitRequest{Amount: 19200, OrderID: "order-1", Currency: "RUB", PayType: "O"}
	assert.NoError(t, valid.Validate())

	twoStage := valid
	twoStage.PayType = "T"
	assert.NoError(t, twoStage.Validate(), "both declared pay types pass")

	tests := []struct {
		name     string
		mutate   func(r *InitRequest)
		wantCode string
	}{
		{"zero amount", func(r *InitRequest) { r.Amount = 0 }, "201"},
		{"negative amount", func(r *InitRequest) { r.Amount = -5 }, "201"},
		{"missing order", func(r *InitRequest) { r.OrderID = "" }, "201"},
		{"order too long", func(r *InitRequest) { r.OrderID = strings.Repeat("x", 100) }, "251"},
		{"bad pay type", func(r *InitRequest) { r.PayType = "X" }, "251"},
		{"bad currency", func(r *InitRequest) { r.Currency = "RUBL" }, "251"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.mutate(&r)
			assert.Equal(t, tt.wantCode, errCode(t, r.Validate()))
		})
	}
}

func TestInitRequestValidate_OptionalFields(t *testing.T) {
	r := InitRequest{Amount: 100, OrderID: "o1"}
	assert.NoError(t, r.Validate(), "PayType and Currency default server-side")
}

func TestConfirmRequestValidate(t *testing.T) {
	assert.NoError(t, (&ConfirmRequest{PaymentID: "p1"}).Validate())
	assert.Equal(t, "201", errCode(t, (&ConfirmRequest{}).Validate()))

	neg := int64(-1)
	assert.Equal(t, "251", errCode(t, (&ConfirmRequest{PaymentID: "p1", Amount: &neg}).Validate()))
}

func TestCancelRequestValidate(t *testing.T) {
	assert.NoError(t, (&CancelRequest{PaymentID: "p1"}).Validate())
	assert.Equal(t, "201", errCode(t, (&CancelRequest{}).Validate()))
}

func TestRefundRequestValidate(t *testing.T) {
	assert.NoError(t, (&RefundRequest{PaymentID: "p1", Amount: 100}).Validate())
	assert.Equal(t, "201", errCode(t, (&RefundRequest{Amount: 100}).Validate()))
	assert.Equal(t, "201", errCode(t, (&RefundRequest{PaymentID: "p1"}).Validate()))
}

func TestStatusRequestValidate(t *testing.T) {
	assert.NoError(t, (&StatusRequest{PaymentID: "p1"}).Validate())
	assert.NoError(t, (&StatusRequest{OrderID: "o1"}).Validate())
	assert.Equal(t, "201", errCode(t, (&StatusRequest{}).Validate()))
}

func TestSubmitCardRequestValidate(t *testing.T) {
	valid := SubmitCardRequest{CardNumber: "4242424242424242", ExpDate: "1230", CVV: "123"}
	assert.NoError(t, valid.Validate())

	assert.Equal(t, "201", errCode(t, (&SubmitCardRequest{ExpDate: "1230", CVV: "123"}).Validate()))
	assert.Equal(t, "201", errCode(t, (&SubmitCardRequest{CardNumber: "4", CVV: "123"}).Validate()))
	assert.Equal(t, "201", errCode(t, (&SubmitCardRequest{CardNumber: "4", ExpDate: "1230"}).Validate()))
}

func TestRegisterTeamRequestValidate(t *testing.T) {
	assert.NoError(t, (&RegisterTeamRequest{TeamSlug: "team-1", Password: "secret123"}).Validate())
	assert.Equal(t, "201", errCode(t, (&RegisterTeamRequest{Password: "secret123"}).Validate()))
	assert.Equal(t, "201", errCode(t, (&RegisterTeamRequest{TeamSlug: "team-1"}).Validate()))
}
