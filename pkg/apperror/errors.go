package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to the API error envelope.
// Code follows the acquiring protocol: numeric strings, "0" means success.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Authentication & merchant resolution ----

func ErrAuthRequired() *AppError {
	return New("4001", "Authentication required", http.StatusUnauthorized)
}

func ErrInvalidToken() *AppError {
	return New("204", "Invalid token", http.StatusUnauthorized)
}

func ErrMerchantNotFound() *AppError {
	return New("205", "Terminal not found", http.StatusUnauthorized)
}

func ErrMerchantInactive() *AppError {
	return New("202", "Terminal is blocked", http.StatusForbidden)
}

func ErrInternalAuth(err error) *AppError {
	return Wrap("9007", "Internal authentication error", http.StatusInternalServerError, err)
}

// ---- Validation ----

func ErrMissingField(field string) *AppError {
	return New("201", fmt.Sprintf("Missing required field: %s", field), http.StatusBadRequest)
}

func ErrValidation(message string) *AppError {
	return New("251", message, http.StatusBadRequest)
}

// ---- Payment lifecycle ----

func ErrDuplicateOrder() *AppError {
	return New("308", "Order already exists", http.StatusConflict)
}

func ErrPaymentNotFound() *AppError {
	return New("254", "Payment not found", http.StatusNotFound)
}

func ErrIllegalState(current string) *AppError {
	return New("1003", fmt.Sprintf("Operation not allowed in status %s", current), http.StatusConflict)
}

func ErrAmountExceedsAuthorized() *AppError {
	return New("1007", "Amount exceeds authorized amount", http.StatusBadRequest)
}

func ErrLimitExceeded() *AppError {
	return New("1029", "Merchant limit exceeded", http.StatusUnprocessableEntity)
}

func ErrExpired() *AppError {
	return New("252", "Payment deadline expired", http.StatusGone)
}

// ---- Throttling & contention ----

func ErrRateLimited() *AppError {
	return New("429", "Too many requests", http.StatusTooManyRequests)
}

func ErrLockTimeout(err error) *AppError {
	return Wrap("503", "Resource is busy, retry later", http.StatusServiceUnavailable, err)
}

// ---- Acquirer ----

func ErrAcquirerRejected(reason string) *AppError {
	return New("3001", fmt.Sprintf("Payment rejected by acquirer: %s", reason), http.StatusPaymentRequired)
}

// ---- System ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("999", "Internal error", http.StatusInternalServerError, err)
}

// InternalError wraps any internal failure as the generic 999 code.
func InternalError(err error) *AppError {
	return Wrap("999", "Internal error", http.StatusInternalServerError, err)
}
