package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[PAY_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)

	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsNilUnwrap(t *testing.T) {
	appErr := New("PAY_001", "test", http.StatusBadRequest)
	assert.Nil(t, appErr.Unwrap())
}

func TestLedgerErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InsufficientFunds", ErrInsufficientFunds(), CodeInsufficientFunds, 402},
		{"InvalidAmount", ErrInvalidAmount(), CodeInvalidAmount, 400},
		{"DuplicateRequest", ErrDuplicateRequest(), CodeDuplicateRequest, 409},
		{"BalanceLimitExceeded", ErrBalanceLimitExceeded(), CodeBalanceLimitExceeded, 422},
		{"WalletNotFound", ErrWalletNotFound(), CodeWalletNotFound, 404},
		{"MerchantAlreadyHasWallet", ErrMerchantAlreadyHasWallet(), CodeMerchantAlreadyHasWallet, 409},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestAuthErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"InvalidCredentials", ErrInvalidCredentials(), "AUTH_001", 401},
		{"EmailExists", ErrEmailExists(), "AUTH_002", 409},
		{"InvalidToken", ErrInvalidToken(), "AUTH_003", 401},
		{"AccountDisabled", ErrAccountDisabled(), "AUTH_004", 403},
		{"Unauthorized", ErrUnauthorized(), "AUTH_005", 403},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestNotFoundAndForbiddenAreDistinct(t *testing.T) {
	notFound := ErrWalletNotFound()
	forbidden := ErrUnauthorized()

	assert.NotEqual(t, notFound.Code, forbidden.Code)
	assert.NotEqual(t, notFound.HTTPStatus, forbidden.HTTPStatus)
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	casErr := ErrConcurrentUpdate(inner)
	assert.Equal(t, "SYS_002", casErr.Code)
	assert.Equal(t, 503, casErr.HTTPStatus)
}

func TestRateLimitError(t *testing.T) {
	err := ErrRateLimitExceeded()
	assert.Equal(t, "RATE_001", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}

func TestCodeOf(t *testing.T) {
	wrapped := fmt.Errorf("charge: %w", ErrInsufficientFunds())

	assert.Equal(t, CodeInsufficientFunds, CodeOf(wrapped))
	assert.True(t, HasCode(wrapped, CodeInsufficientFunds))
	assert.False(t, HasCode(wrapped, CodeInvalidAmount))
	assert.Equal(t, "", CodeOf(errors.New("plain")))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestNotFoundEntity(t *testing.T) {
	err := ErrNotFound("Transaction")
	assert.Contains(t, err.Message, "Transaction")
	assert.Equal(t, CodeNotFound, err.Code)
}
