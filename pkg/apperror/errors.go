package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Stable error codes. Callers branch on these, never on messages.
const (
	CodeInsufficientFunds        = "PAY_001"
	CodeInvalidAmount            = "PAY_002"
	CodeDuplicateRequest         = "PAY_003"
	CodeBalanceLimitExceeded     = "PAY_008"
	CodeWalletNotFound           = "WAL_001"
	CodeMerchantAlreadyHasWallet = "WAL_002"
	CodeNotFound                 = "WAL_004"
	CodeInvalidCredentials       = "AUTH_001"
	CodeEmailExists              = "AUTH_002"
	CodeInvalidToken             = "AUTH_003"
	CodeAccountDisabled          = "AUTH_004"
	CodeUnauthorized             = "AUTH_005"
	CodeRateLimitExceeded        = "RATE_001"
	CodeValidation               = "VAL_001"
	CodeInternal                 = "SYS_001"
	CodeConcurrentUpdate         = "SYS_002"
)

// AppError is a structured error that maps to HTTP responses.
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

// CodeOf returns the code of the first AppError in err's chain, or "".
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// HasCode reports whether err carries the given AppError code.
func HasCode(err error, code string) bool {
	return err != nil && CodeOf(err) == code
}

// ---- Ledger Business Rules (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New(CodeInsufficientFunds, "Insufficient balance in wallet", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New(CodeInvalidAmount, "Amount must be positive with at most 2 decimal places", http.StatusBadRequest)
}

func ErrDuplicateRequest() *AppError {
	return New(CodeDuplicateRequest, "Idempotency key reused with a different request", http.StatusConflict)
}

func ErrBalanceLimitExceeded() *AppError {
	return New(CodeBalanceLimitExceeded, "Resulting balance exceeds the wallet limit", http.StatusUnprocessableEntity)
}

// ---- Wallets (WAL) ----

func ErrWalletNotFound() *AppError {
	return New(CodeWalletNotFound, "Wallet not found", http.StatusNotFound)
}

func ErrMerchantAlreadyHasWallet() *AppError {
	return New(CodeMerchantAlreadyHasWallet, "Merchant already owns a wallet", http.StatusConflict)
}

func ErrNotFound(entity string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// ---- Authentication & Authorization (AUTH) ----

func ErrInvalidCredentials() *AppError {
	return New(CodeInvalidCredentials, "Invalid credentials", http.StatusUnauthorized)
}

func ErrEmailExists() *AppError {
	return New(CodeEmailExists, "Email already registered", http.StatusConflict)
}

func ErrInvalidToken() *AppError {
	return New(CodeInvalidToken, "Invalid or expired token", http.StatusUnauthorized)
}

func ErrAccountDisabled() *AppError {
	return New(CodeAccountDisabled, "Account is disabled", http.StatusForbidden)
}

// ErrUnauthorized reports an authenticated identity attempting an operation
// its role or ownership does not permit.
func ErrUnauthorized() *AppError {
	return New(CodeUnauthorized, "Operation not permitted for this identity", http.StatusForbidden)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New(CodeRateLimitExceeded, "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap(CodeInternal, "Internal database error", http.StatusInternalServerError, err)
}

func ErrConcurrentUpdate(err error) *AppError {
	return Wrap(CodeConcurrentUpdate, "Wallet was modified concurrently, retry", http.StatusServiceUnavailable, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap(CodeInternal, "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a request validation error.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}
