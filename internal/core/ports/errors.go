package ports

import "errors"

// Storage sentinel errors. Adapters return these; services map them to apperror kinds.
var (
	ErrEmailTaken           = errors.New("email already registered")
	ErrMerchantWalletExists = errors.New("merchant already owns a wallet")
	ErrVersionConflict      = errors.New("wallet version conflict")
	ErrLockTimeout          = errors.New("row lock wait timed out")
	ErrIdempotencyKeyUsed   = errors.New("idempotency key already recorded")
)
