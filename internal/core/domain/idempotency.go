package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BuildIdempotencyKey scopes a client-supplied key to the caller and operation,
// so two identities (or a recharge and a charge) never share a cached result.
func BuildIdempotencyKey(actorID uuid.UUID, op TransactionType, clientKey string) string {
	return actorID.String() + ":" + string(op) + ":" + clientKey
}

// IdempotencyRecord binds a scoped idempotency key to the ledger entry it
// produced. It is written in the same database transaction as the entry.
type IdempotencyRecord struct {
	Key         string          `json:"key"`
	WalletToken uuid.UUID       `json:"wallet_token"`
	Amount      decimal.Decimal `json:"amount"`
	Transaction Transaction     `json:"transaction"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Matches reports whether a retry targets the same wallet with the same amount.
func (r *IdempotencyRecord) Matches(token uuid.UUID, amount decimal.Decimal) bool {
	return r.WalletToken == token && r.Amount.Equal(amount)
}
