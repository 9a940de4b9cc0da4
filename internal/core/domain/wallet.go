package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places carried by balances and amounts.
const MoneyScale = 2

// MaxBalance mirrors the NUMERIC(12,2) column limit.
var MaxBalance = decimal.RequireFromString("9999999999.99")

// Wallet holds a balance for one owner. Token is the only external lookup key.
type Wallet struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	OwnerRole Role            `json:"owner_role"`
	Token     uuid.UUID       `json:"token"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewWallet builds an empty wallet with a fresh random (v4) token.
func NewWallet(owner Identity, now time.Time) *Wallet {
	return &Wallet{
		ID:        uuid.New(),
		OwnerID:   owner.ID,
		OwnerRole: owner.Role,
		Token:     uuid.New(),
		Balance:   decimal.Zero,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsOwnedBy reports whether id owns the wallet.
func (w *Wallet) IsOwnedBy(id uuid.UUID) bool {
	return w.OwnerID == id
}

// ValidAmount reports whether amount is positive and has at most MoneyScale decimals.
func ValidAmount(amount decimal.Decimal) bool {
	if !amount.IsPositive() {
		return false
	}
	return amount.Equal(amount.Truncate(MoneyScale))
}
