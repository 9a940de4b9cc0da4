package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType represents the kind of balance movement.
type TransactionType string

const (
	TransactionTypeCharge   TransactionType = "charge"
	TransactionTypeRecharge TransactionType = "recharge"
)

// TransactionStatus is the outcome recorded with a ledger entry.
type TransactionStatus string

const (
	TransactionStatusSuccess TransactionStatus = "success"
	TransactionStatusFailed  TransactionStatus = "failed"
)

// Transaction is an immutable ledger entry linked to one wallet.
// WalletToken is the wallet's external reference; WalletID never leaves the service.
// MerchantID is set on charges to the charging merchant.
type Transaction struct {
	ID          uuid.UUID         `json:"id"`
	Seq         int64             `json:"-"`
	WalletID    uuid.UUID         `json:"wallet_id"`
	WalletToken uuid.UUID         `json:"wallet_token"`
	MerchantID  *uuid.UUID        `json:"merchant_id,omitempty"`
	Amount      decimal.Decimal   `json:"amount"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
}

// SignedAmount is the effect of the entry on the wallet balance.
func (t *Transaction) SignedAmount() decimal.Decimal {
	if t.Status != TransactionStatusSuccess {
		return decimal.Zero
	}
	switch t.Type {
	case TransactionTypeRecharge:
		return t.Amount
	case TransactionTypeCharge:
		return t.Amount.Neg()
	}
	return decimal.Zero
}

// IsChargedBy reports whether merchantID initiated this charge.
func (t *Transaction) IsChargedBy(merchantID uuid.UUID) bool {
	return t.Type == TransactionTypeCharge && t.MerchantID != nil && *t.MerchantID == merchantID
}

// WalletSummary aggregates a wallet's ledger for reconciliation.
type WalletSummary struct {
	WalletID       uuid.UUID       `json:"wallet_id"`
	Token          uuid.UUID       `json:"token"`
	Balance        decimal.Decimal `json:"balance"`
	TotalRecharged decimal.Decimal `json:"total_recharged"`
	TotalCharged   decimal.Decimal `json:"total_charged"`
	Entries        int64           `json:"entries"`
}

// Net is recharges minus charges; it equals Balance for a reconciled wallet.
func (s *WalletSummary) Net() decimal.Decimal {
	return s.TotalRecharged.Sub(s.TotalCharged)
}

// Reconciled reports whether the ledger explains the stored balance.
func (s *WalletSummary) Reconciled() bool {
	return s.Net().Equal(s.Balance)
}
