package dto

import (
	"time"

	"wallet-service/internal/core/domain"

	"github.com/shopspring/decimal"
)

// RegisterRequest is the request body for client and merchant registration.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=128" sanitize:"-"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Role   string `json:"role"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// AmountRequest is the body of recharge and charge. Amount accepts a JSON
// number or string; range and scale are checked by the ledger engine.
type AmountRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// LedgerHeaders carries optional request headers of recharge and charge.
type LedgerHeaders struct {
	IdempotencyKey string `header:"Idempotency-Key" binding:"omitempty,max=128,safe_id"`
}

// WalletResponse is the public view of a wallet. The internal id is never exposed.
type WalletResponse struct {
	Token     string `json:"token"`
	Balance   string `json:"balance"`
	OwnerRole string `json:"owner_role"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// TransactionResponse is the public view of a ledger entry. The wallet is
// named by its token only.
type TransactionResponse struct {
	ID          string  `json:"id"`
	WalletToken string  `json:"wallet_token"`
	MerchantID  *string `json:"merchant_id,omitempty"`
	Amount      string  `json:"amount"`
	Type        string  `json:"type"`
	Status      string  `json:"status"`
	CreatedAt   string  `json:"created_at"`
}

// WalletSummaryResponse is the reconciliation view of one wallet.
type WalletSummaryResponse struct {
	Token          string `json:"token"`
	Balance        string `json:"balance"`
	TotalRecharged string `json:"total_recharged"`
	TotalCharged   string `json:"total_charged"`
	Net            string `json:"net"`
	Entries        int64  `json:"entries"`
	Reconciled     bool   `json:"reconciled"`
}

// Money renders an amount with exactly two decimals.
func Money(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyScale)
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		Token:     w.Token.String(),
		Balance:   Money(w.Balance),
		OwnerRole: string(w.OwnerRole),
		CreatedAt: timestamp(w.CreatedAt),
		UpdatedAt: timestamp(w.UpdatedAt),
	}
}

func NewWalletList(wallets []domain.Wallet) []WalletResponse {
	out := make([]WalletResponse, 0, len(wallets))
	for i := range wallets {
		out = append(out, NewWalletResponse(&wallets[i]))
	}
	return out
}

func NewTransactionResponse(t *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:          t.ID.String(),
		WalletToken: t.WalletToken.String(),
		Amount:      Money(t.Amount),
		Type:        string(t.Type),
		Status:      string(t.Status),
		CreatedAt:   timestamp(t.CreatedAt),
	}
	if t.MerchantID != nil {
		id := t.MerchantID.String()
		resp.MerchantID = &id
	}
	return resp
}

func NewTransactionList(txns []domain.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(txns))
	for i := range txns {
		out = append(out, NewTransactionResponse(&txns[i]))
	}
	return out
}

func NewWalletSummaryResponse(s *domain.WalletSummary) WalletSummaryResponse {
	return WalletSummaryResponse{
		Token:          s.Token.String(),
		Balance:        Money(s.Balance),
		TotalRecharged: Money(s.TotalRecharged),
		TotalCharged:   Money(s.TotalCharged),
		Net:            Money(s.Net()),
		Entries:        s.Entries,
		Reconciled:     s.Reconciled(),
	}
}
