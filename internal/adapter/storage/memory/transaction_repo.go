package memory

import (
	"context"
	"sort"
	"sync/atomic"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// TransactionRepo implements ports.TransactionRepository. Entries are append-only.
type TransactionRepo struct {
	store *Store
	seq   atomic.Int64
}

// NewTransactionRepo creates a memory-backed ledger.
func NewTransactionRepo(store *Store) *TransactionRepo {
	return &TransactionRepo{store: store}
}

// Append assigns t.Seq immediately and makes the entry visible at commit.
// Sequence numbers of rolled back entries are not reused.
func (r *TransactionRepo) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	mt, err := asTx(r.store, tx)
	if err != nil {
		return err
	}
	t.Seq = r.seq.Add(1)
	row := cloneTransaction(*t)
	mt.stage(write{
		apply: func() { r.store.transactions = append(r.store.transactions, row) },
	})
	return nil
}

func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for i := range r.store.transactions {
		if r.store.transactions[i].ID == id {
			t := r.withToken(r.store.transactions[i])
			return &t, nil
		}
	}
	return nil, nil
}

func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	return r.list(func(t *domain.Transaction) bool { return t.WalletID == walletID }), nil
}

// ListForUser returns entries on the user's own wallets plus charges the user made.
func (r *TransactionRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	r.store.mu.RLock()
	owned := make(map[uuid.UUID]struct{})
	for id, w := range r.store.wallets {
		if w.OwnerID == userID {
			owned[id] = struct{}{}
		}
	}
	r.store.mu.RUnlock()

	return r.list(func(t *domain.Transaction) bool {
		if _, ok := owned[t.WalletID]; ok {
			return true
		}
		return t.Type == domain.TransactionTypeCharge && t.MerchantID != nil && *t.MerchantID == userID
	}), nil
}

func (r *TransactionRepo) HasMerchantCharged(ctx context.Context, walletID, merchantID uuid.UUID) (bool, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	for i := range r.store.transactions {
		t := &r.store.transactions[i]
		if t.WalletID == walletID && t.Status == domain.TransactionStatusSuccess && t.IsChargedBy(merchantID) {
			return true, nil
		}
	}
	return false, nil
}

func (r *TransactionRepo) Summarize(ctx context.Context, walletID uuid.UUID) (*ports.LedgerTotals, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	totals := &ports.LedgerTotals{TotalRecharged: decimal.Zero, TotalCharged: decimal.Zero}
	for _, t := range r.store.transactions {
		if t.WalletID != walletID || t.Status != domain.TransactionStatusSuccess {
			continue
		}
		switch t.Type {
		case domain.TransactionTypeRecharge:
			totals.TotalRecharged = totals.TotalRecharged.Add(t.Amount)
		case domain.TransactionTypeCharge:
			totals.TotalCharged = totals.TotalCharged.Add(t.Amount)
		}
		totals.Entries++
	}
	return totals, nil
}

func (r *TransactionRepo) list(match func(*domain.Transaction) bool) []domain.Transaction {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := []domain.Transaction{}
	for i := range r.store.transactions {
		if match(&r.store.transactions[i]) {
			out = append(out, r.withToken(r.store.transactions[i]))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Seq < out[j].Seq
	})
	return out
}

// withToken copies t and stamps the owning wallet's current token on it.
// The caller holds store.mu.
func (r *TransactionRepo) withToken(t domain.Transaction) domain.Transaction {
	t = cloneTransaction(t)
	if w, ok := r.store.wallets[t.WalletID]; ok {
		t.WalletToken = w.Token
	}
	return t
}

func cloneTransaction(t domain.Transaction) domain.Transaction {
	if t.MerchantID != nil {
		id := *t.MerchantID
		t.MerchantID = &id
	}
	return t
}
