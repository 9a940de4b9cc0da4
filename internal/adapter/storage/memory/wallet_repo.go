package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	store *Store
}

// NewWalletRepo creates a memory-backed wallet repository.
func NewWalletRepo(store *Store) *WalletRepo {
	return &WalletRepo{store: store}
}

// Create stages an insert. Token uniqueness and the one-wallet-per-merchant
// rule are checked again at commit.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	mt, err := asTx(r.store, tx)
	if err != nil {
		return err
	}
	row := *w
	mt.stage(write{
		check: func() error {
			if _, dup := r.store.walletsByToken[row.Token]; dup {
				return fmt.Errorf("insert wallet: duplicate token %s", row.Token)
			}
			if row.OwnerRole == domain.RoleMerchant && r.countByOwner(row.OwnerID, nil) > 0 {
				return ports.ErrMerchantWalletExists
			}
			return nil
		},
		apply: func() {
			r.store.wallets[row.ID] = row
			r.store.walletsByToken[row.Token] = row.ID
		},
	})
	return nil
}

func (r *WalletRepo) GetByToken(ctx context.Context, token uuid.UUID) (*domain.Wallet, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.walletsByToken[token]
	if !ok {
		return nil, nil
	}
	return r.get(id), nil
}

// GetByIDForUpdate locks the wallet row for the lifetime of tx.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	mt, err := asTx(r.store, tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, walletKey(id)); err != nil {
		return nil, err
	}

	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.get(id), nil
}

func (r *WalletRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error) {
	return r.list(func(w *domain.Wallet) bool { return w.OwnerID == ownerID }), nil
}

func (r *WalletRepo) ListByOwnerRole(ctx context.Context, role domain.Role) ([]domain.Wallet, error) {
	return r.list(func(w *domain.Wallet) bool { return w.OwnerRole == role }), nil
}

// CountByOwner counts committed wallets of ownerID, skipping excludeID.
func (r *WalletRepo) CountByOwner(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, excludeID *uuid.UUID) (int64, error) {
	if _, err := asTx(r.store, tx); err != nil {
		return 0, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.countByOwner(ownerID, excludeID), nil
}

// UpdateBalance stages a compare-and-set on the wallet version.
// The caller must hold the row lock through GetByIDForUpdate.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal, expectedVersion int64) error {
	mt, err := asTx(r.store, tx)
	if err != nil {
		return err
	}

	current := func() error {
		w, ok := r.store.wallets[walletID]
		if !ok || w.Version != expectedVersion {
			return ports.ErrVersionConflict
		}
		return nil
	}

	r.store.mu.RLock()
	err = current()
	r.store.mu.RUnlock()
	if err != nil {
		return err
	}

	mt.stage(write{
		check: current,
		apply: func() {
			w := r.store.wallets[walletID]
			w.Balance = balance
			w.Version++
			w.UpdatedAt = time.Now().UTC()
			r.store.wallets[walletID] = w
		},
	})
	return nil
}

func (r *WalletRepo) get(id uuid.UUID) *domain.Wallet {
	w, ok := r.store.wallets[id]
	if !ok {
		return nil
	}
	return &w
}

func (r *WalletRepo) countByOwner(ownerID uuid.UUID, excludeID *uuid.UUID) int64 {
	var n int64
	for id, w := range r.store.wallets {
		if w.OwnerID != ownerID {
			continue
		}
		if excludeID != nil && id == *excludeID {
			continue
		}
		n++
	}
	return n
}

func (r *WalletRepo) list(match func(*domain.Wallet) bool) []domain.Wallet {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	out := []domain.Wallet{}
	for _, w := range r.store.wallets {
		if match(&w) {
			out = append(out, w)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}
