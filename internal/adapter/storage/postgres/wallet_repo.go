package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, owner_id, owner_role, token, balance::text, version, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet within a transaction.
// The one-wallet-per-merchant index surfaces as ports.ErrMerchantWalletExists.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (id, owner_id, owner_role, token, balance, version, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := tx.Exec(ctx, query,
		w.ID, w.OwnerID, w.OwnerRole, w.Token, formatMoney(w.Balance),
		w.Version, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, "uq_wallets_one_per_merchant") {
			return ports.ErrMerchantWalletExists
		}
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByToken fetches a wallet by its public token (non-locking read).
func (r *WalletRepo) GetByToken(ctx context.Context, token uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE token = $1`
	return scanWallet(r.pool.QueryRow(ctx, query, token), "get wallet by token")
}

// GetByIDForUpdate fetches a wallet by ID with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE id = $1 FOR UPDATE`
	w, err := scanWallet(tx.QueryRow(ctx, query, id), "get wallet for update")
	if err != nil && pgErrorCode(err) == codeLockNotAvailable {
		return nil, fmt.Errorf("%w: %w", ports.ErrLockTimeout, err)
	}
	return w, err
}

// ListByOwner returns the owner's wallets, oldest first.
func (r *WalletRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_id = $1 ORDER BY created_at, id`
	return r.list(ctx, "list wallets by owner", query, ownerID)
}

// ListByOwnerRole returns every wallet whose owner has role, oldest first.
func (r *WalletRepo) ListByOwnerRole(ctx context.Context, role domain.Role) ([]domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE owner_role = $1 ORDER BY created_at, id`
	return r.list(ctx, "list wallets by role", query, role)
}

// CountByOwner counts the owner's wallets inside tx, skipping excludeID when set.
func (r *WalletRepo) CountByOwner(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, excludeID *uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM wallets WHERE owner_id = $1 AND ($2::uuid IS NULL OR id <> $2::uuid)`

	var count int64
	if err := tx.QueryRow(ctx, query, ownerID, excludeID).Scan(&count); err != nil {
		return 0, fmt.Errorf("count wallets by owner: %w", err)
	}
	return count, nil
}

// UpdateBalance writes a new balance if the row still carries expectedVersion,
// bumping the version. A stale version yields ports.ErrVersionConflict.
func (r *WalletRepo) UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal, expectedVersion int64) error {
	query := `UPDATE wallets SET balance = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`

	tag, err := tx.Exec(ctx, query, formatMoney(balance), walletID, expectedVersion)
	if err != nil {
		return fmt.Errorf("update wallet balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrVersionConflict
	}
	return nil
}

func (r *WalletRepo) list(ctx context.Context, op, query string, arg any) ([]domain.Wallet, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	wallets := []domain.Wallet{}
	for rows.Next() {
		w, err := scanWallet(rows, op)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", op, err)
	}
	return wallets, nil
}

func scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	var balance string
	err := row.Scan(
		&w.ID, &w.OwnerID, &w.OwnerRole, &w.Token,
		&balance, &w.Version, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if w.Balance, err = parseMoney(balance); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}
