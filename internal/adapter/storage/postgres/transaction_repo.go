package postgres

import (
	"context"
	"errors"
	"fmt"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Ledger reads join the owning wallet so entries carry its public token.
const (
	txColumns = `t.id, t.seq, t.wallet_id, w.token, t.merchant_id, t.amount::text, t.type, t.status, t.created_at`
	txFrom    = ` FROM transactions t JOIN wallets w ON w.id = t.wallet_id`
)

// TransactionRepo implements ports.TransactionRepository. The ledger is
// append-only: there is no update or delete path.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Append inserts a ledger entry within tx and records its sequence number.
func (r *TransactionRepo) Append(ctx context.Context, tx pgx.Tx, t *domain.Transaction) error {
	query := `INSERT INTO transactions (id, wallet_id, merchant_id, amount, type, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq`

	err := tx.QueryRow(ctx, query,
		t.ID, t.WalletID, t.MerchantID, formatMoney(t.Amount),
		t.Type, t.Status, t.CreatedAt,
	).Scan(&t.Seq)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// GetByID returns one ledger entry, or nil, nil when it does not exist.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + txFrom + ` WHERE t.id = $1`

	t, err := scanTransaction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// ListByWallet returns the wallet's entries oldest first.
func (r *TransactionRepo) ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + txColumns + txFrom + `
		WHERE t.wallet_id = $1
		ORDER BY t.created_at ASC, t.seq ASC`
	return r.list(ctx, "list transactions by wallet", query, walletID)
}

// ListForUser returns entries on the user's wallets and charges the user initiated.
func (r *TransactionRepo) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error) {
	query := `SELECT ` + txColumns + txFrom + `
		WHERE w.owner_id = $1
		   OR (t.merchant_id = $1 AND t.type = 'charge')
		ORDER BY t.created_at ASC, t.seq ASC`
	return r.list(ctx, "list transactions for user", query, userID)
}

// HasMerchantCharged reports whether merchantID has a successful charge on walletID.
func (r *TransactionRepo) HasMerchantCharged(ctx context.Context, walletID, merchantID uuid.UUID) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM transactions
		WHERE wallet_id = $1 AND merchant_id = $2 AND type = 'charge' AND status = 'success')`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, walletID, merchantID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check merchant charge: %w", err)
	}
	return exists, nil
}

// Summarize totals the wallet's successful entries.
func (r *TransactionRepo) Summarize(ctx context.Context, walletID uuid.UUID) (*ports.LedgerTotals, error) {
	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE type = 'recharge'), 0)::text AS recharged,
		COALESCE(SUM(amount) FILTER (WHERE type = 'charge'), 0)::text AS charged,
		COUNT(*) AS entries
		FROM transactions WHERE wallet_id = $1 AND status = 'success'`

	var recharged, charged string
	totals := &ports.LedgerTotals{}
	if err := r.pool.QueryRow(ctx, query, walletID).Scan(&recharged, &charged, &totals.Entries); err != nil {
		return nil, fmt.Errorf("summarize ledger: %w", err)
	}

	var err error
	if totals.TotalRecharged, err = parseMoney(recharged); err != nil {
		return nil, err
	}
	if totals.TotalCharged, err = parseMoney(charged); err != nil {
		return nil, err
	}
	return totals, nil
}

func (r *TransactionRepo) list(ctx context.Context, op, query string, arg any) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	txns := []domain.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		txns = append(txns, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: iterate rows: %w", op, err)
	}
	return txns, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	var amount string
	err := row.Scan(
		&t.ID, &t.Seq, &t.WalletID, &t.WalletToken, &t.MerchantID,
		&amount, &t.Type, &t.Status, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if t.Amount, err = parseMoney(amount); err != nil {
		return nil, err
	}
	return &t, nil
}
