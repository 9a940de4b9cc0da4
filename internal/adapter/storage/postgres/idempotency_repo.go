package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

const constraintIdempotencyKey = "idempotency_keys_pkey"

// IdempotencyRepo implements ports.IdempotencyRepository.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create claims rec.Key within tx. While another open transaction holds the
// same key the insert waits; once that one commits it fails with
// ErrIdempotencyKeyUsed.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	response, err := json.Marshal(rec.Transaction)
	if err != nil {
		return fmt.Errorf("encode idempotency response: %w", err)
	}

	query := `INSERT INTO idempotency_keys (key, wallet_token, amount, transaction_id, response, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err = tx.Exec(ctx, query,
		rec.Key, rec.WalletToken, formatMoney(rec.Amount),
		rec.Transaction.ID, response, rec.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err, constraintIdempotencyKey) {
			return ports.ErrIdempotencyKeyUsed
		}
		return fmt.Errorf("insert idempotency key: %w", err)
	}
	return nil
}

// Get fetches a committed record by key, or nil, nil.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	query := `SELECT key, wallet_token, amount::text, response, created_at
		FROM idempotency_keys WHERE key = $1`

	var (
		rec      domain.IdempotencyRecord
		amount   string
		response []byte
	)
	err := r.pool.QueryRow(ctx, query, key).Scan(&rec.Key, &rec.WalletToken, &amount, &response, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency key: %w", err)
	}

	if rec.Amount, err = parseMoney(amount); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(response, &rec.Transaction); err != nil {
		return nil, fmt.Errorf("decode idempotency response: %w", err)
	}
	return &rec, nil
}
