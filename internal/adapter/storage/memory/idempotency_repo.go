package memory

import (
	"context"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo implements ports.IdempotencyRepository. A claimed key is
// locked until the claiming transaction ends, like an uncommitted primary key
// row in PostgreSQL.
type IdempotencyRepo struct {
	store *Store
}

// NewIdempotencyRepo creates a memory-backed idempotency record store.
func NewIdempotencyRepo(store *Store) *IdempotencyRepo {
	return &IdempotencyRepo{store: store}
}

func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, rec *domain.IdempotencyRecord) error {
	mt, err := asTx(r.store, tx)
	if err != nil {
		return err
	}
	if err := mt.lock(ctx, idempotencyKey(rec.Key)); err != nil {
		return err
	}

	row := *rec
	row.Transaction = cloneTransaction(rec.Transaction)
	unused := func() error {
		if _, taken := r.store.idempotency[row.Key]; taken {
			return ports.ErrIdempotencyKeyUsed
		}
		return nil
	}

	r.store.mu.RLock()
	err = unused()
	r.store.mu.RUnlock()
	if err != nil {
		return err
	}

	mt.stage(write{
		check: unused,
		apply: func() { r.store.idempotency[row.Key] = row },
	})
	return nil
}

func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	rec, ok := r.store.idempotency[key]
	if !ok {
		return nil, nil
	}
	rec.Transaction = cloneTransaction(rec.Transaction)
	return &rec, nil
}
