package memory

import (
	"context"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepo implements ports.UserRepository.
type UserRepo struct {
	store *Store
}

// NewUserRepo creates a memory-backed user repository.
func NewUserRepo(store *Store) *UserRepo {
	return &UserRepo{store: store}
}

// Create inserts u. A duplicate email yields ports.ErrEmailTaken.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()

	if _, taken := r.store.usersByEmail[u.Email]; taken {
		return ports.ErrEmailTaken
	}
	r.store.users[u.ID] = *u
	r.store.usersByEmail[u.Email] = u.ID
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	return r.get(id), nil
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()

	id, ok := r.store.usersByEmail[email]
	if !ok {
		return nil, nil
	}
	return r.get(id), nil
}

// GetByIDForUpdate locks the user row for the lifetime of tx.
func (r *UserRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error) {
	mt, err := asTx(r.store, tx)
	if err != nil {
		return nil, err
	}
	if err := mt.lock(ctx, userKey(id)); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *UserRepo) get(id uuid.UUID) *domain.User {
	u, ok := r.store.users[id]
	if !ok {
		return nil
	}
	return &u
}
