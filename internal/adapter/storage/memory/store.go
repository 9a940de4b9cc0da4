// Package memory is a process-local storage driver. It keeps the same
// locking contract as the PostgreSQL adapter: row locks are held from the
// locked read until Commit or Rollback, and writes become visible at Commit.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/google/uuid"
)

var errForeignTx = errors.New("memory: transaction was not started by this store")

// Store holds every table of the memory driver.
type Store struct {
	mu sync.RWMutex

	users        map[uuid.UUID]domain.User
	usersByEmail map[string]uuid.UUID

	wallets        map[uuid.UUID]domain.Wallet
	walletsByToken map[uuid.UUID]uuid.UUID

	transactions []domain.Transaction
	seq          int64

	idempotency map[string]domain.IdempotencyRecord

	audit []domain.AuditLog

	lockMu sync.Mutex
	locks  map[string]chan struct{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:          make(map[uuid.UUID]domain.User),
		usersByEmail:   make(map[string]uuid.UUID),
		wallets:        make(map[uuid.UUID]domain.Wallet),
		walletsByToken: make(map[uuid.UUID]uuid.UUID),
		idempotency:    make(map[string]domain.IdempotencyRecord),
		locks:          make(map[string]chan struct{}),
	}
}

func (s *Store) rowLock(key string) chan struct{} {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	ch, ok := s.locks[key]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[key] = ch
	}
	return ch
}

// acquire blocks until the row lock for key is free or ctx ends.
func (s *Store) acquire(ctx context.Context, key string) error {
	select {
	case s.rowLock(key) <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %s: %w", ports.ErrLockTimeout, key, ctx.Err())
	}
}

func (s *Store) release(key string) {
	<-s.rowLock(key)
}

func userKey(id uuid.UUID) string   { return "user:" + id.String() }
func walletKey(id uuid.UUID) string { return "wallet:" + id.String() }

func idempotencyKey(key string) string { return "idempotency:" + key }
