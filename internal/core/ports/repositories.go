package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// UserRepository defines persistence operations for identities.
type UserRepository interface {
	// Create returns ErrEmailTaken when the email is already registered.
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	// GetByIDForUpdate locks the user row; wallet creation uses it to
	// serialize concurrent creations by the same owner.
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.User, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx are used inside transaction blocks for pessimistic locking.
type WalletRepository interface {
	// Create returns ErrMerchantWalletExists when the merchant backstop index rejects the row.
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByToken(ctx context.Context, token uuid.UUID) (*domain.Wallet, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Wallet, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Wallet, error)
	ListByOwnerRole(ctx context.Context, role domain.Role) ([]domain.Wallet, error)
	// CountByOwner counts the owner's wallets, skipping excludeID when set.
	CountByOwner(ctx context.Context, tx pgx.Tx, ownerID uuid.UUID, excludeID *uuid.UUID) (int64, error)
	// UpdateBalance writes the new balance if the row still has expectedVersion.
	// Returns ErrVersionConflict otherwise.
	UpdateBalance(ctx context.Context, tx pgx.Tx, walletID uuid.UUID, balance decimal.Decimal, expectedVersion int64) error
}

// TransactionRepository is the append-only ledger.
type TransactionRepository interface {
	Append(ctx context.Context, tx pgx.Tx, transaction *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) // nil when absent
	// ListByWallet returns entries oldest first, ties broken by insertion order.
	ListByWallet(ctx context.Context, walletID uuid.UUID) ([]domain.Transaction, error)
	// ListForUser returns entries on wallets owned by userID plus charges userID initiated.
	ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Transaction, error)
	HasMerchantCharged(ctx context.Context, walletID, merchantID uuid.UUID) (bool, error)
	Summarize(ctx context.Context, walletID uuid.UUID) (*LedgerTotals, error)
}

// LedgerTotals holds the successful ledger sums of one wallet.
type LedgerTotals struct {
	TotalRecharged decimal.Decimal
	TotalCharged   decimal.Decimal
	Entries        int64
}

// IdempotencyRepository is the durable record of which ledger entry each
// idempotency key produced. Create runs inside the ledger transaction, so a
// key commits at most once; a concurrent claim of the same key waits for the
// first transaction to finish.
type IdempotencyRepository interface {
	// Create returns ErrIdempotencyKeyUsed when the key is already recorded.
	Create(ctx context.Context, tx pgx.Tx, record *domain.IdempotencyRecord) error
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error) // nil when absent
}

// AuditRepository persists audit log entries.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
