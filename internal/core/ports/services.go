package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"wallet-service/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(identity domain.Identity) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	UserID uuid.UUID
	Role   domain.Role
}

// Identity converts the claims to the acting identity.
func (c *TokenClaims) Identity() domain.Identity {
	return domain.Identity{ID: c.UserID, Role: c.Role}
}

// IdempotencyCache stores serialized ledger results keyed by client idempotency key.
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// WalletCache is a read-through cache for wallet status lookups by token.
// Entries are versioned: Set never replaces a cached wallet with an older
// version, so a slow read cannot overwrite a balance written after it.
type WalletCache interface {
	Get(ctx context.Context, token uuid.UUID) (*domain.Wallet, error) // nil on miss
	Set(ctx context.Context, wallet *domain.Wallet, ttl time.Duration) error
	// Invalidate drops the cached wallet but keeps its version floor.
	Invalidate(ctx context.Context, token uuid.UUID) error
}

// --- Service Ports (Business Logic) ---

// LedgerService is the ledger operations engine.
type LedgerService interface {
	Recharge(ctx context.Context, req LedgerRequest) (*domain.Transaction, error)
	Charge(ctx context.Context, req LedgerRequest) (*domain.Transaction, error)
}

// LedgerRequest holds validated input for a balance mutation.
type LedgerRequest struct {
	Actor          domain.Identity
	Token          uuid.UUID
	Amount         decimal.Decimal
	IdempotencyKey string // optional
	ClientIP       string
}

// WalletService covers wallet creation and the read paths.
type WalletService interface {
	CreateWallet(ctx context.Context, actor domain.Identity) (*domain.Wallet, error)
	GetStatus(ctx context.Context, actor domain.Identity, token uuid.UUID) (*domain.Wallet, error)
	ListOwnWallets(ctx context.Context, actor domain.Identity) ([]domain.Wallet, error)
	ListClientWallets(ctx context.Context, actor domain.Identity) ([]domain.Wallet, error)
	ListWalletTransactions(ctx context.Context, actor domain.Identity, token uuid.UUID) ([]domain.Transaction, error)
	ListTransactions(ctx context.Context, actor domain.Identity) ([]domain.Transaction, error)
	GetTransaction(ctx context.Context, actor domain.Identity, id uuid.UUID) (*domain.Transaction, error)
}

// ReportingService produces ledger reconciliation views.
type ReportingService interface {
	GetWalletSummary(ctx context.Context, actor domain.Identity, token uuid.UUID) (*domain.WalletSummary, error)
}

// AuthService defines registration and login.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*domain.User, error)
	Login(ctx context.Context, email, password string) (string, time.Time, error) // token, expiry, error
}

// RegisterRequest holds input for identity registration.
type RegisterRequest struct {
	Email    string
	Password string
	Role     domain.Role
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}
