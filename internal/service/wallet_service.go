package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/policy"
	"wallet-service/internal/core/ports"
	"wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	userRepo       ports.UserRepository
	walletRepo     ports.WalletRepository
	txRepo         ports.TransactionRepository
	transactor     ports.DBTransactor
	walletCache    ports.WalletCache
	auditSvc       ports.AuditService
	statusCacheTTL time.Duration
	log            zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	transactor ports.DBTransactor,
	walletCache ports.WalletCache,
	auditSvc ports.AuditService,
	statusCacheTTL time.Duration,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		userRepo:       userRepo,
		walletRepo:     walletRepo,
		txRepo:         txRepo,
		transactor:     transactor,
		walletCache:    walletCache,
		auditSvc:       auditSvc,
		statusCacheTTL: statusCacheTTL,
		log:            log,
	}
}

// CreateWallet opens an empty wallet for actor. Creations by the same owner
// are serialized on the owner's user row.
func (s *WalletServiceImpl) CreateWallet(ctx context.Context, actor domain.Identity) (*domain.Wallet, error) {
	if err := policy.CanCreateWallet(actor); err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	owner, err := s.userRepo.GetByIDForUpdate(ctx, dbTx, actor.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("lock owner: %w", err))
	}
	if owner == nil || owner.Role != actor.Role {
		return nil, apperror.ErrUnauthorized()
	}
	if !owner.IsActive {
		return nil, apperror.ErrAccountDisabled()
	}

	if owner.Role == domain.RoleMerchant {
		count, err := s.walletRepo.CountByOwner(ctx, dbTx, owner.ID, nil)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("count wallets: %w", err))
		}
		if count > 0 {
			return nil, apperror.ErrMerchantAlreadyHasWallet()
		}
	}

	wallet := domain.NewWallet(owner.Identity(), time.Now().UTC())
	if err := s.walletRepo.Create(ctx, dbTx, wallet); err != nil {
		if errors.Is(err, ports.ErrMerchantWalletExists) {
			return nil, apperror.ErrMerchantAlreadyHasWallet()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create wallet: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		if errors.Is(err, ports.ErrMerchantWalletExists) {
			return nil, apperror.ErrMerchantAlreadyHasWallet()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("commit tx: %w", err))
	}

	s.log.Info().
		Str("wallet_token", wallet.Token.String()).
		Str("owner_id", owner.ID.String()).
		Str("owner_role", string(owner.Role)).
		Msg("wallet created")

	ownerID := owner.ID
	details, _ := json.Marshal(map[string]string{"owner_role": string(owner.Role)})
	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       &ownerID,
		Action:       domain.AuditActionCreateWallet,
		ResourceType: "wallet",
		ResourceID:   wallet.Token.String(),
		Details:      string(details),
		CreatedAt:    time.Now().UTC(),
	})

	return wallet, nil
}

// GetStatus returns the wallet identified by token if actor may view it.
// Lookups go through the wallet cache. The cache keeps the highest wallet
// version it has seen, so a fill racing a ledger write cannot roll it back.
func (s *WalletServiceImpl) GetStatus(ctx context.Context, actor domain.Identity, token uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.walletCache.Get(ctx, token)
	if err != nil {
		s.log.Warn().Err(err).Str("wallet_token", token.String()).Msg("wallet cache read failed")
	}
	if wallet == nil {
		wallet, err = s.walletRepo.GetByToken(ctx, token)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("find wallet: %w", err))
		}
		if wallet == nil {
			return nil, apperror.ErrWalletNotFound()
		}
		if err := s.walletCache.Set(ctx, wallet, s.statusCacheTTL); err != nil {
			s.log.Warn().Err(err).Str("wallet_token", token.String()).Msg("wallet cache write failed")
		}
	}

	if err := authorizeView(ctx, s.txRepo, actor, wallet); err != nil {
		return nil, err
	}
	return wallet, nil
}

// ListOwnWallets returns the wallets owned by actor.
func (s *WalletServiceImpl) ListOwnWallets(ctx context.Context, actor domain.Identity) ([]domain.Wallet, error) {
	if !actor.Role.Valid() {
		return nil, apperror.ErrUnauthorized()
	}
	wallets, err := s.walletRepo.ListByOwner(ctx, actor.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list wallets: %w", err))
	}
	return wallets, nil
}

// ListClientWallets returns every client-owned wallet. Merchants only.
func (s *WalletServiceImpl) ListClientWallets(ctx context.Context, actor domain.Identity) ([]domain.Wallet, error) {
	if err := policy.CanListClientWallets(actor); err != nil {
		return nil, err
	}
	wallets, err := s.walletRepo.ListByOwnerRole(ctx, domain.RoleClient)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list client wallets: %w", err))
	}
	return wallets, nil
}

// ListWalletTransactions returns the ledger of one wallet, oldest first.
func (s *WalletServiceImpl) ListWalletTransactions(ctx context.Context, actor domain.Identity, token uuid.UUID) ([]domain.Transaction, error) {
	wallet, err := findViewableWallet(ctx, s.walletRepo, s.txRepo, actor, token)
	if err != nil {
		return nil, err
	}
	txns, err := s.txRepo.ListByWallet(ctx, wallet.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list wallet transactions: %w", err))
	}
	return txns, nil
}

// ListTransactions returns entries on actor's wallets plus, for merchants,
// the charges they initiated on other wallets.
func (s *WalletServiceImpl) ListTransactions(ctx context.Context, actor domain.Identity) ([]domain.Transaction, error) {
	if err := policy.CanListTransactions(actor); err != nil {
		return nil, err
	}
	txns, err := s.txRepo.ListForUser(ctx, actor.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("list transactions: %w", err))
	}
	return txns, nil
}

// GetTransaction returns one ledger entry if it is in actor's transaction list.
// Entries the actor may not see are reported as not found.
func (s *WalletServiceImpl) GetTransaction(ctx context.Context, actor domain.Identity, id uuid.UUID) (*domain.Transaction, error) {
	txn, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find transaction: %w", err))
	}
	if txn == nil {
		return nil, apperror.ErrNotFound("Transaction")
	}

	ownsWallet := false
	if !txn.IsChargedBy(actor.ID) {
		wallet, err := s.walletRepo.GetByToken(ctx, txn.WalletToken)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("find wallet: %w", err))
		}
		ownsWallet = wallet != nil && wallet.IsOwnedBy(actor.ID)
	}
	if err := policy.CanViewTransaction(actor, txn, ownsWallet); err != nil {
		return nil, err
	}
	return txn, nil
}
