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

// LedgerConfig tunes the ledger engine.
type LedgerConfig struct {
	IdempotencyTTL time.Duration
	LockTimeout    time.Duration
	StatusCacheTTL time.Duration
}

// LedgerServiceImpl implements ports.LedgerService with pessimistic row locking.
type LedgerServiceImpl struct {
	walletRepo  ports.WalletRepository
	txRepo      ports.TransactionRepository
	idempRepo   ports.IdempotencyRepository
	transactor  ports.DBTransactor
	idempCache  ports.IdempotencyCache
	walletCache ports.WalletCache
	auditSvc    ports.AuditService
	cfg         LedgerConfig
	log         zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	walletRepo ports.WalletRepository,
	txRepo ports.TransactionRepository,
	idempRepo ports.IdempotencyRepository,
	transactor ports.DBTransactor,
	idempCache ports.IdempotencyCache,
	walletCache ports.WalletCache,
	auditSvc ports.AuditService,
	cfg LedgerConfig,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		walletRepo:  walletRepo,
		txRepo:      txRepo,
		idempRepo:   idempRepo,
		transactor:  transactor,
		idempCache:  idempCache,
		walletCache: walletCache,
		auditSvc:    auditSvc,
		cfg:         cfg,
		log:         log,
	}
}

// Recharge adds funds to a client's own wallet.
func (s *LedgerServiceImpl) Recharge(ctx context.Context, req ports.LedgerRequest) (*domain.Transaction, error) {
	return s.apply(ctx, req, domain.TransactionTypeRecharge)
}

// Charge debits a wallet on behalf of a merchant.
func (s *LedgerServiceImpl) Charge(ctx context.Context, req ports.LedgerRequest) (*domain.Transaction, error) {
	return s.apply(ctx, req, domain.TransactionTypeCharge)
}

func (s *LedgerServiceImpl) apply(ctx context.Context, req ports.LedgerRequest, op domain.TransactionType) (*domain.Transaction, error) {
	if !domain.ValidAmount(req.Amount) {
		return nil, s.reject(ctx, req, op, apperror.ErrInvalidAmount())
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.Actor.ID, op, req.IdempotencyKey)
		rec, err := s.lookup(ctx, idempKey)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			return replay(rec, req)
		}
	}

	// Phase 1: fetch and authorize outside the transaction.
	wallet, err := s.walletRepo.GetByToken(ctx, req.Token)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find wallet: %w", err))
	}
	if wallet == nil {
		return nil, s.reject(ctx, req, op, apperror.ErrWalletNotFound())
	}
	if err := authorizeMutation(req.Actor, wallet, op); err != nil {
		return nil, s.reject(ctx, req, op, err)
	}

	// Phase 2: lock, validate and mutate.
	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()

	dbTx, err := s.transactor.Begin(lockCtx)
	if err != nil {
		return nil, lockError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	locked, err := s.walletRepo.GetByIDForUpdate(lockCtx, dbTx, wallet.ID)
	if err != nil {
		return nil, lockError("lock wallet", err)
	}
	if locked == nil {
		return nil, s.reject(ctx, req, op, apperror.ErrWalletNotFound())
	}

	now := time.Now().UTC()
	txn := &domain.Transaction{
		ID:          uuid.New(),
		WalletID:    locked.ID,
		WalletToken: locked.Token,
		Amount:      req.Amount,
		Type:        op,
		Status:      domain.TransactionStatusSuccess,
		CreatedAt:   now,
	}
	if op == domain.TransactionTypeCharge {
		merchantID := req.Actor.ID
		txn.MerchantID = &merchantID
	}

	// Claim the key before any check so a concurrent retry waits on it and
	// then replays instead of applying twice.
	var rec *domain.IdempotencyRecord
	if idempKey != "" {
		rec = &domain.IdempotencyRecord{
			Key:         idempKey,
			WalletToken: locked.Token,
			Amount:      req.Amount,
			Transaction: *txn,
			CreatedAt:   now,
		}
		if err := s.idempRepo.Create(lockCtx, dbTx, rec); err != nil {
			if errors.Is(err, ports.ErrIdempotencyKeyUsed) {
				dbTx.Rollback(ctx) //nolint:errcheck
				return s.replayCommitted(ctx, idempKey, req)
			}
			return nil, lockError("claim idempotency key", err)
		}
	}

	newBalance := locked.Balance
	switch op {
	case domain.TransactionTypeRecharge:
		newBalance = newBalance.Add(req.Amount)
		if newBalance.GreaterThan(domain.MaxBalance) {
			return nil, s.reject(ctx, req, op, apperror.ErrBalanceLimitExceeded())
		}
	case domain.TransactionTypeCharge:
		if locked.Balance.LessThan(req.Amount) {
			return nil, s.reject(ctx, req, op, apperror.ErrInsufficientFunds())
		}
		newBalance = newBalance.Sub(req.Amount)
	}

	if locked.OwnerRole == domain.RoleMerchant {
		others, err := s.walletRepo.CountByOwner(lockCtx, dbTx, locked.OwnerID, &locked.ID)
		if err != nil {
			return nil, lockError("count merchant wallets", err)
		}
		if others > 0 {
			return nil, s.reject(ctx, req, op, apperror.ErrMerchantAlreadyHasWallet())
		}
	}

	if err := s.walletRepo.UpdateBalance(lockCtx, dbTx, locked.ID, newBalance, locked.Version); err != nil {
		if errors.Is(err, ports.ErrVersionConflict) {
			return nil, apperror.ErrConcurrentUpdate(err)
		}
		return nil, lockError("update balance", err)
	}

	if err := s.txRepo.Append(lockCtx, dbTx, txn); err != nil {
		return nil, lockError("append ledger entry", err)
	}

	if err := dbTx.Commit(lockCtx); err != nil {
		if errors.Is(err, ports.ErrIdempotencyKeyUsed) {
			return s.replayCommitted(ctx, idempKey, req)
		}
		return nil, lockError("commit tx", err)
	}

	// Post-commit work is best-effort.
	updated := *locked
	updated.Balance = newBalance
	updated.Version = locked.Version + 1
	updated.UpdatedAt = now
	s.refreshWallet(ctx, &updated)
	if rec != nil {
		s.remember(ctx, rec)
	}

	s.log.Info().
		Str("tx_id", txn.ID.String()).
		Str("wallet_token", locked.Token.String()).
		Str("type", string(op)).
		Str("amount", req.Amount.StringFixed(domain.MoneyScale)).
		Str("balance", newBalance.StringFixed(domain.MoneyScale)).
		Msg("ledger entry recorded")

	s.audit(ctx, req, op, successAction(op), map[string]any{
		"tx_id":  txn.ID.String(),
		"amount": req.Amount.StringFixed(domain.MoneyScale),
	})

	return txn, nil
}

func authorizeMutation(actor domain.Identity, w *domain.Wallet, op domain.TransactionType) error {
	if op == domain.TransactionTypeCharge {
		return policy.CanCharge(actor, w)
	}
	return policy.CanRecharge(actor, w)
}

// lockError maps a failure inside the locked section. A lock wait that outlives
// the configured timeout is reported as a retryable concurrent update.
func lockError(step string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ports.ErrLockTimeout) {
		return apperror.ErrConcurrentUpdate(fmt.Errorf("%s: %w", step, err))
	}
	return apperror.ErrDatabaseError(fmt.Errorf("%s: %w", step, err))
}

// lookup finds the record for key, trying the cache before the database.
func (s *LedgerServiceImpl) lookup(ctx context.Context, key string) (*domain.IdempotencyRecord, error) {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("idempotency cache lookup failed")
	}
	if cached != nil {
		var rec domain.IdempotencyRecord
		if err := json.Unmarshal(cached, &rec); err == nil {
			return &rec, nil
		}
		s.log.Warn().Str("key", key).Msg("ignoring undecodable idempotency cache entry")
	}

	rec, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find idempotency key: %w", err))
	}
	if rec != nil {
		s.remember(ctx, rec)
	}
	return rec, nil
}

// replayCommitted answers a request whose key was claimed by a transaction
// that has since committed.
func (s *LedgerServiceImpl) replayCommitted(ctx context.Context, key string, req ports.LedgerRequest) (*domain.Transaction, error) {
	rec, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("find idempotency key: %w", err))
	}
	if rec == nil {
		return nil, apperror.ErrConcurrentUpdate(errors.New("idempotency key claimed but not found"))
	}
	s.remember(ctx, rec)
	return replay(rec, req)
}

// replay returns the stored result of an earlier request with the same key.
// A key reused for a different wallet or amount is rejected.
func replay(rec *domain.IdempotencyRecord, req ports.LedgerRequest) (*domain.Transaction, error) {
	if !rec.Matches(req.Token, req.Amount) {
		return nil, apperror.ErrDuplicateRequest()
	}
	txn := rec.Transaction
	return &txn, nil
}

func (s *LedgerServiceImpl) remember(ctx context.Context, rec *domain.IdempotencyRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		s.log.Warn().Err(err).Str("key", rec.Key).Msg("failed to marshal idempotency record")
		return
	}
	if err := s.idempCache.Set(ctx, rec.Key, data, s.cfg.IdempotencyTTL); err != nil {
		s.log.Warn().Err(err).Str("key", rec.Key).Msg("failed to cache idempotency record")
	}
}

// refreshWallet writes the committed wallet through to the status cache. The
// cache ignores it if a newer version is already there. When the write fails
// the entry is dropped so readers fall back to the database.
func (s *LedgerServiceImpl) refreshWallet(ctx context.Context, w *domain.Wallet) {
	err := s.walletCache.Set(ctx, w, s.cfg.StatusCacheTTL)
	if err == nil {
		return
	}
	s.log.Warn().Err(err).Str("wallet_token", w.Token.String()).Msg("failed to refresh wallet cache")
	if err := s.walletCache.Invalidate(ctx, w.Token); err != nil {
		s.log.Warn().Err(err).Str("wallet_token", w.Token.String()).Msg("failed to invalidate wallet cache")
	}
}

// reject audits a refused ledger operation and returns err unchanged.
func (s *LedgerServiceImpl) reject(ctx context.Context, req ports.LedgerRequest, op domain.TransactionType, err error) error {
	s.log.Info().
		Str("wallet_token", req.Token.String()).
		Str("type", string(op)).
		Str("reason", apperror.CodeOf(err)).
		Msg("ledger operation rejected")

	s.audit(ctx, req, op, rejectedAction(op), map[string]any{
		"amount":     req.Amount.String(),
		"error_code": apperror.CodeOf(err),
	})
	return err
}

func (s *LedgerServiceImpl) audit(ctx context.Context, req ports.LedgerRequest, op domain.TransactionType, action domain.AuditAction, details map[string]any) {
	details["type"] = string(op)
	raw, _ := json.Marshal(details)
	actorID := req.Actor.ID
	s.auditSvc.Log(ctx, &domain.AuditLog{
		ID:           uuid.New(),
		UserID:       &actorID,
		Action:       action,
		ResourceType: "wallet",
		ResourceID:   req.Token.String(),
		Details:      string(raw),
		IPAddress:    req.ClientIP,
		CreatedAt:    time.Now().UTC(),
	})
}

func successAction(op domain.TransactionType) domain.AuditAction {
	if op == domain.TransactionTypeCharge {
		return domain.AuditActionCharge
	}
	return domain.AuditActionRecharge
}

func rejectedAction(op domain.TransactionType) domain.AuditAction {
	if op == domain.TransactionTypeCharge {
		return domain.AuditActionChargeRejected
	}
	return domain.AuditActionRechargeRejected
}
