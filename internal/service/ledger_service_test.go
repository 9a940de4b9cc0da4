package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"
	"wallet-service/internal/core/ports/mocks"
	"wallet-service/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc         *LedgerServiceImpl
	walletRepo  *mocks.MockWalletRepository
	txRepo      *mocks.MockTransactionRepository
	idempRepo   *mocks.MockIdempotencyRepository
	transactor  *mocks.MockDBTransactor
	idempCache  *mocks.MockIdempotencyCache
	walletCache *mocks.MockWalletCache
	auditSvc    *mocks.MockAuditService
	t           *testing.T
}

var testLedgerConfig = LedgerConfig{IdempotencyTTL: time.Hour, LockTimeout: time.Second, StatusCacheTTL: time.Minute}

func setupLedgerService(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		walletRepo:  mocks.NewMockWalletRepository(ctrl),
		txRepo:      mocks.NewMockTransactionRepository(ctrl),
		idempRepo:   mocks.NewMockIdempotencyRepository(ctrl),
		transactor:  mocks.NewMockDBTransactor(ctrl),
		idempCache:  mocks.NewMockIdempotencyCache(ctrl),
		walletCache: mocks.NewMockWalletCache(ctrl),
		auditSvc:    mocks.NewMockAuditService(ctrl),
		t:           t,
	}
	d.svc = NewLedgerService(
		d.walletRepo, d.txRepo, d.idempRepo, d.transactor, d.idempCache,
		d.walletCache, d.auditSvc, testLedgerConfig, zerolog.Nop(),
	)
	return d
}

// mockTx implements pgx.Tx for testing
type mockTx struct {
	pgx.Tx
	committed bool
}

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error {
	m.committed = true
	return nil
}

// decEq matches a decimal.Decimal by numeric value.
type decEq struct{ want decimal.Decimal }

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func matchDec(s string) gomock.Matcher { return decEq{want: dec(s)} }

func (m decEq) Matches(x any) bool {
	d, ok := x.(decimal.Decimal)
	return ok && d.Equal(m.want)
}

func (m decEq) String() string { return fmt.Sprintf("decimal equal to %s", m.want) }

func testWallet(owner domain.Identity, balance string) *domain.Wallet {
	return &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   owner.ID,
		OwnerRole: owner.Role,
		Token:     uuid.New(),
		Balance:   dec(balance),
		Version:   3,
	}
}

func clientIdentity() domain.Identity {
	return domain.Identity{ID: uuid.New(), Role: domain.RoleClient}
}

func merchantIdentity() domain.Identity {
	return domain.Identity{ID: uuid.New(), Role: domain.RoleMerchant}
}

// expectLocked wires the fetch, begin and lock calls for w.
func (d *ledgerTestDeps) expectLocked(w *domain.Wallet, tx pgx.Tx) {
	d.walletRepo.EXPECT().GetByToken(gomock.Any(), w.Token).Return(w, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	locked := *w
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, w.ID).Return(&locked, nil)
}

// expectRefresh expects the committed wallet to be written through to the
// status cache with the given balance and the next version.
func (d *ledgerTestDeps) expectRefresh(w *domain.Wallet, balance string) {
	d.walletCache.EXPECT().Set(gomock.Any(), gomock.Any(), testLedgerConfig.StatusCacheTTL).DoAndReturn(
		func(_ context.Context, got *domain.Wallet, _ time.Duration) error {
			assert.Equal(d.t, w.Token, got.Token)
			assert.Equal(d.t, w.Version+1, got.Version)
			assert.True(d.t, got.Balance.Equal(dec(balance)), "cached balance %s", got.Balance)
			return nil
		},
	)
}

func (d *ledgerTestDeps) expectAudit(action domain.AuditAction) {
	d.auditSvc.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		assert.Equal(d.t, action, entry.Action)
	})
}

// ==================== Recharge ====================

func TestLedgerService_Recharge_Success(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	client := clientIdentity()
	w := testWallet(client, "10.00")
	tx := &mockTx{}

	d.expectLocked(w, tx)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, w.ID, matchDec("35.50"), int64(3)).Return(nil)
	d.txRepo.EXPECT().Append(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.expectRefresh(w, "35.50")
	d.expectAudit(domain.AuditActionRecharge)

	txn, err := d.svc.Recharge(ctx, ports.LedgerRequest{Actor: client, Token: w.Token, Amount: dec("25.50")})
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, domain.TransactionTypeRecharge, txn.Type)
	assert.Equal(t, domain.TransactionStatusSuccess, txn.Status)
	assert.Equal(t, w.ID, txn.WalletID)
	assert.Equal(t, w.Token, txn.WalletToken)
	assert.Nil(t, txn.MerchantID)
	assert.True(t, txn.Amount.Equal(dec("25.5")))
}

func TestLedgerService_Recharge_InvalidAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount string
	}{
		{"zero", "0"},
		{"negative", "-5"},
		{"three decimals", "1.234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupLedgerService(t)
			d.expectAudit(domain.AuditActionRechargeRejected)

			txn, err := d.svc.Recharge(context.Background(), ports.LedgerRequest{
				Actor: clientIdentity(), Token: uuid.New(), Amount: dec(tt.amount),
			})
			assert.Nil(t, txn)
			assertAppError(t, err, apperror.CodeInvalidAmount)
		})
	}
}

func TestLedgerService_Recharge_WalletNotFound(t *testing.T) {
	d := setupLedgerService(t)
	token := uuid.New()

	d.walletRepo.EXPECT().GetByToken(gomock.Any(), token).Return(nil, nil)
	d.expectAudit(domain.AuditActionRechargeRejected)

	_, err := d.svc.Recharge(context.Background(), ports.LedgerRequest{Actor: clientIdentity(), Token: token, Amount: dec("1")})
	assertAppError(t, err, apperror.CodeWalletNotFound)
}

func TestLedgerService_Recharge_Unauthorized(t *testing.T) {
	owner := clientIdentity()

	tests := []struct {
		name  string
		actor domain.Identity
	}{
		{"other client", clientIdentity()},
		{"merchant", merchantIdentity()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupLedgerService(t)
			w := testWallet(owner, "0")

			d.walletRepo.EXPECT().GetByToken(gomock.Any(), w.Token).Return(w, nil)
			d.expectAudit(domain.AuditActionRechargeRejected)

			_, err := d.svc.Recharge(context.Background(), ports.LedgerRequest{Actor: tt.actor, Token: w.Token, Amount: dec("10")})
			assertAppError(t, err, apperror.CodeUnauthorized)
		})
	}
}

func TestLedgerService_Recharge_BalanceLimitExceeded(t *testing.T) {
	d := setupLedgerService(t)
	client := clientIdentity()
	w := testWallet(client, "9999999999.00")
	tx := &mockTx{}

	d.expectLocked(w, tx)
	d.expectAudit(domain.AuditActionRechargeRejected)

	_, err := d.svc.Recharge(context.Background(), ports.LedgerRequest{Actor: client, Token: w.Token, Amount: dec("1.00")})
	assertAppError(t, err, apperror.CodeBalanceLimitExceeded)
	assert.False(t, tx.committed)
}

// ==================== Charge ====================

func TestLedgerService_Charge_Success(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	merchant := merchantIdentity()
	w := testWallet(clientIdentity(), "100.00")
	tx := &mockTx{}

	d.expectLocked(w, tx)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, w.ID, matchDec("40"), int64(3)).Return(nil)
	d.txRepo.EXPECT().Append(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, txn *domain.Transaction) error {
			require.NotNil(t, txn.MerchantID)
			assert.Equal(t, merchant.ID, *txn.MerchantID)
			return nil
		},
	)
	d.expectRefresh(w, "40")
	d.expectAudit(domain.AuditActionCharge)

	txn, err := d.svc.Charge(ctx, ports.LedgerRequest{Actor: merchant, Token: w.Token, Amount: dec("60")})
	require.NoError(t, err)
	assert.True(t, tx.committed)
	assert.Equal(t, domain.TransactionTypeCharge, txn.Type)
	assert.True(t, txn.IsChargedBy(merchant.ID))
}

func TestLedgerService_Charge_ExactBalance(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	w := testWallet(clientIdentity(), "60.00")
	tx := &mockTx{}

	d.expectLocked(w, tx)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, w.ID, matchDec("0"), int64(3)).Return(nil)
	d.txRepo.EXPECT().Append(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.expectRefresh(w, "0")
	d.expectAudit(domain.AuditActionCharge)

	_, err := d.svc.Charge(ctx, ports.LedgerRequest{Actor: merchantIdentity(), Token: w.Token, Amount: dec("60")})
	require.NoError(t, err)
}

func TestLedgerService_Charge_InsufficientFunds(t *testing.T) {
	d := setupLedgerService(t)
	w := testWallet(clientIdentity(), "40.00")
	tx := &mockTx{}

	d.expectLocked(w, tx)
	d.expectAudit(domain.AuditActionChargeRejected)

	txn, err := d.svc.Charge(context.Background(), ports.LedgerRequest{Actor: merchantIdentity(), Token: w.Token, Amount: dec("60")})
	assert.Nil(t, txn)
	assertAppError(t, err, apperror.CodeInsufficientFunds)
	assert.False(t, tx.committed)
}

func TestLedgerService_Charge_Unauthorized(t *testing.T) {
	client := clientIdentity()
	merchant := merchantIdentity()

	tests := []struct {
		name   string
		actor  domain.Identity
		wallet *domain.Wallet
	}{
		{"client charging own wallet", client, testWallet(client, "100")},
		{"merchant charging own wallet", merchant, testWallet(merchant, "100")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupLedgerService(t)

			d.walletRepo.EXPECT().GetByToken(gomock.Any(), tt.wallet.Token).Return(tt.wallet, nil)
			d.expectAudit(domain.AuditActionChargeRejected)

			_, err := d.svc.Charge(context.Background(), ports.LedgerRequest{Actor: tt.actor, Token: tt.wallet.Token, Amount: dec("10")})
			assertAppError(t, err, apperror.CodeUnauthorized)
		})
	}
}

func TestLedgerService_Charge_MerchantWalletRecheck(t *testing.T) {
	d := setupLedgerService(t)
	otherMerchant := merchantIdentity()
	w := testWallet(otherMerchant, "100")
	tx := &mockTx{}

	d.expectLocked(w, tx)
	d.walletRepo.EXPECT().CountByOwner(gomock.Any(), tx, otherMerchant.ID, &w.ID).Return(int64(1), nil)
	d.expectAudit(domain.AuditActionChargeRejected)

	_, err := d.svc.Charge(context.Background(), ports.LedgerRequest{Actor: merchantIdentity(), Token: w.Token, Amount: dec("10")})
	assertAppError(t, err, apperror.CodeMerchantAlreadyHasWallet)
	assert.False(t, tx.committed)
}

func TestLedgerService_Charge_MerchantWalletSoleOwner(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	otherMerchant := merchantIdentity()
	w := testWallet(otherMerchant, "100")
	tx := &mockTx{}

	d.expectLocked(w, tx)
	d.walletRepo.EXPECT().CountByOwner(gomock.Any(), tx, otherMerchant.ID, &w.ID).Return(int64(0), nil)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, w.ID, matchDec("90"), int64(3)).Return(nil)
	d.txRepo.EXPECT().Append(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.expectRefresh(w, "90")
	d.expectAudit(domain.AuditActionCharge)

	_, err := d.svc.Charge(ctx, ports.LedgerRequest{Actor: merchantIdentity(), Token: w.Token, Amount: dec("10")})
	require.NoError(t, err)
	assert.True(t, tx.committed)
}

// ==================== Failure handling ====================

func TestLedgerService_VersionConflict(t *testing.T) {
	d := setupLedgerService(t)
	w := testWallet(clientIdentity(), "100")
	tx := &mockTx{}

	d.expectLocked(w, tx)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, w.ID, gomock.Any(), int64(3)).Return(ports.ErrVersionConflict)

	_, err := d.svc.Charge(context.Background(), ports.LedgerRequest{Actor: merchantIdentity(), Token: w.Token, Amount: dec("10")})
	assertAppError(t, err, apperror.CodeConcurrentUpdate)
	assert.False(t, tx.committed)
}

func TestLedgerService_LockTimeout(t *testing.T) {
	d := setupLedgerService(t)
	w := testWallet(clientIdentity(), "100")
	tx := &mockTx{}

	d.walletRepo.EXPECT().GetByToken(gomock.Any(), w.Token).Return(w, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, w.ID).Return(nil, context.DeadlineExceeded)

	_, err := d.svc.Charge(context.Background(), ports.LedgerRequest{Actor: merchantIdentity(), Token: w.Token, Amount: dec("10")})
	assertAppError(t, err, apperror.CodeConcurrentUpdate)
}

func TestLedgerService_AppendFailureRollsBack(t *testing.T) {
	d := setupLedgerService(t)
	w := testWallet(clientIdentity(), "100")
	tx := &mockTx{}

	d.expectLocked(w, tx)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, w.ID, gomock.Any(), int64(3)).Return(nil)
	d.txRepo.EXPECT().Append(gomock.Any(), tx, gomock.Any()).Return(errors.New("disk full"))

	_, err := d.svc.Charge(context.Background(), ports.LedgerRequest{Actor: merchantIdentity(), Token: w.Token, Amount: dec("10")})
	assertAppError(t, err, apperror.CodeInternal)
	assert.False(t, tx.committed)
}

func TestLedgerService_LookupFailure(t *testing.T) {
	d := setupLedgerService(t)
	token := uuid.New()

	d.walletRepo.EXPECT().GetByToken(gomock.Any(), token).Return(nil, errors.New("connection reset"))

	_, err := d.svc.Recharge(context.Background(), ports.LedgerRequest{Actor: clientIdentity(), Token: token, Amount: dec("1")})
	assertAppError(t, err, apperror.CodeInternal)
}

// ==================== Idempotency ====================

func TestLedgerService_IdempotencyKeyClaimedInTransaction(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	client := clientIdentity()
	w := testWallet(client, "0")
	tx := &mockTx{}
	key := domain.BuildIdempotencyKey(client.ID, domain.TransactionTypeRecharge, "req-1")

	var claimed *domain.IdempotencyRecord
	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, key).Return(nil, nil)
	d.expectLocked(w, tx)
	d.idempRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).DoAndReturn(
		func(_ context.Context, _ pgx.Tx, rec *domain.IdempotencyRecord) error {
			claimed = rec
			return nil
		},
	)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, w.ID, matchDec("5"), int64(3)).Return(nil)
	d.txRepo.EXPECT().Append(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.expectRefresh(w, "5")
	d.idempCache.EXPECT().Set(ctx, key, gomock.Any(), testLedgerConfig.IdempotencyTTL).Return(nil)
	d.expectAudit(domain.AuditActionRecharge)

	txn, err := d.svc.Recharge(ctx, ports.LedgerRequest{Actor: client, Token: w.Token, Amount: dec("5"), IdempotencyKey: "req-1"})
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, key, claimed.Key)
	assert.Equal(t, w.Token, claimed.WalletToken)
	assert.Equal(t, txn.ID, claimed.Transaction.ID)
	assert.True(t, claimed.Amount.Equal(dec("5")))
	assert.True(t, tx.committed)
}

func TestLedgerService_IdempotentReplayFromCache(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	client := clientIdentity()
	token := uuid.New()
	key := domain.BuildIdempotencyKey(client.ID, domain.TransactionTypeRecharge, "req-1")
	original := domain.Transaction{
		ID:          uuid.New(),
		WalletToken: token,
		Amount:      dec("5.00"),
		Type:        domain.TransactionTypeRecharge,
		Status:      domain.TransactionStatusSuccess,
	}
	cached, err := json.Marshal(domain.IdempotencyRecord{Key: key, WalletToken: token, Amount: dec("5.00"), Transaction: original})
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(ctx, key).Return(cached, nil)

	txn, err := d.svc.Recharge(ctx, ports.LedgerRequest{Actor: client, Token: token, Amount: dec("5"), IdempotencyKey: "req-1"})
	require.NoError(t, err)
	assert.Equal(t, original.ID, txn.ID)
}

func TestLedgerService_IdempotentReplayFromDatabase(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	client := clientIdentity()
	token := uuid.New()
	key := domain.BuildIdempotencyKey(client.ID, domain.TransactionTypeRecharge, "req-2")
	rec := &domain.IdempotencyRecord{
		Key:         key,
		WalletToken: token,
		Amount:      dec("7"),
		Transaction: domain.Transaction{ID: uuid.New(), WalletToken: token, Amount: dec("7")},
	}

	d.idempCache.EXPECT().Get(ctx, key).Return(nil, errors.New("redis down"))
	d.idempRepo.EXPECT().Get(ctx, key).Return(rec, nil)
	d.idempCache.EXPECT().Set(ctx, key, gomock.Any(), testLedgerConfig.IdempotencyTTL).Return(nil)

	txn, err := d.svc.Recharge(ctx, ports.LedgerRequest{Actor: client, Token: token, Amount: dec("7.00"), IdempotencyKey: "req-2"})
	require.NoError(t, err)
	assert.Equal(t, rec.Transaction.ID, txn.ID)
}

// A retry that raced the original past the lookup finds the key claimed once
// it gets the wallet lock, and replays the committed result.
func TestLedgerService_KeyClaimedByConcurrentRetry(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	client := clientIdentity()
	w := testWallet(client, "50")
	tx := &mockTx{}
	key := domain.BuildIdempotencyKey(client.ID, domain.TransactionTypeRecharge, "retry-1")
	committed := &domain.IdempotencyRecord{
		Key:         key,
		WalletToken: w.Token,
		Amount:      dec("50"),
		Transaction: domain.Transaction{ID: uuid.New(), WalletToken: w.Token, Amount: dec("50")},
	}

	gomock.InOrder(
		d.idempRepo.EXPECT().Get(ctx, key).Return(nil, nil),
		d.idempRepo.EXPECT().Get(ctx, key).Return(committed, nil),
	)
	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.expectLocked(w, tx)
	d.idempRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(ports.ErrIdempotencyKeyUsed)
	d.idempCache.EXPECT().Set(ctx, key, gomock.Any(), testLedgerConfig.IdempotencyTTL).Return(nil)

	txn, err := d.svc.Recharge(ctx, ports.LedgerRequest{Actor: client, Token: w.Token, Amount: dec("50"), IdempotencyKey: "retry-1"})
	require.NoError(t, err)
	assert.Equal(t, committed.Transaction.ID, txn.ID)
	assert.False(t, tx.committed)
}

func TestLedgerService_KeyClaimedForOtherAmount(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	merchant := merchantIdentity()
	w := testWallet(clientIdentity(), "100")
	tx := &mockTx{}
	key := domain.BuildIdempotencyKey(merchant.ID, domain.TransactionTypeCharge, "req-9")
	committed := &domain.IdempotencyRecord{Key: key, WalletToken: w.Token, Amount: dec("5")}

	gomock.InOrder(
		d.idempRepo.EXPECT().Get(ctx, key).Return(nil, nil),
		d.idempRepo.EXPECT().Get(ctx, key).Return(committed, nil),
	)
	d.idempCache.EXPECT().Get(ctx, key).Return(nil, nil)
	d.expectLocked(w, tx)
	d.idempRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(ports.ErrIdempotencyKeyUsed)
	d.idempCache.EXPECT().Set(ctx, key, gomock.Any(), gomock.Any()).Return(nil)

	_, err := d.svc.Charge(ctx, ports.LedgerRequest{Actor: merchant, Token: w.Token, Amount: dec("6"), IdempotencyKey: "req-9"})
	assertAppError(t, err, apperror.CodeDuplicateRequest)
	assert.False(t, tx.committed)
}

func TestLedgerService_IdempotencyKeyReusedForOtherRequest(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	merchant := merchantIdentity()
	token := uuid.New()
	key := domain.BuildIdempotencyKey(merchant.ID, domain.TransactionTypeCharge, "req-9")
	cached, err := json.Marshal(domain.IdempotencyRecord{Key: key, WalletToken: token, Amount: dec("5")})
	require.NoError(t, err)

	d.idempCache.EXPECT().Get(ctx, key).Return(cached, nil)

	_, err = d.svc.Charge(ctx, ports.LedgerRequest{Actor: merchant, Token: uuid.New(), Amount: dec("5"), IdempotencyKey: "req-9"})
	assertAppError(t, err, apperror.CodeDuplicateRequest)
}

func TestLedgerService_IdempotencyCacheDownStillProcesses(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	merchant := merchantIdentity()
	w := testWallet(clientIdentity(), "10")
	tx := &mockTx{}

	d.idempCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, errors.New("redis down"))
	d.idempRepo.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.expectLocked(w, tx)
	d.idempRepo.EXPECT().Create(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.walletRepo.EXPECT().UpdateBalance(gomock.Any(), tx, w.ID, matchDec("9"), int64(3)).Return(nil)
	d.txRepo.EXPECT().Append(gomock.Any(), tx, gomock.Any()).Return(nil)
	d.walletCache.EXPECT().Set(ctx, gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
	d.walletCache.EXPECT().Invalidate(ctx, w.Token).Return(errors.New("redis down"))
	d.idempCache.EXPECT().Set(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))
	d.expectAudit(domain.AuditActionCharge)

	_, err := d.svc.Charge(ctx, ports.LedgerRequest{Actor: merchant, Token: w.Token, Amount: dec("1"), IdempotencyKey: "k"})
	require.NoError(t, err)
	assert.True(t, tx.committed)
}

func TestLedgerService_IdempotencyStoreDown(t *testing.T) {
	d := setupLedgerService(t)
	ctx := context.Background()
	client := clientIdentity()

	d.idempCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	d.idempRepo.EXPECT().Get(ctx, gomock.Any()).Return(nil, errors.New("connection reset"))

	_, err := d.svc.Recharge(ctx, ports.LedgerRequest{Actor: client, Token: uuid.New(), Amount: dec("1"), IdempotencyKey: "k"})
	assertAppError(t, err, apperror.CodeInternal)
}

// ==================== Helper ====================

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

func TestLedgerService_StoreLockTimeout(t *testing.T) {
	d := setupLedgerService(t)
	w := testWallet(clientIdentity(), "100")
	tx := &mockTx{}

	d.walletRepo.EXPECT().GetByToken(gomock.Any(), w.Token).Return(w, nil)
	d.transactor.EXPECT().Begin(gomock.Any()).Return(tx, nil)
	d.walletRepo.EXPECT().GetByIDForUpdate(gomock.Any(), tx, w.ID).Return(nil, fmt.Errorf("lock wallet: %w", ports.ErrLockTimeout))

	_, err := d.svc.Charge(context.Background(), ports.LedgerRequest{Actor: merchantIdentity(), Token: w.Token, Amount: dec("10")})
	assertAppError(t, err, apperror.CodeConcurrentUpdate)
}
