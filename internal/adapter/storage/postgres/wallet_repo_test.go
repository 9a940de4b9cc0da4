package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"wallet-service/internal/core/domain"
	"wallet-service/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(role domain.Role) *domain.Wallet {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Wallet{
		ID:        uuid.New(),
		OwnerID:   uuid.New(),
		OwnerRole: role,
		Token:     uuid.New(),
		Balance:   decimal.RequireFromString("125.50"),
		Version:   4,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func walletCols() []string {
	return []string{"id", "owner_id", "owner_role", "token", "balance", "version", "created_at", "updated_at"}
}

func walletRow(rows *pgxmock.Rows, w *domain.Wallet) *pgxmock.Rows {
	return rows.AddRow(
		w.ID, w.OwnerID, w.OwnerRole, w.Token,
		w.Balance.StringFixed(2), w.Version, w.CreatedAt, w.UpdatedAt,
	)
}

// anyArgs matches n statement arguments of any value.
func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func beginMockTx(t *testing.T, mock pgxmock.PgxPoolIface) pgx.Tx {
	t.Helper()
	mock.ExpectBegin()
	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)
	return tx
}

func TestWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(domain.RoleClient)
	w.Balance = decimal.Zero
	tx := beginMockTx(t, mock)

	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.ID, w.OwnerID, w.OwnerRole, w.Token, "0.00", w.Version, w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Create_SecondMerchantWallet(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(domain.RoleMerchant)
	tx := beginMockTx(t, mock)

	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.ID, w.OwnerID, w.OwnerRole, w.Token, "125.50", w.Version, w.CreatedAt, w.UpdatedAt).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_wallets_one_per_merchant"})

	err = repo.Create(context.Background(), tx, w)
	assert.ErrorIs(t, err, ports.ErrMerchantWalletExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Create_OtherUniqueViolation(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	tx := beginMockTx(t, mock)

	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(anyArgs(8)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_wallets_token"})

	err = repo.Create(context.Background(), tx, newTestWallet(domain.RoleClient))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ports.ErrMerchantWalletExists))
	var pgErr *pgconn.PgError
	assert.ErrorAs(t, err, &pgErr, "the driver error must survive wrapping")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(domain.RoleClient)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE token").
		WithArgs(w.Token).
		WillReturnRows(walletRow(pgxmock.NewRows(walletCols()), w))

	got, err := repo.GetByToken(context.Background(), w.Token)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, w.ID, got.ID)
	assert.Equal(t, domain.RoleClient, got.OwnerRole)
	assert.True(t, got.Balance.Equal(w.Balance))
	assert.Equal(t, int64(4), got.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByToken_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	token := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE token").
		WithArgs(token).
		WillReturnError(pgx.ErrNoRows)

	got, err := repo.GetByToken(context.Background(), token)
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestWalletRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(domain.RoleClient)
	tx := beginMockTx(t, mock)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE id .+ FOR UPDATE").
		WithArgs(w.ID).
		WillReturnRows(walletRow(pgxmock.NewRows(walletCols()), w))

	got, err := repo.GetByIDForUpdate(context.Background(), tx, w.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, w.Token, got.Token)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByIDForUpdate_LockTimeout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	tx := beginMockTx(t, mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE id .+ FOR UPDATE").
		WithArgs(id).
		WillReturnError(&pgconn.PgError{Code: "55P03", Message: "canceling statement due to lock timeout"})

	_, err = repo.GetByIDForUpdate(context.Background(), tx, id)
	assert.ErrorIs(t, err, ports.ErrLockTimeout)
}

func TestWalletRepo_ListByOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w1 := newTestWallet(domain.RoleClient)
	w2 := newTestWallet(domain.RoleClient)
	w2.OwnerID = w1.OwnerID

	rows := pgxmock.NewRows(walletCols())
	walletRow(rows, w1)
	walletRow(rows, w2)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_id = .+ ORDER BY created_at").
		WithArgs(w1.OwnerID).
		WillReturnRows(rows)

	got, err := repo.ListByOwner(context.Background(), w1.OwnerID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, w1.ID, got[0].ID)
	assert.Equal(t, w2.ID, got[1].ID)
}

func TestWalletRepo_ListByOwnerRole_Empty(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE owner_role").
		WithArgs(domain.RoleClient).
		WillReturnRows(pgxmock.NewRows(walletCols()))

	got, err := repo.ListByOwnerRole(context.Background(), domain.RoleClient)
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestWalletRepo_CountByOwner(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	tx := beginMockTx(t, mock)
	ownerID := uuid.New()
	exclude := uuid.New()

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(ownerID, &exclude).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))

	count, err := repo.CountByOwner(context.Background(), tx, ownerID, &exclude)
	require.NoError(t, err)
	assert.Equal(t, int64(0), count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateBalance(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	tx := beginMockTx(t, mock)
	walletID := uuid.New()

	mock.ExpectExec("UPDATE wallets SET balance").
		WithArgs("40.00", walletID, int64(2)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err = repo.UpdateBalance(context.Background(), tx, walletID, decimal.NewFromInt(40), 2)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_UpdateBalance_StaleVersion(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	tx := beginMockTx(t, mock)
	walletID := uuid.New()

	mock.ExpectExec("UPDATE wallets SET balance").
		WithArgs("10.00", walletID, int64(7)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = repo.UpdateBalance(context.Background(), tx, walletID, decimal.NewFromInt(10), 7)
	assert.ErrorIs(t, err, ports.ErrVersionConflict)
}
