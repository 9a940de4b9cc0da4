package memory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var errNoSQL = errors.New("memory: SQL statements are not supported")

// Tx is the memory driver's pgx.Tx. Only Commit and Rollback are meaningful.
type Tx struct {
	store  *Store
	held   []string
	writes []write
	closed bool
}

// Transactor implements ports.DBTransactor for the memory driver.
type Transactor struct {
	store *Store
}

// NewTransactor creates a transactor bound to store.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin starts a transaction. It never blocks.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &Tx{store: t.store}, nil
}

func asTx(store *Store, tx pgx.Tx) (*Tx, error) {
	mt, ok := tx.(*Tx)
	if !ok || mt.store != store {
		return nil, errForeignTx
	}
	if mt.closed {
		return nil, pgx.ErrTxClosed
	}
	return mt, nil
}

func (t *Tx) lock(ctx context.Context, key string) error {
	for _, h := range t.held {
		if h == key {
			return nil
		}
	}
	if err := t.store.acquire(ctx, key); err != nil {
		return err
	}
	t.held = append(t.held, key)
	return nil
}

// write is one staged change. check runs against committed state before any
// apply, so a failed check leaves the store untouched.
type write struct {
	check func() error
	apply func()
}

func (t *Tx) stage(w write) {
	t.writes = append(t.writes, w)
}

func (t *Tx) finish() {
	for i := len(t.held) - 1; i >= 0; i-- {
		t.store.release(t.held[i])
	}
	t.held = nil
	t.writes = nil
	t.closed = true
}

// Commit applies staged writes atomically and releases row locks.
func (t *Tx) Commit(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	defer t.finish()

	t.store.mu.Lock()
	defer t.store.mu.Unlock()

	for _, w := range t.writes {
		if w.check == nil {
			continue
		}
		if err := w.check(); err != nil {
			return err
		}
	}
	for _, w := range t.writes {
		w.apply()
	}
	return nil
}

// Rollback discards staged writes and releases row locks.
func (t *Tx) Rollback(ctx context.Context) error {
	if t.closed {
		return pgx.ErrTxClosed
	}
	t.finish()
	return nil
}

func (t *Tx) Begin(ctx context.Context) (pgx.Tx, error) { return nil, errNoSQL }

func (t *Tx) CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error) {
	return 0, errNoSQL
}

func (t *Tx) SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults { return errBatch{} }
func (t *Tx) LargeObjects() pgx.LargeObjects                               { return pgx.LargeObjects{} }

func (t *Tx) Prepare(ctx context.Context, name, sql string) (*pgconn.StatementDescription, error) {
	return nil, errNoSQL
}

func (t *Tx) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, errNoSQL
}

func (t *Tx) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return nil, errNoSQL
}

func (t *Tx) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row { return errRow{} }

func (t *Tx) Conn() *pgx.Conn { return nil }

type errRow struct{}

func (errRow) Scan(dest ...any) error { return errNoSQL }

// errBatch answers every batched statement with errNoSQL.
type errBatch struct{}

func (errBatch) Exec() (pgconn.CommandTag, error) { return pgconn.CommandTag{}, errNoSQL }
func (errBatch) Query() (pgx.Rows, error)         { return nil, errNoSQL }
func (errBatch) QueryRow() pgx.Row                { return errRow{} }
func (errBatch) Close() error                     { return errNoSQL }
