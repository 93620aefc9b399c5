package memory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

var errForeignTx = errors.New("memory store requires a transaction from memory.Transactor")

// Tx is a pgx.Tx whose writes apply to the store immediately and are undone
// on Rollback. Only Commit and Rollback are implemented; the embedded nil
// pgx.Tx panics on anything else.
type Tx struct {
	pgx.Tx
	store  *Store
	undo   []func()
	closed bool
}

// Transactor implements ports.DBTransactor for the memory store.
type Transactor struct {
	store *Store
}

// NewTransactor creates a memory transactor.
func NewTransactor(store *Store) *Transactor {
	return &Transactor{store: store}
}

// Begin starts a transaction.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	return &Tx{store: t.store}, nil
}

// Commit keeps all writes.
func (tx *Tx) Commit(ctx context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	tx.undo = nil
	return nil
}

// Rollback reverts writes in reverse order.
func (tx *Tx) Rollback(ctx context.Context) error {
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	if tx.closed {
		return pgx.ErrTxClosed
	}
	tx.closed = true
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	return nil
}

// record registers an undo step. Callers hold store.mu.
func (tx *Tx) record(fn func()) {
	tx.undo = append(tx.undo, fn)
}

// lockTx validates tx, locks the store and returns the memory transaction.
// The caller must unlock the store.
func (s *Store) lockTx(tx pgx.Tx) (*Tx, error) {
	mtx, ok := tx.(*Tx)
	if !ok || mtx.store != s {
		return nil, errForeignTx
	}
	s.mu.Lock()
	if mtx.closed {
		s.mu.Unlock()
		return nil, pgx.ErrTxClosed
	}
	return mtx, nil
}
