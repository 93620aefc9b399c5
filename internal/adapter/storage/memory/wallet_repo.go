package memory

import (
	"context"
	"fmt"
	"time"

	"wallet-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	s *Store
}

// NewWalletRepo creates a memory wallet repository.
func NewWalletRepo(s *Store) *WalletRepo {
	return &WalletRepo{s: s}
}

func (r *WalletRepo) GetOrCreate(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[merchantID]
	if !ok {
		w = domain.NewWallet(merchantID, time.Now().UTC())
		r.s.wallets[merchantID] = w
	}
	c := *w
	return &c, nil
}

func (r *WalletRepo) GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[merchantID]
	if !ok {
		return nil, nil
	}
	c := *w
	return &c, nil
}

// DebitIfSufficient checks and decrements under the store mutex, which is the
// memory equivalent of UPDATE ... WHERE balance >= amount.
func (r *WalletRepo) DebitIfSufficient(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, amount int64) (int64, bool, error) {
	mtx, err := r.s.lockTx(tx)
	if err != nil {
		return 0, false, err
	}
	defer r.s.mu.Unlock()

	w, ok := r.s.wallets[merchantID]
	if !ok {
		return 0, false, fmt.Errorf("wallet not found for merchant %s", merchantID)
	}
	if w.Balance < amount {
		return w.Balance, false, nil
	}
	w.Balance -= amount
	w.UpdatedAt = time.Now().UTC()
	mtx.record(func() { w.Balance += amount })
	return w.Balance, true, nil
}

func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, amount int64) (int64, error) {
	mtx, err := r.s.lockTx(tx)
	if err != nil {
		return 0, err
	}
	defer r.s.mu.Unlock()

	w, ok := r.s.wallets[merchantID]
	if !ok {
		return 0, fmt.Errorf("wallet not found for merchant %s", merchantID)
	}
	w.Balance += amount
	w.UpdatedAt = time.Now().UTC()
	mtx.record(func() { w.Balance -= amount })
	return w.Balance, nil
}
