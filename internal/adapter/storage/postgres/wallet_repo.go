package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumnList = `id, merchant_id, balance, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// GetOrCreate returns the merchant's wallet, inserting an empty one on first access.
// Concurrent first accesses converge on the same row through ON CONFLICT.
func (r *WalletRepo) GetOrCreate(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	w := domain.NewWallet(merchantID, time.Now().UTC())

	query := `INSERT INTO wallets (id, merchant_id, balance, created_at, updated_at)
		VALUES ($1, $2, 0, $3, $4) ON CONFLICT (merchant_id) DO NOTHING`

	if _, err := r.pool.Exec(ctx, query, w.ID, w.MerchantID, w.CreatedAt, w.UpdatedAt); err != nil {
		return nil, fmt.Errorf("insert wallet: %w", err)
	}

	existing, err := r.GetByMerchantID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, fmt.Errorf("wallet for merchant %s missing after insert", merchantID)
	}
	return existing, nil
}

// GetByMerchantID fetches a wallet by merchant ID.
func (r *WalletRepo) GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumnList + ` FROM wallets WHERE merchant_id = $1`

	w := &domain.Wallet{}
	err := r.pool.QueryRow(ctx, query, merchantID).Scan(
		&w.ID, &w.MerchantID, &w.Balance, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet by merchant id: %w", err)
	}
	return w, nil
}

// DebitIfSufficient decrements the balance in one conditional statement.
// When the guard fails it reads the current balance inside the same tx and
// reports false without writing anything.
func (r *WalletRepo) DebitIfSufficient(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, amount int64) (int64, bool, error) {
	query := `UPDATE wallets SET balance = balance - $1, updated_at = NOW()
		WHERE merchant_id = $2 AND balance >= $1
		RETURNING balance`

	var balance int64
	err := tx.QueryRow(ctx, query, amount, merchantID).Scan(&balance)
	if err == nil {
		return balance, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, false, fmt.Errorf("conditional debit: %w", err)
	}

	err = tx.QueryRow(ctx, `SELECT balance FROM wallets WHERE merchant_id = $1`, merchantID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, false, fmt.Errorf("wallet not found for merchant %s", merchantID)
		}
		return 0, false, fmt.Errorf("read balance after failed debit: %w", err)
	}
	return balance, false, nil
}

// Credit increments the balance and returns the new value.
func (r *WalletRepo) Credit(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, amount int64) (int64, error) {
	query := `UPDATE wallets SET balance = balance + $1, updated_at = NOW()
		WHERE merchant_id = $2
		RETURNING balance`

	var balance int64
	if err := tx.QueryRow(ctx, query, amount, merchantID).Scan(&balance); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("wallet not found for merchant %s", merchantID)
		}
		return 0, fmt.Errorf("credit wallet: %w", err)
	}
	return balance, nil
}
