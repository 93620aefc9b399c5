package domain

import (
	"time"

	"github.com/google/uuid"
)

// Wallet is a merchant's prepaid balance in minor currency units.
// Balance is only ever changed by a ledger-backed debit or credit.
type Wallet struct {
	ID         uuid.UUID `json:"id"`
	MerchantID uuid.UUID `json:"merchant_id"`
	Balance    int64     `json:"balance"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewWallet returns an empty wallet for a merchant.
func NewWallet(merchantID uuid.UUID, now time.Time) *Wallet {
	return &Wallet{
		ID:         uuid.New(),
		MerchantID: merchantID,
		Balance:    0,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Shortfall returns how much is missing to cover amount, or 0.
func (w *Wallet) Shortfall(amount int64) int64 {
	if w.Balance >= amount {
		return 0
	}
	return amount - w.Balance
}
