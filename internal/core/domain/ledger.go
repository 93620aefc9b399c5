package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// LedgerEntryType is the direction of a balance movement.
type LedgerEntryType string

const (
	LedgerEntryDebit  LedgerEntryType = "debit"
	LedgerEntryCredit LedgerEntryType = "credit"
)

// ErrDuplicateReference is returned by storage when a ledger entry with the
// same reference id already exists.
var ErrDuplicateReference = errors.New("duplicate ledger reference")

// LedgerTransaction is an append-only record of one balance movement.
// Amount is always a positive magnitude; Type carries the sign.
type LedgerTransaction struct {
	ID                   uuid.UUID       `json:"id"`
	WalletID             uuid.UUID       `json:"wallet_id"`
	MerchantID           uuid.UUID       `json:"merchant_id"`
	OrderID              *uuid.UUID      `json:"order_id,omitempty"`
	FulfillmentRequestID *uuid.UUID      `json:"fulfillment_request_id,omitempty"`
	Amount               int64           `json:"amount"`
	Type                 LedgerEntryType `json:"type"`
	Reason               string          `json:"reason"`
	ReferenceID          string          `json:"reference_id"`
	BalanceBefore        int64           `json:"balance_before"`
	BalanceAfter         int64           `json:"balance_after"`
	Metadata             map[string]any  `json:"metadata,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
}

// SignedAmount returns the amount as applied to the balance.
func (t *LedgerTransaction) SignedAmount() int64 {
	if t.Type == LedgerEntryDebit {
		return -t.Amount
	}
	return t.Amount
}

// IsSettlementDebit reports whether the entry paid for an order settlement.
func (t *LedgerTransaction) IsSettlementDebit() bool {
	return t.Type == LedgerEntryDebit && t.OrderID != nil
}
