package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationKind classifies merchant-facing notifications.
type NotificationKind string

const (
	NotificationSettlementCharged NotificationKind = "SETTLEMENT_CHARGED"
	NotificationFundsRequired     NotificationKind = "FUNDS_REQUIRED"
	NotificationWalletCredited    NotificationKind = "WALLET_CREDITED"
)

// Notification is a message delivered to a merchant.
type Notification struct {
	ID         uuid.UUID        `json:"id"`
	MerchantID uuid.UUID        `json:"merchant_id"`
	Kind       NotificationKind `json:"kind"`
	Message    string           `json:"message"`
	Metadata   map[string]any   `json:"metadata,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
}
