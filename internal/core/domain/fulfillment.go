package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// FulfillmentStatus is the operational lifecycle of a fulfillment request.
// Only FulfillmentStatusPending is set by settlement; the rest belong to the
// fulfillment operations workflow.
type FulfillmentStatus string

const (
	FulfillmentStatusPending    FulfillmentStatus = "pending"
	FulfillmentStatusProcessing FulfillmentStatus = "processing"
	FulfillmentStatusShipped    FulfillmentStatus = "shipped"
	FulfillmentStatusDelivered  FulfillmentStatus = "delivered"
	FulfillmentStatusCancelled  FulfillmentStatus = "cancelled"
)

// StatusChange is one entry of a fulfillment request's history.
type StatusChange struct {
	Status FulfillmentStatus `json:"status"`
	Note   string            `json:"note"`
	At     time.Time         `json:"at"`
}

// LineItemSummary is the line-item snapshot copied at settlement time.
type LineItemSummary struct {
	Title     string `json:"title"`
	SKU       string `json:"sku,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unit_price"`
}

// FulfillmentRequest is the downstream record created when an order settles.
// It holds a copy of the order data, never a live link. At most one exists
// per order.
type FulfillmentRequest struct {
	ID                   uuid.UUID         `json:"id"`
	OrderID              uuid.UUID         `json:"order_id"`
	MerchantID           uuid.UUID         `json:"merchant_id"`
	OrderNumber          string            `json:"order_number"`
	ShippingAddress      Address           `json:"shipping_address"`
	CustomerContactEnc   string            `json:"-"`
	LineItems            []LineItemSummary `json:"line_items"`
	Costs                CostBreakdown     `json:"costs"`
	WalletDeductedAmount int64             `json:"wallet_deducted_amount"`
	LedgerTransactionID  uuid.UUID         `json:"ledger_transaction_id"`
	Status               FulfillmentStatus `json:"status"`
	StatusHistory        []StatusChange    `json:"status_history"`
	CreatedAt            time.Time         `json:"created_at"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// CustomerContact is the plaintext form of CustomerContactEnc.
type CustomerContact struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// ErrDuplicateFulfillment is returned by storage when the order already has a
// fulfillment request.
var ErrDuplicateFulfillment = errors.New("fulfillment request already exists for order")
