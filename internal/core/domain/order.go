package domain

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
)

// SettlementStatus is the settlement state of an order.
type SettlementStatus string

const (
	SettlementStatusUnsettled     SettlementStatus = "unsettled"
	SettlementStatusAwaitingFunds SettlementStatus = "awaiting_funds"
	SettlementStatusSettled       SettlementStatus = "settled"
)

// Valid reports whether s is a known status.
func (s SettlementStatus) Valid() bool {
	switch s {
	case SettlementStatusUnsettled, SettlementStatusAwaitingFunds, SettlementStatusSettled:
		return true
	}
	return false
}

// IsTerminal returns true once the order has been charged.
func (s SettlementStatus) IsTerminal() bool {
	return s == SettlementStatusSettled
}

// CostsEditable returns true while costs may still change.
func (s SettlementStatus) CostsEditable() bool {
	return s == SettlementStatusUnsettled || s == SettlementStatusAwaitingFunds
}

// CanTransitionTo reports whether moving from s to next is legal.
// Settled is terminal; both pre-settlement states may retry.
func (s SettlementStatus) CanTransitionTo(next SettlementStatus) bool {
	switch s {
	case SettlementStatusUnsettled, SettlementStatusAwaitingFunds:
		return next == SettlementStatusAwaitingFunds || next == SettlementStatusSettled
	}
	return false
}

// Address is a postal shipping address as recorded on the order.
type Address struct {
	Name        string `json:"name"`
	Line1       string `json:"line1"`
	Line2       string `json:"line2,omitempty"`
	City        string `json:"city"`
	Province    string `json:"province,omitempty"`
	PostalCode  string `json:"postal_code"`
	CountryCode string `json:"country_code"`
	Phone       string `json:"phone,omitempty"`
}

// LineItem is a single product line on a source order.
type LineItem struct {
	Title     string `json:"title"`
	SKU       string `json:"sku,omitempty"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"` // decimal as recorded by the storefront
}

// SourceOrder is the read-only order data imported from the storefront.
type SourceOrder struct {
	ID              uuid.UUID  `json:"id"`
	MerchantID      uuid.UUID  `json:"merchant_id"`
	OrderNumber     string     `json:"order_number"`
	Currency        string     `json:"currency"`
	SubtotalPrice   string     `json:"subtotal_price"`
	CustomerEmail   string     `json:"customer_email,omitempty"`
	CustomerPhone   string     `json:"customer_phone,omitempty"`
	ShippingAddress Address    `json:"shipping_address"`
	LineItems       []LineItem `json:"line_items"`
	CreatedAt       time.Time  `json:"created_at"`
}

// CostBreakdown is the resolved cost of fulfilling an order, in minor units.
type CostBreakdown struct {
	ProductCost  int64 `json:"product_cost"`
	ShippingCost int64 `json:"shipping_cost"`
	ServiceFee   int64 `json:"service_fee"`
}

// MaxMinorAmount bounds each cost field so that the sum of three stays well
// inside int64.
const MaxMinorAmount int64 = 1_000_000_000_000_000

// Total returns the amount a settlement must debit.
func (c CostBreakdown) Total() int64 {
	return c.ProductCost + c.ShippingCost + c.ServiceFee
}

// CheckedTotal returns Total, or false if any component is outside
// [0, MaxMinorAmount] or the sum overflows.
func (c CostBreakdown) CheckedTotal() (int64, bool) {
	var sum int64
	for _, v := range []int64{c.ProductCost, c.ShippingCost, c.ServiceFee} {
		if v < 0 || v > MaxMinorAmount || sum > math.MaxInt64-v {
			return 0, false
		}
		sum += v
	}
	return sum, true
}

// SettlementState tracks cost inputs and settlement progress for an order.
// A nil cost field has never been set explicitly.
type SettlementState struct {
	OrderID              uuid.UUID        `json:"order_id"`
	MerchantID           uuid.UUID        `json:"merchant_id"`
	ProductCost          *int64           `json:"product_cost,omitempty"`
	ShippingCost         *int64           `json:"shipping_cost,omitempty"`
	ServiceFee           *int64           `json:"service_fee,omitempty"`
	Status               SettlementStatus `json:"status"`
	ChargedAmount        int64            `json:"charged_amount"`
	ChargedAt            *time.Time       `json:"charged_at,omitempty"`
	Shortfall            int64            `json:"shortfall"`
	LedgerTransactionID  *uuid.UUID       `json:"ledger_transaction_id,omitempty"`
	FulfillmentRequestID *uuid.UUID       `json:"fulfillment_request_id,omitempty"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// NewSettlementState returns the initial state for an order.
func NewSettlementState(orderID, merchantID uuid.UUID, now time.Time) *SettlementState {
	return &SettlementState{
		OrderID:    orderID,
		MerchantID: merchantID,
		Status:     SettlementStatusUnsettled,
		UpdatedAt:  now,
	}
}

// ResolveCosts fills fields that were never set: product cost from the
// order subtotal, shipping and fee from zero.
func (s *SettlementState) ResolveCosts(defaultProductCost int64) CostBreakdown {
	c := CostBreakdown{ProductCost: defaultProductCost}
	if s.ProductCost != nil {
		c.ProductCost = *s.ProductCost
	}
	if s.ShippingCost != nil {
		c.ShippingCost = *s.ShippingCost
	}
	if s.ServiceFee != nil {
		c.ServiceFee = *s.ServiceFee
	}
	return c
}

// CostUpdate carries the cost fields a caller wants to overwrite.
type CostUpdate struct {
	ProductCost  *int64
	ShippingCost *int64
	ServiceFee   *int64
}

// IsEmpty reports whether no field was supplied.
func (u CostUpdate) IsEmpty() bool {
	return u.ProductCost == nil && u.ShippingCost == nil && u.ServiceFee == nil
}

// HasNegative reports whether any supplied field is below zero.
func (u CostUpdate) HasNegative() bool {
	for _, v := range []*int64{u.ProductCost, u.ShippingCost, u.ServiceFee} {
		if v != nil && *v < 0 {
			return true
		}
	}
	return false
}

// HasOutOfRange reports whether any supplied field exceeds MaxMinorAmount.
func (u CostUpdate) HasOutOfRange() bool {
	for _, v := range []*int64{u.ProductCost, u.ShippingCost, u.ServiceFee} {
		if v != nil && *v > MaxMinorAmount {
			return true
		}
	}
	return false
}

// Apply overwrites only the supplied fields.
func (s *SettlementState) Apply(u CostUpdate) {
	if u.ProductCost != nil {
		v := *u.ProductCost
		s.ProductCost = &v
	}
	if u.ShippingCost != nil {
		v := *u.ShippingCost
		s.ShippingCost = &v
	}
	if u.ServiceFee != nil {
		v := *u.ServiceFee
		s.ServiceFee = &v
	}
}

// SettledTransition carries the fields written when an order is charged.
type SettledTransition struct {
	OrderID              uuid.UUID
	ChargedAmount        int64
	ChargedAt            time.Time
	LedgerTransactionID  uuid.UUID
	FulfillmentRequestID uuid.UUID
	Costs                CostBreakdown
}

// ErrSettlementClosed is returned by storage when a conditional write on a
// settlement finds the order already settled.
var ErrSettlementClosed = errors.New("settlement already closed")
