package dto

import (
	"time"

	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"
)

// SetCostsRequest is the request body for PUT /orders/:id/costs. Omitted
// fields keep their current value.
type SetCostsRequest struct {
	ProductCost  *int64 `json:"product_cost" binding:"omitempty,nonneg_minor"`
	ShippingCost *int64 `json:"shipping_cost" binding:"omitempty,nonneg_minor"`
	ServiceFee   *int64 `json:"service_fee" binding:"omitempty,nonneg_minor"`
}

// ToUpdate converts the request into a domain cost update.
func (r SetCostsRequest) ToUpdate() domain.CostUpdate {
	return domain.CostUpdate{
		ProductCost:  r.ProductCost,
		ShippingCost: r.ShippingCost,
		ServiceFee:   r.ServiceFee,
	}
}

// CreditRequest is the request body for an operator wallet top-up.
type CreditRequest struct {
	Amount      int64          `json:"amount" binding:"required,gt=0"`
	ReferenceID string         `json:"reference_id" binding:"required,max=100,safe_id"`
	Reason      string         `json:"reason" binding:"max=200"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// IssueTokenRequest is the request body for POST /admin/tokens.
type IssueTokenRequest struct {
	Subject string `json:"subject" binding:"required,uuid"`
	Role    string `json:"role" binding:"required,oneof=merchant admin"`
}

// LedgerQuery holds the query string of GET /wallet/ledger.
type LedgerQuery struct {
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Type     string `form:"type" binding:"omitempty,oneof=debit credit"`
}

// WalletResponse is the response for GET /wallet.
type WalletResponse struct {
	WalletID   string    `json:"wallet_id"`
	MerchantID string    `json:"merchant_id"`
	Balance    int64     `json:"balance"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewWalletResponse maps a wallet to its response body.
func NewWalletResponse(w *domain.Wallet) WalletResponse {
	return WalletResponse{
		WalletID:   w.ID.String(),
		MerchantID: w.MerchantID.String(),
		Balance:    w.Balance,
		UpdatedAt:  w.UpdatedAt,
	}
}

// LedgerListResponse wraps a paginated ledger history.
type LedgerListResponse struct {
	Items      []domain.LedgerTransaction `json:"items"`
	Total      int64                      `json:"total"`
	Page       int                        `json:"page"`
	PageSize   int                        `json:"page_size"`
	TotalPages int                        `json:"total_pages"`
}

// SettlementResponse is the settlement state with costs resolved.
type SettlementResponse struct {
	OrderID              string               `json:"order_id"`
	Status               string               `json:"status"`
	Costs                domain.CostBreakdown `json:"costs"`
	Required             int64                `json:"required"`
	Currency             string               `json:"currency"`
	ChargedAmount        int64                `json:"charged_amount"`
	ChargedAt            *time.Time           `json:"charged_at,omitempty"`
	Shortfall            int64                `json:"shortfall"`
	LedgerTransactionID  *string              `json:"ledger_transaction_id,omitempty"`
	FulfillmentRequestID *string              `json:"fulfillment_request_id,omitempty"`
}

// NewSettlementResponse maps a settlement view to its response body.
func NewSettlementResponse(v *ports.SettlementView) SettlementResponse {
	resp := SettlementResponse{
		OrderID:       v.State.OrderID.String(),
		Status:        string(v.State.Status),
		Costs:         v.Costs,
		Required:      v.Required,
		Currency:      v.Currency,
		ChargedAmount: v.State.ChargedAmount,
		ChargedAt:     v.State.ChargedAt,
		Shortfall:     v.State.Shortfall,
	}
	if v.State.LedgerTransactionID != nil {
		s := v.State.LedgerTransactionID.String()
		resp.LedgerTransactionID = &s
	}
	if v.State.FulfillmentRequestID != nil {
		s := v.State.FulfillmentRequestID.String()
		resp.FulfillmentRequestID = &s
	}
	return resp
}

// FulfillmentResponse is a fulfillment request with its decrypted contact.
type FulfillmentResponse struct {
	*domain.FulfillmentRequest
	CustomerContact domain.CustomerContact `json:"customer_contact"`
}
