package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wallet-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const fulfillmentColumnList = `id, order_id, merchant_id, order_number, shipping_address, customer_contact_enc,
		line_items, costs, wallet_deducted_amount, ledger_transaction_id, status, status_history,
		created_at, updated_at`

// FulfillmentRepo implements ports.FulfillmentRepository.
type FulfillmentRepo struct {
	pool Pool
}

// NewFulfillmentRepo creates a new FulfillmentRepo.
func NewFulfillmentRepo(pool Pool) *FulfillmentRepo {
	return &FulfillmentRepo{pool: pool}
}

// Create inserts a fulfillment request within a database transaction.
// The unique order_id constraint maps to domain.ErrDuplicateFulfillment.
func (r *FulfillmentRepo) Create(ctx context.Context, tx pgx.Tx, fr *domain.FulfillmentRequest) error {
	address, err := json.Marshal(fr.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}
	items, err := json.Marshal(fr.LineItems)
	if err != nil {
		return fmt.Errorf("marshal line items: %w", err)
	}
	costs, err := json.Marshal(fr.Costs)
	if err != nil {
		return fmt.Errorf("marshal costs: %w", err)
	}
	history, err := json.Marshal(fr.StatusHistory)
	if err != nil {
		return fmt.Errorf("marshal status history: %w", err)
	}

	query := `INSERT INTO fulfillment_requests (` + fulfillmentColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`

	_, err = tx.Exec(ctx, query,
		fr.ID, fr.OrderID, fr.MerchantID, fr.OrderNumber, address, fr.CustomerContactEnc,
		items, costs, fr.WalletDeductedAmount, fr.LedgerTransactionID, string(fr.Status), history,
		fr.CreatedAt, fr.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateFulfillment
		}
		return fmt.Errorf("insert fulfillment request: %w", err)
	}
	return nil
}

// GetByOrderID fetches the fulfillment request of an order.
func (r *FulfillmentRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.FulfillmentRequest, error) {
	query := `SELECT ` + fulfillmentColumnList + ` FROM fulfillment_requests WHERE order_id = $1`

	fr := &domain.FulfillmentRequest{}
	var address, items, costs, history []byte
	var status string
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&fr.ID, &fr.OrderID, &fr.MerchantID, &fr.OrderNumber, &address, &fr.CustomerContactEnc,
		&items, &costs, &fr.WalletDeductedAmount, &fr.LedgerTransactionID, &status, &history,
		&fr.CreatedAt, &fr.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get fulfillment request: %w", err)
	}
	fr.Status = domain.FulfillmentStatus(status)

	for _, f := range []struct {
		raw  []byte
		dest any
	}{
		{address, &fr.ShippingAddress},
		{items, &fr.LineItems},
		{costs, &fr.Costs},
		{history, &fr.StatusHistory},
	} {
		if len(f.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(f.raw, f.dest); err != nil {
			return nil, fmt.Errorf("decode fulfillment request: %w", err)
		}
	}
	return fr, nil
}
