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

const settlementColumnList = `order_id, merchant_id, product_cost, shipping_cost, service_fee, status,
		charged_amount, charged_at, shortfall, ledger_transaction_id, fulfillment_request_id, updated_at`

// SettlementRepo implements ports.SettlementRepository.
// Every status write is conditional on the row not being settled yet.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

// Get fetches the settlement state of an order.
func (r *SettlementRepo) Get(ctx context.Context, orderID uuid.UUID) (*domain.SettlementState, error) {
	query := `SELECT ` + settlementColumnList + ` FROM order_settlements WHERE order_id = $1`

	s, err := scanSettlement(r.pool.QueryRow(ctx, query, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settlement: %w", err)
	}
	return s, nil
}

// GetOrCreate returns the order's settlement state, inserting the initial one if absent.
func (r *SettlementRepo) GetOrCreate(ctx context.Context, orderID, merchantID uuid.UUID) (*domain.SettlementState, error) {
	query := `INSERT INTO order_settlements (order_id, merchant_id, status, updated_at)
		VALUES ($1, $2, $3, $4) ON CONFLICT (order_id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query, orderID, merchantID, string(domain.SettlementStatusUnsettled), time.Now().UTC())
	if err != nil {
		return nil, fmt.Errorf("insert settlement: %w", err)
	}

	s, err := r.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, fmt.Errorf("settlement for order %s missing after insert", orderID)
	}
	return s, nil
}

// UpdateCosts overwrites the supplied cost fields while the order is unsettled.
func (r *SettlementRepo) UpdateCosts(ctx context.Context, orderID uuid.UUID, u domain.CostUpdate) (*domain.SettlementState, error) {
	query := `UPDATE order_settlements SET
		product_cost = COALESCE($2, product_cost),
		shipping_cost = COALESCE($3, shipping_cost),
		service_fee = COALESCE($4, service_fee),
		updated_at = NOW()
		WHERE order_id = $1 AND status <> 'settled'
		RETURNING ` + settlementColumnList

	s, err := scanSettlement(r.pool.QueryRow(ctx, query, orderID, u.ProductCost, u.ShippingCost, u.ServiceFee))
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("update settlement costs: %w", err)
	}

	current, err := r.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, fmt.Errorf("settlement for order %s not found", orderID)
	}
	return nil, domain.ErrSettlementClosed
}

// MarkAwaitingFunds records a shortfall unless the order already settled.
func (r *SettlementRepo) MarkAwaitingFunds(ctx context.Context, orderID uuid.UUID, shortfall int64) (bool, error) {
	query := `UPDATE order_settlements SET status = 'awaiting_funds', shortfall = $2, updated_at = NOW()
		WHERE order_id = $1 AND status <> 'settled'`

	tag, err := r.pool.Exec(ctx, query, orderID, shortfall)
	if err != nil {
		return false, fmt.Errorf("mark settlement awaiting funds: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkSettled closes the settlement inside tx and freezes the costs it was charged for.
func (r *SettlementRepo) MarkSettled(ctx context.Context, tx pgx.Tx, t domain.SettledTransition) (bool, error) {
	query := `UPDATE order_settlements SET
		status = 'settled',
		product_cost = $2, shipping_cost = $3, service_fee = $4,
		charged_amount = $5, charged_at = $6, shortfall = 0,
		ledger_transaction_id = $7, fulfillment_request_id = $8,
		updated_at = $6
		WHERE order_id = $1 AND status <> 'settled'`

	tag, err := tx.Exec(ctx, query,
		t.OrderID, t.Costs.ProductCost, t.Costs.ShippingCost, t.Costs.ServiceFee,
		t.ChargedAmount, t.ChargedAt, t.LedgerTransactionID, t.FulfillmentRequestID,
	)
	if err != nil {
		return false, fmt.Errorf("mark settlement settled: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func scanSettlement(row pgx.Row) (*domain.SettlementState, error) {
	s := &domain.SettlementState{}
	var status string
	err := row.Scan(
		&s.OrderID, &s.MerchantID, &s.ProductCost, &s.ShippingCost, &s.ServiceFee, &status,
		&s.ChargedAmount, &s.ChargedAt, &s.Shortfall, &s.LedgerTransactionID, &s.FulfillmentRequestID, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.Status = domain.SettlementStatus(status)
	if !s.Status.Valid() {
		return nil, fmt.Errorf("unknown settlement status %q", status)
	}
	return s, nil
}
