package memory

import (
	"context"
	"fmt"
	"time"

	"wallet-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// SettlementRepo implements ports.SettlementRepository.
type SettlementRepo struct {
	s *Store
}

// NewSettlementRepo creates a memory settlement repository.
func NewSettlementRepo(s *Store) *SettlementRepo {
	return &SettlementRepo{s: s}
}

func (r *SettlementRepo) Get(ctx context.Context, orderID uuid.UUID) (*domain.SettlementState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.settlements[orderID]
	if !ok {
		return nil, nil
	}
	return copySettlement(st), nil
}

func (r *SettlementRepo) GetOrCreate(ctx context.Context, orderID, merchantID uuid.UUID) (*domain.SettlementState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.settlements[orderID]
	if !ok {
		st = domain.NewSettlementState(orderID, merchantID, time.Now().UTC())
		r.s.settlements[orderID] = st
	}
	return copySettlement(st), nil
}

func (r *SettlementRepo) UpdateCosts(ctx context.Context, orderID uuid.UUID, u domain.CostUpdate) (*domain.SettlementState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.settlements[orderID]
	if !ok {
		return nil, fmt.Errorf("settlement for order %s not found", orderID)
	}
	if !st.Status.CostsEditable() {
		return nil, domain.ErrSettlementClosed
	}
	st.Apply(u)
	st.UpdatedAt = time.Now().UTC()
	return copySettlement(st), nil
}

func (r *SettlementRepo) MarkAwaitingFunds(ctx context.Context, orderID uuid.UUID, shortfall int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.settlements[orderID]
	if !ok {
		return false, fmt.Errorf("settlement for order %s not found", orderID)
	}
	if !st.Status.CanTransitionTo(domain.SettlementStatusAwaitingFunds) {
		return false, nil
	}
	st.Status = domain.SettlementStatusAwaitingFunds
	st.Shortfall = shortfall
	st.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (r *SettlementRepo) MarkSettled(ctx context.Context, tx pgx.Tx, t domain.SettledTransition) (bool, error) {
	mtx, err := r.s.lockTx(tx)
	if err != nil {
		return false, err
	}
	defer r.s.mu.Unlock()

	st, ok := r.s.settlements[t.OrderID]
	if !ok {
		return false, fmt.Errorf("settlement for order %s not found", t.OrderID)
	}
	if !st.Status.CanTransitionTo(domain.SettlementStatusSettled) {
		return false, nil
	}
	prev := copySettlement(st)

	product, shipping, fee := t.Costs.ProductCost, t.Costs.ShippingCost, t.Costs.ServiceFee
	chargedAt := t.ChargedAt
	ledgerID, frID := t.LedgerTransactionID, t.FulfillmentRequestID
	st.ProductCost, st.ShippingCost, st.ServiceFee = &product, &shipping, &fee
	st.Status = domain.SettlementStatusSettled
	st.ChargedAmount = t.ChargedAmount
	st.ChargedAt = &chargedAt
	st.Shortfall = 0
	st.LedgerTransactionID = &ledgerID
	st.FulfillmentRequestID = &frID
	st.UpdatedAt = chargedAt

	mtx.record(func() { *st = *prev })
	return true, nil
}
