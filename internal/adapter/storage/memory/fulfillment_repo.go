package memory

import (
	"context"

	"wallet-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// FulfillmentRepo implements ports.FulfillmentRepository.
type FulfillmentRepo struct {
	s *Store
}

// NewFulfillmentRepo creates a memory fulfillment repository.
func NewFulfillmentRepo(s *Store) *FulfillmentRepo {
	return &FulfillmentRepo{s: s}
}

func (r *FulfillmentRepo) Create(ctx context.Context, tx pgx.Tx, fr *domain.FulfillmentRequest) error {
	mtx, err := r.s.lockTx(tx)
	if err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if _, exists := r.s.fulfillments[fr.OrderID]; exists {
		return domain.ErrDuplicateFulfillment
	}
	r.s.fulfillments[fr.OrderID] = copyFulfillment(fr)
	mtx.record(func() { delete(r.s.fulfillments, fr.OrderID) })
	return nil
}

func (r *FulfillmentRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.FulfillmentRequest, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	fr, ok := r.s.fulfillments[orderID]
	if !ok {
		return nil, nil
	}
	return copyFulfillment(fr), nil
}
