package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	s *Store
}

// NewLedgerRepo creates a memory ledger repository.
func NewLedgerRepo(s *Store) *LedgerRepo {
	return &LedgerRepo{s: s}
}

// Create appends an entry; reference_id is unique.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerTransaction) error {
	mtx, err := r.s.lockTx(tx)
	if err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	if _, exists := r.s.ledgerByRef[e.ReferenceID]; exists {
		return domain.ErrDuplicateReference
	}
	c := copyLedger(e)
	r.s.ledger[c.ID] = &c
	r.s.ledgerByRef[c.ReferenceID] = c.ID
	r.s.ledgerSeq = append(r.s.ledgerSeq, c.ID)

	mtx.record(func() {
		delete(r.s.ledger, c.ID)
		delete(r.s.ledgerByRef, c.ReferenceID)
		for i := len(r.s.ledgerSeq) - 1; i >= 0; i-- {
			if r.s.ledgerSeq[i] == c.ID {
				r.s.ledgerSeq = append(r.s.ledgerSeq[:i], r.s.ledgerSeq[i+1:]...)
				break
			}
		}
	})
	return nil
}

func (r *LedgerRepo) GetByReference(ctx context.Context, referenceID string) (*domain.LedgerTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	id, ok := r.s.ledgerByRef[referenceID]
	if !ok {
		return nil, nil
	}
	c := copyLedger(r.s.ledger[id])
	return &c, nil
}

func (r *LedgerRepo) LinkFulfillment(ctx context.Context, tx pgx.Tx, ledgerTxID, fulfillmentID uuid.UUID) error {
	mtx, err := r.s.lockTx(tx)
	if err != nil {
		return err
	}
	defer r.s.mu.Unlock()

	e, ok := r.s.ledger[ledgerTxID]
	if !ok || (e.FulfillmentRequestID != nil && *e.FulfillmentRequestID != fulfillmentID) {
		return fmt.Errorf("ledger transaction %s not found or linked elsewhere", ledgerTxID)
	}
	prev := e.FulfillmentRequestID
	id := fulfillmentID
	e.FulfillmentRequestID = &id
	mtx.record(func() { e.FulfillmentRequestID = prev })
	return nil
}

// List returns a merchant's entries newest first.
func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerTransaction, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []domain.LedgerTransaction
	for i := len(r.s.ledgerSeq) - 1; i >= 0; i-- {
		e := r.s.ledger[r.s.ledgerSeq[i]]
		if e.MerchantID != params.MerchantID {
			continue
		}
		if params.Type != nil && e.Type != *params.Type {
			continue
		}
		result = append(result, copyLedger(e))
	}
	total := int64(len(result))

	// Simple pagination
	start := (params.Page - 1) * params.PageSize
	if start >= len(result) {
		return []domain.LedgerTransaction{}, total, nil
	}
	end := start + params.PageSize
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], total, nil
}

func (r *LedgerRepo) ListOrphanedSettlements(ctx context.Context, olderThan time.Time, limit int) ([]domain.LedgerTransaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var result []domain.LedgerTransaction
	for _, id := range r.s.ledgerSeq {
		e := r.s.ledger[id]
		if !e.IsSettlementDebit() || e.FulfillmentRequestID != nil || !e.CreatedAt.Before(olderThan) {
			continue
		}
		result = append(result, copyLedger(e))
	}
	sort.SliceStable(result, func(i, j int) bool { return result[i].CreatedAt.Before(result[j].CreatedAt) })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}
