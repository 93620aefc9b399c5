// Package memory is a process-local storage backend for development and tests.
// It emulates the conditional balance update under a single mutex and gives
// transactions rollback through an undo log.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"wallet-settlement/internal/core/domain"

	"github.com/google/uuid"
)

// Store holds every table of the memory backend.
type Store struct {
	mu sync.Mutex

	wallets       map[uuid.UUID]*domain.Wallet // by merchant id
	ledger        map[uuid.UUID]*domain.LedgerTransaction
	ledgerByRef   map[string]uuid.UUID
	ledgerSeq     []uuid.UUID // insertion order
	settlements   map[uuid.UUID]*domain.SettlementState
	fulfillments  map[uuid.UUID]*domain.FulfillmentRequest // by order id
	orders        map[uuid.UUID]*domain.SourceOrder
	audits        []domain.AuditLog
	notifications []domain.Notification
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		wallets:      make(map[uuid.UUID]*domain.Wallet),
		ledger:       make(map[uuid.UUID]*domain.LedgerTransaction),
		ledgerByRef:  make(map[string]uuid.UUID),
		settlements:  make(map[uuid.UUID]*domain.SettlementState),
		fulfillments: make(map[uuid.UUID]*domain.FulfillmentRequest),
		orders:       make(map[uuid.UUID]*domain.SourceOrder),
	}
}

// PutOrder registers storefront order data.
func (s *Store) PutOrder(o *domain.SourceOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := *o
	c.LineItems = append([]domain.LineItem(nil), o.LineItems...)
	s.orders[o.ID] = &c
}

// Seed is the file format accepted by LoadSeed.
type Seed struct {
	Orders []domain.SourceOrder `json:"orders"`
}

// LoadSeed reads orders from a JSON file into the store.
func (s *Store) LoadSeed(path string) (int, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(raw, &seed); err != nil {
		return 0, fmt.Errorf("decode seed file: %w", err)
	}
	for i := range seed.Orders {
		s.PutOrder(&seed.Orders[i])
	}
	return len(seed.Orders), nil
}

// AuditLogs returns a copy of all recorded audit logs.
func (s *Store) AuditLogs() []domain.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AuditLog(nil), s.audits...)
}

// Notifications returns a copy of all recorded notifications.
func (s *Store) Notifications() []domain.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Notification(nil), s.notifications...)
}

// HealthCheck implements ports.HealthChecker for the memory backend.
type HealthCheck struct{}

// NewHealthCheck creates a memory health checker.
func NewHealthCheck() *HealthCheck { return &HealthCheck{} }

// Ping always succeeds.
func (HealthCheck) Ping(ctx context.Context) error { return nil }

// Name returns the dependency name.
func (HealthCheck) Name() string { return "memory" }

func copyLedger(e *domain.LedgerTransaction) domain.LedgerTransaction {
	c := *e
	if e.Metadata != nil {
		c.Metadata = make(map[string]any, len(e.Metadata))
		for k, v := range e.Metadata {
			c.Metadata[k] = v
		}
	}
	if e.OrderID != nil {
		id := *e.OrderID
		c.OrderID = &id
	}
	if e.FulfillmentRequestID != nil {
		id := *e.FulfillmentRequestID
		c.FulfillmentRequestID = &id
	}
	return c
}

func copySettlement(st *domain.SettlementState) *domain.SettlementState {
	c := *st
	c.ProductCost = copyInt64(st.ProductCost)
	c.ShippingCost = copyInt64(st.ShippingCost)
	c.ServiceFee = copyInt64(st.ServiceFee)
	if st.ChargedAt != nil {
		at := *st.ChargedAt
		c.ChargedAt = &at
	}
	if st.LedgerTransactionID != nil {
		id := *st.LedgerTransactionID
		c.LedgerTransactionID = &id
	}
	if st.FulfillmentRequestID != nil {
		id := *st.FulfillmentRequestID
		c.FulfillmentRequestID = &id
	}
	return &c
}

func copyFulfillment(fr *domain.FulfillmentRequest) *domain.FulfillmentRequest {
	c := *fr
	c.LineItems = append([]domain.LineItemSummary(nil), fr.LineItems...)
	c.StatusHistory = append([]domain.StatusChange(nil), fr.StatusHistory...)
	return &c
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
