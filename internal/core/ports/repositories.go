package ports

//go:generate mockgen -source=repositories.go -destination=mocks/mock_repositories.go -package=mocks

import (
	"context"
	"time"

	"wallet-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepository defines persistence operations for wallets.
// Balance writes accept a pgx.Tx so they commit together with the ledger entry.
type WalletRepository interface {
	// GetOrCreate returns the merchant's wallet, inserting a zero-balance one if absent.
	GetOrCreate(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error)
	GetByMerchantID(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error)
	// DebitIfSufficient decrements the balance by amount only if balance >= amount,
	// in a single conditional write. On success it returns the new balance and true.
	// Otherwise nothing changes and it returns the current balance and false.
	DebitIfSufficient(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, amount int64) (int64, bool, error)
	// Credit increments the balance and returns the new balance.
	Credit(ctx context.Context, tx pgx.Tx, merchantID uuid.UUID, amount int64) (int64, error)
}

// LedgerRepository defines persistence for the append-only ledger.
type LedgerRepository interface {
	// Create inserts an entry. A reference id collision yields domain.ErrDuplicateReference.
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerTransaction) error
	GetByReference(ctx context.Context, referenceID string) (*domain.LedgerTransaction, error)
	// LinkFulfillment sets the one-time fulfillment back-reference.
	LinkFulfillment(ctx context.Context, tx pgx.Tx, ledgerTxID, fulfillmentID uuid.UUID) error
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerTransaction, int64, error)
	// ListOrphanedSettlements returns settlement debits created before olderThan
	// that have no fulfillment request.
	ListOrphanedSettlements(ctx context.Context, olderThan time.Time, limit int) ([]domain.LedgerTransaction, error)
}

// LedgerListParams holds filter + pagination for the ledger history.
type LedgerListParams struct {
	MerchantID uuid.UUID
	Type       *domain.LedgerEntryType
	Page       int
	PageSize   int
}

// SettlementRepository persists per-order settlement state.
type SettlementRepository interface {
	// Get returns nil, nil when the order has no settlement row yet.
	Get(ctx context.Context, orderID uuid.UUID) (*domain.SettlementState, error)
	GetOrCreate(ctx context.Context, orderID, merchantID uuid.UUID) (*domain.SettlementState, error)
	// UpdateCosts overwrites the supplied fields unless the order is settled,
	// in which case it returns domain.ErrSettlementClosed.
	UpdateCosts(ctx context.Context, orderID uuid.UUID, update domain.CostUpdate) (*domain.SettlementState, error)
	// MarkAwaitingFunds records a shortfall. It returns false if the order is already settled.
	MarkAwaitingFunds(ctx context.Context, orderID uuid.UUID, shortfall int64) (bool, error)
	// MarkSettled moves the order to settled and freezes its costs. It returns
	// false if the order was already settled.
	MarkSettled(ctx context.Context, tx pgx.Tx, t domain.SettledTransition) (bool, error)
}

// FulfillmentRepository persists fulfillment requests.
type FulfillmentRepository interface {
	// Create inserts a request. A second request for the same order yields
	// domain.ErrDuplicateFulfillment.
	Create(ctx context.Context, tx pgx.Tx, fr *domain.FulfillmentRequest) error
	GetByOrderID(ctx context.Context, orderID uuid.UUID) (*domain.FulfillmentRequest, error)
}

// OrderSource reads storefront order data. It is never written by this service.
type OrderSource interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.SourceOrder, error)
}

// AuditRepository persists audit logs.
type AuditRepository interface {
	Create(ctx context.Context, log *domain.AuditLog) error
}

// NotificationRepository persists merchant notifications.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
