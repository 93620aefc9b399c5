package ports

//go:generate mockgen -source=services.go -destination=mocks/mock_services.go -package=mocks

import (
	"context"
	"time"

	"wallet-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA256 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload string) string
	Verify(secretKey string, payload string, signature string) bool
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(subject uuid.UUID, role domain.Role) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	Subject uuid.UUID
	Role    domain.Role
}

// SettlementCache is the Redis-layer replay cache for settlement outcomes (fast path).
type SettlementCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // nil when absent
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// DedupeStore suppresses repeat events inside a window.
type DedupeStore interface {
	// FirstSeen returns true only for the first call with key within ttl.
	FirstSeen(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// AuditService records audit entries without blocking the caller.
type AuditService interface {
	Log(ctx context.Context, entry *domain.AuditLog)
	// Drain waits for pending entries to be written or ctx to end.
	Drain(ctx context.Context) error
}

// NotificationService delivers merchant notifications without blocking the caller.
type NotificationService interface {
	Notify(ctx context.Context, merchantID uuid.UUID, kind domain.NotificationKind, message string, metadata map[string]any)
	Drain(ctx context.Context) error
}

// --- Service Ports (Business Logic) ---

// AuthService issues API credentials.
type AuthService interface {
	IssueToken(ctx context.Context, actor domain.Actor, subject uuid.UUID, role domain.Role) (*IssuedToken, error)
}

// IssuedToken is a freshly signed bearer token.
type IssuedToken struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	Subject   uuid.UUID   `json:"subject"`
	Role      domain.Role `json:"role"`
}

// WalletService owns wallet balances and the ledger.
type WalletService interface {
	GetOrCreateWallet(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error)
	// AppendDebit performs the conditional debit and writes its ledger entry inside tx.
	AppendDebit(ctx context.Context, tx pgx.Tx, req DebitRequest) (*domain.LedgerTransaction, error)
	Credit(ctx context.Context, actor domain.Actor, req CreditRequest) (*domain.LedgerTransaction, error)
	ListLedger(ctx context.Context, params LedgerListParams) ([]domain.LedgerTransaction, int64, error)
}

// DebitRequest holds validated input for a ledger debit.
type DebitRequest struct {
	MerchantID  uuid.UUID
	Amount      int64
	ReferenceID string
	Reason      string
	OrderID     *uuid.UUID
	Metadata    map[string]any
}

// CreditRequest holds validated input for a wallet top-up.
type CreditRequest struct {
	MerchantID  uuid.UUID
	Amount      int64
	ReferenceID string
	Reason      string
	Metadata    map[string]any
}

// OrderService configures settlement costs and exposes settlement state.
type OrderService interface {
	// Authorize checks that the actor may act on the order.
	Authorize(ctx context.Context, actor domain.Actor, orderID uuid.UUID) error
	SetCosts(ctx context.Context, actor domain.Actor, orderID uuid.UUID, update domain.CostUpdate) (*SettlementView, error)
	GetSettlement(ctx context.Context, orderID uuid.UUID) (*SettlementView, error)
	GetFulfillment(ctx context.Context, orderID uuid.UUID) (*FulfillmentView, error)
}

// SettlementView is the settlement state with costs resolved against defaults.
type SettlementView struct {
	State    domain.SettlementState
	Costs    domain.CostBreakdown
	Required int64
	Currency string
}

// FulfillmentView is a fulfillment request with its contact snapshot decrypted.
type FulfillmentView struct {
	Request *domain.FulfillmentRequest
	Contact domain.CustomerContact
}

// SettlementService is the settlement engine.
type SettlementService interface {
	Settle(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*SettlementOutcome, error)
}

// SettlementOutcome is the result of a successful (or replayed) settlement.
type SettlementOutcome struct {
	OrderID              uuid.UUID            `json:"order_id"`
	FulfillmentRequestID *uuid.UUID           `json:"fulfillment_request_id,omitempty"`
	LedgerTransactionID  uuid.UUID            `json:"ledger_transaction_id"`
	AmountCharged        int64                `json:"amount_charged"`
	NewBalance           int64                `json:"new_balance"`
	Costs                domain.CostBreakdown `json:"costs"`
	ChargedAt            time.Time            `json:"charged_at"`
	Replayed             bool                 `json:"replayed"`
}

// ReconciliationService repairs settlement debits that lack a fulfillment request.
type ReconciliationService interface {
	RunOnce(ctx context.Context) (int, error)
}
