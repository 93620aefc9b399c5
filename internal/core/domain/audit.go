package domain

import (
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of audited action.
type AuditAction string

const (
	AuditActionSettle               AuditAction = "SETTLE_ORDER"
	AuditActionSetCosts             AuditAction = "SET_COSTS"
	AuditActionCredit               AuditAction = "WALLET_CREDIT"
	AuditActionReconcileFulfillment AuditAction = "RECONCILE_FULFILLMENT"
	AuditActionIssueToken           AuditAction = "ISSUE_TOKEN"
	AuditActionAccessDenied         AuditAction = "ACCESS_DENIED"
)

// AuditLog records a single audited action.
type AuditLog struct {
	ID           uuid.UUID   `json:"id"`
	ActorID      *uuid.UUID  `json:"actor_id,omitempty"`
	MerchantID   *uuid.UUID  `json:"merchant_id,omitempty"`
	Action       AuditAction `json:"action"`
	ResourceType string      `json:"resource_type"`
	ResourceID   string      `json:"resource_id,omitempty"`
	Details      string      `json:"details,omitempty"` // JSON string
	IPAddress    string      `json:"ip_address,omitempty"`
	CreatedAt    time.Time   `json:"created_at"`
}
