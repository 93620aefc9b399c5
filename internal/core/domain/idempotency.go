package domain

import (
	"strings"

	"github.com/google/uuid"
)

const settlementKeyPrefix = "settlement:"

// BuildSettlementKey returns the deterministic ledger reference for an order's
// settlement debit. Retries of the same order always produce the same key.
func BuildSettlementKey(orderID uuid.UUID) string {
	return settlementKeyPrefix + orderID.String()
}

// BuildCreditKey scopes a caller-supplied top-up reference to its merchant.
func BuildCreditKey(merchantID uuid.UUID, referenceID string) string {
	return "credit:" + merchantID.String() + ":" + referenceID
}

// ParseSettlementKey extracts the order id from a settlement reference.
func ParseSettlementKey(key string) (uuid.UUID, bool) {
	if !strings.HasPrefix(key, settlementKeyPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(key, settlementKeyPrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}
