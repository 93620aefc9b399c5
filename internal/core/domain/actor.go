package domain

import "github.com/google/uuid"

// Role distinguishes merchants from operators.
type Role string

const (
	RoleMerchant Role = "merchant"
	RoleAdmin    Role = "admin"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID        uuid.UUID
	Role      Role
	IPAddress string
}

// CanAccessMerchant reports whether the actor may act on a merchant's data.
func (a Actor) CanAccessMerchant(merchantID uuid.UUID) bool {
	return a.Role == RoleAdmin || a.ID == merchantID
}
