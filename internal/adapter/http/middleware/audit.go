package middleware

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AuditDenied records rejected access attempts (401/403) against API routes.
// Successful operations are audited by the services themselves.
func AuditDenied(auditSvc ports.AuditService) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		status := c.Writer.Status()
		if status != http.StatusUnauthorized && status != http.StatusForbidden {
			return
		}

		route := c.FullPath()
		resourceType, resourceID := resourceFromRoute(route, c)
		if resourceType == "" {
			return
		}

		entry := &domain.AuditLog{
			ID:           uuid.New(),
			Action:       domain.AuditActionAccessDenied,
			ResourceType: resourceType,
			ResourceID:   resourceID,
			IPAddress:    c.ClientIP(),
			CreatedAt:    time.Now().UTC(),
		}
		if actor, ok := ActorFrom(c); ok {
			id := actor.ID
			entry.ActorID = &id
			if actor.Role == domain.RoleMerchant {
				entry.MerchantID = &id
			}
		}

		details, _ := json.Marshal(map[string]any{
			"method":     c.Request.Method,
			"route":      route,
			"status":     status,
			"request_id": c.GetString(CtxRequestID),
		})
		entry.Details = string(details)

		auditSvc.Log(c.Request.Context(), entry)
	}
}

// resourceFromRoute maps a matched route to the audited resource.
func resourceFromRoute(route string, c *gin.Context) (string, string) {
	switch {
	case strings.HasPrefix(route, "/api/v1/orders/"):
		return "order", c.Param("id")
	case strings.HasPrefix(route, "/api/v1/admin/wallets/"):
		return "wallet", c.Param("merchant_id")
	case strings.HasPrefix(route, "/api/v1/admin/tokens"):
		return "token", ""
	case strings.HasPrefix(route, "/api/v1/wallet"):
		return "wallet", ""
	}
	return "", ""
}
