package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports/mocks"
	"wallet-settlement/pkg/apperror"
	"wallet-settlement/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func TestAuditDenied_ForbiddenOrderAccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)
	merchantID := uuid.New()
	orderID := uuid.New()

	var captured *domain.AuditLog
	mockAudit.EXPECT().Log(gomock.Any(), gomock.Any()).Do(func(_ context.Context, entry *domain.AuditLog) {
		captured = entry
	})

	r := gin.New()
	r.Use(AuditDenied(mockAudit))
	r.POST("/api/v1/orders/:id/settle", func(c *gin.Context) {
		c.Set(CtxActor, domain.Actor{ID: merchantID, Role: domain.RoleMerchant})
		response.Error(c, apperror.ErrForbidden())
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/settle", nil))

	assert.Equal(t, http.StatusForbidden, w.Code)
	require.NotNil(t, captured)
	assert.Equal(t, domain.AuditActionAccessDenied, captured.Action)
	assert.Equal(t, "order", captured.ResourceType)
	assert.Equal(t, orderID.String(), captured.ResourceID)
	assert.Equal(t, merchantID, *captured.MerchantID)
	assert.Contains(t, captured.Details, `"status":403`)
}

func TestAuditDenied_SkipsSuccess(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)

	r := gin.New()
	r.Use(AuditDenied(mockAudit))
	r.POST("/api/v1/orders/:id/settle", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/orders/x/settle", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuditDenied_SkipsUnknownRoutes(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAudit := mocks.NewMockAuditService(ctrl)

	r := gin.New()
	r.Use(AuditDenied(mockAudit))
	r.GET("/health", func(c *gin.Context) {
		c.Status(http.StatusUnauthorized)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestResourceFromRoute(t *testing.T) {
	cases := []struct {
		route    string
		wantType string
	}{
		{"/api/v1/orders/:id/costs", "order"},
		{"/api/v1/admin/wallets/:merchant_id/credit", "wallet"},
		{"/api/v1/admin/tokens", "token"},
		{"/api/v1/wallet/ledger", "wallet"},
		{"/metrics", ""},
	}
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	for _, tc := range cases {
		got, _ := resourceFromRoute(tc.route, c)
		assert.Equal(t, tc.wantType, got, tc.route)
	}
}
