package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"wallet-settlement/internal/adapter/http/middleware"
	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"
	"wallet-settlement/internal/core/ports/mocks"
	"wallet-settlement/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestContext builds a gin context with an authenticated actor and path params.
func newTestContext(method, path string, body any, actor *domain.Actor, params gin.Params) (*gin.Context, *httptest.ResponseRecorder) {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, &buf)
	c.Request.Header.Set("Content-Type", "application/json")
	c.Params = params
	if actor != nil {
		c.Set(middleware.CtxActor, *actor)
	}
	return c, w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func merchantActor() *domain.Actor {
	return &domain.Actor{ID: uuid.New(), Role: domain.RoleMerchant}
}

// --- Order Handler Tests ---

func TestSettle_Created(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettle := mocks.NewMockSettlementService(ctrl)
	h := NewOrderHandler(mocks.NewMockOrderService(ctrl), mockSettle)

	actor := merchantActor()
	orderID := uuid.New()
	mockSettle.EXPECT().Settle(gomock.Any(), *actor, orderID).Return(&ports.SettlementOutcome{
		OrderID:       orderID,
		AmountCharged: 6000,
		NewBalance:    4000,
		ChargedAt:     time.Now(),
	}, nil)

	c, w := newTestContext(http.MethodPost, "/api/v1/orders/"+orderID.String()+"/settle", nil, actor,
		gin.Params{{Key: "id", Value: orderID.String()}})
	h.Settle(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 6000, data["amount_charged"])
	assert.EqualValues(t, 4000, data["new_balance"])
	assert.Equal(t, false, data["replayed"])
}

func TestSettle_ReplayReturnsOK(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettle := mocks.NewMockSettlementService(ctrl)
	h := NewOrderHandler(mocks.NewMockOrderService(ctrl), mockSettle)

	actor := merchantActor()
	orderID := uuid.New()
	mockSettle.EXPECT().Settle(gomock.Any(), *actor, orderID).Return(&ports.SettlementOutcome{OrderID: orderID, Replayed: true}, nil)

	c, w := newTestContext(http.MethodPost, "/", nil, actor, gin.Params{{Key: "id", Value: orderID.String()}})
	h.Settle(c)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestSettle_InsufficientFunds(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockSettle := mocks.NewMockSettlementService(ctrl)
	h := NewOrderHandler(mocks.NewMockOrderService(ctrl), mockSettle)

	actor := merchantActor()
	orderID := uuid.New()
	mockSettle.EXPECT().Settle(gomock.Any(), *actor, orderID).Return(nil, apperror.ErrInsufficientFunds(5500, 4000))

	c, w := newTestContext(http.MethodPost, "/", nil, actor, gin.Params{{Key: "id", Value: orderID.String()}})
	h.Settle(c)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Equal(t, apperror.CodeInsufficientFunds, resp["error_code"])
	details := resp["details"].(map[string]any)
	assert.EqualValues(t, 1500, details["shortfall"])
	assert.EqualValues(t, 4000, details["balance"])
	assert.EqualValues(t, 5500, details["required"])
}

func TestSettle_InvalidOrderID(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewOrderHandler(mocks.NewMockOrderService(ctrl), mocks.NewMockSettlementService(ctrl))

	c, w := newTestContext(http.MethodPost, "/", nil, merchantActor(), gin.Params{{Key: "id", Value: "not-a-uuid"}})
	h.Settle(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettle_NoActor(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewOrderHandler(mocks.NewMockOrderService(ctrl), mocks.NewMockSettlementService(ctrl))

	c, w := newTestContext(http.MethodPost, "/", nil, nil, gin.Params{{Key: "id", Value: uuid.NewString()}})
	h.Settle(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSetCosts_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOrders := mocks.NewMockOrderService(ctrl)
	h := NewOrderHandler(mockOrders, mocks.NewMockSettlementService(ctrl))

	actor := merchantActor()
	orderID := uuid.New()
	shipping := int64(500)

	mockOrders.EXPECT().SetCosts(gomock.Any(), *actor, orderID, domain.CostUpdate{ShippingCost: &shipping}).
		Return(&ports.SettlementView{
			State:    domain.SettlementState{OrderID: orderID, Status: domain.SettlementStatusUnsettled, ShippingCost: &shipping},
			Costs:    domain.CostBreakdown{ProductCost: 6000, ShippingCost: 500},
			Required: 6500,
			Currency: "USD",
		}, nil)

	c, w := newTestContext(http.MethodPut, "/", map[string]any{"shipping_cost": 500}, actor,
		gin.Params{{Key: "id", Value: orderID.String()}})
	h.SetCosts(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 6500, data["required"])
	assert.Equal(t, "unsettled", data["status"])
}

func TestSetCosts_NegativeRejected(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewOrderHandler(mocks.NewMockOrderService(ctrl), mocks.NewMockSettlementService(ctrl))

	c, w := newTestContext(http.MethodPut, "/", map[string]any{"service_fee": -1}, merchantActor(),
		gin.Params{{Key: "id", Value: uuid.NewString()}})
	h.SetCosts(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, apperror.CodeValidation, decodeEnvelope(t, w)["error_code"])
}

func TestSetCosts_NotEditable(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOrders := mocks.NewMockOrderService(ctrl)
	h := NewOrderHandler(mockOrders, mocks.NewMockSettlementService(ctrl))

	mockOrders.EXPECT().SetCosts(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, apperror.ErrNotEditable())

	c, w := newTestContext(http.MethodPut, "/", map[string]any{"product_cost": 100}, merchantActor(),
		gin.Params{{Key: "id", Value: uuid.NewString()}})
	h.SetCosts(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperror.CodeNotEditable, decodeEnvelope(t, w)["error_code"])
}

func TestGetSettlement_Forbidden(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOrders := mocks.NewMockOrderService(ctrl)
	h := NewOrderHandler(mockOrders, mocks.NewMockSettlementService(ctrl))

	actor := merchantActor()
	orderID := uuid.New()
	mockOrders.EXPECT().Authorize(gomock.Any(), *actor, orderID).Return(apperror.ErrForbidden())

	c, w := newTestContext(http.MethodGet, "/", nil, actor, gin.Params{{Key: "id", Value: orderID.String()}})
	h.GetSettlement(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestGetFulfillment_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockOrders := mocks.NewMockOrderService(ctrl)
	h := NewOrderHandler(mockOrders, mocks.NewMockSettlementService(ctrl))

	actor := merchantActor()
	orderID := uuid.New()
	mockOrders.EXPECT().Authorize(gomock.Any(), *actor, orderID).Return(nil)
	mockOrders.EXPECT().GetFulfillment(gomock.Any(), orderID).Return(&ports.FulfillmentView{
		Request: &domain.FulfillmentRequest{
			ID:                   uuid.New(),
			OrderID:              orderID,
			CustomerContactEnc:   "ciphertext",
			WalletDeductedAmount: 6000,
			Status:               domain.FulfillmentStatusPending,
		},
		Contact: domain.CustomerContact{Email: "buyer@example.com"},
	}, nil)

	c, w := newTestContext(http.MethodGet, "/", nil, actor, gin.Params{{Key: "id", Value: orderID.String()}})
	h.GetFulfillment(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "ciphertext")
	data := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 6000, data["wallet_deducted_amount"])
	assert.Equal(t, "buyer@example.com", data["customer_contact"].(map[string]any)["email"])
}

// --- Wallet Handler Tests ---

func TestGetWallet_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	actor := merchantActor()
	mockWallet.EXPECT().GetOrCreateWallet(gomock.Any(), actor.ID).Return(&domain.Wallet{
		ID: uuid.New(), MerchantID: actor.ID, Balance: 4200,
	}, nil)

	c, w := newTestContext(http.MethodGet, "/api/v1/wallet", nil, actor, nil)
	h.GetWallet(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 4200, data["balance"])
	assert.Equal(t, actor.ID.String(), data["merchant_id"])
}

func TestListLedger_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewWalletHandler(mockWallet)

	actor := merchantActor()
	debit := domain.LedgerEntryDebit
	mockWallet.EXPECT().ListLedger(gomock.Any(), ports.LedgerListParams{
		MerchantID: actor.ID, Type: &debit, Page: 2, PageSize: 10,
	}).Return([]domain.LedgerTransaction{{ID: uuid.New(), Amount: 100, Type: domain.LedgerEntryDebit}}, int64(11), nil)

	c, w := newTestContext(http.MethodGet, "/api/v1/wallet/ledger?page=2&page_size=10&type=debit", nil, actor, nil)
	h.ListLedger(c)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 11, data["total"])
	assert.EqualValues(t, 2, data["total_pages"])
	assert.Len(t, data["items"], 1)
}

func TestListLedger_BadType(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewWalletHandler(mocks.NewMockWalletService(ctrl))

	c, w := newTestContext(http.MethodGet, "/api/v1/wallet/ledger?type=refund", nil, merchantActor(), nil)
	h.ListLedger(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

// --- Admin Handler Tests ---

func TestCredit_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockWallet := mocks.NewMockWalletService(ctrl)
	h := NewAdminHandler(mockWallet, mocks.NewMockAuthService(ctrl))

	admin := &domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}
	merchantID := uuid.New()
	mockWallet.EXPECT().Credit(gomock.Any(), *admin, ports.CreditRequest{
		MerchantID: merchantID, Amount: 10000, ReferenceID: "topup-1", Reason: "bank transfer",
	}).Return(&domain.LedgerTransaction{ID: uuid.New(), Amount: 10000, Type: domain.LedgerEntryCredit, BalanceAfter: 10000}, nil)

	c, w := newTestContext(http.MethodPost, "/", map[string]any{
		"amount": 10000, "reference_id": "topup-1", "reason": " bank transfer ",
	}, admin, gin.Params{{Key: "merchant_id", Value: merchantID.String()}})
	h.Credit(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.EqualValues(t, 10000, data["balance_after"])
}

func TestCredit_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	h := NewAdminHandler(mocks.NewMockWalletService(ctrl), mocks.NewMockAuthService(ctrl))
	admin := &domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}

	c, w := newTestContext(http.MethodPost, "/", map[string]any{"amount": 0, "reference_id": "x"}, admin,
		gin.Params{{Key: "merchant_id", Value: uuid.NewString()}})
	h.Credit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestIssueToken_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAdminHandler(mocks.NewMockWalletService(ctrl), mockAuth)

	admin := &domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}
	subject := uuid.New()
	mockAuth.EXPECT().IssueToken(gomock.Any(), *admin, subject, domain.RoleMerchant).Return(&ports.IssuedToken{
		Token: "signed", Subject: subject, Role: domain.RoleMerchant, ExpiresAt: time.Now().Add(time.Hour),
	}, nil)

	c, w := newTestContext(http.MethodPost, "/", map[string]any{"subject": subject.String(), "role": "merchant"}, admin, nil)
	h.IssueToken(c)

	assert.Equal(t, http.StatusCreated, w.Code)
	data := decodeEnvelope(t, w)["data"].(map[string]any)
	assert.Equal(t, "signed", data["token"])
}

// --- Health & Docs ---

type fakeChecker struct {
	name string
	err  error
}

func (f fakeChecker) Ping(context.Context) error { return f.err }
func (f fakeChecker) Name() string               { return f.name }

func TestHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(fakeChecker{name: "memory"})(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decodeEnvelope(t, w)["status"])
}

func TestHealthCheck_Degraded(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/health", nil)

	HealthCheck(fakeChecker{name: "postgresql"}, fakeChecker{name: "redis", err: errors.New("connection refused")})(c)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeEnvelope(t, w)
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]any)
	assert.Equal(t, "unhealthy", deps["redis"].(map[string]any)["status"])
	assert.Equal(t, "healthy", deps["postgresql"].(map[string]any)["status"])
}

func TestDocsHandler(t *testing.T) {
	h := NewDocsHandler([]byte("openapi: 3.0.3\n"))

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger", nil)
	h.UI(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "/swagger/spec")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger/spec", nil)
	h.Spec(c)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "openapi")

	w = httptest.NewRecorder()
	c, _ = gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/swagger/spec", nil)
	NewDocsHandler(nil).Spec(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
