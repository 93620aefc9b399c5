package handler

import (
	"wallet-settlement/internal/adapter/http/dto"
	"wallet-settlement/internal/core/ports"
	"wallet-settlement/pkg/apperror"
	"wallet-settlement/pkg/response"

	"github.com/gin-gonic/gin"
)

// OrderHandler handles order settlement endpoints.
type OrderHandler struct {
	orderSvc      ports.OrderService
	settlementSvc ports.SettlementService
}

// NewOrderHandler creates a new OrderHandler.
func NewOrderHandler(orderSvc ports.OrderService, settlementSvc ports.SettlementService) *OrderHandler {
	return &OrderHandler{
		orderSvc:      orderSvc,
		settlementSvc: settlementSvc,
	}
}

// GetSettlement handles GET /api/v1/orders/:id/settlement.
func (h *OrderHandler) GetSettlement(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.orderSvc.Authorize(ctx, actor, orderID); err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.orderSvc.GetSettlement(ctx, orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewSettlementResponse(view))
}

// SetCosts handles PUT /api/v1/orders/:id/costs.
func (h *OrderHandler) SetCosts(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	var req dto.SetCostsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return
	}

	view, err := h.orderSvc.SetCosts(c.Request.Context(), actor, orderID, req.ToUpdate())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.NewSettlementResponse(view))
}

// Settle handles POST /api/v1/orders/:id/settle. A first settlement answers
// 201; a replay of an earlier one answers 200 with the same body.
func (h *OrderHandler) Settle(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	outcome, err := h.settlementSvc.Settle(c.Request.Context(), actor, orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if outcome.Replayed {
		response.OK(c, outcome)
		return
	}
	response.Created(c, outcome)
}

// GetFulfillment handles GET /api/v1/orders/:id/fulfillment.
func (h *OrderHandler) GetFulfillment(c *gin.Context) {
	actor, ok := requireActor(c)
	if !ok {
		return
	}
	orderID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if err := h.orderSvc.Authorize(ctx, actor, orderID); err != nil {
		response.Error(c, err)
		return
	}

	view, err := h.orderSvc.GetFulfillment(ctx, orderID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.FulfillmentResponse{
		FulfillmentRequest: view.Request,
		CustomerContact:    view.Contact,
	})
}
