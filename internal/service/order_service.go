package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"
	"wallet-settlement/pkg/apperror"
	"wallet-settlement/pkg/money"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// OrderServiceImpl implements ports.OrderService.
type OrderServiceImpl struct {
	orders          ports.OrderSource
	settlementRepo  ports.SettlementRepository
	fulfillmentRepo ports.FulfillmentRepository
	encSvc          ports.EncryptionService
	auditSvc        ports.AuditService
	log             zerolog.Logger
}

// NewOrderService creates a new OrderServiceImpl.
func NewOrderService(
	orders ports.OrderSource,
	settlementRepo ports.SettlementRepository,
	fulfillmentRepo ports.FulfillmentRepository,
	encSvc ports.EncryptionService,
	auditSvc ports.AuditService,
	log zerolog.Logger,
) *OrderServiceImpl {
	return &OrderServiceImpl{
		orders:          orders,
		settlementRepo:  settlementRepo,
		fulfillmentRepo: fulfillmentRepo,
		encSvc:          encSvc,
		auditSvc:        auditSvc,
		log:             log,
	}
}

// Authorize checks that actor owns the order or is an operator.
func (s *OrderServiceImpl) Authorize(ctx context.Context, actor domain.Actor, orderID uuid.UUID) error {
	_, err := loadOrderFor(ctx, s.orders, actor, orderID)
	return err
}

// SetCosts overwrites the supplied cost fields while the order is not settled.
func (s *OrderServiceImpl) SetCosts(ctx context.Context, actor domain.Actor, orderID uuid.UUID, update domain.CostUpdate) (*ports.SettlementView, error) {
	if update.IsEmpty() {
		return nil, apperror.Validation("At least one cost field is required")
	}
	if update.HasNegative() {
		return nil, apperror.Validation("Costs must not be negative")
	}
	if update.HasOutOfRange() {
		return nil, apperror.Validation(fmt.Sprintf("Costs must not exceed %d", domain.MaxMinorAmount))
	}

	order, err := loadOrderFor(ctx, s.orders, actor, orderID)
	if err != nil {
		return nil, err
	}

	if _, err := s.settlementRepo.GetOrCreate(ctx, orderID, order.MerchantID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get settlement: %w", err))
	}
	state, err := s.settlementRepo.UpdateCosts(ctx, orderID, update)
	if err != nil {
		if errors.Is(err, domain.ErrSettlementClosed) {
			return nil, apperror.ErrNotEditable()
		}
		return nil, apperror.InternalError(fmt.Errorf("update costs: %w", err))
	}

	view, err := resolveView(order, state)
	if err != nil {
		return nil, err
	}

	details := map[string]any{"required": view.Required}
	for name, v := range map[string]*int64{
		"product_cost":  update.ProductCost,
		"shipping_cost": update.ShippingCost,
		"service_fee":   update.ServiceFee,
	} {
		if v != nil {
			details[name] = *v
		}
	}
	s.auditSvc.Log(ctx, newAuditLog(&actor, order.MerchantID, domain.AuditActionSetCosts, "order", orderID.String(), details))

	s.log.Info().
		Str("order_id", orderID.String()).
		Str("merchant_id", order.MerchantID.String()).
		Int64("required", view.Required).
		Msg("settlement costs updated")

	return view, nil
}

// GetSettlement returns the order's settlement state with costs resolved.
// Orders never touched by settlement report the initial state.
func (s *OrderServiceImpl) GetSettlement(ctx context.Context, orderID uuid.UUID) (*ports.SettlementView, error) {
	order, err := loadOrder(ctx, s.orders, orderID)
	if err != nil {
		return nil, err
	}
	state, err := s.settlementRepo.Get(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get settlement: %w", err))
	}
	if state == nil {
		state = domain.NewSettlementState(orderID, order.MerchantID, order.CreatedAt)
	}
	return resolveView(order, state)
}

// GetFulfillment returns the order's fulfillment request with the customer
// contact decrypted.
func (s *OrderServiceImpl) GetFulfillment(ctx context.Context, orderID uuid.UUID) (*ports.FulfillmentView, error) {
	fr, err := s.fulfillmentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get fulfillment request: %w", err))
	}
	if fr == nil {
		return nil, apperror.ErrNotFound("Fulfillment request")
	}

	view := &ports.FulfillmentView{Request: fr}
	if fr.CustomerContactEnc == "" {
		return view, nil
	}
	plain, err := s.encSvc.Decrypt(fr.CustomerContactEnc)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("decrypt customer contact: %w", err))
	}
	if err := json.Unmarshal([]byte(plain), &view.Contact); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("decode customer contact: %w", err))
	}
	return view, nil
}

func loadOrder(ctx context.Context, orders ports.OrderSource, orderID uuid.UUID) (*domain.SourceOrder, error) {
	order, err := orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get order: %w", err))
	}
	if order == nil {
		return nil, apperror.ErrNotFound("Order")
	}
	return order, nil
}

// loadOrderFor loads the order and enforces ownership.
func loadOrderFor(ctx context.Context, orders ports.OrderSource, actor domain.Actor, orderID uuid.UUID) (*domain.SourceOrder, error) {
	order, err := loadOrder(ctx, orders, orderID)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccessMerchant(order.MerchantID) {
		return nil, apperror.ErrForbidden()
	}
	return order, nil
}

// resolveView fills unset costs from the order: product cost defaults to the
// subtotal in minor units, shipping and fee to zero.
func resolveView(order *domain.SourceOrder, state *domain.SettlementState) (*ports.SettlementView, error) {
	subtotal, err := money.ToMinor(order.SubtotalPrice, order.Currency)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("order %s subtotal: %w", order.ID, err))
	}
	costs := state.ResolveCosts(subtotal)
	required, ok := costs.CheckedTotal()
	if !ok {
		return nil, apperror.Validation("Order costs are out of range")
	}
	return &ports.SettlementView{
		State:    *state,
		Costs:    costs,
		Required: required,
		Currency: order.Currency,
	}, nil
}

// buildFulfillment snapshots the order into a pending fulfillment request.
func buildFulfillment(order *domain.SourceOrder, costs domain.CostBreakdown, amount int64, ledgerTxID uuid.UUID, encSvc ports.EncryptionService, now time.Time) (*domain.FulfillmentRequest, error) {
	items := make([]domain.LineItemSummary, 0, len(order.LineItems))
	for i, li := range order.LineItems {
		unit, err := money.ToMinor(li.UnitPrice, order.Currency)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("order %s line %d price: %w", order.ID, i, err))
		}
		items = append(items, domain.LineItemSummary{
			Title:     li.Title,
			SKU:       li.SKU,
			Quantity:  li.Quantity,
			UnitPrice: unit,
		})
	}

	var contactEnc string
	if order.CustomerEmail != "" || order.CustomerPhone != "" {
		raw, err := json.Marshal(domain.CustomerContact{Email: order.CustomerEmail, Phone: order.CustomerPhone})
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("encode customer contact: %w", err))
		}
		contactEnc, err = encSvc.Encrypt(string(raw))
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("encrypt customer contact: %w", err))
		}
	}

	return &domain.FulfillmentRequest{
		ID:                   uuid.New(),
		OrderID:              order.ID,
		MerchantID:           order.MerchantID,
		OrderNumber:          order.OrderNumber,
		ShippingAddress:      order.ShippingAddress,
		CustomerContactEnc:   contactEnc,
		LineItems:            items,
		Costs:                costs,
		WalletDeductedAmount: amount,
		LedgerTransactionID:  ledgerTxID,
		Status:               domain.FulfillmentStatusPending,
		StatusHistory: []domain.StatusChange{{
			Status: domain.FulfillmentStatusPending,
			Note:   "created from wallet settlement",
			At:     now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
