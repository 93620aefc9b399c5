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

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const settlementReason = "order settlement"

// errSettleConflict marks a settle transaction that lost a race on the same
// order. The caller replays the winner.
var errSettleConflict = errors.New("settlement conflict")

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	orders          ports.OrderSource
	settlementRepo  ports.SettlementRepository
	ledgerRepo      ports.LedgerRepository
	fulfillmentRepo ports.FulfillmentRepository
	walletSvc       ports.WalletService
	cache           ports.SettlementCache
	encSvc          ports.EncryptionService
	transactor      ports.DBTransactor
	auditSvc        ports.AuditService
	notifySvc       ports.NotificationService
	metrics         *Metrics
	cacheTTL        time.Duration
	log             zerolog.Logger
}

// SettlementDeps groups the collaborators of the settlement engine.
// Cache and Metrics may be nil.
type SettlementDeps struct {
	Orders          ports.OrderSource
	SettlementRepo  ports.SettlementRepository
	LedgerRepo      ports.LedgerRepository
	FulfillmentRepo ports.FulfillmentRepository
	WalletSvc       ports.WalletService
	Cache           ports.SettlementCache
	EncSvc          ports.EncryptionService
	Transactor      ports.DBTransactor
	AuditSvc        ports.AuditService
	NotifySvc       ports.NotificationService
	Metrics         *Metrics
	CacheTTL        time.Duration
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(d SettlementDeps, log zerolog.Logger) *SettlementServiceImpl {
	return &SettlementServiceImpl{
		orders:          d.Orders,
		settlementRepo:  d.SettlementRepo,
		ledgerRepo:      d.LedgerRepo,
		fulfillmentRepo: d.FulfillmentRepo,
		walletSvc:       d.WalletSvc,
		cache:           d.Cache,
		encSvc:          d.EncSvc,
		transactor:      d.Transactor,
		auditSvc:        d.AuditSvc,
		notifySvc:       d.NotifySvc,
		metrics:         d.Metrics,
		cacheTTL:        d.CacheTTL,
		log:             log,
	}
}

// Settle charges the merchant's wallet for an order and creates its
// fulfillment request, at most once per order. Repeat calls replay the
// original outcome with Replayed set.
func (s *SettlementServiceImpl) Settle(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*ports.SettlementOutcome, error) {
	started := time.Now()
	outcome, err := s.settle(ctx, actor, orderID)
	switch {
	case err == nil && outcome.Replayed:
		s.metrics.observeSettle(outcomeReplayed, started)
	case err == nil:
		s.metrics.observeSettle(outcomeSettled, started)
	case apperror.HasCode(err, apperror.CodeInsufficientFunds):
		s.metrics.observeSettle(outcomeInsufficientFunds, started)
	default:
		s.metrics.observeSettle(outcomeError, started)
	}
	return outcome, err
}

func (s *SettlementServiceImpl) settle(ctx context.Context, actor domain.Actor, orderID uuid.UUID) (*ports.SettlementOutcome, error) {
	order, err := loadOrderFor(ctx, s.orders, actor, orderID)
	if err != nil {
		return nil, err
	}
	state, err := s.settlementRepo.GetOrCreate(ctx, orderID, order.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get settlement: %w", err))
	}
	view, err := resolveView(order, state)
	if err != nil {
		return nil, err
	}
	if view.Required <= 0 {
		return nil, apperror.Validation("Settlement amount must be positive")
	}

	key := domain.BuildSettlementKey(orderID)

	// Layer 1: Redis replay cache
	if s.cache != nil {
		cached, cerr := s.cache.Get(ctx, key)
		if cerr != nil {
			s.log.Warn().Err(cerr).Str("key", key).Msg("settlement cache get failed, falling back to DB")
		}
		if cached != nil {
			var out ports.SettlementOutcome
			if jerr := json.Unmarshal(cached, &out); jerr == nil {
				out.Replayed = true
				s.log.Info().Str("order_id", orderID.String()).Msg("settlement replayed from cache")
				return &out, nil
			}
		}
	}

	// Layer 2: fulfillment request and ledger reference
	if out, err := s.replay(ctx, orderID, view.Costs); out != nil || err != nil {
		return out, err
	}

	fr, err := buildFulfillment(order, view.Costs, view.Required, uuid.Nil, s.encSvc, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	if _, err := s.walletSvc.GetOrCreateWallet(ctx, order.MerchantID); err != nil {
		return nil, err
	}

	entry, err := s.charge(ctx, order, view, key, fr)
	switch {
	case err == nil:
	case apperror.HasCode(err, apperror.CodeInsufficientFunds):
		// A concurrent settle of this order may have taken the funds.
		if out, rerr := s.replay(ctx, orderID, view.Costs); rerr == nil && out != nil {
			return out, nil
		}
		s.recordShortfall(ctx, order, view, err)
		return nil, err
	case apperror.HasCode(err, apperror.CodeDuplicateReference), errors.Is(err, errSettleConflict):
		s.log.Info().Str("order_id", orderID.String()).Msg("concurrent settlement detected, replaying")
		out, rerr := s.replay(ctx, orderID, view.Costs)
		if rerr != nil {
			return nil, rerr
		}
		if out == nil {
			return nil, apperror.InternalError(fmt.Errorf("settlement %s conflicted but has no outcome", orderID))
		}
		return out, nil
	default:
		return nil, err
	}

	outcome := &ports.SettlementOutcome{
		OrderID:              orderID,
		FulfillmentRequestID: &fr.ID,
		LedgerTransactionID:  entry.ID,
		AmountCharged:        entry.Amount,
		NewBalance:           entry.BalanceAfter,
		Costs:                view.Costs,
		ChargedAt:            entry.CreatedAt,
	}

	if s.cache != nil {
		if b, merr := json.Marshal(outcome); merr == nil {
			if cerr := s.cache.Set(ctx, key, b, s.cacheTTL); cerr != nil {
				s.log.Warn().Err(cerr).Str("key", key).Msg("failed to cache settlement outcome")
			}
		}
	}

	s.metrics.addDebit(entry.Amount)
	s.notifySvc.Notify(ctx, order.MerchantID, domain.NotificationSettlementCharged,
		fmt.Sprintf("Order %s settled: %d charged to wallet", order.OrderNumber, entry.Amount),
		map[string]any{
			"order_id":               orderID.String(),
			"order_number":           order.OrderNumber,
			"amount":                 entry.Amount,
			"balance":                entry.BalanceAfter,
			"fulfillment_request_id": fr.ID.String(),
		})
	s.auditSvc.Log(ctx, newAuditLog(&actor, order.MerchantID, domain.AuditActionSettle, "order", orderID.String(), map[string]any{
		"amount":                 entry.Amount,
		"ledger_transaction_id":  entry.ID.String(),
		"fulfillment_request_id": fr.ID.String(),
	}))

	s.log.Info().
		Str("order_id", orderID.String()).
		Str("merchant_id", order.MerchantID.String()).
		Str("ledger_tx_id", entry.ID.String()).
		Int64("amount", entry.Amount).
		Int64("balance", entry.BalanceAfter).
		Msg("order settled successfully")

	return outcome, nil
}

// charge runs the debit, the settled transition, the fulfillment insert and
// the ledger back-reference in one transaction.
func (s *SettlementServiceImpl) charge(ctx context.Context, order *domain.SourceOrder, view *ports.SettlementView, key string, fr *domain.FulfillmentRequest) (*domain.LedgerTransaction, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	orderID := order.ID
	entry, err := s.walletSvc.AppendDebit(ctx, dbTx, ports.DebitRequest{
		MerchantID:  order.MerchantID,
		Amount:      view.Required,
		ReferenceID: key,
		Reason:      settlementReason,
		OrderID:     &orderID,
		Metadata: map[string]any{
			"order_number":  order.OrderNumber,
			"product_cost":  view.Costs.ProductCost,
			"shipping_cost": view.Costs.ShippingCost,
			"service_fee":   view.Costs.ServiceFee,
		},
	})
	if err != nil {
		return nil, err
	}

	fr.LedgerTransactionID = entry.ID
	fr.CreatedAt, fr.UpdatedAt = entry.CreatedAt, entry.CreatedAt
	fr.StatusHistory[0].At = entry.CreatedAt

	settled, err := s.settlementRepo.MarkSettled(ctx, dbTx, domain.SettledTransition{
		OrderID:              orderID,
		ChargedAmount:        entry.Amount,
		ChargedAt:            entry.CreatedAt,
		LedgerTransactionID:  entry.ID,
		FulfillmentRequestID: fr.ID,
		Costs:                view.Costs,
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("mark settled: %w", err))
	}
	if !settled {
		return nil, errSettleConflict
	}

	if err := s.fulfillmentRepo.Create(ctx, dbTx, fr); err != nil {
		if errors.Is(err, domain.ErrDuplicateFulfillment) {
			return nil, errSettleConflict
		}
		return nil, apperror.InternalError(fmt.Errorf("create fulfillment request: %w", err))
	}

	if err := s.ledgerRepo.LinkFulfillment(ctx, dbTx, entry.ID, fr.ID); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("link fulfillment request: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}
	return entry, nil
}

// replay rebuilds the outcome of an earlier settlement of orderID, or returns
// nil if the order was never charged.
func (s *SettlementServiceImpl) replay(ctx context.Context, orderID uuid.UUID, costs domain.CostBreakdown) (*ports.SettlementOutcome, error) {
	key := domain.BuildSettlementKey(orderID)

	fr, err := s.fulfillmentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check fulfillment request: %w", err))
	}
	entry, err := s.ledgerRepo.GetByReference(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check ledger reference: %w", err))
	}

	switch {
	case fr != nil:
		out := &ports.SettlementOutcome{
			OrderID:              orderID,
			FulfillmentRequestID: &fr.ID,
			LedgerTransactionID:  fr.LedgerTransactionID,
			AmountCharged:        fr.WalletDeductedAmount,
			Costs:                fr.Costs,
			ChargedAt:            fr.CreatedAt,
			Replayed:             true,
		}
		if entry != nil {
			out.NewBalance = entry.BalanceAfter
			out.ChargedAt = entry.CreatedAt
		}
		s.log.Info().Str("order_id", orderID.String()).Msg("settlement replayed from fulfillment request")
		return out, nil
	case entry != nil:
		s.log.Warn().Str("order_id", orderID.String()).Str("ledger_tx_id", entry.ID.String()).
			Msg("settlement debit has no fulfillment request, replaying from ledger")
		return &ports.SettlementOutcome{
			OrderID:              orderID,
			FulfillmentRequestID: entry.FulfillmentRequestID,
			LedgerTransactionID:  entry.ID,
			AmountCharged:        entry.Amount,
			NewBalance:           entry.BalanceAfter,
			Costs:                costs,
			ChargedAt:            entry.CreatedAt,
			Replayed:             true,
		}, nil
	}
	return nil, nil
}

// recordShortfall moves the order to awaiting_funds and tells the merchant
// how much to top up.
func (s *SettlementServiceImpl) recordShortfall(ctx context.Context, order *domain.SourceOrder, view *ports.SettlementView, err error) {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		return
	}
	shortfall, _ := appErr.Details["shortfall"].(int64)
	balance, _ := appErr.Details["balance"].(int64)

	if _, merr := s.settlementRepo.MarkAwaitingFunds(ctx, order.ID, shortfall); merr != nil {
		s.log.Error().Err(merr).Str("order_id", order.ID.String()).Msg("failed to record awaiting funds")
	}

	s.notifySvc.Notify(ctx, order.MerchantID, domain.NotificationFundsRequired,
		fmt.Sprintf("Order %s needs %d more in your wallet to settle", order.OrderNumber, shortfall),
		map[string]any{
			"order_id":     order.ID.String(),
			"order_number": order.OrderNumber,
			"required":     view.Required,
			"balance":      balance,
			"shortfall":    shortfall,
		})

	s.log.Info().
		Str("order_id", order.ID.String()).
		Str("merchant_id", order.MerchantID.String()).
		Int64("required", view.Required).
		Int64("shortfall", shortfall).
		Msg("settlement awaiting funds")
}
