package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"

	"github.com/rs/zerolog"
)

// ReconcilerConfig controls the orphan scan.
type ReconcilerConfig struct {
	// Interval between scans. Zero disables the loop.
	Interval time.Duration
	// Grace is how old a debit must be before it counts as orphaned.
	Grace time.Duration
	Batch int
}

// ReconciliationServiceImpl creates the fulfillment request for settlement
// debits that committed without one.
type ReconciliationServiceImpl struct {
	orders          ports.OrderSource
	settlementRepo  ports.SettlementRepository
	ledgerRepo      ports.LedgerRepository
	fulfillmentRepo ports.FulfillmentRepository
	encSvc          ports.EncryptionService
	transactor      ports.DBTransactor
	auditSvc        ports.AuditService
	metrics         *Metrics
	cfg             ReconcilerConfig
	now             func() time.Time
	log             zerolog.Logger
}

// NewReconciliationService creates a new ReconciliationServiceImpl.
func NewReconciliationService(
	orders ports.OrderSource,
	settlementRepo ports.SettlementRepository,
	ledgerRepo ports.LedgerRepository,
	fulfillmentRepo ports.FulfillmentRepository,
	encSvc ports.EncryptionService,
	transactor ports.DBTransactor,
	auditSvc ports.AuditService,
	metrics *Metrics,
	cfg ReconcilerConfig,
	log zerolog.Logger,
) *ReconciliationServiceImpl {
	if cfg.Batch <= 0 {
		cfg.Batch = 50
	}
	return &ReconciliationServiceImpl{
		orders:          orders,
		settlementRepo:  settlementRepo,
		ledgerRepo:      ledgerRepo,
		fulfillmentRepo: fulfillmentRepo,
		encSvc:          encSvc,
		transactor:      transactor,
		auditSvc:        auditSvc,
		metrics:         metrics,
		cfg:             cfg,
		now:             time.Now,
		log:             log,
	}
}

// Run scans on every tick until ctx is cancelled.
func (s *ReconciliationServiceImpl) Run(ctx context.Context) error {
	if s.cfg.Interval <= 0 {
		s.log.Info().Msg("reconciler disabled")
		return nil
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	s.log.Info().Dur("interval", s.cfg.Interval).Dur("grace", s.cfg.Grace).Msg("reconciler started")
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reconciler stopped")
			return nil
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.log.Error().Err(err).Msg("reconcile pass failed")
			}
		}
	}
}

// RunOnce repairs one batch of orphaned settlement debits and returns how
// many were repaired.
func (s *ReconciliationServiceImpl) RunOnce(ctx context.Context) (int, error) {
	orphans, err := s.ledgerRepo.ListOrphanedSettlements(ctx, s.now().Add(-s.cfg.Grace), s.cfg.Batch)
	if err != nil {
		return 0, fmt.Errorf("list orphaned settlements: %w", err)
	}

	repaired := 0
	var errs []error
	for i := range orphans {
		entry := &orphans[i]
		ok, err := s.repair(ctx, entry)
		if err != nil {
			s.metrics.reconciled(false)
			s.log.Error().Err(err).Str("ledger_tx_id", entry.ID.String()).Msg("failed to repair orphaned settlement")
			errs = append(errs, fmt.Errorf("ledger tx %s: %w", entry.ID, err))
			continue
		}
		if ok {
			s.metrics.reconciled(true)
			repaired++
		}
	}
	return repaired, errors.Join(errs...)
}

// repair links or creates the fulfillment request for one orphaned debit.
func (s *ReconciliationServiceImpl) repair(ctx context.Context, entry *domain.LedgerTransaction) (bool, error) {
	if entry.OrderID == nil {
		return false, nil
	}
	orderID := *entry.OrderID

	existing, err := s.fulfillmentRepo.GetByOrderID(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("get fulfillment request: %w", err)
	}
	if existing != nil {
		return true, s.link(ctx, entry, existing)
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return false, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		s.log.Warn().Str("order_id", orderID.String()).Msg("orphaned settlement references unknown order")
		return false, nil
	}

	state, err := s.settlementRepo.GetOrCreate(ctx, orderID, order.MerchantID)
	if err != nil {
		return false, fmt.Errorf("get settlement: %w", err)
	}
	view, err := resolveView(order, state)
	if err != nil {
		return false, err
	}

	fr, err := buildFulfillment(order, view.Costs, entry.Amount, entry.ID, s.encSvc, s.now().UTC())
	if err != nil {
		return false, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if _, err := s.settlementRepo.MarkSettled(ctx, dbTx, domain.SettledTransition{
		OrderID:              orderID,
		ChargedAmount:        entry.Amount,
		ChargedAt:            entry.CreatedAt,
		LedgerTransactionID:  entry.ID,
		FulfillmentRequestID: fr.ID,
		Costs:                view.Costs,
	}); err != nil {
		return false, fmt.Errorf("mark settled: %w", err)
	}
	if err := s.fulfillmentRepo.Create(ctx, dbTx, fr); err != nil {
		if errors.Is(err, domain.ErrDuplicateFulfillment) {
			// Another pass repaired it first.
			return false, nil
		}
		return false, fmt.Errorf("create fulfillment request: %w", err)
	}
	if err := s.ledgerRepo.LinkFulfillment(ctx, dbTx, entry.ID, fr.ID); err != nil {
		return false, fmt.Errorf("link fulfillment request: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	s.auditSvc.Log(ctx, newAuditLog(nil, order.MerchantID, domain.AuditActionReconcileFulfillment, "order", orderID.String(), map[string]any{
		"ledger_transaction_id":  entry.ID.String(),
		"fulfillment_request_id": fr.ID.String(),
		"amount":                 entry.Amount,
	}))
	s.log.Info().
		Str("order_id", orderID.String()).
		Str("ledger_tx_id", entry.ID.String()).
		Str("fulfillment_request_id", fr.ID.String()).
		Msg("orphaned settlement repaired")
	return true, nil
}

// link sets the missing back-reference when the fulfillment request exists.
func (s *ReconciliationServiceImpl) link(ctx context.Context, entry *domain.LedgerTransaction, fr *domain.FulfillmentRequest) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.ledgerRepo.LinkFulfillment(ctx, dbTx, entry.ID, fr.ID); err != nil {
		return fmt.Errorf("link fulfillment request: %w", err)
	}
	if err := dbTx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	s.log.Info().Str("ledger_tx_id", entry.ID.String()).Str("fulfillment_request_id", fr.ID.String()).Msg("orphaned settlement linked")
	return nil
}
