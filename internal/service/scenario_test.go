package service

import (
	"context"
	"math"
	"sync"
	"testing"
	"time"

	"wallet-settlement/internal/adapter/storage/memory"
	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"
	"wallet-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// engine wires every service onto one memory store.
type engine struct {
	store      *memory.Store
	wallets    *WalletServiceImpl
	orders     *OrderServiceImpl
	settlement *SettlementServiceImpl
	reconciler *ReconciliationServiceImpl
	ledgerRepo *memory.LedgerRepo
	transactor *memory.Transactor
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	log := newTestLogger()
	store := memory.NewStore()

	walletRepo := memory.NewWalletRepo(store)
	ledgerRepo := memory.NewLedgerRepo(store)
	settlementRepo := memory.NewSettlementRepo(store)
	fulfillmentRepo := memory.NewFulfillmentRepo(store)
	orderRepo := memory.NewOrderRepo(store)
	transactor := memory.NewTransactor(store)

	encSvc, err := NewAESEncryptionService(testMasterKey)
	require.NoError(t, err)
	auditSvc := NewAuditService(memory.NewAuditRepo(store), log)
	notifySvc := NewNotificationService(memory.NewNotificationRepo(store), nil, NewHMACSignatureService(), nil, NotificationConfig{}, log)

	walletSvc := NewWalletService(walletRepo, ledgerRepo, transactor, auditSvc, notifySvc, nil, log)
	return &engine{
		store:   store,
		wallets: walletSvc,
		orders:  NewOrderService(orderRepo, settlementRepo, fulfillmentRepo, encSvc, auditSvc, log),
		settlement: NewSettlementService(SettlementDeps{
			Orders:          orderRepo,
			SettlementRepo:  settlementRepo,
			LedgerRepo:      ledgerRepo,
			FulfillmentRepo: fulfillmentRepo,
			WalletSvc:       walletSvc,
			EncSvc:          encSvc,
			Transactor:      transactor,
			AuditSvc:        auditSvc,
			NotifySvc:       notifySvc,
		}, log),
		reconciler: NewReconciliationService(orderRepo, settlementRepo, ledgerRepo, fulfillmentRepo, encSvc, transactor, auditSvc, nil,
			ReconcilerConfig{Grace: time.Minute, Batch: 10}, log),
		ledgerRepo: ledgerRepo,
		transactor: transactor,
	}
}

func (e *engine) order(t *testing.T, merchantID uuid.UUID, subtotal string) uuid.UUID {
	t.Helper()
	o := newTestOrder(merchantID, subtotal, "USD")
	e.store.PutOrder(o)
	return o.ID
}

func (e *engine) credit(t *testing.T, merchantID uuid.UUID, amount int64) {
	t.Helper()
	_, err := e.wallets.Credit(context.Background(), adminActor, ports.CreditRequest{
		MerchantID: merchantID, Amount: amount, ReferenceID: uuid.NewString(), Reason: "top-up",
	})
	require.NoError(t, err)
}

func (e *engine) balance(t *testing.T, merchantID uuid.UUID) int64 {
	t.Helper()
	w, err := e.wallets.GetOrCreateWallet(context.Background(), merchantID)
	require.NoError(t, err)
	return w.Balance
}

func (e *engine) settlementDebits(t *testing.T, merchantID uuid.UUID) []domain.LedgerTransaction {
	t.Helper()
	debit := domain.LedgerEntryDebit
	entries, _, err := e.wallets.ListLedger(context.Background(), ports.LedgerListParams{MerchantID: merchantID, Type: &debit, PageSize: 100})
	require.NoError(t, err)
	return entries
}

func TestScenario_SettleReplayAndTopUp(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	// 1. Balance 10000, order A costs 6000.
	merchantA := uuid.New()
	actorA := domain.Actor{ID: merchantA, Role: domain.RoleMerchant}
	e.credit(t, merchantA, 10000)
	orderA := e.order(t, merchantA, "60.00")

	first, err := e.settlement.Settle(ctx, actorA, orderA)
	require.NoError(t, err)
	assert.False(t, first.Replayed)
	assert.Equal(t, int64(6000), first.AmountCharged)
	assert.Equal(t, int64(4000), first.NewBalance)
	assert.Equal(t, int64(4000), e.balance(t, merchantA))

	fr, err := e.orders.GetFulfillment(ctx, orderA)
	require.NoError(t, err)
	assert.Equal(t, int64(6000), fr.Request.WalletDeductedAmount)
	assert.Equal(t, "buyer@example.com", fr.Contact.Email)
	require.NotNil(t, first.FulfillmentRequestID)
	assert.Equal(t, fr.Request.ID, *first.FulfillmentRequestID)

	// 2. Settling A again replays the original outcome.
	second, err := e.settlement.Settle(ctx, actorA, orderA)
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, *first.FulfillmentRequestID, *second.FulfillmentRequestID)
	assert.Equal(t, first.LedgerTransactionID, second.LedgerTransactionID)
	assert.Equal(t, int64(6000), second.AmountCharged)
	assert.Equal(t, int64(4000), second.NewBalance)
	assert.Equal(t, int64(4000), e.balance(t, merchantA))
	assert.Len(t, e.settlementDebits(t, merchantA), 1)

	// 5. Costs are frozen once A is settled.
	shipping := int64(500)
	_, err = e.orders.SetCosts(ctx, actorA, orderA, domain.CostUpdate{ShippingCost: &shipping})
	assertAppError(t, err, apperror.CodeNotEditable)

	view, err := e.orders.GetSettlement(ctx, orderA)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusSettled, view.State.Status)
	assert.Equal(t, int64(6000), view.Required)
	assert.Equal(t, int64(6000), view.State.ChargedAmount)

	// 3. Balance 3000, order B costs 6000.
	merchantB := uuid.New()
	actorB := domain.Actor{ID: merchantB, Role: domain.RoleMerchant}
	e.credit(t, merchantB, 3000)
	orderB := e.order(t, merchantB, "60.00")

	_, err = e.settlement.Settle(ctx, actorB, orderB)
	assertAppError(t, err, apperror.CodeInsufficientFunds)
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, int64(3000), appErr.Details["shortfall"])
	assert.Equal(t, int64(3000), appErr.Details["balance"])

	view, err = e.orders.GetSettlement(ctx, orderB)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusAwaitingFunds, view.State.Status)
	assert.Equal(t, int64(3000), view.State.Shortfall)
	assert.Equal(t, int64(3000), e.balance(t, merchantB))
	assert.Empty(t, e.settlementDebits(t, merchantB))
	_, err = e.orders.GetFulfillment(ctx, orderB)
	assertAppError(t, err, apperror.CodeNotFound)

	// 4. Top up to 9000 and retry B.
	e.credit(t, merchantB, 6000)
	assert.Equal(t, int64(9000), e.balance(t, merchantB))

	out, err := e.settlement.Settle(ctx, actorB, orderB)
	require.NoError(t, err)
	assert.False(t, out.Replayed)
	assert.Equal(t, int64(3000), out.NewBalance)
	assert.Equal(t, int64(3000), e.balance(t, merchantB))

	view, err = e.orders.GetSettlement(ctx, orderB)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusSettled, view.State.Status)
	assert.Zero(t, view.State.Shortfall)
}

func TestScenario_CostsAppliedBeforeSettlement(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	merchantID := uuid.New()
	actor := domain.Actor{ID: merchantID, Role: domain.RoleMerchant}
	e.credit(t, merchantID, 10000)
	orderID := e.order(t, merchantID, "60.00")

	product, shipping, fee := int64(4000), int64(500), int64(250)
	view, err := e.orders.SetCosts(ctx, actor, orderID, domain.CostUpdate{ProductCost: &product, ShippingCost: &shipping})
	require.NoError(t, err)
	assert.Equal(t, int64(4500), view.Required)

	// Only the supplied field changes.
	view, err = e.orders.SetCosts(ctx, actor, orderID, domain.CostUpdate{ServiceFee: &fee})
	require.NoError(t, err)
	assert.Equal(t, domain.CostBreakdown{ProductCost: 4000, ShippingCost: 500, ServiceFee: 250}, view.Costs)

	out, err := e.settlement.Settle(ctx, actor, orderID)
	require.NoError(t, err)
	assert.Equal(t, int64(4750), out.AmountCharged)
	assert.Equal(t, int64(10000-4750), e.balance(t, merchantID))

	debits := e.settlementDebits(t, merchantID)
	require.Len(t, debits, 1)
	assert.Equal(t, debits[0].BalanceBefore-4750, debits[0].BalanceAfter)
}

func TestScenario_OutOfRangeCostsNeverCharge(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	merchantID := uuid.New()
	actor := domain.Actor{ID: merchantID, Role: domain.RoleMerchant}
	e.credit(t, merchantID, 1000)
	orderID := e.order(t, merchantID, "1.00")

	// Product cost defaults to 100; these two would wrap the total to 1.
	shipping, fee := int64(math.MaxInt64), int64(math.MaxInt64-97)
	_, err := e.orders.SetCosts(ctx, actor, orderID, domain.CostUpdate{ShippingCost: &shipping, ServiceFee: &fee})
	assertAppError(t, err, apperror.CodeValidation)

	limit := domain.MaxMinorAmount + 1
	_, err = e.orders.SetCosts(ctx, actor, orderID, domain.CostUpdate{ServiceFee: &limit})
	assertAppError(t, err, apperror.CodeValidation)

	// Rows written around the service still cannot settle for a wrapped amount.
	repo := memory.NewSettlementRepo(e.store)
	_, err = repo.GetOrCreate(ctx, orderID, merchantID)
	require.NoError(t, err)
	_, err = repo.UpdateCosts(ctx, orderID, domain.CostUpdate{ShippingCost: &shipping, ServiceFee: &fee})
	require.NoError(t, err)

	_, err = e.settlement.Settle(ctx, actor, orderID)
	assertAppError(t, err, apperror.CodeValidation)
	assert.Equal(t, int64(1000), e.balance(t, merchantID))
	assert.Empty(t, e.settlementDebits(t, merchantID))
}

func TestScenario_OtherMerchantCannotSettle(t *testing.T) {
	e := newEngine(t)

	owner := uuid.New()
	e.credit(t, owner, 10000)
	orderID := e.order(t, owner, "60.00")

	_, err := e.settlement.Settle(context.Background(), domain.Actor{ID: uuid.New(), Role: domain.RoleMerchant}, orderID)
	assertAppError(t, err, apperror.CodeForbidden)
	assert.Equal(t, int64(10000), e.balance(t, owner))
}

func TestConcurrency_TwoOrdersExceedingBalance(t *testing.T) {
	for i := 0; i < 20; i++ {
		e := newEngine(t)
		merchantID := uuid.New()
		actor := domain.Actor{ID: merchantID, Role: domain.RoleMerchant}
		e.credit(t, merchantID, 10000)
		orders := []uuid.UUID{e.order(t, merchantID, "60.00"), e.order(t, merchantID, "55.00")}

		var wg sync.WaitGroup
		errs := make([]error, len(orders))
		start := make(chan struct{})
		for j, id := range orders {
			wg.Add(1)
			go func(j int, id uuid.UUID) {
				defer wg.Done()
				<-start
				_, errs[j] = e.settlement.Settle(context.Background(), actor, id)
			}(j, id)
		}
		close(start)
		wg.Wait()

		successes, insufficient := 0, 0
		var charged int64
		for j, err := range errs {
			switch {
			case err == nil:
				successes++
				charged = []int64{6000, 5500}[j]
			case apperror.HasCode(err, apperror.CodeInsufficientFunds):
				insufficient++
			default:
				t.Fatalf("unexpected error: %v", err)
			}
		}
		require.Equal(t, 1, successes)
		require.Equal(t, 1, insufficient)
		require.Equal(t, 10000-charged, e.balance(t, merchantID))
		require.Len(t, e.settlementDebits(t, merchantID), 1)
	}
}

func TestConcurrency_SameOrderChargedOnce(t *testing.T) {
	e := newEngine(t)
	merchantID := uuid.New()
	actor := domain.Actor{ID: merchantID, Role: domain.RoleMerchant}
	e.credit(t, merchantID, 100000)
	orderID := e.order(t, merchantID, "60.00")

	const callers = 20
	var wg sync.WaitGroup
	outcomes := make([]*ports.SettlementOutcome, callers)
	errs := make([]error, callers)
	start := make(chan struct{})
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			outcomes[i], errs[i] = e.settlement.Settle(context.Background(), actor, orderID)
		}(i)
	}
	close(start)
	wg.Wait()

	fresh := 0
	for i := range outcomes {
		require.NoError(t, errs[i])
		assert.Equal(t, outcomes[0].LedgerTransactionID, outcomes[i].LedgerTransactionID)
		assert.Equal(t, int64(6000), outcomes[i].AmountCharged)
		if !outcomes[i].Replayed {
			fresh++
		}
	}
	assert.Equal(t, 1, fresh)
	assert.Equal(t, int64(94000), e.balance(t, merchantID))
	assert.Len(t, e.settlementDebits(t, merchantID), 1)
}

func TestReconciliation_RepairsOrphanedDebit(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()

	merchantID := uuid.New()
	e.credit(t, merchantID, 10000)
	orderID := e.order(t, merchantID, "60.00")

	// Commit a settlement debit without its fulfillment request.
	tx, err := e.transactor.Begin(ctx)
	require.NoError(t, err)
	entry, err := e.wallets.AppendDebit(ctx, tx, ports.DebitRequest{
		MerchantID:  merchantID,
		Amount:      6000,
		ReferenceID: domain.BuildSettlementKey(orderID),
		Reason:      settlementReason,
		OrderID:     &orderID,
	})
	require.NoError(t, err)
	require.NoError(t, tx.Commit(ctx))

	// Inside the grace period nothing is touched.
	n, err := e.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.reconciler.now = func() time.Time { return time.Now().Add(2 * time.Minute) }
	n, err = e.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	fr, err := e.orders.GetFulfillment(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, entry.ID, fr.Request.LedgerTransactionID)
	assert.Equal(t, int64(6000), fr.Request.WalletDeductedAmount)

	view, err := e.orders.GetSettlement(ctx, orderID)
	require.NoError(t, err)
	assert.Equal(t, domain.SettlementStatusSettled, view.State.Status)

	// A second pass finds nothing and settle replays without charging again.
	n, err = e.reconciler.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	out, err := e.settlement.Settle(ctx, adminActor, orderID)
	require.NoError(t, err)
	assert.True(t, out.Replayed)
	assert.Equal(t, fr.Request.ID, *out.FulfillmentRequestID)
	assert.Equal(t, int64(4000), e.balance(t, merchantID))
}

func TestReconciliation_RunStopsOnCancel(t *testing.T) {
	e := newEngine(t)
	e.reconciler.cfg.Interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.reconciler.Run(ctx) }()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("reconciler did not stop")
	}
}

func TestReconciliation_DisabledReturnsImmediately(t *testing.T) {
	e := newEngine(t)
	e.reconciler.cfg.Interval = 0
	assert.NoError(t, e.reconciler.Run(context.Background()))
}
