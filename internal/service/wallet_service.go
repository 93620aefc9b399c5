package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"
	"wallet-settlement/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

const (
	defaultLedgerPageSize = 20
	maxLedgerPageSize     = 100
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	walletRepo ports.WalletRepository
	ledgerRepo ports.LedgerRepository
	transactor ports.DBTransactor
	auditSvc   ports.AuditService
	notifySvc  ports.NotificationService
	metrics    *Metrics
	log        zerolog.Logger
}

// NewWalletService creates a new WalletServiceImpl.
func NewWalletService(
	walletRepo ports.WalletRepository,
	ledgerRepo ports.LedgerRepository,
	transactor ports.DBTransactor,
	auditSvc ports.AuditService,
	notifySvc ports.NotificationService,
	metrics *Metrics,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		walletRepo: walletRepo,
		ledgerRepo: ledgerRepo,
		transactor: transactor,
		auditSvc:   auditSvc,
		notifySvc:  notifySvc,
		metrics:    metrics,
		log:        log,
	}
}

// GetOrCreateWallet returns the merchant's wallet, creating an empty one on first use.
func (s *WalletServiceImpl) GetOrCreateWallet(ctx context.Context, merchantID uuid.UUID) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetOrCreate(ctx, merchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get or create wallet: %w", err))
	}
	return w, nil
}

// AppendDebit runs the conditional debit and records its ledger entry inside tx.
// The caller owns tx: on any error it must roll back so a written debit is undone.
func (s *WalletServiceImpl) AppendDebit(ctx context.Context, tx pgx.Tx, req ports.DebitRequest) (*domain.LedgerTransaction, error) {
	if req.Amount <= 0 {
		return nil, apperror.Validation("Debit amount must be positive")
	}
	if req.ReferenceID == "" {
		return nil, apperror.Validation("Debit reference is required")
	}

	wallet, err := s.walletRepo.GetByMerchantID(ctx, req.MerchantID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("get wallet: %w", err))
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}

	balance, ok, err := s.walletRepo.DebitIfSufficient(ctx, tx, req.MerchantID, req.Amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("debit wallet: %w", err))
	}
	if !ok {
		return nil, apperror.ErrInsufficientFunds(req.Amount, balance)
	}

	entry := &domain.LedgerTransaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		MerchantID:    req.MerchantID,
		OrderID:       req.OrderID,
		Amount:        req.Amount,
		Type:          domain.LedgerEntryDebit,
		Reason:        req.Reason,
		ReferenceID:   req.ReferenceID,
		BalanceBefore: balance + req.Amount,
		BalanceAfter:  balance,
		Metadata:      req.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.ledgerRepo.Create(ctx, tx, entry); err != nil {
		if errors.Is(err, domain.ErrDuplicateReference) {
			dup := apperror.ErrDuplicateReference(req.ReferenceID)
			dup.Err = err
			return nil, dup
		}
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}
	return entry, nil
}

// Credit tops up a wallet. A reference already used by the same merchant
// replays the original entry instead of crediting twice.
func (s *WalletServiceImpl) Credit(ctx context.Context, actor domain.Actor, req ports.CreditRequest) (*domain.LedgerTransaction, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, apperror.ErrForbidden()
	}
	if req.Amount <= 0 {
		return nil, apperror.Validation("Credit amount must be positive")
	}
	if req.ReferenceID == "" {
		return nil, apperror.Validation("Credit reference is required")
	}

	key := domain.BuildCreditKey(req.MerchantID, req.ReferenceID)
	if existing, err := s.replayCredit(ctx, key, req); existing != nil || err != nil {
		return existing, err
	}

	wallet, err := s.GetOrCreateWallet(ctx, req.MerchantID)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("begin tx: %w", err))
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	balance, err := s.walletRepo.Credit(ctx, dbTx, req.MerchantID, req.Amount)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("credit wallet: %w", err))
	}

	entry := &domain.LedgerTransaction{
		ID:            uuid.New(),
		WalletID:      wallet.ID,
		MerchantID:    req.MerchantID,
		Amount:        req.Amount,
		Type:          domain.LedgerEntryCredit,
		Reason:        req.Reason,
		ReferenceID:   key,
		BalanceBefore: balance - req.Amount,
		BalanceAfter:  balance,
		Metadata:      req.Metadata,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.ledgerRepo.Create(ctx, dbTx, entry); err != nil {
		if errors.Is(err, domain.ErrDuplicateReference) {
			// A concurrent credit with the same reference won.
			_ = dbTx.Rollback(ctx)
			if existing, rerr := s.replayCredit(ctx, key, req); existing != nil || rerr != nil {
				return existing, rerr
			}
		}
		return nil, apperror.InternalError(fmt.Errorf("create ledger entry: %w", err))
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("commit tx: %w", err))
	}

	s.metrics.addCredit(req.Amount)
	s.auditSvc.Log(ctx, newAuditLog(&actor, req.MerchantID, domain.AuditActionCredit, "wallet", wallet.ID.String(), map[string]any{
		"amount":       req.Amount,
		"reference_id": req.ReferenceID,
		"balance":      balance,
	}))
	s.notifySvc.Notify(ctx, req.MerchantID, domain.NotificationWalletCredited,
		fmt.Sprintf("Wallet credited with %d", req.Amount),
		map[string]any{"amount": req.Amount, "balance": balance, "ledger_transaction_id": entry.ID.String()})

	s.log.Info().
		Str("ledger_tx_id", entry.ID.String()).
		Str("merchant_id", req.MerchantID.String()).
		Int64("amount", req.Amount).
		Int64("balance", balance).
		Msg("wallet credited successfully")

	return entry, nil
}

// replayCredit returns the entry already recorded under key, or nil if none.
// Reusing a reference for a different amount is a conflict.
func (s *WalletServiceImpl) replayCredit(ctx context.Context, key string, req ports.CreditRequest) (*domain.LedgerTransaction, error) {
	existing, err := s.ledgerRepo.GetByReference(ctx, key)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("check credit reference: %w", err))
	}
	if existing == nil {
		return nil, nil
	}
	if existing.Type != domain.LedgerEntryCredit || existing.Amount != req.Amount {
		return nil, apperror.ErrDuplicateReference(req.ReferenceID)
	}
	s.log.Info().Str("reference_id", key).Msg("credit replayed")
	return existing, nil
}

// ListLedger returns a merchant's ledger history, newest first.
func (s *WalletServiceImpl) ListLedger(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerTransaction, int64, error) {
	if params.Page < 1 {
		params.Page = 1
	}
	if params.PageSize < 1 {
		params.PageSize = defaultLedgerPageSize
	}
	if params.PageSize > maxLedgerPageSize {
		params.PageSize = maxLedgerPageSize
	}
	if params.Type != nil && *params.Type != domain.LedgerEntryDebit && *params.Type != domain.LedgerEntryCredit {
		return nil, 0, apperror.Validation("Unknown ledger entry type")
	}

	entries, total, err := s.ledgerRepo.List(ctx, params)
	if err != nil {
		return nil, 0, apperror.InternalError(fmt.Errorf("list ledger: %w", err))
	}
	return entries, total, nil
}
