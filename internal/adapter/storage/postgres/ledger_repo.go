package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const ledgerColumnList = `id, wallet_id, merchant_id, order_id, fulfillment_request_id, amount, type, reason,
		reference_id, balance_before, balance_after, metadata, created_at`

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create appends a ledger entry within a database transaction.
// A reference_id collision is reported as domain.ErrDuplicateReference; the
// caller must roll back since Postgres has aborted the transaction.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerTransaction) error {
	metadata, err := marshalJSONObject(e.Metadata)
	if err != nil {
		return fmt.Errorf("marshal ledger metadata: %w", err)
	}

	query := `INSERT INTO ledger_transactions (` + ledgerColumnList + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err = tx.Exec(ctx, query,
		e.ID, e.WalletID, e.MerchantID, e.OrderID, e.FulfillmentRequestID,
		e.Amount, string(e.Type), e.Reason, e.ReferenceID,
		e.BalanceBefore, e.BalanceAfter, metadata, e.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateReference
		}
		return fmt.Errorf("insert ledger transaction: %w", err)
	}
	return nil
}

// GetByReference fetches a ledger entry by its idempotency key.
func (r *LedgerRepo) GetByReference(ctx context.Context, referenceID string) (*domain.LedgerTransaction, error) {
	query := `SELECT ` + ledgerColumnList + ` FROM ledger_transactions WHERE reference_id = $1`

	e, err := scanLedger(r.pool.QueryRow(ctx, query, referenceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get ledger transaction by reference: %w", err)
	}
	return e, nil
}

// LinkFulfillment sets the fulfillment back-reference once. Linking an entry
// to the same request again is a no-op.
func (r *LedgerRepo) LinkFulfillment(ctx context.Context, tx pgx.Tx, ledgerTxID, fulfillmentID uuid.UUID) error {
	query := `UPDATE ledger_transactions SET fulfillment_request_id = $1
		WHERE id = $2 AND (fulfillment_request_id IS NULL OR fulfillment_request_id = $1)`

	tag, err := tx.Exec(ctx, query, fulfillmentID, ledgerTxID)
	if err != nil {
		return fmt.Errorf("link ledger transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger transaction %s not found or linked elsewhere", ledgerTxID)
	}
	return nil
}

// List fetches a merchant's ledger history, newest first.
func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerTransaction, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf("merchant_id = $%d", argIdx))
	args = append(args, params.MerchantID)
	argIdx++

	if params.Type != nil {
		conditions = append(conditions, fmt.Sprintf("type = $%d", argIdx))
		args = append(args, string(*params.Type))
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	// Count total
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM ledger_transactions %s", where)
	var total int64
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger transactions: %w", err)
	}

	// Fetch page
	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_transactions %s
		ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, ledgerColumnList, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	entries, err := r.queryLedger(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger transactions: %w", err)
	}
	return entries, total, nil
}

// ListOrphanedSettlements returns settlement debits older than olderThan that
// were never linked to a fulfillment request.
func (r *LedgerRepo) ListOrphanedSettlements(ctx context.Context, olderThan time.Time, limit int) ([]domain.LedgerTransaction, error) {
	query := `SELECT ` + ledgerColumnList + ` FROM ledger_transactions
		WHERE type = 'debit' AND order_id IS NOT NULL AND fulfillment_request_id IS NULL
		AND created_at < $1
		ORDER BY created_at ASC LIMIT $2`

	entries, err := r.queryLedger(ctx, query, olderThan, limit)
	if err != nil {
		return nil, fmt.Errorf("list orphaned settlements: %w", err)
	}
	return entries, nil
}

func (r *LedgerRepo) queryLedger(ctx context.Context, query string, args ...any) ([]domain.LedgerTransaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.LedgerTransaction
	for rows.Next() {
		e, err := scanLedger(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ledger row: %w", err)
		}
		entries = append(entries, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger rows: %w", err)
	}
	return entries, nil
}

// scanLedger scans a single row into a LedgerTransaction.
func scanLedger(row pgx.Row) (*domain.LedgerTransaction, error) {
	e := &domain.LedgerTransaction{}
	var entryType string
	var metadata []byte
	err := row.Scan(
		&e.ID, &e.WalletID, &e.MerchantID, &e.OrderID, &e.FulfillmentRequestID,
		&e.Amount, &entryType, &e.Reason, &e.ReferenceID,
		&e.BalanceBefore, &e.BalanceAfter, &metadata, &e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Type = domain.LedgerEntryType(entryType)
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
			return nil, fmt.Errorf("decode ledger metadata: %w", err)
		}
	}
	return e, nil
}

// marshalJSONObject encodes m, writing an empty object for nil.
func marshalJSONObject(m map[string]any) ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}
