package postgres

import (
	"context"
	"testing"
	"time"

	"wallet-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFulfillment() *domain.FulfillmentRequest {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.FulfillmentRequest{
		ID:          uuid.New(),
		OrderID:     uuid.New(),
		MerchantID:  uuid.New(),
		OrderNumber: "#1001",
		ShippingAddress: domain.Address{
			Name: "Ada Lovelace", Line1: "12 St James's Square", City: "London",
			PostalCode: "SW1Y 4JH", CountryCode: "GB",
		},
		CustomerContactEnc:   "ciphertext",
		LineItems:            []domain.LineItemSummary{{Title: "Mug", SKU: "MUG-1", Quantity: 2, UnitPrice: 2995}},
		Costs:                domain.CostBreakdown{ProductCost: 5990},
		WalletDeductedAmount: 5990,
		LedgerTransactionID:  uuid.New(),
		Status:               domain.FulfillmentStatusPending,
		StatusHistory: []domain.StatusChange{
			{Status: domain.FulfillmentStatusPending, Note: "created from wallet settlement", At: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func fulfillmentColumns() []string {
	return []string{"id", "order_id", "merchant_id", "order_number", "shipping_address", "customer_contact_enc",
		"line_items", "costs", "wallet_deducted_amount", "ledger_transaction_id", "status", "status_history",
		"created_at", "updated_at"}
}

func TestFulfillmentRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFulfillmentRepo(mock)
	fr := newTestFulfillment()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO fulfillment_requests").
		WithArgs(
			fr.ID, fr.OrderID, fr.MerchantID, fr.OrderNumber, pgxmock.AnyArg(), fr.CustomerContactEnc,
			pgxmock.AnyArg(), pgxmock.AnyArg(), fr.WalletDeductedAmount, fr.LedgerTransactionID, "pending", pgxmock.AnyArg(),
			fr.CreatedAt, fr.UpdatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, fr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfillmentRepo_Create_Duplicate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFulfillmentRepo(mock)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO fulfillment_requests").
		WithArgs(anyArgs(14)...).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "fulfillment_requests_order_id_key"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, newTestFulfillment())
	assert.ErrorIs(t, err, domain.ErrDuplicateFulfillment)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfillmentRepo_GetByOrderID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFulfillmentRepo(mock)
	fr := newTestFulfillment()

	mock.ExpectQuery("SELECT .+ FROM fulfillment_requests WHERE order_id").
		WithArgs(fr.OrderID).
		WillReturnRows(pgxmock.NewRows(fulfillmentColumns()).AddRow(
			fr.ID, fr.OrderID, fr.MerchantID, fr.OrderNumber,
			[]byte(`{"name":"Ada Lovelace","line1":"12 St James's Square","city":"London","postal_code":"SW1Y 4JH","country_code":"GB"}`),
			fr.CustomerContactEnc,
			[]byte(`[{"title":"Mug","sku":"MUG-1","quantity":2,"unit_price":2995}]`),
			[]byte(`{"product_cost":5990,"shipping_cost":0,"service_fee":0}`),
			fr.WalletDeductedAmount, fr.LedgerTransactionID, "pending",
			[]byte(`[{"status":"pending","note":"created from wallet settlement","at":"2026-01-02T03:04:05Z"}]`),
			fr.CreatedAt, fr.UpdatedAt,
		))

	result, err := repo.GetByOrderID(context.Background(), fr.OrderID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, fr.ID, result.ID)
	assert.Equal(t, "London", result.ShippingAddress.City)
	require.Len(t, result.LineItems, 1)
	assert.Equal(t, int64(2995), result.LineItems[0].UnitPrice)
	assert.Equal(t, int64(5990), result.Costs.Total())
	assert.Equal(t, domain.FulfillmentStatusPending, result.Status)
	require.Len(t, result.StatusHistory, 1)
	assert.Equal(t, "created from wallet settlement", result.StatusHistory[0].Note)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFulfillmentRepo_GetByOrderID_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewFulfillmentRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM fulfillment_requests WHERE order_id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(fulfillmentColumns()))

	result, err := repo.GetByOrderID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
}
