package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"wallet-settlement/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// OrderRepo implements ports.OrderSource over the storefront import tables.
// It only reads.
type OrderRepo struct {
	pool Pool
}

// NewOrderRepo creates a new OrderRepo.
func NewOrderRepo(pool Pool) *OrderRepo {
	return &OrderRepo{pool: pool}
}

// GetOrder fetches an order with its line items.
func (r *OrderRepo) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.SourceOrder, error) {
	query := `SELECT id, merchant_id, order_number, currency, subtotal_price::text,
		customer_email, customer_phone, shipping_address, created_at
		FROM orders WHERE id = $1`

	o := &domain.SourceOrder{}
	var address []byte
	err := r.pool.QueryRow(ctx, query, orderID).Scan(
		&o.ID, &o.MerchantID, &o.OrderNumber, &o.Currency, &o.SubtotalPrice,
		&o.CustomerEmail, &o.CustomerPhone, &address, &o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &o.ShippingAddress); err != nil {
			return nil, fmt.Errorf("decode shipping address: %w", err)
		}
	}

	rows, err := r.pool.Query(ctx, `SELECT title, sku, quantity, unit_price::text
		FROM order_line_items WHERE order_id = $1 ORDER BY position, id`, orderID)
	if err != nil {
		return nil, fmt.Errorf("list order line items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var li domain.LineItem
		if err := rows.Scan(&li.Title, &li.SKU, &li.Quantity, &li.UnitPrice); err != nil {
			return nil, fmt.Errorf("scan order line item: %w", err)
		}
		o.LineItems = append(o.LineItems, li)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order line items: %w", err)
	}
	return o, nil
}
