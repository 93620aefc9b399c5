package postgres

import (
	"context"
	"fmt"

	"wallet-settlement/internal/core/domain"
)

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct {
	pool Pool
}

// NewNotificationRepo creates a PostgreSQL-backed notification repository.
func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// Create inserts a notification.
func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	metadata, err := marshalJSONObject(n.Metadata)
	if err != nil {
		return fmt.Errorf("marshal notification metadata: %w", err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO notifications (id, merchant_id, kind, message, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		n.ID, n.MerchantID, string(n.Kind), n.Message, metadata, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}
