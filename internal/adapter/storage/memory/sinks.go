package memory

import (
	"context"

	"wallet-settlement/internal/core/domain"

	"github.com/google/uuid"
)

// OrderRepo implements ports.OrderSource over orders added with PutOrder.
type OrderRepo struct {
	s *Store
}

// NewOrderRepo creates a memory order source.
func NewOrderRepo(s *Store) *OrderRepo {
	return &OrderRepo{s: s}
}

func (r *OrderRepo) GetOrder(ctx context.Context, orderID uuid.UUID) (*domain.SourceOrder, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[orderID]
	if !ok {
		return nil, nil
	}
	c := *o
	c.LineItems = append([]domain.LineItem(nil), o.LineItems...)
	return &c, nil
}

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	s *Store
}

// NewAuditRepo creates a memory audit repository.
func NewAuditRepo(s *Store) *AuditRepo {
	return &AuditRepo{s: s}
}

func (r *AuditRepo) Create(ctx context.Context, log *domain.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audits = append(r.s.audits, *log)
	return nil
}

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct {
	s *Store
}

// NewNotificationRepo creates a memory notification repository.
func NewNotificationRepo(s *Store) *NotificationRepo {
	return &NotificationRepo{s: s}
}

func (r *NotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}
