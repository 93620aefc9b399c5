package memory

import "wallet-settlement/internal/core/ports"

var (
	_ ports.WalletRepository       = (*WalletRepo)(nil)
	_ ports.LedgerRepository       = (*LedgerRepo)(nil)
	_ ports.SettlementRepository   = (*SettlementRepo)(nil)
	_ ports.FulfillmentRepository  = (*FulfillmentRepo)(nil)
	_ ports.OrderSource            = (*OrderRepo)(nil)
	_ ports.AuditRepository        = (*AuditRepo)(nil)
	_ ports.NotificationRepository = (*NotificationRepo)(nil)
	_ ports.DBTransactor           = (*Transactor)(nil)
	_ ports.HealthChecker          = HealthCheck{}
)
