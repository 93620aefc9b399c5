package main

import (
	"context"
	"fmt"

	"wallet-settlement/config"
	"wallet-settlement/internal/adapter/storage/memory"
	pgStorage "wallet-settlement/internal/adapter/storage/postgres"
	"wallet-settlement/internal/core/ports"

	"github.com/rs/zerolog"
)

// repositories is the storage backend selected by storage.driver.
type repositories struct {
	wallets       ports.WalletRepository
	ledger        ports.LedgerRepository
	settlements   ports.SettlementRepository
	fulfillments  ports.FulfillmentRepository
	orders        ports.OrderSource
	audit         ports.AuditRepository
	notifications ports.NotificationRepository
	transactor    ports.DBTransactor
	health        ports.HealthChecker
	close         func()
}

func openStorage(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*repositories, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		return openMemory(cfg.Storage, log)
	default:
		return openPostgres(ctx, cfg.Database, log)
	}
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, log zerolog.Logger) (*repositories, error) {
	if cfg.AutoMigrate {
		if err := pgStorage.Migrate(cfg.MigrationURL(), log); err != nil {
			return nil, fmt.Errorf("migrate: %w", err)
		}
	}

	pool, err := pgStorage.NewPool(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info().Msg("PostgreSQL connected")

	return &repositories{
		wallets:       pgStorage.NewWalletRepo(pool),
		ledger:        pgStorage.NewLedgerRepo(pool),
		settlements:   pgStorage.NewSettlementRepo(pool),
		fulfillments:  pgStorage.NewFulfillmentRepo(pool),
		orders:        pgStorage.NewOrderRepo(pool),
		audit:         pgStorage.NewAuditRepo(pool),
		notifications: pgStorage.NewNotificationRepo(pool),
		transactor:    pgStorage.NewTransactor(pool),
		health:        pgStorage.NewHealthCheck(pool),
		close:         pool.Close,
	}, nil
}

func openMemory(cfg config.StorageConfig, log zerolog.Logger) (*repositories, error) {
	store := memory.NewStore()
	if cfg.SeedFile != "" {
		n, err := store.LoadSeed(cfg.SeedFile)
		if err != nil {
			return nil, err
		}
		log.Info().Int("orders", n).Str("file", cfg.SeedFile).Msg("seed orders loaded")
	}
	log.Warn().Msg("using in-memory storage; data is lost on exit")

	return &repositories{
		wallets:       memory.NewWalletRepo(store),
		ledger:        memory.NewLedgerRepo(store),
		settlements:   memory.NewSettlementRepo(store),
		fulfillments:  memory.NewFulfillmentRepo(store),
		orders:        memory.NewOrderRepo(store),
		audit:         memory.NewAuditRepo(store),
		notifications: memory.NewNotificationRepo(store),
		transactor:    memory.NewTransactor(store),
		health:        memory.NewHealthCheck(),
		close:         func() {},
	}, nil
}
