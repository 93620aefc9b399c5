package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wallet-settlement/config"
	httpHandler "wallet-settlement/internal/adapter/http/handler"
	redisStorage "wallet-settlement/internal/adapter/storage/redis"
	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"
	"wallet-settlement/internal/service"
	"wallet-settlement/pkg/logger"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to config file (default: ./config.yaml or ./config/config.yaml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	if flag.Arg(0) == "token" {
		if err := issueToken(cfg, flag.Args()[1:]); err != nil {
			fmt.Fprintf(os.Stderr, "token: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := serve(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

// issueToken signs a bearer token offline so the first operator can log in.
func issueToken(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("token", flag.ContinueOnError)
	subject := fs.String("subject", "", "subject UUID (merchant id or operator id); random when empty")
	role := fs.String("role", string(domain.RoleAdmin), "merchant or admin")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id := uuid.New()
	if *subject != "" {
		parsed, err := uuid.Parse(*subject)
		if err != nil {
			return fmt.Errorf("invalid subject: %w", err)
		}
		id = parsed
	}
	r := domain.Role(*role)
	if r != domain.RoleAdmin && r != domain.RoleMerchant {
		return fmt.Errorf("unknown role %q", *role)
	}

	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	token, expiresAt, err := tokenSvc.Generate(id, r)
	if err != nil {
		return err
	}
	fmt.Printf("subject:    %s\nrole:       %s\nexpires_at: %s\ntoken:      %s\n", id, r, expiresAt.Format(time.RFC3339), token)
	return nil
}

func serve(cfg *config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Str("storage", cfg.Storage.Driver).
		Int("port", cfg.Server.Port).
		Msg("Starting wallet settlement engine")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repos, err := openStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer repos.close()

	healthCheckers := []ports.HealthChecker{repos.health}

	// Redis is optional: without it settlement replays use the database guards
	// only, rate limiting is off and notification dedupe is skipped.
	var (
		settlementCache ports.SettlementCache
		dedupeStore     ports.DedupeStore
		rateLimitStore  *redisStorage.RateLimitStore
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rdb.Close()
		log.Info().Msg("Redis connected")

		settlementCache = redisStorage.NewSettlementCache(rdb)
		dedupeStore = redisStorage.NewDedupeStore(rdb)
		rateLimitStore = redisStorage.NewRateLimitStore(rdb)
		healthCheckers = append(healthCheckers, redisStorage.NewHealthCheck(rdb))
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := service.NewMetrics(registry)

	encSvc, err := service.NewAESEncryptionService(cfg.Crypto.MasterKey)
	if err != nil {
		return fmt.Errorf("init encryption: %w", err)
	}
	sigSvc := service.NewHMACSignatureService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	auditSvc := service.NewAuditService(repos.audit, logger.Component(log, "audit"))
	notifySvc := service.NewNotificationService(
		repos.notifications,
		dedupeStore,
		sigSvc,
		&http.Client{Timeout: cfg.Notification.Timeout},
		service.NotificationConfig{
			WebhookURL:    cfg.Notification.WebhookURL,
			SigningSecret: cfg.Notification.SigningSecret,
		},
		logger.Component(log, "notifier"),
	)

	walletSvc := service.NewWalletService(repos.wallets, repos.ledger, repos.transactor, auditSvc, notifySvc, metrics, logger.Component(log, "wallet"))
	orderSvc := service.NewOrderService(repos.orders, repos.settlements, repos.fulfillments, encSvc, auditSvc, logger.Component(log, "orders"))
	settlementSvc := service.NewSettlementService(service.SettlementDeps{
		Orders:          repos.orders,
		SettlementRepo:  repos.settlements,
		LedgerRepo:      repos.ledger,
		FulfillmentRepo: repos.fulfillments,
		WalletSvc:       walletSvc,
		Cache:           settlementCache,
		EncSvc:          encSvc,
		Transactor:      repos.transactor,
		AuditSvc:        auditSvc,
		NotifySvc:       notifySvc,
		Metrics:         metrics,
		CacheTTL:        cfg.Settlement.ReplayCacheTTL,
	}, logger.Component(log, "settlement"))
	authSvc := service.NewAuthService(tokenSvc, walletSvc, auditSvc)
	reconciler := service.NewReconciliationService(
		repos.orders,
		repos.settlements,
		repos.ledger,
		repos.fulfillments,
		encSvc,
		repos.transactor,
		auditSvc,
		metrics,
		service.ReconcilerConfig{
			Interval: cfg.Settlement.ReconcileInterval,
			Grace:    cfg.Settlement.ReconcileGrace,
			Batch:    cfg.Settlement.ReconcileBatch,
		},
		logger.Component(log, "reconciler"),
	)

	specBytes, err := os.ReadFile("docs/api/openapi.yaml")
	if err != nil {
		log.Warn().Err(err).Msg("OpenAPI spec not found, Swagger UI will be unavailable")
	}

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		WalletSvc:       walletSvc,
		OrderSvc:        orderSvc,
		SettlementSvc:   settlementSvc,
		AuthSvc:         authSvc,
		TokenSvc:        tokenSvc,
		AuditSvc:        auditSvc,
		RateLimitStore:  rateLimitStore,
		SettlePerMinute: cfg.RateLimit.SettlePerMinute,
		HealthCheckers:  healthCheckers,
		Gatherer:        registry,
		OpenAPISpec:     specBytes,
		Mode:            cfg.Server.Mode,
		Logger:          log,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return reconciler.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	err = g.Wait()

	drainCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for name, d := range map[string]interface{ Drain(context.Context) error }{"audit": auditSvc, "notifications": notifySvc} {
		if derr := d.Drain(drainCtx); derr != nil {
			log.Warn().Err(derr).Str("component", name).Msg("pending background work dropped on shutdown")
		}
	}

	if err != nil {
		return err
	}
	log.Info().Msg("Server exited")
	return nil
}
