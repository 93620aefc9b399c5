package handler

import (
	"wallet-settlement/internal/adapter/http/middleware"
	redisStore "wallet-settlement/internal/adapter/storage/redis"
	"wallet-settlement/internal/core/domain"
	"wallet-settlement/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	WalletSvc       ports.WalletService
	OrderSvc        ports.OrderService
	SettlementSvc   ports.SettlementService
	AuthSvc         ports.AuthService
	TokenSvc        ports.TokenService
	AuditSvc        ports.AuditService         // nil = denied-access auditing disabled
	RateLimitStore  *redisStore.RateLimitStore // nil = rate limiting disabled
	SettlePerMinute int
	HealthCheckers  []ports.HealthChecker
	Gatherer        prometheus.Gatherer // nil = /metrics disabled
	OpenAPISpec     []byte
	Mode            string // gin mode; empty means release
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode == "" {
		deps.Mode = gin.ReleaseMode
	}
	gin.SetMode(deps.Mode)
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))

	if deps.AuditSvc != nil {
		r.Use(middleware.AuditDenied(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	docs := NewDocsHandler(deps.OpenAPISpec)
	swagger := r.Group("/swagger")
	{
		swagger.GET("", docs.UI)
		swagger.GET("/spec", docs.Spec)
	}

	rules := middleware.DefaultRateLimitRules(deps.SettlePerMinute)
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}

	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	v1 := r.Group("/api/v1", jwtAuth)

	walletHandler := NewWalletHandler(deps.WalletSvc)
	wallet := v1.Group("/wallet", rl("wallet"))
	{
		wallet.GET("", walletHandler.GetWallet)
		wallet.GET("/ledger", walletHandler.ListLedger)
	}

	orderHandler := NewOrderHandler(deps.OrderSvc, deps.SettlementSvc)
	orders := v1.Group("/orders/:id")
	{
		orders.GET("/settlement", rl("orders"), orderHandler.GetSettlement)
		orders.PUT("/costs", rl("orders"), orderHandler.SetCosts)
		orders.POST("/settle", rl("settle"), orderHandler.Settle)
		orders.GET("/fulfillment", rl("orders"), orderHandler.GetFulfillment)
	}

	adminHandler := NewAdminHandler(deps.WalletSvc, deps.AuthSvc)
	admin := v1.Group("/admin", middleware.RequireRole(domain.RoleAdmin), rl("admin"))
	{
		admin.POST("/wallets/:merchant_id/credit", adminHandler.Credit)
		admin.POST("/tokens", adminHandler.IssueToken)
	}

	return r
}
