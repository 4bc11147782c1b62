package handler

import (
	"credit-ledger-bridge/internal/adapter/http/middleware"
	redisStore "credit-ledger-bridge/internal/adapter/storage/redis"
	"credit-ledger-bridge/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	FacilitySvc    ports.FacilityService
	Coordinator    ports.CreditCoordinator
	Marketplace    ports.MarketplaceService
	TokenSvc       ports.TokenService
	RateLimitStore *redisStore.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	AuditSvc       ports.AuditService  // nil = audit logging disabled
	Metrics        prometheus.Gatherer // nil = /metrics not served
	Mode           string              // gin mode; empty keeps the current one
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	r := gin.New()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20)) // 1 MB request body limit

	// Audit logging (after response)
	if deps.AuditSvc != nil {
		r.Use(middleware.AuditLog(deps.AuditSvc))
	}

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Metrics, promhttp.HandlerOpts{})))
	}

	rules := middleware.DefaultRateLimitRules()

	// Helper: return rate limiter middleware if store is available, else noop.
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes (no auth) ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/login", rl("auth_login"), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	facilityHandler := NewFacilityHandler(deps.FacilitySvc)
	creditHandler := NewCreditHandler(deps.Coordinator, deps.Marketplace)
	marketHandler := NewMarketplaceHandler(deps.Marketplace)

	facilities := v1.Group("/facilities", jwtAuth)
	{
		facilities.POST("", rl("write"), facilityHandler.Register)
		facilities.GET("", rl("read"), facilityHandler.List)
	}

	credits := v1.Group("/credits", jwtAuth)
	{
		credits.POST("", rl("write"), creditHandler.Submit)
		credits.GET("", rl("read"), creditHandler.List)
		credits.DELETE("", rl("admin"), creditHandler.Clear)
		credits.GET("/available", rl("read"), creditHandler.ListAvailable)
		credits.GET("/:id", rl("read"), creditHandler.Get)
		credits.GET("/:id/reconciliation", rl("ledger"), creditHandler.Reconcile)
		credits.POST("/:id/validate", rl("ledger"), creditHandler.Validate)
		credits.POST("/:id/ledger-binding", rl("ledger"), creditHandler.Reattach)
		credits.POST("/:id/purchase", rl("ledger"), creditHandler.Purchase)
		credits.POST("/:id/settlements/replay", rl("ledger"), creditHandler.ReplaySettlement)
	}

	v1.GET("/transactions", jwtAuth, rl("read"), marketHandler.ListTransactions)
	v1.GET("/stats", jwtAuth, rl("read"), marketHandler.GetStats)

	return r
}
