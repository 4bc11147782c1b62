// Package app wires configuration into a running set of services. Both the
// HTTP server and the admin CLI start from New.
package app

import (
	"context"
	"fmt"

	"credit-ledger-bridge/config"
	httpHandler "credit-ledger-bridge/internal/adapter/http/handler"
	"credit-ledger-bridge/internal/adapter/ledger/httpledger"
	"credit-ledger-bridge/internal/adapter/ledger/memledger"
	"credit-ledger-bridge/internal/adapter/storage/memory"
	pgStorage "credit-ledger-bridge/internal/adapter/storage/postgres"
	redisStorage "credit-ledger-bridge/internal/adapter/storage/redis"
	"credit-ledger-bridge/internal/core/ports"
	"credit-ledger-bridge/internal/service"
	"credit-ledger-bridge/pkg/logger"
	"credit-ledger-bridge/pkg/money"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// repositories is one relational store, postgres or memory.
type repositories struct {
	users        ports.UserRepository
	facilities   ports.FacilityRepository
	credits      ports.CreditRepository
	mints        ports.LedgerMintRepository
	transactions ports.TransactionRepository
	audit        ports.AuditRepository
}

// App holds the wired services.
type App struct {
	Config *config.Config
	Log    zerolog.Logger

	Coordinator ports.CreditCoordinator
	Marketplace ports.MarketplaceService
	Facilities  ports.FacilityService
	Auth        ports.AuthService
	Tokens      ports.TokenService
	Audit       ports.AuditService

	// Pool is nil with the memory store.
	Pool *pgxpool.Pool
	// Redis is nil when redis is disabled.
	Redis     *goredis.Client
	RateLimit *redisStorage.RateLimitStore

	Registry       *prometheus.Registry
	HealthCheckers []ports.HealthChecker

	closers []func()
}

// New validates cfg and connects every configured backend. Close releases
// them.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	currency, err := money.NewCurrency(cfg.Currency.Code, cfg.Currency.Scale)
	if err != nil {
		return nil, fmt.Errorf("currency: %w", err)
	}

	a := &App{
		Config:   cfg,
		Log:      log,
		Registry: prometheus.NewRegistry(),
	}
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	repos, err := a.openStore(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	var (
		locker      ports.CreditLocker
		idempotency ports.IdempotencyCache
	)
	if cfg.Redis.Enabled {
		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		a.Redis = rdb
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		locker = redisStorage.NewCreditLocker(rdb)
		idempotency = redisStorage.NewIdempotencyCache(rdb)
		a.RateLimit = redisStorage.NewRateLimitStore(rdb)
		a.HealthCheckers = append(a.HealthCheckers, redisStorage.NewHealthCheck(rdb))
	} else {
		// Single-process locking only; rate limiting is off.
		log.Warn().Msg("Redis disabled, using in-process credit locks")
		locker = memory.NewLocker()
		idempotency = memory.NewIdempotencyCache()
	}

	ledger := a.openLedger()
	a.HealthCheckers = append(a.HealthCheckers, ledger)

	hashSvc := service.NewArgon2HashService()
	a.Tokens = service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	a.Auth = service.NewAuthService(repos.users, hashSvc, a.Tokens)
	a.Facilities = service.NewFacilityService(repos.facilities)
	a.Marketplace = service.NewMarketplaceService(
		repos.users,
		repos.facilities,
		repos.credits,
		repos.transactions,
		logger.Component(log, "marketplace"),
	)
	a.Audit = service.NewAuditService(repos.audit, logger.Component(log, "audit"))
	a.Coordinator = service.NewCreditCoordinator(service.CoordinatorDeps{
		Credits:      repos.credits,
		Facilities:   repos.facilities,
		Mints:        repos.mints,
		Transactions: repos.transactions,
		Ledger:       ledger,
		Locker:       locker,
		Idempotency:  idempotency,
		Metrics:      service.NewMetrics(a.Registry),
		Currency:     currency,
		LockTTL:      cfg.Coordinator.LockTTL,
		IdemTTL:      cfg.Coordinator.IdempotencyTTL,
		Logger:       logger.Component(log, "coordinator"),
	})

	log.Info().
		Str("store", cfg.Store.Driver).
		Str("ledger", cfg.Ledger.Driver).
		Bool("redis", cfg.Redis.Enabled).
		Str("currency", currency.Code).
		Msg("Services initialized")

	return a, nil
}

func (a *App) openStore(ctx context.Context) (*repositories, error) {
	if a.Config.Store.Driver == config.DriverMemory {
		a.Log.Warn().Msg("Using in-memory store, data is lost on exit")
		s := memory.NewStore()
		return &repositories{
			users:        s.Users(),
			facilities:   s.Facilities(),
			credits:      s.Credits(),
			mints:        s.Mints(),
			transactions: s.Transactions(),
			audit:        s.Audit(),
		}, nil
	}

	pool, err := pgStorage.NewPool(ctx, a.Config.Database, a.Log)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	a.Pool = pool
	a.closers = append(a.closers, pool.Close)
	a.HealthCheckers = append(a.HealthCheckers, pgStorage.NewHealthCheck(pool))

	return &repositories{
		users:        pgStorage.NewUserRepo(pool),
		facilities:   pgStorage.NewFacilityRepo(pool),
		credits:      pgStorage.NewCreditRepo(pool),
		mints:        pgStorage.NewLedgerMintRepo(pool),
		transactions: pgStorage.NewTransactionRepo(pool),
		audit:        pgStorage.NewAuditRepo(pool),
	}, nil
}

// ledgerBackend is what the coordinator and /health need from a ledger.
type ledgerBackend interface {
	ports.ValueLedger
	ports.HealthChecker
}

func (a *App) openLedger() ledgerBackend {
	cfg := a.Config.Ledger
	if cfg.Driver == config.DriverMemory {
		a.Log.Warn().Int64("opening_balance", cfg.OpeningBalance).Msg("Using in-process value ledger")
		return memledger.New(memledger.WithOpeningBalance(cfg.OpeningBalance))
	}
	return httpledger.New(cfg, service.NewHMACSignatureService(), logger.Component(a.Log, "ledger"))
}

// Router builds the HTTP surface over the wired services.
func (a *App) Router() *gin.Engine {
	return httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        a.Auth,
		FacilitySvc:    a.Facilities,
		Coordinator:    a.Coordinator,
		Marketplace:    a.Marketplace,
		TokenSvc:       a.Tokens,
		RateLimitStore: a.RateLimit,
		HealthCheckers: a.HealthCheckers,
		AuditSvc:       a.Audit,
		Metrics:        a.Registry,
		Mode:           a.Config.Server.Mode,
		Logger:         logger.Component(a.Log, "http"),
	})
}

// Close releases connections in reverse order of opening.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
