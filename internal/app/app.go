// Package app assembles storage, services and the HTTP router from config.
package app

import (
	"context"
	"errors"
	"fmt"

	"wallet-service/config"
	httpHandler "wallet-service/internal/adapter/http/handler"
	memStorage "wallet-service/internal/adapter/storage/memory"
	pgStorage "wallet-service/internal/adapter/storage/postgres"
	redisStorage "wallet-service/internal/adapter/storage/redis"
	"wallet-service/internal/core/ports"
	"wallet-service/internal/service"
	"wallet-service/pkg/logger"

	"github.com/gin-gonic/gin"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Options override pieces of the wiring, mainly for tests.
type Options struct {
	// Redis replaces the client built from cfg.Redis.
	Redis *goredis.Client
	// HashParams replaces the production Argon2 cost parameters.
	HashParams *service.Argon2Params
}

// App is a fully wired service.
type App struct {
	Router *gin.Engine

	audit   *service.AuditServiceImpl
	closers []func()
	log     zerolog.Logger
}

type storage struct {
	users       ports.UserRepository
	wallets     ports.WalletRepository
	txns        ports.TransactionRepository
	idempotency ports.IdempotencyRepository
	audit       ports.AuditRepository
	transactor  ports.DBTransactor
	health      ports.HealthChecker
}

type caches struct {
	idempotency ports.IdempotencyCache
	wallets     ports.WalletCache
	limiter     ports.RateLimiter
	health      ports.HealthChecker // nil without Redis
}

// New builds the application. On error every opened resource is released.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts Options) (*App, error) {
	if cfg.JWT.Secret == "" {
		return nil, errors.New("jwt.secret must be set")
	}

	a := &App{log: log}

	store, err := a.openStorage(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	cache, err := a.openCaches(ctx, cfg, opts)
	if err != nil {
		a.Close()
		return nil, err
	}

	hashSvc := service.NewArgon2HashService()
	if opts.HashParams != nil {
		hashSvc = service.NewArgon2HashServiceWithParams(*opts.HashParams)
	}
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)

	a.audit = service.NewAuditService(store.audit, logger.WithComponent(log, "audit"))
	authSvc := service.NewAuthService(store.users, hashSvc, tokenSvc, a.audit)
	walletSvc := service.NewWalletService(
		store.users,
		store.wallets,
		store.txns,
		store.transactor,
		cache.wallets,
		a.audit,
		cfg.Wallet.StatusCacheTTL,
		logger.WithComponent(log, "wallets"),
	)
	ledgerSvc := service.NewLedgerService(
		store.wallets,
		store.txns,
		store.idempotency,
		store.transactor,
		cache.idempotency,
		cache.wallets,
		a.audit,
		service.LedgerConfig{
			IdempotencyTTL: cfg.Wallet.IdempotencyTTL,
			LockTimeout:    cfg.Wallet.LockTimeout,
			StatusCacheTTL: cfg.Wallet.StatusCacheTTL,
		},
		logger.WithComponent(log, "ledger"),
	)
	reportingSvc := service.NewReportingService(store.wallets, store.txns, logger.WithComponent(log, "reporting"))

	checkers := []ports.HealthChecker{store.health}
	if cache.health != nil {
		checkers = append(checkers, cache.health)
	}

	a.Router = httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		WalletSvc:      walletSvc,
		LedgerSvc:      ledgerSvc,
		ReportingSvc:   reportingSvc,
		TokenSvc:       tokenSvc,
		RateLimiter:    cache.limiter,
		HealthCheckers: checkers,
		Logger:         logger.WithComponent(log, "http"),
	})

	return a, nil
}

func (a *App) openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Database.Driver {
	case config.DriverMemory:
		mem := memStorage.NewStore()
		a.log.Warn().Msg("using in-memory storage; data is lost on exit")
		return &storage{
			users:       memStorage.NewUserRepo(mem),
			wallets:     memStorage.NewWalletRepo(mem),
			txns:        memStorage.NewTransactionRepo(mem),
			idempotency: memStorage.NewIdempotencyRepo(mem),
			audit:       memStorage.NewAuditRepo(mem),
			transactor:  memStorage.NewTransactor(mem),
			health:      memStorage.NewHealthCheck(mem),
		}, nil

	case config.DriverPostgres:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, a.log)
		if err != nil {
			return nil, fmt.Errorf("connecting to postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)

		if cfg.Database.AutoMigrate {
			if err := pgStorage.Migrate(ctx, pool, a.log); err != nil {
				return nil, fmt.Errorf("migrating schema: %w", err)
			}
		}
		return &storage{
			users:       pgStorage.NewUserRepo(pool),
			wallets:     pgStorage.NewWalletRepo(pool),
			txns:        pgStorage.NewTransactionRepo(pool),
			idempotency: pgStorage.NewIdempotencyRepo(pool),
			audit:       pgStorage.NewAuditRepo(pool),
			transactor:  pgStorage.NewTransactor(pool, cfg.Wallet.LockTimeout),
			health:      pgStorage.NewHealthCheck(pool),
		}, nil
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
}

func (a *App) openCaches(ctx context.Context, cfg *config.Config, opts Options) (*caches, error) {
	client := opts.Redis
	if client == nil && cfg.Redis.Enabled {
		var err error
		client, err = redisStorage.NewClient(ctx, cfg.Redis, a.log)
		if err != nil {
			return nil, fmt.Errorf("connecting to redis: %w", err)
		}
		a.closers = append(a.closers, func() { client.Close() }) //nolint:errcheck
	}

	if client == nil {
		a.log.Info().Msg("redis disabled; using process-local caches")
		return &caches{
			idempotency: memStorage.NewIdempotencyCache(),
			wallets:     memStorage.NewWalletCache(),
			limiter:     memStorage.NewRateLimiter(),
		}, nil
	}
	return &caches{
		idempotency: redisStorage.NewIdempotencyCache(client),
		wallets:     redisStorage.NewWalletCache(client),
		limiter:     redisStorage.NewRateLimitStore(client),
		health:      redisStorage.NewHealthCheck(client),
	}, nil
}

// Close waits for pending audit writes, then releases connections in reverse order.
func (a *App) Close() {
	if a.audit != nil {
		a.audit.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
