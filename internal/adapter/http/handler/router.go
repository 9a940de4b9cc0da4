package handler

import (
	"wallet-service/internal/adapter/http/middleware"
	"wallet-service/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	WalletSvc      ports.WalletService
	LedgerSvc      ports.LedgerService
	ReportingSvc   ports.ReportingService
	TokenSvc       ports.TokenService
	RateLimiter    ports.RateLimiter // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.MaxBodySize(1 << 20))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		rule, ok := rules[group]
		if deps.RateLimiter == nil || !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register/client", rl(middleware.GroupAuthRegister), authHandler.RegisterClient)
		auth.POST("/register/merchant", rl(middleware.GroupAuthRegister), authHandler.RegisterMerchant)
		auth.POST("/login", rl(middleware.GroupAuthLogin), authHandler.Login)
	}

	// --- JWT-authenticated routes ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	walletHandler := NewWalletHandler(deps.WalletSvc, deps.LedgerSvc, deps.ReportingSvc)
	txHandler := NewTransactionHandler(deps.WalletSvc)

	wallets := v1.Group("/wallets", jwtAuth)
	{
		wallets.POST("", rl(middleware.GroupWalletCreate), walletHandler.Create)
		wallets.GET("", rl(middleware.GroupReads), walletHandler.ListOwn)
		wallets.GET("/:token", rl(middleware.GroupReads), walletHandler.Status)
		wallets.GET("/:token/transactions", rl(middleware.GroupReads), walletHandler.Transactions)
		wallets.GET("/:token/summary", rl(middleware.GroupReads), walletHandler.Summary)
		wallets.POST("/:token/recharge", rl(middleware.GroupLedger), walletHandler.Recharge)
		wallets.POST("/:token/charge", rl(middleware.GroupLedger), walletHandler.Charge)
	}

	v1.GET("/client-wallets", jwtAuth, rl(middleware.GroupReads), walletHandler.ListClientWallets)
	v1.GET("/transactions", jwtAuth, rl(middleware.GroupReads), txHandler.List)
	v1.GET("/transactions/:id", jwtAuth, rl(middleware.GroupReads), txHandler.Get)

	return r
}
