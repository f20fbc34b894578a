package handler

import (
	"fee-engine/internal/adapter/http/middleware"
	"fee-engine/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc       ports.AuthService
	BusinessSvc   ports.BusinessService
	ChargeSvc     ports.ChargeService
	CollectionSvc ports.CollectionService
	PayoutSvc     ports.PayoutService
	RefundSvc     ports.RefundService
	ReconcileSvc  ports.ReconcileService
	ReportingSvc  ports.ReportingService
	Idempotency   ports.IdempotencyGuard
	SigSvc        ports.SignatureService
	TokenSvc      ports.TokenService
	RateLimiter   ports.RateLimiter // nil = rate limiting disabled
	// ProviderSecrets maps each configured provider to the key its callbacks are signed with.
	ProviderSecrets map[string]string
	HealthCheckers  []ports.HealthChecker
	Logger          zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.RequestLogger(deps.Logger))
	r.Use(middleware.Metrics())
	r.Use(middleware.BodyLimit(1 << 20)) // 1 MB request body limit

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	swagger := r.Group("/swagger")
	{
		swagger.GET("", SwaggerUI)
		swagger.GET("/spec", SwaggerSpec)
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimiter == nil {
			return func(c *gin.Context) { c.Next() }
		}
		rule, ok := rules[group]
		if !ok {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimiter, group, rule, deps.Logger)
	}
	idem := func(user middleware.UserFunc) gin.HandlerFunc {
		return middleware.Idempotency(deps.Idempotency, user, deps.Logger)
	}

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	authHandler := NewAuthHandler(deps.AuthSvc)
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl("auth_register"), authHandler.Register)
		auth.POST("/token", rl("auth_token"), authHandler.Token)
	}

	paymentHandler := NewPaymentHandler(deps.ChargeSvc, deps.CollectionSvc, deps.PayoutSvc, deps.RefundSvc)
	v1.POST("/links/:slug/charge", rl("charges"), idem(linkChargeUser), paymentHandler.ChargeLink)
	v1.POST("/charges/authorize", rl("charges"), paymentHandler.Authorize)

	providerHandler := NewProviderHandler(deps.ReconcileSvc)
	v1.POST("/providers/:provider/updates",
		rl("providers"),
		middleware.ProviderSignature(deps.ProviderSecrets, deps.SigSvc, deps.Logger),
		providerHandler.Update,
	)

	// --- Business API (bearer token) ---
	jwtAuth := middleware.JWTAuth(deps.TokenSvc, deps.Logger)
	api := v1.Group("", jwtAuth)

	api.POST("/collections", rl("charges"), idem(middleware.AuthenticatedUser), paymentHandler.CreateCollection)
	api.POST("/payouts", rl("payouts"), idem(middleware.AuthenticatedUser), paymentHandler.Payout)
	refunds := api.Group("/refunds")
	{
		refunds.POST("", rl("refunds"), idem(middleware.AuthenticatedUser), paymentHandler.CreateRefund)
		refunds.POST("/:id/complete", rl("refunds"), paymentHandler.CompleteRefund)
	}

	reportingHandler := NewReportingHandler(deps.ReportingSvc)
	walletHandler := NewWalletHandler(deps.ReportingSvc)
	api.GET("/transactions/:reference", rl("reporting"), reportingHandler.GetTransaction)
	api.GET("/transactions/:reference/webhooks", rl("reporting"), reportingHandler.ListWebhookDeliveries)
	api.GET("/settlements/:id", rl("reporting"), reportingHandler.GetSettlement)
	api.GET("/wallet", rl("reporting"), walletHandler.GetWallet)
	api.POST("/fees/quote", rl("reporting"), walletHandler.QuoteFee)

	businessHandler := NewBusinessHandler(deps.BusinessSvc)
	me := api.Group("/business/me")
	{
		me.GET("", rl("reporting"), businessHandler.GetProfile)
		me.PUT("/webhook", rl("reporting"), businessHandler.UpdateWebhook)
		me.POST("/rotate-secret", rl("auth_token"), businessHandler.RotateSecret)
	}

	return r
}
