// Package app assembles the engine from configuration. Both binaries build on it.
package app

import (
	"context"
	"fmt"
	"net/http"

	"fee-engine/config"
	"fee-engine/internal/adapter/provider"
	"fee-engine/internal/adapter/queue/memjobs"
	"fee-engine/internal/adapter/queue/natsjobs"
	"fee-engine/internal/adapter/storage/memory"
	pgStorage "fee-engine/internal/adapter/storage/postgres"
	redisStorage "fee-engine/internal/adapter/storage/redis"
	"fee-engine/internal/core/ports"
	"fee-engine/internal/service"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Repos is the storage the services are built on.
type Repos struct {
	Businesses   ports.BusinessRepository
	Settings     ports.SettingRepository
	Providers    ports.ProviderRepository
	Wallets      ports.WalletRepository
	Transactions ports.TransactionRepository
	Links        ports.PaymentLinkRepository
	Products     ports.ProductRepository
	Invoices     ports.InvoiceRepository
	Refunds      ports.RefundRepository
	Settlements  ports.SettlementRepository
	Deliveries   ports.WebhookDeliveryRepository
}

// MemoryRepos exposes an in-memory store through Repos.
func MemoryRepos(s *memory.Store) Repos {
	return Repos{
		Businesses:   s.Businesses(),
		Settings:     s.Settings(),
		Providers:    s.Providers(),
		Wallets:      s.Wallets(),
		Transactions: s.Transactions(),
		Links:        s.PaymentLinks(),
		Products:     s.Products(),
		Invoices:     s.Invoices(),
		Refunds:      s.Refunds(),
		Settlements:  s.Settlements(),
		Deliveries:   s.WebhookDeliveries(),
	}
}

// PostgresRepos exposes a PostgreSQL pool through Repos.
func PostgresRepos(pool pgStorage.Pool) Repos {
	return Repos{
		Businesses:   pgStorage.NewBusinessRepo(pool),
		Settings:     pgStorage.NewSettingRepo(pool),
		Providers:    pgStorage.NewProviderRepo(pool),
		Wallets:      pgStorage.NewWalletRepo(pool),
		Transactions: pgStorage.NewTransactionRepo(pool),
		Links:        pgStorage.NewPaymentLinkRepo(pool),
		Products:     pgStorage.NewProductRepo(pool),
		Invoices:     pgStorage.NewInvoiceRepo(pool),
		Refunds:      pgStorage.NewRefundRepo(pool),
		Settlements:  pgStorage.NewSettlementRepo(pool),
		Deliveries:   pgStorage.NewWebhookDeliveryRepo(pool),
	}
}

// Infra is the external state the engine runs against.
type Infra struct {
	Repos    Repos
	Cache    goredis.UniversalClient
	Jobs     ports.JobRunner
	Gateways *provider.Registry
	Health   []ports.HealthChecker

	closers []func()
}

// Close releases connections in reverse order of acquisition.
func (i *Infra) Close() {
	for n := len(i.closers) - 1; n >= 0; n-- {
		i.closers[n]()
	}
}

// Connect opens storage, cache, job queue and provider gateways per cfg. With the
// memory storage driver the cache runs in-process too.
func Connect(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*Infra, error) {
	infra := &Infra{}
	fail := func(err error) (*Infra, error) {
		infra.Close()
		return nil, err
	}

	switch cfg.Storage.Driver {
	case "memory":
		infra.Repos = MemoryRepos(memory.New())

		mr, err := miniredis.Run()
		if err != nil {
			return fail(fmt.Errorf("start in-process cache: %w", err))
		}
		infra.closers = append(infra.closers, mr.Close)
		rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		infra.closers = append(infra.closers, func() { _ = rdb.Close() })
		infra.Cache = rdb
		log.Warn().Msg("memory storage driver in use, state is lost on exit")
	default:
		pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
		if err != nil {
			return fail(err)
		}
		infra.closers = append(infra.closers, pool.Close)
		if err := pgStorage.Migrate(ctx, pool, log); err != nil {
			return fail(err)
		}
		infra.Repos = PostgresRepos(pool)
		infra.Health = append(infra.Health, pgStorage.NewHealthCheck(pool))

		rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
		if err != nil {
			return fail(err)
		}
		infra.closers = append(infra.closers, func() { _ = rdb.Close() })
		infra.Cache = rdb
	}
	infra.Health = append(infra.Health, redisStorage.NewHealthCheck(infra.Cache))

	switch cfg.Jobs.Driver {
	case "memory":
		infra.Jobs = memjobs.New(log)
	default:
		runner, drain, err := natsjobs.Connect(ctx, cfg.NATS, log)
		if err != nil {
			return fail(err)
		}
		infra.closers = append(infra.closers, drain)
		infra.Jobs = runner
	}

	gateways, err := provider.NewRegistry(cfg.Providers, log)
	if err != nil {
		return fail(err)
	}
	infra.Gateways = gateways

	return infra, nil
}

// Services is the fully wired engine.
type Services struct {
	Auth        *service.AuthServiceImpl
	Business    ports.BusinessService
	Charge      *service.ChargeServiceImpl
	Collection  *service.CollectionServiceImpl
	Payout      *service.PayoutServiceImpl
	Refund      *service.RefundServiceImpl
	Reconcile   *service.ReconcileServiceImpl
	Settlement  *service.SettlementServiceImpl
	Reporting   ports.ReportingService
	Notifier    *service.WebhookNotifierImpl
	Idempotency *service.IdempotencyGuardImpl
	RateLimiter ports.RateLimiter

	Signatures *service.HMACSignatureService
	Tokens     *service.JWTTokenService
}

// Build wires every service on top of infra.
func Build(cfg *config.Config, infra *Infra, log zerolog.Logger) (*Services, error) {
	encSvc, err := service.NewAESEncryptionService(cfg.AES.Key)
	if err != nil {
		return nil, fmt.Errorf("encryption service: %w", err)
	}
	minimum, err := decimal.NewFromString(cfg.Ledger.MinimumAmount)
	if err != nil {
		return nil, fmt.Errorf("ledger.minimum_amount: %w", err)
	}

	r := infra.Repos
	sigSvc := service.NewHMACSignatureService()
	hashSvc := service.NewArgon2PINService()
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.Expiry, cfg.JWT.Issuer)
	rates := service.NewRateCardResolver(r.Providers, r.Settings)

	notifier := service.NewWebhookNotifier(
		service.WebhookRepos{
			Transactions: r.Transactions,
			Businesses:   r.Businesses,
			Refunds:      r.Refunds,
			Products:     r.Products,
			Invoices:     r.Invoices,
			Links:        r.Links,
			Deliveries:   r.Deliveries,
		},
		encSvc,
		sigSvc,
		infra.Jobs,
		&http.Client{Timeout: cfg.Webhook.Timeout},
		service.WebhookConfig{
			SignatureHeader: cfg.Webhook.SignatureHeader,
			Delay:           cfg.Webhook.Delay,
			MaxAttempts:     cfg.Webhook.MaxAttempts,
			Timeout:         cfg.Webhook.Timeout,
			Lease:           cfg.Webhook.Lease,
		},
		log,
	)
	ledger := service.NewLedger(r.Transactions, r.Wallets, r.Links, r.Invoices, r.Refunds, notifier, cfg.Ledger.ReverseFee, log)

	chargeCfg := service.ChargeConfig{
		CardProvider: cfg.Ledger.CardProvider,
		Currency:     cfg.Ledger.Currency,
		Minimum:      minimum,
	}
	payout := service.NewPayoutService(r.Businesses, r.Transactions, rates, infra.Gateways, ledger, hashSvc, chargeCfg, log)

	return &Services{
		Auth:     service.NewAuthService(r.Businesses, r.Wallets, hashSvc, encSvc, tokenSvc, cfg.Ledger.Currency),
		Business: service.NewBusinessService(r.Businesses, r.Settings, encSvc),
		Charge: service.NewChargeService(
			r.Links, r.Products, r.Invoices, r.Businesses, r.Transactions,
			rates, infra.Gateways, ledger, chargeCfg, log,
		),
		Collection:  service.NewCollectionService(r.Businesses, r.Transactions, rates, infra.Gateways, ledger, chargeCfg, log),
		Payout:      payout,
		Refund:      service.NewRefundService(r.Transactions, r.Refunds, r.Businesses, payout, log),
		Reconcile:   service.NewReconcileService(r.Transactions, infra.Gateways, ledger, cfg.Reconcile.BatchSize, 0, log),
		Settlement:  service.NewSettlementService(r.Transactions, r.Links, r.Settlements, 0, log),
		Reporting:   service.NewReportingService(r.Transactions, r.Wallets, r.Deliveries, r.Settlements, r.Businesses, rates),
		Notifier:    notifier,
		Idempotency: service.NewIdempotencyGuard(redisStorage.NewIdempotencyStore(infra.Cache), sigSvc, cfg.Idempotency.Env, cfg.Idempotency.TTL, log),
		RateLimiter: redisStorage.NewRateLimitStore(infra.Cache),
		Signatures:  sigSvc,
		Tokens:      tokenSvc,
	}, nil
}

// ProviderSecrets maps each configured provider to the key its callbacks are signed with.
func ProviderSecrets(cfgs []config.ProviderConfig) map[string]string {
	secrets := make(map[string]string, len(cfgs))
	for _, p := range cfgs {
		secrets[p.Name] = p.SecretKey
	}
	return secrets
}
