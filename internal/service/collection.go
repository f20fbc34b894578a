package service

import (
	"context"
	"fmt"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/apperror"
	"fee-engine/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// CollectionServiceImpl implements ports.CollectionService.
type CollectionServiceImpl struct {
	businessRepo ports.BusinessRepository
	txRepo       ports.TransactionRepository
	rates        *RateCardResolver
	gateways     ports.GatewayRegistry
	ledger       *Ledger
	currency     string
	minimum      decimal.Decimal
	timeout      time.Duration
	log          zerolog.Logger
}

// NewCollectionService creates a new CollectionServiceImpl.
func NewCollectionService(
	businessRepo ports.BusinessRepository,
	txRepo ports.TransactionRepository,
	rates *RateCardResolver,
	gateways ports.GatewayRegistry,
	ledger *Ledger,
	cfg ChargeConfig,
	log zerolog.Logger,
) *CollectionServiceImpl {
	if cfg.Minimum.IsZero() {
		cfg.Minimum = domain.MinimumAmount
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProviderTimeout
	}
	return &CollectionServiceImpl{
		businessRepo: businessRepo,
		txRepo:       txRepo,
		rates:        rates,
		gateways:     gateways,
		ledger:       ledger,
		currency:     cfg.Currency,
		minimum:      cfg.Minimum,
		timeout:      cfg.Timeout,
		log:          logger.Component(log, "collection"),
	}
}

// CreateVirtualAccount provisions an account the customer pays into and records a
// PENDING inbound transaction against it. Nothing is credited here: the net amount
// lands in the wallet when a provider update or a reconcile sweep reports SUCCESSFUL.
func (s *CollectionServiceImpl) CreateVirtualAccount(ctx context.Context, req ports.CollectionRequest) (*ports.CollectionResult, error) {
	if req.Feature == "" {
		req.Feature = domain.FeatureBankTransfer
	}
	if req.Feature != domain.FeatureBankTransfer && req.Feature != domain.FeatureVirtualAccount {
		return nil, apperror.Validation(fmt.Sprintf("%s is not a collection feature", req.Feature))
	}
	if err := validateAmount(req.Amount, s.minimum); err != nil {
		return nil, err
	}

	business, err := s.businessRepo.GetByID(ctx, req.BusinessID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get business: %w", err))
	}
	if business == nil {
		return nil, apperror.ErrNotFound("business")
	}
	if !business.IsCompliant() {
		return nil, apperror.ErrNotCompliant()
	}

	gw, ok := s.gateways.Gateway(req.Provider)
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("unknown provider %q", req.Provider))
	}
	charge, err := s.rates.ResolveFor(ctx, req.Provider, business, domain.CategoryInflow, domain.KindTransfer)
	if err != nil {
		return nil, err
	}
	currency := req.Currency
	if currency == "" {
		currency = s.currency
	}

	customer := req.Customer
	tx := &domain.Transaction{
		Provider:   req.Provider,
		Type:       domain.TransactionTypeCredit,
		Feature:    req.Feature,
		Currency:   currency,
		Amount:     req.Amount,
		Customer:   &customer,
		Webhook:    domain.WebhookState{Enabled: business.WebhookEnabled()},
		BusinessID: business.ID,
		WalletID:   business.WalletID,
	}
	if err := s.ledger.Open(ctx, tx, Breakdown(req.Amount, charge)); err != nil {
		return nil, err
	}

	name := customer.Name
	if name == "" {
		name = business.Name
	}
	amount := req.Amount
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	start := time.Now()
	res, err := gw.GenerateAccount(pctx, ports.AccountSpec{
		Reference: tx.Reference,
		Name:      name,
		Email:     customer.Email,
		Amount:    &amount,
	})
	observeProvider(req.Provider, "generate_account", start, res.OK, err)
	if err != nil || !res.OK {
		s.log.Warn().Err(err).
			Str("tx_ref", tx.Reference).
			Str("provider", req.Provider).
			Str("message", res.Message).
			Msg("account generation rejected")
		if _, ferr := s.ledger.Finalize(ctx, tx, domain.StatusFailed); ferr != nil {
			s.log.Error().Err(ferr).Str("tx_ref", tx.Reference).Msg("failed to close rejected collection")
		}
		return nil, apperror.ErrProvider(res.Message, err)
	}

	ref := res.Data.ProviderRef
	if ref == "" {
		ref = tx.Reference
	}
	if err := s.txRepo.SetProviderRef(ctx, tx.ID, ref); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("set provider ref: %w", err))
	}
	tx.ProviderRef = ref

	s.log.Info().
		Str("tx_ref", tx.Reference).
		Str("provider", req.Provider).
		Str("account", res.Data.AccountNumber).
		Msg("collection account issued")
	return &ports.CollectionResult{Transaction: tx, Account: res.Data}, nil
}
