package service

import (
	"context"
	"fmt"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/internal/platform/metrics"
	"fee-engine/pkg/apperror"
	"fee-engine/pkg/logger"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultProviderTimeout bounds a single provider call.
const DefaultProviderTimeout = 30 * time.Second

// ChargeServiceImpl implements ports.ChargeService for payment link card charges.
type ChargeServiceImpl struct {
	linkRepo     ports.PaymentLinkRepository
	productRepo  ports.ProductRepository
	invoiceRepo  ports.InvoiceRepository
	businessRepo ports.BusinessRepository
	txRepo       ports.TransactionRepository
	rates        *RateCardResolver
	gateways     ports.GatewayRegistry
	ledger       *Ledger
	cardProvider string
	currency     string
	minimum      decimal.Decimal
	timeout      time.Duration
	log          zerolog.Logger
}

// ChargeConfig carries the settings a ChargeServiceImpl needs.
type ChargeConfig struct {
	CardProvider string
	Currency     string
	Minimum      decimal.Decimal
	Timeout      time.Duration
}

// NewChargeService creates a new ChargeServiceImpl.
func NewChargeService(
	linkRepo ports.PaymentLinkRepository,
	productRepo ports.ProductRepository,
	invoiceRepo ports.InvoiceRepository,
	businessRepo ports.BusinessRepository,
	txRepo ports.TransactionRepository,
	rates *RateCardResolver,
	gateways ports.GatewayRegistry,
	ledger *Ledger,
	cfg ChargeConfig,
	log zerolog.Logger,
) *ChargeServiceImpl {
	if cfg.Minimum.IsZero() {
		cfg.Minimum = domain.MinimumAmount
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProviderTimeout
	}
	return &ChargeServiceImpl{
		linkRepo:     linkRepo,
		productRepo:  productRepo,
		invoiceRepo:  invoiceRepo,
		businessRepo: businessRepo,
		txRepo:       txRepo,
		rates:        rates,
		gateways:     gateways,
		ledger:       ledger,
		cardProvider: cfg.CardProvider,
		currency:     cfg.Currency,
		minimum:      cfg.Minimum,
		timeout:      cfg.Timeout,
		log:          logger.Component(log, "charge"),
	}
}

// ChargeLink charges a card against a payment link. Every guardrail runs before the
// provider is called, and nothing is persisted when one of them fails.
func (s *ChargeServiceImpl) ChargeLink(ctx context.Context, req ports.LinkChargeRequest) (*ports.ChargeResult, error) {
	link, err := s.linkRepo.GetBySlug(ctx, req.Slug)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get link: %w", err))
	}
	if link == nil {
		return nil, apperror.ErrNotFound("payment link")
	}
	if !link.Active {
		return nil, apperror.ErrLinkInactive()
	}

	business, err := s.businessRepo.GetByID(ctx, link.BusinessID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get business: %w", err))
	}
	if business == nil {
		return nil, apperror.ErrNotFound("business")
	}
	if !business.IsCompliant() {
		if err := s.linkRepo.Deactivate(ctx, link.ID); err != nil {
			s.log.Error().Err(err).Str("link_id", link.ID.String()).Msg("failed to deactivate link of non-compliant business")
		}
		return nil, apperror.ErrNotCompliant()
	}

	amount, err := s.linkAmount(ctx, link, req)
	if err != nil {
		return nil, err
	}
	if err := validateAmount(amount, s.minimum); err != nil {
		return nil, err
	}

	card := req.Card.Normalize()
	if !card.Valid() {
		return nil, apperror.ErrInvalidCard()
	}

	gw, ok := s.gateways.Gateway(s.cardProvider)
	if !ok {
		return nil, apperror.InternalError(fmt.Errorf("card provider %q is not registered", s.cardProvider))
	}
	charge, err := s.rates.ResolveFor(ctx, s.cardProvider, business, domain.CategoryInflow, domain.KindCard)
	if err != nil {
		return nil, err
	}

	reference := newReference()
	if err := s.lockLink(ctx, link, reference); err != nil {
		return nil, err
	}

	customer := req.Customer
	linkID := link.ID
	tx := &domain.Transaction{
		Reference:     reference,
		Provider:      s.cardProvider,
		Type:          domain.TransactionTypeCredit,
		Feature:       link.Feature.TransactionFeature(),
		AuthStep:      domain.StepInitiated,
		Currency:      s.currency,
		Amount:        amount,
		Customer:      &customer,
		Card:          card.Summary(),
		Webhook:       domain.WebhookState{Enabled: business.WebhookEnabled()},
		BusinessID:    business.ID,
		WalletID:      business.WalletID,
		PaymentLinkID: &linkID,
		ProductID:     link.ProductID,
		InvoiceID:     link.InvoiceID,
	}
	if err := s.ledger.Open(ctx, tx, Breakdown(amount, charge)); err != nil {
		_ = s.linkRepo.Release(ctx, link.ID, reference)
		return nil, err
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	start := time.Now()
	res, err := gw.ChargeCard(pctx, ports.CardChargeSpec{
		Reference: tx.Reference,
		Amount:    amount,
		Currency:  s.currency,
		Card:      card,
		Customer:  customer,
	})
	observeProvider(s.cardProvider, "charge_card", start, res.OK, err)
	if err != nil || !res.OK {
		s.log.Warn().Err(err).
			Str("tx_ref", tx.Reference).
			Str("provider", s.cardProvider).
			Str("message", res.Message).
			Msg("card charge rejected")
		_ = s.txRepo.UpdateAuthStep(ctx, tx.ID, domain.StepFailed)
		tx.AuthStep = domain.StepFailed
		if _, ferr := s.ledger.Finalize(ctx, tx, domain.StatusFailed); ferr != nil {
			s.log.Error().Err(ferr).Str("tx_ref", tx.Reference).Msg("failed to close rejected charge")
		}
		return nil, apperror.ErrProvider(res.Message, err)
	}

	if err := s.txRepo.SetProviderRef(ctx, tx.ID, res.Data.ProviderRef); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("set provider ref: %w", err))
	}
	tx.ProviderRef = res.Data.ProviderRef

	next, err := s.advance(ctx, tx, res.Data, res.StatusCode)
	if err != nil {
		return nil, err
	}
	return &ports.ChargeResult{Transaction: tx, Next: *next}, nil
}

// Authorize answers the challenge the charge is currently waiting on.
func (s *ChargeServiceImpl) Authorize(ctx context.Context, req ports.AuthorizeRequest) (*domain.NextStep, error) {
	tx, err := s.txRepo.GetByReference(ctx, req.Reference)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get transaction: %w", err))
	}
	if tx == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	if tx.IsTerminal() {
		return nil, apperror.ErrInvalidTransition(fmt.Sprintf("transaction is already %s", tx.Status))
	}
	if !req.ValidateType.IsChallenge() || req.ValidateType != tx.AuthStep {
		return nil, apperror.Validation(fmt.Sprintf("transaction is awaiting %s", tx.AuthStep))
	}

	gw, ok := s.gateways.Gateway(tx.Provider)
	if !ok {
		return nil, apperror.InternalError(fmt.Errorf("provider %q is not registered", tx.Provider))
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	start := time.Now()
	res, err := gw.AuthorizeCharge(pctx, tx.ProviderRef, req.ValidateType, req.Answer)
	observeProvider(tx.Provider, "authorize_charge", start, res.OK, err)

	if err != nil || res.ServerError() {
		// A provider fault mid-challenge ends the charge; the customer starts a new one.
		s.log.Warn().Err(err).
			Str("tx_ref", tx.Reference).
			Int("status_code", res.StatusCode).
			Msg("authorization failed at provider")
		_ = s.txRepo.UpdateAuthStep(ctx, tx.ID, domain.StepFailed)
		tx.AuthStep = domain.StepFailed
		if _, ferr := s.ledger.Finalize(ctx, tx, domain.StatusFailed); ferr != nil {
			s.log.Error().Err(ferr).Str("tx_ref", tx.Reference).Msg("failed to close charge")
		}
		return nil, apperror.ErrProvider(res.Message, err)
	}
	if !res.OK {
		return nil, apperror.Validation(res.Message)
	}

	return s.advance(ctx, tx, res.Data, res.StatusCode)
}

// advance records the provider's next step and finalizes the charge on a terminal one.
func (s *ChargeServiceImpl) advance(ctx context.Context, tx *domain.Transaction, out ports.ChargeOutcome, statusCode int) (*domain.NextStep, error) {
	step := out.Step
	if step == "" {
		step = domain.StepProviderPending
	}
	if err := s.txRepo.UpdateAuthStep(ctx, tx.ID, step); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("update auth step: %w", err))
	}
	tx.AuthStep = step

	var target domain.TransactionStatus
	switch step {
	case domain.StepSuccess:
		target = domain.StatusSuccessful
	case domain.StepFailed:
		target = domain.StatusFailed
	}
	if target != "" {
		if _, err := s.ledger.Finalize(ctx, tx, target); err != nil {
			return nil, err
		}
	}

	return &domain.NextStep{
		Type:        step,
		URL:         out.URL,
		DisplayText: out.DisplayText,
		StatusCode:  statusCode,
		Reference:   tx.Reference,
	}, nil
}

func (s *ChargeServiceImpl) linkAmount(ctx context.Context, link *domain.PaymentLink, req ports.LinkChargeRequest) (decimal.Decimal, error) {
	switch {
	case link.Feature == domain.LinkProduct && link.ProductID != nil:
		product, err := s.productRepo.GetByID(ctx, *link.ProductID)
		if err != nil {
			return decimal.Zero, apperror.ErrDatabaseError(fmt.Errorf("get product: %w", err))
		}
		if product == nil {
			return decimal.Zero, apperror.ErrNotFound("product")
		}
		qty := req.Quantity
		if qty == 0 {
			qty = 1
		}
		if qty < 0 {
			return decimal.Zero, apperror.Validation("quantity must be positive")
		}
		return product.UnitPrice.Mul(decimal.NewFromInt(int64(qty))), nil

	case link.Feature == domain.LinkInvoice && link.InvoiceID != nil:
		invoice, err := s.invoiceRepo.GetByID(ctx, *link.InvoiceID)
		if err != nil {
			return decimal.Zero, apperror.ErrDatabaseError(fmt.Errorf("get invoice: %w", err))
		}
		if invoice == nil {
			return decimal.Zero, apperror.ErrNotFound("invoice")
		}
		return invoice.Outstanding(), nil

	case link.Type == domain.LinkFixed:
		return link.Amount, nil
	}

	if req.Amount == nil {
		return decimal.Zero, apperror.ErrInvalidAmount("amount is required")
	}
	return *req.Amount, nil
}

// lockLink takes the link for reference. A lock held by a finished transaction is
// taken over; a reference with no transaction yet is still being opened.
func (s *ChargeServiceImpl) lockLink(ctx context.Context, link *domain.PaymentLink, reference string) error {
	expected := link.InitializeRef
	if expected != "" {
		prior, err := s.txRepo.GetByReference(ctx, expected)
		if err != nil {
			return apperror.ErrDatabaseError(fmt.Errorf("get prior transaction: %w", err))
		}
		if prior == nil || !prior.IsTerminal() {
			return apperror.ErrLinkInitialized()
		}
	}
	ok, err := s.linkRepo.Initialize(ctx, link.ID, expected, reference)
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("initialize link: %w", err))
	}
	if !ok {
		return apperror.ErrLinkInitialized()
	}
	return nil
}

// validateAmount enforces sign, precision and the platform minimum.
func validateAmount(amount, minimum decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.ErrInvalidAmount("amount must be greater than zero")
	}
	if !domain.HasValidPrecision(amount) {
		return apperror.ErrInvalidAmount(fmt.Sprintf("amount must have at most %d decimal places", domain.MoneyPlaces))
	}
	if amount.LessThan(minimum) {
		return apperror.ErrBelowMinimum(minimum.String())
	}
	return nil
}

func observeProvider(provider, op string, start time.Time, ok bool, err error) {
	outcome := "ok"
	switch {
	case err != nil:
		outcome = "error"
	case !ok:
		outcome = "declined"
	}
	metrics.ProviderCalls.WithLabelValues(provider, op, outcome).Inc()
	metrics.ProviderCallDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}
