package service

import (
	"context"
	"fmt"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/apperror"
	"fee-engine/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// PayoutServiceImpl implements ports.PayoutService.
type PayoutServiceImpl struct {
	businessRepo ports.BusinessRepository
	txRepo       ports.TransactionRepository
	rates        *RateCardResolver
	gateways     ports.GatewayRegistry
	ledger       *Ledger
	hashSvc      ports.HashService
	currency     string
	minimum      decimal.Decimal
	timeout      time.Duration
	log          zerolog.Logger
}

// NewPayoutService creates a new PayoutServiceImpl.
func NewPayoutService(
	businessRepo ports.BusinessRepository,
	txRepo ports.TransactionRepository,
	rates *RateCardResolver,
	gateways ports.GatewayRegistry,
	ledger *Ledger,
	hashSvc ports.HashService,
	cfg ChargeConfig,
	log zerolog.Logger,
) *PayoutServiceImpl {
	if cfg.Minimum.IsZero() {
		cfg.Minimum = domain.MinimumAmount
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultProviderTimeout
	}
	return &PayoutServiceImpl{
		businessRepo: businessRepo,
		txRepo:       txRepo,
		rates:        rates,
		gateways:     gateways,
		ledger:       ledger,
		hashSvc:      hashSvc,
		currency:     cfg.Currency,
		minimum:      cfg.Minimum,
		timeout:      cfg.Timeout,
		log:          logger.Component(log, "payout"),
	}
}

// Payout sends money from the business wallet to a bank account.
func (s *PayoutServiceImpl) Payout(ctx context.Context, req ports.PayoutRequest) (*domain.Transaction, error) {
	if req.Feature == "" {
		req.Feature = domain.FeaturePayout
	}
	if !req.Feature.IsOutbound() || req.Feature == domain.FeatureRefund {
		return nil, apperror.Validation(fmt.Sprintf("%s is not a payout feature", req.Feature))
	}
	if err := validateAmount(req.Amount, s.minimum); err != nil {
		return nil, err
	}
	if req.Bank.AccountNumber == "" || req.Bank.BankCode == "" {
		return nil, apperror.Validation("bank account number and bank code are required")
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
	if err := s.verifyPIN(business, req.PIN); err != nil {
		return nil, err
	}

	return s.dispatch(ctx, business, outboundSpec{
		Provider:  req.Provider,
		Feature:   req.Feature,
		Amount:    req.Amount,
		Currency:  req.Currency,
		Bank:      req.Bank,
		Narration: req.Narration,
	})
}

func (s *PayoutServiceImpl) verifyPIN(b *domain.Business, pin string) error {
	if b.TransactionPinHash == "" || pin == "" {
		return apperror.ErrInvalidPIN()
	}
	ok, err := s.hashSvc.Verify(pin, b.TransactionPinHash)
	if err != nil {
		return apperror.InternalError(fmt.Errorf("verify pin: %w", err))
	}
	if !ok {
		return apperror.ErrInvalidPIN()
	}
	return nil
}

// outboundSpec is what dispatch needs to move money out of a wallet.
type outboundSpec struct {
	Provider  string
	Feature   domain.Feature
	Amount    decimal.Decimal
	Currency  string
	Bank      domain.BankDetails
	Narration string
	RefundID  *uuid.UUID
}

// dispatch opens the transaction, debits the wallet and calls the provider. A rejected
// or failed provider call reverses the debit before the error is returned.
func (s *PayoutServiceImpl) dispatch(ctx context.Context, business *domain.Business, spec outboundSpec) (*domain.Transaction, error) {
	gw, ok := s.gateways.Gateway(spec.Provider)
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("unknown provider %q", spec.Provider))
	}
	charge, err := s.rates.ResolveFor(ctx, spec.Provider, business, domain.CategoryOutflow, domain.KindTransfer)
	if err != nil {
		return nil, err
	}
	currency := spec.Currency
	if currency == "" {
		currency = s.currency
	}

	bank := spec.Bank
	tx := &domain.Transaction{
		Provider:   spec.Provider,
		Type:       domain.TransactionTypeDebit,
		Feature:    spec.Feature,
		Currency:   currency,
		Amount:     spec.Amount,
		Bank:       &bank,
		Narration:  spec.Narration,
		Webhook:    domain.WebhookState{Enabled: business.WebhookEnabled()},
		BusinessID: business.ID,
		WalletID:   business.WalletID,
		RefundID:   spec.RefundID,
	}
	if err := s.ledger.Open(ctx, tx, Breakdown(spec.Amount, charge)); err != nil {
		return nil, err
	}
	if err := s.ledger.DebitForOutbound(ctx, tx); err != nil {
		return tx, err
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	defer cancel()
	start := time.Now()
	res, err := gw.Payout(pctx, ports.PayoutSpec{
		Reference: tx.Reference,
		Amount:    tx.Amount,
		Currency:  currency,
		Bank:      bank,
		Narration: spec.Narration,
	})
	observeProvider(spec.Provider, "payout", start, res.OK, err)
	if err != nil || !res.OK {
		s.log.Warn().Err(err).
			Str("tx_ref", tx.Reference).
			Str("provider", spec.Provider).
			Str("message", res.Message).
			Msg("payout rejected, reversing debit")
		if _, ferr := s.ledger.Finalize(ctx, tx, domain.StatusFailed); ferr != nil {
			s.log.Error().Err(ferr).Str("tx_ref", tx.Reference).Msg("failed to close rejected payout")
		}
		return tx, apperror.ErrProvider(res.Message, err)
	}

	if err := s.txRepo.SetProviderRef(ctx, tx.ID, res.Data.ProviderRef); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("set provider ref: %w", err))
	}
	tx.ProviderRef = res.Data.ProviderRef

	current, err := s.ledger.Finalize(ctx, tx, domain.StatusProcessing)
	if err != nil {
		return nil, err
	}
	if res.Data.Status.IsTerminal() {
		return s.ledger.Finalize(ctx, current, res.Data.Status)
	}
	return current, nil
}
