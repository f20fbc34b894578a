package service

import (
	"context"
	"fmt"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/apperror"

	"github.com/google/uuid"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	txRepo         ports.TransactionRepository
	walletRepo     ports.WalletRepository
	deliveryRepo   ports.WebhookDeliveryRepository
	settlementRepo ports.SettlementRepository
	businessRepo   ports.BusinessRepository
	rates          *RateCardResolver
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	deliveryRepo ports.WebhookDeliveryRepository,
	settlementRepo ports.SettlementRepository,
	businessRepo ports.BusinessRepository,
	rates *RateCardResolver,
) ports.ReportingService {
	return &reportingService{
		txRepo:         txRepo,
		walletRepo:     walletRepo,
		deliveryRepo:   deliveryRepo,
		settlementRepo: settlementRepo,
		businessRepo:   businessRepo,
		rates:          rates,
	}
}

// GetTransaction returns a transaction owned by the business.
func (s *reportingService) GetTransaction(ctx context.Context, businessID uuid.UUID, reference string) (*domain.Transaction, error) {
	tx, err := s.txRepo.GetByReference(ctx, reference)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if tx == nil || tx.BusinessID != businessID {
		return nil, apperror.ErrNotFound("transaction")
	}
	return tx, nil
}

func (s *reportingService) GetWallet(ctx context.Context, businessID uuid.UUID) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByBusinessID(ctx, businessID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	return w, nil
}

// ListWebhookDeliveries returns every delivery attempt for one of the business's transactions.
func (s *reportingService) ListWebhookDeliveries(ctx context.Context, businessID uuid.UUID, reference string) ([]domain.WebhookDelivery, error) {
	tx, err := s.GetTransaction(ctx, businessID, reference)
	if err != nil {
		return nil, err
	}
	out, err := s.deliveryRepo.ListByTransaction(ctx, tx.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return out, nil
}

func (s *reportingService) GetSettlement(ctx context.Context, id uuid.UUID) (*domain.SettlementHistory, error) {
	h, err := s.settlementRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if h == nil {
		return nil, apperror.ErrNotFound("settlement")
	}
	return h, nil
}

// QuoteFee prices an amount with the rate card the business would be charged under.
func (s *reportingService) QuoteFee(ctx context.Context, q ports.FeeQuote) (*domain.Breakdown, error) {
	if q.Category != domain.CategoryInflow && q.Category != domain.CategoryOutflow {
		return nil, apperror.Validation(fmt.Sprintf("unknown category %q", q.Category))
	}
	if !q.Amount.IsPositive() || !domain.HasValidPrecision(q.Amount) {
		return nil, apperror.ErrInvalidAmount("amount must be positive with at most two decimal places")
	}
	b, err := s.businessRepo.GetByID(ctx, q.BusinessID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if b == nil {
		return nil, apperror.ErrNotFound("business")
	}
	charge, err := s.rates.ResolveFor(ctx, q.Provider, b, q.Category, q.Kind)
	if err != nil {
		return nil, err
	}
	out := Breakdown(q.Amount, charge)
	return &out, nil
}
