package service

import (
	"context"
	"errors"
	"fmt"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/apperror"
	"fee-engine/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// RefundServiceImpl implements ports.RefundService.
type RefundServiceImpl struct {
	txRepo       ports.TransactionRepository
	refundRepo   ports.RefundRepository
	businessRepo ports.BusinessRepository
	payouts      *PayoutServiceImpl
	log          zerolog.Logger
}

// NewRefundService creates a new RefundServiceImpl.
func NewRefundService(
	txRepo ports.TransactionRepository,
	refundRepo ports.RefundRepository,
	businessRepo ports.BusinessRepository,
	payouts *PayoutServiceImpl,
	log zerolog.Logger,
) *RefundServiceImpl {
	return &RefundServiceImpl{
		txRepo:       txRepo,
		refundRepo:   refundRepo,
		businessRepo: businessRepo,
		payouts:      payouts,
		log:          logger.Component(log, "refund"),
	}
}

// CreateRefund records a refund against a successful inbound transaction. Instant
// refunds are paid out immediately; request refunds wait for CompleteRefund.
func (s *RefundServiceImpl) CreateRefund(ctx context.Context, req ports.RefundRequest) (*domain.Refund, error) {
	tx, err := s.txRepo.GetByReference(ctx, req.Reference)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get transaction: %w", err))
	}
	if tx == nil || tx.BusinessID != req.BusinessID {
		return nil, apperror.ErrNotFound("transaction")
	}
	if !tx.IsRefundable() {
		return nil, apperror.Validation(fmt.Sprintf("transaction %s cannot be refunded", tx.Reference))
	}

	latest, err := s.refundRepo.GetLatestByTransaction(ctx, tx.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get latest refund: %w", err))
	}
	if status, blocked := domain.BlocksNewRefund(latest); blocked {
		return nil, apperror.ErrRefundInProgress(status)
	}

	amount := tx.Amount
	switch req.Type {
	case domain.RefundFull:
	case domain.RefundPartial:
		if req.Amount == nil {
			return nil, apperror.ErrInvalidAmount("amount is required for a partial refund")
		}
		amount = *req.Amount
		if !amount.IsPositive() || amount.GreaterThan(tx.Amount) {
			return nil, apperror.ErrInvalidAmount("refund amount must be between zero and the transaction amount")
		}
		if !domain.HasValidPrecision(amount) {
			return nil, apperror.ErrInvalidAmount(fmt.Sprintf("amount must have at most %d decimal places", domain.MoneyPlaces))
		}
	default:
		return nil, apperror.Validation(fmt.Sprintf("unknown refund type %q", req.Type))
	}
	if req.Option != domain.RefundInstant && req.Option != domain.RefundRequest {
		return nil, apperror.Validation(fmt.Sprintf("unknown refund option %q", req.Option))
	}

	bank := req.Bank
	if bank == nil {
		bank = tx.Bank
	}
	if bank == nil {
		return nil, apperror.Validation("bank details are required to refund this transaction")
	}

	refund := &domain.Refund{
		ID:            uuid.New(),
		Reference:     newReference(),
		TransactionID: tx.ID,
		BusinessID:    tx.BusinessID,
		Option:        req.Option,
		Type:          req.Type,
		Status:        domain.RefundPending,
		Amount:        amount,
		Bank:          bank,
		Reason:        req.Reason,
	}
	if err := s.refundRepo.Create(ctx, refund); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			blocking, _ := domain.BlocksNewRefund(&domain.Refund{Status: domain.RefundPending})
			return nil, apperror.ErrRefundInProgress(blocking)
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create refund: %w", err))
	}
	s.log.Info().
		Str("tx_ref", tx.Reference).
		Str("refund_id", refund.ID.String()).
		Str("option", string(refund.Option)).
		Str("amount", amount.String()).
		Msg("refund created")

	if refund.Option == domain.RefundRequest {
		return refund, nil
	}
	return s.execute(ctx, refund, tx)
}

// CompleteRefund pays out a request refund that is still pending.
func (s *RefundServiceImpl) CompleteRefund(ctx context.Context, businessID, refundID uuid.UUID) (*domain.Refund, error) {
	refund, err := s.refundRepo.GetByID(ctx, refundID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get refund: %w", err))
	}
	if refund == nil || refund.BusinessID != businessID {
		return nil, apperror.ErrNotFound("refund")
	}
	tx, err := s.txRepo.GetByID(ctx, refund.TransactionID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get transaction: %w", err))
	}
	if tx == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	return s.execute(ctx, refund, tx)
}

func (s *RefundServiceImpl) execute(ctx context.Context, refund *domain.Refund, tx *domain.Transaction) (*domain.Refund, error) {
	won, err := s.refundRepo.UpdateStatus(ctx, refund.ID, []domain.RefundStatus{domain.RefundPending}, domain.RefundProcessing)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("start refund: %w", err))
	}
	if !won {
		current, err := s.refundRepo.GetByID(ctx, refund.ID)
		if err != nil || current == nil {
			return nil, apperror.ErrInvalidTransition("refund is no longer pending")
		}
		return nil, apperror.ErrInvalidTransition(fmt.Sprintf("refund is already %s", current.Status))
	}

	business, err := s.businessRepo.GetByID(ctx, refund.BusinessID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get business: %w", err))
	}
	if business == nil {
		return nil, apperror.ErrNotFound("business")
	}

	refundID := refund.ID
	payoutTx, payErr := s.payouts.dispatch(ctx, business, outboundSpec{
		Provider:  tx.Provider,
		Feature:   domain.FeatureRefund,
		Amount:    refund.Amount,
		Currency:  tx.Currency,
		Bank:      *refund.Bank,
		Narration: "Refund " + tx.Reference,
		RefundID:  &refundID,
	})
	if payoutTx != nil {
		if err := s.refundRepo.SetPayoutTransaction(ctx, refund.ID, payoutTx.ID); err != nil {
			s.log.Error().Err(err).Str("refund_id", refund.ID.String()).Msg("failed to link payout transaction")
		}
	}
	if payErr != nil {
		// Failures before the payout transaction is finalized leave the refund in PROCESSING.
		if _, err := s.refundRepo.UpdateStatus(ctx, refund.ID, []domain.RefundStatus{domain.RefundProcessing}, domain.RefundFailed); err != nil {
			s.log.Error().Err(err).Str("refund_id", refund.ID.String()).Msg("failed to mark refund failed")
		}
		return nil, payErr
	}

	current, err := s.refundRepo.GetByID(ctx, refund.ID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("reload refund: %w", err))
	}
	return current, nil
}
