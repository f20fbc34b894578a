package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/internal/platform/metrics"
	"fee-engine/pkg/apperror"
	"fee-engine/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Ledger owns every status change and the wallet movement that goes with it.
// Each step is one conditional write; whoever wins the status update applies the effects.
type Ledger struct {
	txRepo      ports.TransactionRepository
	walletRepo  ports.WalletRepository
	linkRepo    ports.PaymentLinkRepository
	invoiceRepo ports.InvoiceRepository
	refundRepo  ports.RefundRepository
	notifier    ports.WebhookNotifier
	reverseFee  bool
	log         zerolog.Logger
}

// NewLedger creates a new Ledger.
func NewLedger(
	txRepo ports.TransactionRepository,
	walletRepo ports.WalletRepository,
	linkRepo ports.PaymentLinkRepository,
	invoiceRepo ports.InvoiceRepository,
	refundRepo ports.RefundRepository,
	notifier ports.WebhookNotifier,
	reverseFee bool,
	log zerolog.Logger,
) *Ledger {
	return &Ledger{
		txRepo:      txRepo,
		walletRepo:  walletRepo,
		linkRepo:    linkRepo,
		invoiceRepo: invoiceRepo,
		refundRepo:  refundRepo,
		notifier:    notifier,
		reverseFee:  reverseFee,
		log:         logger.Component(log, "ledger"),
	}
}

// newReference returns a unique transaction reference.
func newReference() string {
	return "FEE" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Open persists t as PENDING with the fee breakdown applied.
func (l *Ledger) Open(ctx context.Context, t *domain.Transaction, b domain.Breakdown) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	if t.Reference == "" {
		t.Reference = newReference()
	}
	t.Status = domain.StatusPending
	t.Fee = b.Fee
	t.VatFee = b.Vat
	t.StampFee = b.StampDuty
	t.Revenue = domain.Revenue{Amount: b.Revenue}
	t.Settle = domain.Settle{Status: domain.SettlePending, Amount: decimal.Zero}
	if t.Type == "" {
		t.Type = domain.TransactionTypeCredit
		if t.Feature.IsOutbound() {
			t.Type = domain.TransactionTypeDebit
		}
	}

	if err := l.txRepo.Create(ctx, t); err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("create transaction: %w", err))
	}
	l.log.Info().
		Str("tx_ref", t.Reference).
		Str("business_id", t.BusinessID.String()).
		Str("feature", string(t.Feature)).
		Str("amount", t.Amount.String()).
		Msg("transaction opened")
	return nil
}

// DebitForOutbound reserves amount plus charges before the provider is called.
// On insufficient funds the transaction is failed without a reversal.
func (l *Ledger) DebitForOutbound(ctx context.Context, t *domain.Transaction) error {
	ok, err := l.walletRepo.Debit(ctx, t.WalletID, t.DebitTotal(), t.Amount, domain.CounterFor(t.Feature))
	if err != nil {
		return apperror.ErrDatabaseError(fmt.Errorf("debit wallet: %w", err))
	}
	if ok {
		return nil
	}

	if _, err := l.txRepo.Transition(ctx, t.ID, []domain.TransactionStatus{domain.StatusPending}, domain.StatusFailed); err != nil {
		l.log.Error().Err(err).Str("tx_ref", t.Reference).Msg("failed to mark unfunded transaction")
	} else {
		t.Status = domain.StatusFailed
		metrics.TransactionsFinalized.WithLabelValues(string(t.Status), string(t.Feature)).Inc()
	}
	return apperror.ErrInsufficientFunds()
}

// Finalize moves t to status `to` and applies the matching side effects. When another
// caller already moved the transaction, the current row is returned untouched.
func (l *Ledger) Finalize(ctx context.Context, t *domain.Transaction, to domain.TransactionStatus) (*domain.Transaction, error) {
	won, err := l.txRepo.Transition(ctx, t.ID, domain.SourcesFor(to), to)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("transition transaction: %w", err))
	}
	if !won {
		current, err := l.txRepo.GetByID(ctx, t.ID)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("reload transaction: %w", err))
		}
		if current == nil {
			return nil, apperror.ErrNotFound("transaction")
		}
		l.log.Debug().
			Str("tx_ref", t.Reference).
			Str("status", string(current.Status)).
			Str("target", string(to)).
			Msg("transition lost, keeping current state")
		return current, nil
	}

	from := t.Status
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	l.log.Info().
		Str("tx_ref", t.Reference).
		Str("from", string(from)).
		Str("to", string(to)).
		Msg("transaction transitioned")

	if !to.IsTerminal() {
		return t, nil
	}
	metrics.TransactionsFinalized.WithLabelValues(string(to), string(t.Feature)).Inc()
	l.closeAuthStep(ctx, t)

	switch {
	case to == domain.StatusRefunded:
	case t.Feature.IsOutbound():
		l.settleOutbound(ctx, t)
	default:
		l.settleInbound(ctx, t)
	}
	if t.RefundID != nil && to != domain.StatusRefunded {
		l.settleRefund(ctx, t)
	}

	if err := l.notifier.Notify(ctx, t); err != nil {
		l.log.Warn().Err(err).Str("tx_ref", t.Reference).Msg("webhook enqueue failed")
	}
	return t, nil
}

// closeAuthStep ends a card authorization that was still open when the charge was
// finalized out of band.
func (l *Ledger) closeAuthStep(ctx context.Context, t *domain.Transaction) {
	if t.AuthStep == "" || t.AuthStep.IsTerminal() || t.Status == domain.StatusRefunded {
		return
	}
	step := domain.StepFailed
	if t.Status.IsSuccess() {
		step = domain.StepSuccess
	}
	if err := l.txRepo.UpdateAuthStep(ctx, t.ID, step); err != nil {
		l.log.Error().Err(err).Str("tx_ref", t.Reference).Msg("auth step update failed")
		return
	}
	t.AuthStep = step
}

func (l *Ledger) settleInbound(ctx context.Context, t *domain.Transaction) {
	if t.Status.IsSuccess() {
		if err := l.walletRepo.Credit(ctx, t.WalletID, t.NetAmount(), domain.CounterFor(t.Feature)); err != nil {
			l.log.Error().Err(err).Str("tx_ref", t.Reference).Msg("wallet credit failed")
		}
		if t.InvoiceID != nil {
			if err := l.invoiceRepo.RecordPayment(ctx, *t.InvoiceID, t.Amount); err != nil {
				l.log.Error().Err(err).Str("tx_ref", t.Reference).Msg("invoice payment record failed")
			}
		}
	}
	if t.PaymentLinkID == nil {
		return
	}

	link, err := l.linkRepo.GetByID(ctx, *t.PaymentLinkID)
	if err != nil || link == nil {
		l.log.Error().Err(err).Str("tx_ref", t.Reference).Msg("payment link lookup failed")
		return
	}
	if t.Status.IsSuccess() {
		if err := l.linkRepo.RecordPayment(ctx, link.ID, t.Amount); err != nil {
			l.log.Error().Err(err).Str("tx_ref", t.Reference).Msg("link analytics update failed")
		}
		if !link.Reusable {
			if err := l.linkRepo.Deactivate(ctx, link.ID); err != nil {
				l.log.Error().Err(err).Str("tx_ref", t.Reference).Msg("link deactivation failed")
			}
		}
	}
	if err := l.linkRepo.Release(ctx, link.ID, t.Reference); err != nil {
		l.log.Error().Err(err).Str("tx_ref", t.Reference).Msg("link release failed")
	}
}

func (l *Ledger) settleOutbound(ctx context.Context, t *domain.Transaction) {
	if t.Status != domain.StatusFailed && t.Status != domain.StatusCancelled {
		return
	}
	amount := t.Amount
	if l.reverseFee {
		amount = t.DebitTotal()
	}
	if err := l.walletRepo.Reverse(ctx, t.WalletID, amount, t.Amount, domain.CounterFor(t.Feature)); err != nil {
		l.log.Error().Err(err).Str("tx_ref", t.Reference).Msg("wallet reversal failed")
		return
	}
	if err := l.txRepo.MarkRevenueReversed(ctx, t.ID); err != nil {
		l.log.Error().Err(err).Str("tx_ref", t.Reference).Msg("revenue reversal flag failed")
	}
	t.Revenue.Reversed = true
	metrics.WalletReversals.WithLabelValues(string(t.Feature)).Inc()
	l.log.Info().
		Str("tx_ref", t.Reference).
		Str("amount", amount.String()).
		Msg("outbound debit reversed")
}

// settleRefund mirrors the payout outcome onto the refund and, for a full refund that
// went through, onto the original transaction.
func (l *Ledger) settleRefund(ctx context.Context, t *domain.Transaction) {
	target := domain.RefundFailed
	if t.Status.IsSuccess() {
		target = domain.RefundSuccessful
	}
	won, err := l.refundRepo.UpdateStatus(ctx, *t.RefundID, []domain.RefundStatus{domain.RefundPending, domain.RefundProcessing}, target)
	if err != nil {
		l.log.Error().Err(err).Str("tx_ref", t.Reference).Msg("refund status update failed")
		return
	}
	if !won || target != domain.RefundSuccessful {
		return
	}

	refund, err := l.refundRepo.GetByID(ctx, *t.RefundID)
	if err != nil || refund == nil || refund.Type != domain.RefundFull {
		return
	}
	original, err := l.txRepo.GetByID(ctx, refund.TransactionID)
	if err != nil || original == nil {
		l.log.Error().Err(err).Str("refund_id", refund.ID.String()).Msg("refunded transaction lookup failed")
		return
	}
	if _, err := l.Finalize(ctx, original, domain.StatusRefunded); err != nil {
		l.log.Error().Err(err).Str("tx_ref", original.Reference).Msg("marking transaction refunded failed")
	}
}
