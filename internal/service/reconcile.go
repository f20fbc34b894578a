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
)

// DefaultReconcileBatch is the page size of a reconcile sweep.
const DefaultReconcileBatch = 100

// ReconcileServiceImpl implements ports.ReconcileService.
type ReconcileServiceImpl struct {
	txRepo    ports.TransactionRepository
	gateways  ports.GatewayRegistry
	ledger    *Ledger
	batchSize int
	timeout   time.Duration
	log       zerolog.Logger
}

// NewReconcileService creates a new ReconcileServiceImpl.
func NewReconcileService(
	txRepo ports.TransactionRepository,
	gateways ports.GatewayRegistry,
	ledger *Ledger,
	batchSize int,
	timeout time.Duration,
	log zerolog.Logger,
) *ReconcileServiceImpl {
	if batchSize <= 0 {
		batchSize = DefaultReconcileBatch
	}
	if timeout <= 0 {
		timeout = DefaultProviderTimeout
	}
	return &ReconcileServiceImpl{
		txRepo:    txRepo,
		gateways:  gateways,
		ledger:    ledger,
		batchSize: batchSize,
		timeout:   timeout,
		log:       logger.Component(log, "reconcile"),
	}
}

// ReconcileProvider polls the provider for every open transaction it holds and
// advances the ones whose status moved. Transactions are read in pages of batchSize
// until none are left, so rows the provider keeps reporting as pending never hide
// newer ones. Running it twice changes nothing the second time.
func (s *ReconcileServiceImpl) ReconcileProvider(ctx context.Context, provider string) (*ports.ReconcileReport, error) {
	gw, ok := s.gateways.Gateway(provider)
	if !ok {
		return nil, apperror.Validation(fmt.Sprintf("unknown provider %q", provider))
	}

	report := &ports.ReconcileReport{Provider: provider}
	var after ports.PageCursor
	for {
		page, err := s.txRepo.ListPendingByProvider(ctx, provider, after, s.batchSize)
		if err != nil {
			return nil, apperror.ErrDatabaseError(fmt.Errorf("list pending transactions: %w", err))
		}
		for i := range page {
			s.verify(ctx, gw, &page[i], report)
		}
		if len(page) < s.batchSize {
			break
		}
		after = ports.CursorOf(page[len(page)-1])
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	s.log.Info().
		Str("provider", provider).
		Int("checked", report.Checked).
		Int("advanced", report.Advanced).
		Int("errors", report.Errors).
		Msg("reconcile sweep finished")
	return report, nil
}

func (s *ReconcileServiceImpl) verify(ctx context.Context, gw ports.ProviderGateway, tx *domain.Transaction, report *ports.ReconcileReport) {
	provider := report.Provider
	report.Checked++

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
	start := time.Now()
	res, err := gw.VerifyStatus(pctx, tx.ProviderRef)
	cancel()
	observeProvider(provider, "verify_status", start, res.OK, err)
	if err != nil || !res.OK {
		report.Errors++
		s.log.Warn().Err(err).
			Str("tx_ref", tx.Reference).
			Str("provider", provider).
			Str("message", res.Message).
			Msg("status verification failed")
		return
	}

	status := res.Data.Status
	if status == tx.Status || !domain.CanTransition(tx.Status, status) {
		return
	}
	current, err := s.ledger.Finalize(ctx, tx, status)
	if err != nil {
		report.Errors++
		s.log.Error().Err(err).Str("tx_ref", tx.Reference).Msg("reconcile finalize failed")
		return
	}
	if current.Status == status {
		report.Advanced++
	}
}

// ApplyProviderUpdate drives a provider push notification through the ledger.
func (s *ReconcileServiceImpl) ApplyProviderUpdate(ctx context.Context, provider, providerRef string, status domain.TransactionStatus) (*domain.Transaction, error) {
	tx, err := s.txRepo.GetByProviderRef(ctx, provider, providerRef)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("get transaction: %w", err))
	}
	if tx == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	if tx.Status == status {
		return tx, nil
	}
	if !domain.CanTransition(tx.Status, status) {
		return nil, apperror.ErrInvalidTransition(fmt.Sprintf("cannot move transaction from %s to %s", tx.Status, status))
	}
	return s.ledger.Finalize(ctx, tx, status)
}

// HandleJob runs a reconcile sweep for the provider named in the payload.
func (s *ReconcileServiceImpl) HandleJob(ctx context.Context, d ports.JobDelivery) error {
	provider := string(d.Payload)
	if _, ok := s.gateways.Gateway(provider); !ok {
		s.log.Error().Str("job_id", d.ID).Str("provider", provider).Msg("reconcile job for unknown provider, dropping")
		return nil
	}
	_, err := s.ReconcileProvider(ctx, provider)
	return err
}
