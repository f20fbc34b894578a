package service

import (
	"context"
	"errors"
	"fmt"
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

// DefaultSettlementBatch bounds how many transactions one run settles.
const DefaultSettlementBatch = 1000

// settleAttempts bounds how often a run is rebuilt after losing transactions to a
// concurrent run.
const settleAttempts = 3

const settleDestination = "wallet"

// SettlementServiceImpl implements ports.SettlementService.
type SettlementServiceImpl struct {
	txRepo         ports.TransactionRepository
	linkRepo       ports.PaymentLinkRepository
	settlementRepo ports.SettlementRepository
	batchSize      int
	now            func() time.Time
	log            zerolog.Logger
}

// NewSettlementService creates a new SettlementServiceImpl.
func NewSettlementService(
	txRepo ports.TransactionRepository,
	linkRepo ports.PaymentLinkRepository,
	settlementRepo ports.SettlementRepository,
	batchSize int,
	log zerolog.Logger,
) *SettlementServiceImpl {
	if batchSize <= 0 {
		batchSize = DefaultSettlementBatch
	}
	return &SettlementServiceImpl{
		txRepo:         txRepo,
		linkRepo:       linkRepo,
		settlementRepo: settlementRepo,
		batchSize:      batchSize,
		now:            time.Now,
		log:            logger.Component(log, "settlement"),
	}
}

type linkBucket struct {
	linkID uuid.UUID
	txs    []domain.Transaction
}

type businessBucket struct {
	businessID uuid.UUID
	walletID   uuid.UUID
	links      []*linkBucket
	byLink     map[uuid.UUID]*linkBucket
}

// Run settles every unsettled payment link transaction. It returns nil when there
// was nothing to settle. The run is computed without writing anything and then
// committed in one step, so a failed run leaves every transaction unsettled for the
// next one. A run that loses a transaction to a concurrent run is rebuilt.
func (s *SettlementServiceImpl) Run(ctx context.Context) (*domain.SettlementHistory, error) {
	for attempt := 1; ; attempt++ {
		history, err := s.runOnce(ctx)
		if err == nil {
			switch {
			case history == nil:
				metrics.SettlementRuns.WithLabelValues("empty").Inc()
			default:
				metrics.SettlementRuns.WithLabelValues("ok").Inc()
			}
			return history, nil
		}
		if !errors.Is(err, ports.ErrConflict) || attempt == settleAttempts {
			metrics.SettlementRuns.WithLabelValues("error").Inc()
			return nil, apperror.ErrDatabaseError(err)
		}
		s.log.Warn().Int("attempt", attempt).Msg("settlement run raced another run, rebuilding")
	}
}

func (s *SettlementServiceImpl) runOnce(ctx context.Context) (*domain.SettlementHistory, error) {
	txs, err := s.txRepo.ListUnsettled(ctx, s.batchSize)
	if err != nil {
		return nil, fmt.Errorf("list unsettled: %w", err)
	}
	if len(txs) == 0 {
		return nil, nil
	}

	var (
		groups  []domain.BusinessSettlement
		settled []domain.SettledTransaction
	)
	for _, b := range groupForSettlement(txs) {
		group, marks, err := s.settleBusiness(ctx, b)
		if err != nil {
			return nil, err
		}
		if group != nil {
			groups = append(groups, *group)
			settled = append(settled, marks...)
		}
	}
	if len(groups) == 0 {
		return nil, nil
	}

	at := s.now().UTC()
	history := &domain.SettlementHistory{
		ID:        uuid.New(),
		RunID:     at.Format("20060102T150405Z"),
		Groups:    groups,
		CreatedAt: at,
	}
	if err := s.settlementRepo.Commit(ctx, history, settled, settleDestination); err != nil {
		return nil, fmt.Errorf("commit settlement run: %w", err)
	}

	s.log.Info().
		Str("run_id", history.RunID).
		Int("businesses", len(groups)).
		Int("transactions", len(settled)).
		Msg("settlement run complete")
	return history, nil
}

func groupForSettlement(txs []domain.Transaction) []*businessBucket {
	var order []*businessBucket
	byBusiness := make(map[uuid.UUID]*businessBucket)
	for _, tx := range txs {
		if tx.PaymentLinkID == nil {
			continue
		}
		b, ok := byBusiness[tx.BusinessID]
		if !ok {
			b = &businessBucket{businessID: tx.BusinessID, walletID: tx.WalletID, byLink: make(map[uuid.UUID]*linkBucket)}
			byBusiness[tx.BusinessID] = b
			order = append(order, b)
		}
		l, ok := b.byLink[*tx.PaymentLinkID]
		if !ok {
			l = &linkBucket{linkID: *tx.PaymentLinkID}
			b.byLink[l.linkID] = l
			b.links = append(b.links, l)
		}
		l.txs = append(l.txs, tx)
	}
	return order
}

func (s *SettlementServiceImpl) settleBusiness(ctx context.Context, b *businessBucket) (*domain.BusinessSettlement, []domain.SettledTransaction, error) {
	summary := domain.SettlementSummary{
		TotalAmount:    decimal.Zero,
		TotalFee:       decimal.Zero,
		TotalVat:       decimal.Zero,
		TotalRevenue:   decimal.Zero,
		LumpAmount:     decimal.Zero,
		SharedAmount:   decimal.Zero,
		AmountToSettle: decimal.Zero,
	}
	var (
		links []domain.LinkSettlement
		marks []domain.SettledTransaction
	)

	for _, lb := range b.links {
		link, err := s.linkRepo.GetByID(ctx, lb.linkID)
		if err != nil {
			return nil, nil, fmt.Errorf("get link: %w", err)
		}
		var subaccounts []domain.Subaccount
		if link != nil {
			subaccounts = link.Subaccounts
		}

		ls := domain.LinkSettlement{PaymentLinkID: lb.linkID, NetAmount: decimal.Zero}
		shares := make(map[uuid.UUID]*domain.SubaccountShare, len(subaccounts))
		var shareOrder []uuid.UUID

		for _, tx := range lb.txs {
			net := tx.Amount.Sub(tx.Fee)
			remaining := net
			var txShares []domain.SubaccountShare
			for _, sub := range subaccounts {
				cut := sub.Share(net, remaining)
				remaining = remaining.Sub(cut)
				txShares = append(txShares, domain.SubaccountShare{SubaccountID: sub.ID, Amount: cut})
			}

			marks = append(marks, domain.SettledTransaction{TransactionID: tx.ID, Amount: remaining})

			for i, sub := range subaccounts {
				acc, ok := shares[sub.ID]
				if !ok {
					acc = &domain.SubaccountShare{
						SubaccountID: sub.ID,
						Name:         sub.Name,
						SplitType:    sub.SplitType,
						SplitValue:   sub.SplitValue,
						Amount:       decimal.Zero,
					}
					shares[sub.ID] = acc
					shareOrder = append(shareOrder, sub.ID)
				}
				acc.Amount = acc.Amount.Add(txShares[i].Amount)
			}

			ls.Transactions = append(ls.Transactions, tx.ID)
			ls.NetAmount = ls.NetAmount.Add(net)
			summary.TotalAmount = summary.TotalAmount.Add(tx.Amount)
			summary.TotalFee = summary.TotalFee.Add(tx.Fee)
			summary.TotalVat = summary.TotalVat.Add(tx.VatFee)
			summary.TotalRevenue = summary.TotalRevenue.Add(tx.Revenue.Amount)
			summary.LumpAmount = summary.LumpAmount.Add(net)
			summary.SharedAmount = summary.SharedAmount.Add(net.Sub(remaining))
		}

		if len(ls.Transactions) == 0 {
			continue
		}
		for _, id := range shareOrder {
			ls.Subaccounts = append(ls.Subaccounts, *shares[id])
		}
		links = append(links, ls)
	}

	if len(links) == 0 {
		return nil, nil, nil
	}
	summary.AmountToSettle = summary.LumpAmount.Sub(summary.SharedAmount)
	return &domain.BusinessSettlement{
		BusinessID: b.businessID,
		WalletID:   b.walletID,
		Summary:    summary,
		Links:      links,
	}, marks, nil
}

// HandleJob adapts Run to the job runner; the payload is ignored.
func (s *SettlementServiceImpl) HandleJob(ctx context.Context, d ports.JobDelivery) error {
	history, err := s.Run(ctx)
	if err != nil {
		return err
	}
	if history != nil {
		s.log.Info().Str("job_id", d.ID).Str("settlement_id", history.ID.String()).Msg("settlement job finished")
	}
	return nil
}
