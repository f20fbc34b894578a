package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func (e *engineEnv) linkPayment(t *testing.T, link *domain.PaymentLink, amount, fee, vat string) *domain.Transaction {
	t.Helper()
	tx := e.inbound(amount)
	linkID := link.ID
	tx.Feature = domain.FeatureRequest
	tx.Fee = dec(fee)
	tx.VatFee = dec(vat)
	tx.Revenue = domain.Revenue{Amount: dec(fee)}
	tx.PaymentLinkID = &linkID
	require.NoError(t, e.store.Transactions().Create(context.Background(), tx))
	return tx
}

func (e *engineEnv) settlement() *SettlementServiceImpl {
	return e.settlementWith(e.store.PaymentLinks(), e.store.Settlements())
}

func (e *engineEnv) settlementWith(links ports.PaymentLinkRepository, settlements ports.SettlementRepository) *SettlementServiceImpl {
	svc := NewSettlementService(e.store.Transactions(), links, settlements, 0, zerolog.Nop())
	svc.now = func() time.Time { return time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC) }
	return svc
}

func findLink(t *testing.T, links []domain.LinkSettlement, id uuid.UUID) domain.LinkSettlement {
	t.Helper()
	for _, l := range links {
		if l.PaymentLinkID == id {
			return l
		}
	}
	t.Fatalf("link %s missing from settlement", id)
	return domain.LinkSettlement{}
}

func TestSettlementRun_SplitsSharesAndCreditsRemainder(t *testing.T) {
	env := newEngineEnv(t, true)
	ctx := context.Background()

	split := env.link(t, func(l *domain.PaymentLink) {
		l.Subaccounts = []domain.Subaccount{
			{ID: uuid.New(), Name: "Partner", SplitType: domain.SplitPercentage, SplitValue: dec("10")},
			{ID: uuid.New(), Name: "Courier", SplitType: domain.SplitFlat, SplitValue: dec("500")},
		}
	})
	plain := env.link(t, nil)

	a := env.linkPayment(t, split, "10000", "150", "11.25")
	b := env.linkPayment(t, split, "10000", "150", "11.25")
	c := env.linkPayment(t, plain, "1000", "0", "0")
	unlinked := env.successfulInbound(t, "7000")

	history, err := env.settlement().Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, history)
	assert.Equal(t, "20260304T050607Z", history.RunID)
	require.Len(t, history.Groups, 1)

	group := history.Groups[0]
	assert.Equal(t, env.business.ID, group.BusinessID)
	s := group.Summary
	assert.True(t, s.TotalAmount.Equal(dec("21000")), s.TotalAmount.String())
	assert.True(t, s.TotalFee.Equal(dec("300")))
	assert.True(t, s.TotalVat.Equal(dec("22.5")))
	assert.True(t, s.LumpAmount.Equal(dec("20700")))
	assert.True(t, s.SharedAmount.Equal(dec("2970")))
	assert.True(t, s.AmountToSettle.Equal(dec("17730")))

	splitGroup := findLink(t, group.Links, split.ID)
	assert.ElementsMatch(t, []uuid.UUID{a.ID, b.ID}, splitGroup.Transactions)
	require.Len(t, splitGroup.Subaccounts, 2)
	for _, share := range splitGroup.Subaccounts {
		switch share.Name {
		case "Partner":
			assert.True(t, share.Amount.Equal(dec("1970")), share.Amount.String())
			assert.Equal(t, domain.SplitPercentage, share.SplitType)
		case "Courier":
			assert.True(t, share.Amount.Equal(dec("1000")))
		}
	}
	assert.Equal(t, []uuid.UUID{c.ID}, findLink(t, group.Links, plain.ID).Transactions)

	settled := env.tx(t, a.Reference)
	assert.Equal(t, domain.SettleSettled, settled.Settle.Status)
	assert.True(t, settled.Settle.Amount.Equal(dec("8365")))
	assert.Equal(t, domain.SettlePending, env.tx(t, unlinked.Reference).Settle.Status)

	assert.True(t, env.wallet(t).Balance.Settlement.Equal(dec("17730")))

	stored, err := env.store.Settlements().GetByID(ctx, history.ID)
	require.NoError(t, err)
	assert.Equal(t, history.RunID, stored.RunID)

	again, err := env.settlement().Run(ctx)
	require.NoError(t, err)
	assert.Nil(t, again)
	assert.True(t, env.wallet(t).Balance.Settlement.Equal(dec("17730")))
}

func TestSettlementRun_FlatShareNeverExceedsNet(t *testing.T) {
	env := newEngineEnv(t, true)

	greedy := env.link(t, func(l *domain.PaymentLink) {
		l.Subaccounts = []domain.Subaccount{
			{ID: uuid.New(), Name: "Greedy", SplitType: domain.SplitFlat, SplitValue: dec("5000")},
			{ID: uuid.New(), Name: "Late", SplitType: domain.SplitFlat, SplitValue: dec("100")},
		}
	})
	env.linkPayment(t, greedy, "1000", "100", "0")

	history, err := env.settlement().Run(context.Background())
	require.NoError(t, err)
	require.NotNil(t, history)

	s := history.Groups[0].Summary
	assert.True(t, s.SharedAmount.Equal(dec("900")))
	assert.True(t, s.AmountToSettle.IsZero())
	assert.True(t, env.wallet(t).Balance.Settlement.IsZero())
}

func TestSettlementRun_NothingToSettle(t *testing.T) {
	env := newEngineEnv(t, true)
	history, err := env.settlement().Run(context.Background())
	require.NoError(t, err)
	assert.Nil(t, history)
}

func TestSettlementHandleJob_SettlesOnce(t *testing.T) {
	env := newEngineEnv(t, true)
	ctx := context.Background()
	svc := env.settlement()

	tx := env.linkPayment(t, env.link(t, nil), "2000", "0", "0")
	job := ports.JobDelivery{Job: ports.Job{ID: "settle-1", Kind: ports.JobSettlement}, Attempt: 1}
	require.NoError(t, svc.HandleJob(ctx, job))
	require.NoError(t, svc.HandleJob(ctx, job))

	assert.Equal(t, domain.SettleSettled, env.tx(t, tx.Reference).Settle.Status)
	assert.True(t, env.wallet(t).Balance.Settlement.Equal(dec("2000")), env.wallet(t).Balance.Settlement.String())
}

// brokenSettlements fails every commit.
type brokenSettlements struct {
	ports.SettlementRepository
}

func (brokenSettlements) Commit(context.Context, *domain.SettlementHistory, []domain.SettledTransaction, string) error {
	return errors.New("connection reset")
}

// brokenLinks fails lookups of one link.
type brokenLinks struct {
	ports.PaymentLinkRepository
	id uuid.UUID
}

func (b brokenLinks) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentLink, error) {
	if id == b.id {
		return nil, errors.New("connection reset")
	}
	return b.PaymentLinkRepository.GetByID(ctx, id)
}

func TestSettlementRun_FailedCommitLeavesTransactionsForNextRun(t *testing.T) {
	env := newEngineEnv(t, true)
	ctx := context.Background()
	tx := env.linkPayment(t, env.link(t, nil), "1000", "10", "0")

	_, err := env.settlementWith(env.store.PaymentLinks(), brokenSettlements{env.store.Settlements()}).Run(ctx)
	requireCode(t, err, "SYS_001")
	assert.Equal(t, domain.SettlePending, env.tx(t, tx.Reference).Settle.Status)
	assert.True(t, env.wallet(t).Balance.Settlement.IsZero())

	history, err := env.settlement().Run(ctx)
	require.NoError(t, err)
	require.NotNil(t, history)
	assert.Equal(t, []uuid.UUID{tx.ID}, history.Groups[0].Links[0].Transactions)
	assert.Equal(t, domain.SettleSettled, env.tx(t, tx.Reference).Settle.Status)
	assert.True(t, env.wallet(t).Balance.Settlement.Equal(dec("990")), env.wallet(t).Balance.Settlement.String())
}

func TestSettlementRun_FailedLinkLookupSettlesNothing(t *testing.T) {
	env := newEngineEnv(t, true)
	ctx := context.Background()
	first := env.linkPayment(t, env.link(t, nil), "1000", "0", "0")
	broken := env.link(t, nil)
	second := env.linkPayment(t, broken, "2000", "0", "0")

	_, err := env.settlementWith(brokenLinks{env.store.PaymentLinks(), broken.ID}, env.store.Settlements()).Run(ctx)
	require.Error(t, err)
	assert.Equal(t, domain.SettlePending, env.tx(t, first.Reference).Settle.Status)
	assert.Equal(t, domain.SettlePending, env.tx(t, second.Reference).Settle.Status)

	_, err = env.settlement().Run(ctx)
	require.NoError(t, err)
	assert.True(t, env.wallet(t).Balance.Settlement.Equal(dec("3000")))
}

func TestSettlementBalance_IsNotSpentByPayouts(t *testing.T) {
	env := newEngineEnv(t, true)
	ctx := context.Background()

	env.linkPayment(t, env.link(t, nil), "1000", "10", "0")
	_, err := env.settlement().Run(ctx)
	require.NoError(t, err)

	w := env.wallet(t)
	assert.True(t, w.Balance.Settlement.Equal(dec("990")))
	assert.True(t, w.Balance.Available.Equal(dec("100000")), "settling does not move available funds")

	env.gw.EXPECT().Payout(gomock.Any(), gomock.Any()).Return(okPayout("P-SET", domain.StatusSuccessful), nil)
	_, err = env.payout.Payout(ctx, env.payoutReq("1000"))
	require.NoError(t, err)

	w = env.wallet(t)
	assert.True(t, w.Balance.Available.Equal(dec("98925")), w.Balance.Available.String())
	assert.True(t, w.Balance.Settlement.Equal(dec("990")))
}
