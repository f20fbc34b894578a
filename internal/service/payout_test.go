package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func payoutReq(amount string) ports.PayoutRequest {
	return ports.PayoutRequest{
		Provider:  "sandbox",
		Amount:    dec(amount),
		Bank:      domain.BankDetails{AccountNumber: "0123456789", BankCode: "058", AccountName: "Jane Doe"},
		Narration: "supplier payment",
		PIN:       testPIN,
	}
}

func (e *engineEnv) payoutReq(amount string) ports.PayoutRequest {
	req := payoutReq(amount)
	req.BusinessID = e.business.ID
	return req
}

func TestPayout_DebitsAmountPlusChargesThenSettlesOnUpdate(t *testing.T) {
	env := newEngineEnv(t, true)
	ctx := context.Background()

	env.gw.EXPECT().Payout(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, spec ports.PayoutSpec) (ports.Result[ports.PayoutRef], error) {
			assert.True(t, spec.Amount.Equal(dec("1000")))
			assert.Equal(t, "0123456789", spec.Bank.AccountNumber)
			return okPayout("PRV-O1", domain.StatusProcessing), nil
		})

	tx, err := env.payout.Payout(ctx, env.payoutReq("1000"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusProcessing, tx.Status)
	assert.Equal(t, domain.TransactionTypeDebit, tx.Type)
	assert.True(t, tx.Fee.Equal(dec("25")))
	assert.True(t, tx.StampFee.Equal(dec("50")))
	assert.True(t, tx.DebitTotal().Equal(dec("1075")))

	w := env.wallet(t)
	assert.True(t, w.Balance.Available.Equal(dec("98925")), w.Balance.Available.String())
	assert.True(t, w.Withdrawal.Equal(dec("1000")))

	done, err := env.reconcile.ApplyProviderUpdate(ctx, "sandbox", "PRV-O1", domain.StatusSuccessful)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccessful, done.Status)
	assert.True(t, env.wallet(t).Balance.Available.Equal(dec("98925")))

	again, err := env.reconcile.ApplyProviderUpdate(ctx, "sandbox", "PRV-O1", domain.StatusSuccessful)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccessful, again.Status)

	_, err = env.reconcile.ApplyProviderUpdate(ctx, "sandbox", "PRV-O1", domain.StatusFailed)
	requireCode(t, err, "CNF_004")
	assert.True(t, env.wallet(t).Balance.Available.Equal(dec("98925")))
}

func TestPayout_ProviderRejectionReversesDebit(t *testing.T) {
	tests := []struct {
		name       string
		reverseFee bool
		balance    string
	}{
		{name: "fee reversed", reverseFee: true, balance: "100000"},
		{name: "fee kept", reverseFee: false, balance: "99925"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEngineEnv(t, tt.reverseFee)

			var ref string
			env.gw.EXPECT().Payout(gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, spec ports.PayoutSpec) (ports.Result[ports.PayoutRef], error) {
					ref = spec.Reference
					return ports.Result[ports.PayoutRef]{StatusCode: 400, Message: "invalid account"}, nil
				})

			_, err := env.payout.Payout(context.Background(), env.payoutReq("1000"))
			requireCode(t, err, "PRV_001")

			tx := env.tx(t, ref)
			assert.Equal(t, domain.StatusFailed, tx.Status)
			assert.True(t, tx.Revenue.Reversed)

			w := env.wallet(t)
			assert.True(t, w.Balance.Available.Equal(dec(tt.balance)), w.Balance.Available.String())
			assert.True(t, w.Withdrawal.IsZero())
		})
	}
}

func TestPayout_TransportErrorReverses(t *testing.T) {
	env := newEngineEnv(t, true)

	env.gw.EXPECT().Payout(gomock.Any(), gomock.Any()).
		Return(ports.Result[ports.PayoutRef]{}, errors.New("connection reset"))

	tx, err := env.payout.Payout(context.Background(), env.payoutReq("1000"))
	requireCode(t, err, "PRV_001")
	require.NotNil(t, tx)
	assert.Equal(t, domain.StatusFailed, tx.Status)
	assert.True(t, env.wallet(t).Balance.Available.Equal(dec("100000")))
}

func TestPayout_InsufficientFundsFailsWithoutProviderCall(t *testing.T) {
	env := newEngineEnv(t, true)

	tx, err := env.payout.Payout(context.Background(), env.payoutReq("99950"))
	requireCode(t, err, "VAL_005")
	require.NotNil(t, tx)

	stored := env.tx(t, tx.Reference)
	assert.Equal(t, domain.StatusFailed, stored.Status)
	assert.False(t, stored.Revenue.Reversed, "nothing was debited")
	assert.True(t, env.wallet(t).Balance.Available.Equal(dec("100000")))
}

func TestPayout_ProviderReportsTerminalStatus(t *testing.T) {
	env := newEngineEnv(t, true)

	env.gw.EXPECT().Payout(gomock.Any(), gomock.Any()).Return(okPayout("PRV-O2", domain.StatusSuccessful), nil)

	tx, err := env.payout.Payout(context.Background(), env.payoutReq("1000"))
	require.NoError(t, err)
	assert.Equal(t, domain.StatusSuccessful, tx.Status)
	assert.Equal(t, domain.StatusSuccessful, env.tx(t, tx.Reference).Status)
}

func TestPayout_Guardrails(t *testing.T) {
	env := newEngineEnv(t, true)

	tests := []struct {
		name   string
		mutate func(r *ports.PayoutRequest)
		code   string
	}{
		{name: "wrong pin", mutate: func(r *ports.PayoutRequest) { r.PIN = "9999" }, code: "VAL_006"},
		{name: "missing pin", mutate: func(r *ports.PayoutRequest) { r.PIN = "" }, code: "VAL_006"},
		{name: "below minimum", mutate: func(r *ports.PayoutRequest) { r.Amount = dec("499.99") }, code: "VAL_003"},
		{name: "inbound feature", mutate: func(r *ports.PayoutRequest) { r.Feature = domain.FeatureCard }, code: "VAL_001"},
		{name: "refund feature", mutate: func(r *ports.PayoutRequest) { r.Feature = domain.FeatureRefund }, code: "VAL_001"},
		{name: "missing bank", mutate: func(r *ports.PayoutRequest) { r.Bank.BankCode = "" }, code: "VAL_001"},
		{name: "unknown provider", mutate: func(r *ports.PayoutRequest) { r.Provider = "acme" }, code: "VAL_001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := env.payoutReq("1000")
			tt.mutate(&req)
			_, err := env.payout.Payout(context.Background(), req)
			requireCode(t, err, tt.code)
		})
	}
	assert.True(t, env.wallet(t).Balance.Available.Equal(dec("100000")))
}

func TestFinalize_ConcurrentFailuresReverseOnce(t *testing.T) {
	env := newEngineEnv(t, true)
	ctx := context.Background()

	env.gw.EXPECT().Payout(gomock.Any(), gomock.Any()).Return(okPayout("PRV-O3", domain.StatusProcessing), nil)
	tx, err := env.payout.Payout(ctx, env.payoutReq("1000"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			snapshot := env.tx(t, tx.Reference)
			_, err := env.ledger.Finalize(ctx, snapshot, domain.StatusFailed)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, domain.StatusFailed, env.tx(t, tx.Reference).Status)
	w := env.wallet(t)
	assert.True(t, w.Balance.Available.Equal(dec("100000")), w.Balance.Available.String())
	assert.True(t, w.Withdrawal.IsZero())
}
