package service

import (
	"context"
	"testing"

	"fee-engine/internal/adapter/storage/memory"
	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testPIN  = "1234"
	testCard = "4111 1111 1111 1111"
)

// engineEnv wires every money-moving service over the in-memory store with a mocked
// provider gateway.
type engineEnv struct {
	ctrl      *gomock.Controller
	store     *memory.Store
	gw        *mocks.MockProviderGateway
	notifier  *mocks.MockWebhookNotifier
	ledger    *Ledger
	charge    *ChargeServiceImpl
	payout    *PayoutServiceImpl
	refund    *RefundServiceImpl
	reconcile *ReconcileServiceImpl
	collect   *CollectionServiceImpl
	business  *domain.Business
	walletID  uuid.UUID
	// notified records every transaction handed to the notifier, in order.
	notified []domain.Transaction
}

func newEngineEnv(t *testing.T, reverseFee bool) *engineEnv {
	t.Helper()
	ctrl := gomock.NewController(t)
	ctx := context.Background()
	store := memory.New()

	gw := mocks.NewMockProviderGateway(ctrl)
	registry := mocks.NewMockGatewayRegistry(ctrl)
	registry.EXPECT().Gateway("sandbox").Return(gw, true).AnyTimes()
	registry.EXPECT().Gateway(gomock.Not("sandbox")).Return(nil, false).AnyTimes()

	env := &engineEnv{ctrl: ctrl, store: store, gw: gw}
	notifier := mocks.NewMockWebhookNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tx *domain.Transaction) error {
			env.notified = append(env.notified, *tx)
			return nil
		}).AnyTimes()

	pins := NewArgon2PINService()
	pinHash, err := pins.Hash(testPIN)
	require.NoError(t, err)

	walletID := uuid.New()
	business := &domain.Business{
		ID:                 uuid.New(),
		Name:               "Acme Stores",
		Email:              "ops@acme.test",
		BusinessType:       domain.BusinessSME,
		KYCStatus:          domain.ComplianceApproved,
		KYBStatus:          domain.ComplianceApproved,
		WalletID:           walletID,
		TransactionPinHash: pinHash,
	}
	require.NoError(t, store.Businesses().Create(ctx, business))
	require.NoError(t, store.Wallets().Create(ctx, &domain.Wallet{
		ID:         walletID,
		BusinessID: business.ID,
		Currency:   "NGN",
		Balance:    domain.Balance{Available: dec("100000")},
	}))
	require.NoError(t, store.Providers().Upsert(ctx, testProvider()))

	log := zerolog.Nop()
	rates := NewRateCardResolver(store.Providers(), store.Settings())
	ledger := NewLedger(store.Transactions(), store.Wallets(), store.PaymentLinks(), store.Invoices(), store.Refunds(), notifier, reverseFee, log)
	cfg := ChargeConfig{CardProvider: "sandbox", Currency: "NGN"}
	payout := NewPayoutService(store.Businesses(), store.Transactions(), rates, registry, ledger, pins, cfg, log)

	env.notifier = notifier
	env.ledger = ledger
	env.charge = NewChargeService(store.PaymentLinks(), store.Products(), store.Invoices(), store.Businesses(), store.Transactions(), rates, registry, ledger, cfg, log)
	env.payout = payout
	env.refund = NewRefundService(store.Transactions(), store.Refunds(), store.Businesses(), payout, log)
	env.reconcile = NewReconcileService(store.Transactions(), registry, ledger, 10, 0, log)
	env.collect = NewCollectionService(store.Businesses(), store.Transactions(), rates, registry, ledger, cfg, log)
	env.business = business
	env.walletID = walletID
	return env
}

func (e *engineEnv) wallet(t *testing.T) *domain.Wallet {
	t.Helper()
	w, err := e.store.Wallets().GetByID(context.Background(), e.walletID)
	require.NoError(t, err)
	require.NotNil(t, w)
	return w
}

func (e *engineEnv) tx(t *testing.T, ref string) *domain.Transaction {
	t.Helper()
	tx, err := e.store.Transactions().GetByReference(context.Background(), ref)
	require.NoError(t, err)
	require.NotNil(t, tx)
	return tx
}

func (e *engineEnv) link(t *testing.T, mutate func(l *domain.PaymentLink)) *domain.PaymentLink {
	t.Helper()
	l := &domain.PaymentLink{
		ID:         uuid.New(),
		BusinessID: e.business.ID,
		Slug:       "link-" + uuid.NewString()[:8],
		Name:       "Checkout",
		Type:       domain.LinkDynamic,
		Feature:    domain.LinkRequest,
		Reusable:   true,
		Active:     true,
	}
	if mutate != nil {
		mutate(l)
	}
	require.NoError(t, e.store.PaymentLinks().Create(context.Background(), l))
	return l
}

// successfulInbound seeds a successful card payment that can be refunded.
func (e *engineEnv) successfulInbound(t *testing.T, amount string) *domain.Transaction {
	t.Helper()
	tx := e.inbound(amount)
	require.NoError(t, e.store.Transactions().Create(context.Background(), tx))
	return tx
}

func (e *engineEnv) inbound(amount string) *domain.Transaction {
	return &domain.Transaction{
		ID:         uuid.New(),
		Reference:  newReference(),
		Provider:   "sandbox",
		Type:       domain.TransactionTypeCredit,
		Feature:    domain.FeatureCard,
		Status:     domain.StatusSuccessful,
		Currency:   "NGN",
		Amount:     dec(amount),
		Fee:        dec("0"),
		Bank:       &domain.BankDetails{AccountNumber: "0123456789", BankCode: "058", AccountName: "Jane Doe"},
		BusinessID: e.business.ID,
		WalletID:   e.walletID,
		Settle:     domain.Settle{Status: domain.SettlePending},
	}
}

func okCharge(ref string, step domain.AuthStep) ports.Result[ports.ChargeOutcome] {
	return ports.Result[ports.ChargeOutcome]{
		OK:         true,
		StatusCode: 200,
		Data:       ports.ChargeOutcome{ProviderRef: ref, Step: step},
	}
}

func okPayout(ref string, status domain.TransactionStatus) ports.Result[ports.PayoutRef] {
	return ports.Result[ports.PayoutRef]{
		OK:         true,
		StatusCode: 200,
		Data:       ports.PayoutRef{ProviderRef: ref, Status: status},
	}
}
