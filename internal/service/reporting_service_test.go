package service

import (
	"context"
	"errors"
	"testing"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type reportingDeps struct {
	svc         ports.ReportingService
	txs         *mocks.MockTransactionRepository
	wallets     *mocks.MockWalletRepository
	deliveries  *mocks.MockWebhookDeliveryRepository
	settlements *mocks.MockSettlementRepository
	businesses  *mocks.MockBusinessRepository
	providers   *mocks.MockProviderRepository
	settings    *mocks.MockSettingRepository
}

func setupReportingService(t *testing.T) *reportingDeps {
	ctrl := gomock.NewController(t)
	d := &reportingDeps{
		txs:         mocks.NewMockTransactionRepository(ctrl),
		wallets:     mocks.NewMockWalletRepository(ctrl),
		deliveries:  mocks.NewMockWebhookDeliveryRepository(ctrl),
		settlements: mocks.NewMockSettlementRepository(ctrl),
		businesses:  mocks.NewMockBusinessRepository(ctrl),
		providers:   mocks.NewMockProviderRepository(ctrl),
		settings:    mocks.NewMockSettingRepository(ctrl),
	}
	d.svc = NewReportingService(d.txs, d.wallets, d.deliveries, d.settlements, d.businesses,
		NewRateCardResolver(d.providers, d.settings))
	return d
}

func TestReportingService_GetTransactionScopedToBusiness(t *testing.T) {
	d := setupReportingService(t)
	ctx := context.Background()
	owner := uuid.New()
	tx := &domain.Transaction{ID: uuid.New(), Reference: "VACE-1", BusinessID: owner}

	d.txs.EXPECT().GetByReference(ctx, "VACE-1").Return(tx, nil).Times(2)

	got, err := d.svc.GetTransaction(ctx, owner, "VACE-1")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, got.ID)

	_, err = d.svc.GetTransaction(ctx, uuid.New(), "VACE-1")
	requireCode(t, err, "NF_001")
}

func TestReportingService_GetWallet(t *testing.T) {
	d := setupReportingService(t)
	ctx := context.Background()
	id := uuid.New()

	d.wallets.EXPECT().GetByBusinessID(ctx, id).Return(&domain.Wallet{BusinessID: id, Currency: "NGN"}, nil)
	w, err := d.svc.GetWallet(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "NGN", w.Currency)

	d.wallets.EXPECT().GetByBusinessID(ctx, id).Return(nil, errors.New("timeout"))
	_, err = d.svc.GetWallet(ctx, id)
	requireCode(t, err, "SYS_001")
}

func TestReportingService_ListWebhookDeliveries(t *testing.T) {
	d := setupReportingService(t)
	ctx := context.Background()
	owner := uuid.New()
	tx := &domain.Transaction{ID: uuid.New(), Reference: "VACE-2", BusinessID: owner}

	d.txs.EXPECT().GetByReference(ctx, "VACE-2").Return(tx, nil)
	d.deliveries.EXPECT().ListByTransaction(ctx, tx.ID).Return([]domain.WebhookDelivery{
		{TransactionID: tx.ID, Status: domain.WebhookStatusDelivered},
	}, nil)

	out, err := d.svc.ListWebhookDeliveries(ctx, owner, "VACE-2")
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, domain.WebhookStatusDelivered, out[0].Status)
}

func TestReportingService_GetSettlementNotFound(t *testing.T) {
	d := setupReportingService(t)
	id := uuid.New()
	d.settlements.EXPECT().GetByID(gomock.Any(), id).Return(nil, nil)

	_, err := d.svc.GetSettlement(context.Background(), id)
	requireCode(t, err, "NF_001")
}

func TestReportingService_QuoteFee(t *testing.T) {
	d := setupReportingService(t)
	ctx := context.Background()
	id := uuid.New()

	d.businesses.EXPECT().GetByID(ctx, id).Return(&domain.Business{ID: id, BusinessType: domain.BusinessSME}, nil)
	d.providers.EXPECT().GetByName(ctx, "sandbox").Return(testProvider(), nil)

	out, err := d.svc.QuoteFee(ctx, ports.FeeQuote{
		BusinessID: id,
		Provider:   "sandbox",
		Category:   domain.CategoryInflow,
		Kind:       domain.KindCard,
		Amount:     dec("10000"),
	})
	require.NoError(t, err)
	assert.True(t, out.Fee.Equal(dec("150")), out.Fee.String())
	assert.True(t, out.Vat.Equal(dec("11.25")), out.Vat.String())
}

func TestReportingService_QuoteFeeValidation(t *testing.T) {
	d := setupReportingService(t)
	ctx := context.Background()

	_, err := d.svc.QuoteFee(ctx, ports.FeeQuote{Category: "sideways", Amount: dec("100")})
	requireCode(t, err, "VAL_001")

	_, err = d.svc.QuoteFee(ctx, ports.FeeQuote{Category: domain.CategoryOutflow, Amount: dec("10.123")})
	requireCode(t, err, "VAL_002")
}
