package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func setupBusinessService(t *testing.T) (
	*businessService,
	*mocks.MockBusinessRepository,
	*mocks.MockSettingRepository,
	*mocks.MockEncryptionService,
) {
	ctrl := gomock.NewController(t)
	businessRepo := mocks.NewMockBusinessRepository(ctrl)
	settingRepo := mocks.NewMockSettingRepository(ctrl)
	encSvc := mocks.NewMockEncryptionService(ctrl)
	svc := NewBusinessService(businessRepo, settingRepo, encSvc).(*businessService)
	return svc, businessRepo, settingRepo, encSvc
}

func TestBusinessService_GetProfile(t *testing.T) {
	svc, businessRepo, _, _ := setupBusinessService(t)
	ctx := context.Background()
	id := uuid.New()

	businessRepo.EXPECT().GetByID(ctx, id).Return(&domain.Business{ID: id, Name: "Acme"}, nil)
	b, err := svc.GetProfile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Acme", b.Name)

	businessRepo.EXPECT().GetByID(ctx, id).Return(nil, nil)
	_, err = svc.GetProfile(ctx, id)
	requireCode(t, err, "NF_001")
}

func TestBusinessService_UpdateWebhook(t *testing.T) {
	svc, businessRepo, _, _ := setupBusinessService(t)
	ctx := context.Background()
	id := uuid.New()

	businessRepo.EXPECT().GetByID(ctx, id).Return(&domain.Business{ID: id}, nil).Times(2)
	businessRepo.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, b *domain.Business) error {
		assert.Equal(t, "https://acme.test/hooks", b.Webhook.URL)
		assert.True(t, b.Webhook.Active)
		return nil
	})

	require.NoError(t, svc.UpdateWebhook(ctx, id, domain.WebhookConfig{URL: "https://acme.test/hooks", Active: true}))

	err := svc.UpdateWebhook(ctx, id, domain.WebhookConfig{Active: true})
	requireCode(t, err, "VAL_001")
}

func TestBusinessService_RotateSecret(t *testing.T) {
	svc, businessRepo, _, encSvc := setupBusinessService(t)
	ctx := context.Background()
	id := uuid.New()

	businessRepo.EXPECT().GetByID(ctx, id).Return(&domain.Business{ID: id, SecretKeyEnc: "old"}, nil)
	encSvc.EXPECT().Encrypt(gomock.Any()).DoAndReturn(func(plain string) (string, error) {
		return "enc:" + plain, nil
	})
	var stored string
	businessRepo.EXPECT().Update(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, b *domain.Business) error {
		stored = b.SecretKeyEnc
		return nil
	})

	secret, err := svc.RotateSecret(ctx, id)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(secret, "sk_"))
	assert.Equal(t, "enc:"+secret, stored)
}

func TestBusinessService_RotateSecret_EncryptError(t *testing.T) {
	svc, businessRepo, _, encSvc := setupBusinessService(t)
	ctx := context.Background()
	id := uuid.New()

	businessRepo.EXPECT().GetByID(ctx, id).Return(&domain.Business{ID: id}, nil)
	encSvc.EXPECT().Encrypt(gomock.Any()).Return("", errors.New("bad key"))

	_, err := svc.RotateSecret(ctx, id)
	requireCode(t, err, "SYS_003")
}

func TestBusinessService_SetCompliance(t *testing.T) {
	svc, businessRepo, _, _ := setupBusinessService(t)
	ctx := context.Background()
	id := uuid.New()
	current := &domain.Business{ID: id, KYCStatus: domain.ComplianceApproved, KYBStatus: domain.CompliancePending}

	businessRepo.EXPECT().GetByID(ctx, id).Return(current, nil).Times(2)
	businessRepo.EXPECT().Update(ctx, gomock.Any()).Return(nil)

	require.NoError(t, svc.SetCompliance(ctx, id, "", domain.ComplianceApproved))
	assert.Equal(t, domain.ComplianceApproved, current.KYCStatus, "empty status leaves the review unchanged")
	assert.Equal(t, domain.ComplianceApproved, current.KYBStatus)

	err := svc.SetCompliance(ctx, id, "MAYBE", "")
	requireCode(t, err, "VAL_001")
}

func TestBusinessService_UpsertRateCard(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	card := &domain.ChargeBlock{Type: kindPtr(domain.FeePercentage), Value: decPtr("1.2")}

	t.Run("corporate keeps existing id", func(t *testing.T) {
		svc, businessRepo, settingRepo, _ := setupBusinessService(t)
		existingID := uuid.New()
		businessRepo.EXPECT().GetByID(ctx, id).Return(&domain.Business{ID: id, BusinessType: domain.BusinessCorporate}, nil)
		settingRepo.EXPECT().GetByBusinessID(ctx, id).Return(&domain.Setting{ID: existingID, BusinessID: id}, nil)
		settingRepo.EXPECT().Upsert(ctx, gomock.Any()).Return(nil)

		got, err := svc.UpsertRateCard(ctx, id, domain.Setting{CardFee: card})
		require.NoError(t, err)
		assert.Equal(t, existingID, got.ID)
		assert.Equal(t, id, got.BusinessID)
		assert.Same(t, card, got.CardFee)
	})

	t.Run("non corporate rejected", func(t *testing.T) {
		svc, businessRepo, _, _ := setupBusinessService(t)
		businessRepo.EXPECT().GetByID(ctx, id).Return(&domain.Business{ID: id, BusinessType: domain.BusinessSME}, nil)

		_, err := svc.UpsertRateCard(ctx, id, domain.Setting{CardFee: card})
		requireCode(t, err, "VAL_001")
	})

	t.Run("invalid block rejected", func(t *testing.T) {
		svc, businessRepo, _, _ := setupBusinessService(t)
		businessRepo.EXPECT().GetByID(ctx, id).Return(&domain.Business{ID: id, BusinessType: domain.BusinessCorporate}, nil)

		bad := &domain.ChargeBlock{Type: kindPtr(domain.FeePercentage), Value: decPtr("120")}
		_, err := svc.UpsertRateCard(ctx, id, domain.Setting{TransferFee: bad})
		requireCode(t, err, "VAL_001")
	})
}
