package service

import (
	"context"
	"fmt"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/apperror"

	"github.com/google/uuid"
)

type businessService struct {
	businessRepo ports.BusinessRepository
	settingRepo  ports.SettingRepository
	encSvc       ports.EncryptionService
}

// NewBusinessService creates a new business management service.
func NewBusinessService(
	businessRepo ports.BusinessRepository,
	settingRepo ports.SettingRepository,
	encSvc ports.EncryptionService,
) ports.BusinessService {
	return &businessService{
		businessRepo: businessRepo,
		settingRepo:  settingRepo,
		encSvc:       encSvc,
	}
}

func (s *businessService) load(ctx context.Context, businessID uuid.UUID) (*domain.Business, error) {
	b, err := s.businessRepo.GetByID(ctx, businessID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	if b == nil {
		return nil, apperror.ErrNotFound("business")
	}
	return b, nil
}

func (s *businessService) GetProfile(ctx context.Context, businessID uuid.UUID) (*domain.Business, error) {
	return s.load(ctx, businessID)
}

func (s *businessService) UpdateWebhook(ctx context.Context, businessID uuid.UUID, cfg domain.WebhookConfig) error {
	b, err := s.load(ctx, businessID)
	if err != nil {
		return err
	}
	if cfg.Active && cfg.URL == "" {
		return apperror.Validation("webhook url is required to enable notifications")
	}
	b.Webhook = cfg
	if err := s.businessRepo.Update(ctx, b); err != nil {
		return apperror.ErrDatabaseError(err)
	}
	return nil
}

func (s *businessService) RotateSecret(ctx context.Context, businessID uuid.UUID) (string, error) {
	b, err := s.load(ctx, businessID)
	if err != nil {
		return "", err
	}

	secret, err := generateKey("sk_", 32)
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("generate secret key: %w", err))
	}
	enc, err := s.encSvc.Encrypt(secret)
	if err != nil {
		return "", apperror.ErrEncryptionFailure(fmt.Errorf("encrypt secret key: %w", err))
	}

	b.SecretKeyEnc = enc
	if err := s.businessRepo.Update(ctx, b); err != nil {
		return "", apperror.ErrDatabaseError(err)
	}
	return secret, nil
}

// SetCompliance records a KYC/KYB review outcome. Empty statuses are left unchanged.
func (s *businessService) SetCompliance(ctx context.Context, businessID uuid.UUID, kyc, kyb domain.ComplianceStatus) error {
	b, err := s.load(ctx, businessID)
	if err != nil {
		return err
	}
	for _, st := range []domain.ComplianceStatus{kyc, kyb} {
		switch st {
		case "", domain.CompliancePending, domain.ComplianceApproved, domain.ComplianceRejected:
		default:
			return apperror.Validation(fmt.Sprintf("unknown compliance status %q", st))
		}
	}
	if kyc != "" {
		b.KYCStatus = kyc
	}
	if kyb != "" {
		b.KYBStatus = kyb
	}
	if err := s.businessRepo.Update(ctx, b); err != nil {
		return apperror.ErrDatabaseError(err)
	}
	return nil
}

// UpsertRateCard stores negotiated pricing. Only corporate businesses are priced from it.
func (s *businessService) UpsertRateCard(ctx context.Context, businessID uuid.UUID, setting domain.Setting) (*domain.Setting, error) {
	b, err := s.load(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !b.NegotiatesPricing() {
		return nil, apperror.Validation(fmt.Sprintf("%s businesses use provider pricing", b.BusinessType))
	}
	for _, block := range []*domain.ChargeBlock{setting.CardFee, setting.BillsFee, setting.TransferFee, setting.InflowFee} {
		if err := ValidateBlock(block); err != nil {
			return nil, err
		}
	}

	existing, err := s.settingRepo.GetByBusinessID(ctx, businessID)
	if err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	setting.ID = uuid.New()
	if existing != nil {
		setting.ID = existing.ID
	}
	setting.BusinessID = businessID
	if err := s.settingRepo.Upsert(ctx, &setting); err != nil {
		return nil, apperror.ErrDatabaseError(err)
	}
	return &setting, nil
}
