package service

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	businessRepo ports.BusinessRepository
	walletRepo   ports.WalletRepository
	hashSvc      ports.HashService
	encSvc       ports.EncryptionService
	tokenSvc     ports.TokenService
	currency     string
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	businessRepo ports.BusinessRepository,
	walletRepo ports.WalletRepository,
	hashSvc ports.HashService,
	encSvc ports.EncryptionService,
	tokenSvc ports.TokenService,
	currency string,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		businessRepo: businessRepo,
		walletRepo:   walletRepo,
		hashSvc:      hashSvc,
		encSvc:       encSvc,
		tokenSvc:     tokenSvc,
		currency:     currency,
	}
}

// Register creates a business with its wallet. Compliance starts PENDING.
// Returns the secret key (plaintext shown only once).
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.RegisterResponse, error) {
	existing, err := s.businessRepo.GetByEmail(ctx, req.Email)
	if err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("check email: %w", err))
	}
	if existing != nil {
		return nil, apperror.ErrEmailExists()
	}

	secretKey, err := generateKey("sk_", 32)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate secret key: %w", err))
	}
	secretKeyEnc, err := s.encSvc.Encrypt(secretKey)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("encrypt secret key: %w", err))
	}
	pinHash, err := s.hashSvc.Hash(req.PIN)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash pin: %w", err))
	}

	business := &domain.Business{
		ID:                 uuid.New(),
		Name:               req.Name,
		Email:              req.Email,
		BusinessType:       req.BusinessType,
		KYCStatus:          domain.CompliancePending,
		KYBStatus:          domain.CompliancePending,
		WalletID:           uuid.New(),
		TransactionPinHash: pinHash,
		SecretKeyEnc:       secretKeyEnc,
		Webhook:            domain.WebhookConfig{URL: req.WebhookURL, Active: req.WebhookURL != ""},
	}
	if err := s.businessRepo.Create(ctx, business); err != nil {
		if errors.Is(err, ports.ErrConflict) {
			return nil, apperror.ErrEmailExists()
		}
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create business: %w", err))
	}

	wallet := &domain.Wallet{
		ID:         business.WalletID,
		BusinessID: business.ID,
		Currency:   s.currency,
		Balance: domain.Balance{
			Available:  decimal.Zero,
			Locked:     decimal.Zero,
			Settlement: decimal.Zero,
		},
		Inflow:     decimal.Zero,
		Outflow:    decimal.Zero,
		Transfer:   decimal.Zero,
		Withdrawal: decimal.Zero,
	}
	if err := s.walletRepo.Create(ctx, wallet); err != nil {
		return nil, apperror.ErrDatabaseError(fmt.Errorf("create wallet: %w", err))
	}

	return &ports.RegisterResponse{
		BusinessID: business.ID,
		WalletID:   wallet.ID,
		SecretKey:  secretKey,
	}, nil
}

// IssueToken checks the business secret key and returns a JWT.
func (s *AuthServiceImpl) IssueToken(ctx context.Context, businessID uuid.UUID, secretKey string) (string, time.Time, error) {
	business, err := s.businessRepo.GetByID(ctx, businessID)
	if err != nil {
		return "", time.Time{}, apperror.ErrDatabaseError(fmt.Errorf("find business: %w", err))
	}
	if business == nil {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	stored, err := s.encSvc.Decrypt(business.SecretKeyEnc)
	if err != nil {
		return "", time.Time{}, apperror.ErrEncryptionFailure(fmt.Errorf("decrypt secret key: %w", err))
	}
	if subtle.ConstantTimeCompare([]byte(stored), []byte(secretKey)) != 1 {
		return "", time.Time{}, apperror.ErrInvalidCredentials()
	}

	token, expiry, err := s.tokenSvc.Generate(business.ID, business.Email)
	if err != nil {
		return "", time.Time{}, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return token, expiry, nil
}

func generateKey(prefix string, length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return prefix + hex.EncodeToString(b), nil
}
