package ports

import (
	"context"
	"time"

	"fee-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EncryptionService handles AES-256-GCM encryption/decryption.
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

// SignatureService handles HMAC-SHA512 signing and verification.
type SignatureService interface {
	Sign(secretKey string, payload []byte) string
	Verify(secretKey string, payload []byte, signature string) bool
}

// HashService handles PIN hashing (Argon2id).
type HashService interface {
	Hash(secret string) (string, error)
	Verify(secret string, hash string) (bool, error)
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(businessID uuid.UUID, email string) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed JWT claims.
type TokenClaims struct {
	BusinessID uuid.UUID
	Email      string
}

// IdempotencyStore is the strongly consistent cache behind the idempotency guard.
type IdempotencyStore interface {
	// Claim stores rec under key only if the key is absent.
	Claim(ctx context.Context, key string, rec domain.IdempotencyRecord, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (*domain.IdempotencyRecord, error)
	// Attach overwrites the record without touching its expiry.
	Attach(ctx context.Context, key string, rec domain.IdempotencyRecord) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Delete(ctx context.Context, key string) error
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimiter counts requests in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

// --- Service Ports (Business Logic) ---

// IdempotencyGuard rejects duplicate submissions.
type IdempotencyGuard interface {
	Check(ctx context.Context, key string, payload []byte, user domain.RequestUser) (domain.IdempotencyCheck, error)
	Store(ctx context.Context, key string, payload []byte, user domain.RequestUser, transactionID uuid.UUID) error
	Release(ctx context.Context, key string) error
	CheckSignature(ctx context.Context, payload []byte, user domain.RequestUser) (domain.IdempotencyCheck, error)
}

// LinkChargeRequest holds validated input for a card charge against a payment link.
type LinkChargeRequest struct {
	Slug     string
	Amount   *decimal.Decimal // dynamic links only
	Quantity int              // product links; 0 means 1
	Card     domain.Card
	Customer domain.Customer
}

// ChargeResult is the transaction created for a charge and the step to show next.
type ChargeResult struct {
	Transaction *domain.Transaction
	Next        domain.NextStep
}

// AuthorizeRequest answers the challenge a card charge is waiting on.
type AuthorizeRequest struct {
	Reference    string
	ValidateType domain.AuthStep
	Answer       string
}

// ChargeService drives card charges through provider authorization.
type ChargeService interface {
	ChargeLink(ctx context.Context, req LinkChargeRequest) (*ChargeResult, error)
	Authorize(ctx context.Context, req AuthorizeRequest) (*domain.NextStep, error)
}

// PayoutRequest holds validated input for an outbound bank transfer.
type PayoutRequest struct {
	BusinessID uuid.UUID
	Feature    domain.Feature
	Provider   string
	Amount     decimal.Decimal
	Currency   string
	Bank       domain.BankDetails
	Narration  string
	PIN        string
}

// PayoutService moves money out of a business wallet.
type PayoutService interface {
	Payout(ctx context.Context, req PayoutRequest) (*domain.Transaction, error)
}

// CollectionRequest asks a provider for an account a customer can pay into.
type CollectionRequest struct {
	BusinessID uuid.UUID
	Feature    domain.Feature // bank_transfer or virtual_account
	Provider   string
	Amount     decimal.Decimal
	Currency   string
	Customer   domain.Customer
}

// CollectionResult pairs the PENDING inbound transaction with the account to pay into.
type CollectionResult struct {
	Transaction *domain.Transaction
	Account     VirtualAccount
}

// CollectionService opens inbound bank transfer collections. The wallet is only
// credited once the provider confirms the transfer.
type CollectionService interface {
	CreateVirtualAccount(ctx context.Context, req CollectionRequest) (*CollectionResult, error)
}

// RefundRequest holds validated input for refund creation.
type RefundRequest struct {
	BusinessID uuid.UUID
	Reference  string
	Option     domain.RefundOption
	Type       domain.RefundType
	Amount     *decimal.Decimal // required for partial refunds
	Bank       *domain.BankDetails
	Reason     string
}

// RefundService issues refunds against settled transactions.
type RefundService interface {
	CreateRefund(ctx context.Context, req RefundRequest) (*domain.Refund, error)
	CompleteRefund(ctx context.Context, businessID, refundID uuid.UUID) (*domain.Refund, error)
}

// ReconcileReport counts what one sweep did.
type ReconcileReport struct {
	Provider string `json:"provider"`
	Checked  int    `json:"checked"`
	Advanced int    `json:"advanced"`
	Errors   int    `json:"errors"`
}

// ReconcileService closes gaps between the ledger and provider state.
type ReconcileService interface {
	ReconcileProvider(ctx context.Context, provider string) (*ReconcileReport, error)
	ApplyProviderUpdate(ctx context.Context, provider, providerRef string, status domain.TransactionStatus) (*domain.Transaction, error)
}

// SettlementService releases settled link revenue.
type SettlementService interface {
	Run(ctx context.Context) (*domain.SettlementHistory, error)
}

// RegisterRequest holds validated input for business onboarding.
type RegisterRequest struct {
	Name         string
	Email        string
	BusinessType domain.BusinessType
	PIN          string
	WebhookURL   string
}

// RegisterResponse returns the API secret; it is shown once and stored encrypted.
type RegisterResponse struct {
	BusinessID uuid.UUID `json:"business_id"`
	WalletID   uuid.UUID `json:"wallet_id"`
	SecretKey  string    `json:"secret_key"`
}

// AuthService onboards businesses and exchanges their secret for a token.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	IssueToken(ctx context.Context, businessID uuid.UUID, secretKey string) (string, time.Time, error)
}

// BusinessService manages a business's own configuration.
type BusinessService interface {
	GetProfile(ctx context.Context, businessID uuid.UUID) (*domain.Business, error)
	UpdateWebhook(ctx context.Context, businessID uuid.UUID, cfg domain.WebhookConfig) error
	RotateSecret(ctx context.Context, businessID uuid.UUID) (string, error)
	SetCompliance(ctx context.Context, businessID uuid.UUID, kyc, kyb domain.ComplianceStatus) error
	UpsertRateCard(ctx context.Context, businessID uuid.UUID, setting domain.Setting) (*domain.Setting, error)
}

// FeeQuote asks what a transaction would cost before it is made.
type FeeQuote struct {
	BusinessID uuid.UUID
	Provider   string
	Category   domain.Category
	Kind       domain.ChargeKind
	Amount     decimal.Decimal
}

// ReportingService is the read side of the ledger.
type ReportingService interface {
	GetTransaction(ctx context.Context, businessID uuid.UUID, reference string) (*domain.Transaction, error)
	GetWallet(ctx context.Context, businessID uuid.UUID) (*domain.Wallet, error)
	ListWebhookDeliveries(ctx context.Context, businessID uuid.UUID, reference string) ([]domain.WebhookDelivery, error)
	GetSettlement(ctx context.Context, id uuid.UUID) (*domain.SettlementHistory, error)
	QuoteFee(ctx context.Context, q FeeQuote) (*domain.Breakdown, error)
}

// WebhookNotifier enqueues and delivers outcome notifications.
type WebhookNotifier interface {
	Notify(ctx context.Context, t *domain.Transaction) error
	Deliver(ctx context.Context, transactionID uuid.UUID, attempt int) error
}
