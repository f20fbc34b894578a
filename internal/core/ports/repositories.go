package ports

import (
	"context"
	"errors"
	"time"

	"fee-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrConflict is returned by repositories when a write violates a uniqueness rule.
var ErrConflict = errors.New("conflicting record exists")

// Lookups return (nil, nil) when the record does not exist. Conditional writes return
// false when the guarding predicate did not match, so concurrent callers cannot both win.

// BusinessRepository defines persistence operations for businesses.
type BusinessRepository interface {
	// Create returns ErrConflict when the email is already registered.
	Create(ctx context.Context, b *domain.Business) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error)
	GetByEmail(ctx context.Context, email string) (*domain.Business, error)
	Update(ctx context.Context, b *domain.Business) error
}

// SettingRepository defines persistence operations for business rate cards.
type SettingRepository interface {
	Upsert(ctx context.Context, s *domain.Setting) error
	GetByBusinessID(ctx context.Context, businessID uuid.UUID) (*domain.Setting, error)
}

// ProviderRepository defines persistence operations for provider default pricing.
type ProviderRepository interface {
	Upsert(ctx context.Context, p *domain.Provider) error
	GetByName(ctx context.Context, name string) (*domain.Provider, error)
}

// WalletRepository defines persistence operations for wallets.
// Every balance change is a single atomic statement.
type WalletRepository interface {
	Create(ctx context.Context, w *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	GetByBusinessID(ctx context.Context, businessID uuid.UUID) (*domain.Wallet, error)
	// Debit subtracts amount from available only when available >= amount; the counter grows by counted.
	Debit(ctx context.Context, id uuid.UUID, amount, counted decimal.Decimal, counter domain.WalletCounter) (bool, error)
	// Credit adds amount to available and to the counter.
	Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, counter domain.WalletCounter) error
	// Reverse returns a prior debit: available grows by amount, the counter shrinks by counted.
	Reverse(ctx context.Context, id uuid.UUID, amount, counted decimal.Decimal, counter domain.WalletCounter) error
}

// PageCursor is the (created_at, id) position of the last row of a page.
// The zero value starts from the oldest row.
type PageCursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// CursorOf returns the position of t.
func CursorOf(t domain.Transaction) PageCursor {
	return PageCursor{CreatedAt: t.CreatedAt, ID: t.ID}
}

// TransactionRepository defines persistence operations for transactions.
type TransactionRepository interface {
	Create(ctx context.Context, t *domain.Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error)
	GetByReference(ctx context.Context, reference string) (*domain.Transaction, error)
	GetByProviderRef(ctx context.Context, provider, providerRef string) (*domain.Transaction, error)
	// Transition moves the status to `to` only while it is one of `from`.
	Transition(ctx context.Context, id uuid.UUID, from []domain.TransactionStatus, to domain.TransactionStatus) (bool, error)
	SetProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error
	UpdateAuthStep(ctx context.Context, id uuid.UUID, step domain.AuthStep) error
	MarkRevenueReversed(ctx context.Context, id uuid.UUID) error
	// ClaimWebhookLease takes the delivery lease while the webhook is unsent and unleased at now.
	ClaimWebhookLease(ctx context.Context, id uuid.UUID, now, until time.Time) (bool, error)
	// MarkWebhookSent flips isSent false→true once and clears the lease.
	MarkWebhookSent(ctx context.Context, id uuid.UUID, event string) (bool, error)
	ReleaseWebhookLease(ctx context.Context, id uuid.UUID) error
	// ListPendingByProvider pages through PENDING/PROCESSING transactions that carry a
	// provider reference, ordered by (created_at, id) and strictly after `after`.
	ListPendingByProvider(ctx context.Context, provider string, after PageCursor, limit int) ([]domain.Transaction, error)
	// ListUnsettled returns successful payment-link transactions whose settle status is pending.
	ListUnsettled(ctx context.Context, limit int) ([]domain.Transaction, error)
}

// PaymentLinkRepository defines persistence operations for payment links.
type PaymentLinkRepository interface {
	Create(ctx context.Context, l *domain.PaymentLink) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentLink, error)
	GetBySlug(ctx context.Context, slug string) (*domain.PaymentLink, error)
	// Initialize locks the link for newRef while its current initializeRef equals expectedRef
	// ("" when the link is free).
	Initialize(ctx context.Context, id uuid.UUID, expectedRef, newRef string) (bool, error)
	// Release frees the link if it is still held by ref.
	Release(ctx context.Context, id uuid.UUID, ref string) error
	Deactivate(ctx context.Context, id uuid.UUID) error
	RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

// ProductRepository defines read access to products sold through links.
type ProductRepository interface {
	Create(ctx context.Context, p *domain.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error)
}

// InvoiceRepository defines persistence operations for invoices.
type InvoiceRepository interface {
	Create(ctx context.Context, i *domain.Invoice) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error
}

// RefundRepository defines persistence operations for refunds.
type RefundRepository interface {
	// Create returns ErrConflict when a non-terminal refund already exists for the transaction.
	Create(ctx context.Context, r *domain.Refund) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error)
	GetLatestByTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Refund, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from []domain.RefundStatus, to domain.RefundStatus) (bool, error)
	SetPayoutTransaction(ctx context.Context, id, transactionID uuid.UUID) error
}

// SettlementRepository stores immutable settlement run snapshots.
type SettlementRepository interface {
	// Commit records a run as one unit: every listed transaction moves from settle
	// status pending to settled, the history is stored and each group's settlement
	// balance grows by its amount to settle. If any transaction is no longer pending
	// nothing is written and ErrConflict is returned.
	Commit(ctx context.Context, h *domain.SettlementHistory, settled []domain.SettledTransaction, destination string) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SettlementHistory, error)
}

// WebhookDeliveryRepository is the append-only webhook attempt log.
type WebhookDeliveryRepository interface {
	Create(ctx context.Context, d *domain.WebhookDelivery) error
	ListByTransaction(ctx context.Context, transactionID uuid.UUID) ([]domain.WebhookDelivery, error)
}
