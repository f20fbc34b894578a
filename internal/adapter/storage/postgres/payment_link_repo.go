package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fee-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const linkColumns = `id, business_id, slug, name, type, feature, amount, reusable, active,
	initialized, initialize_ref, product_id, invoice_id, subaccounts,
	analytics_payments, analytics_total, created_at, updated_at`

// PaymentLinkRepo implements ports.PaymentLinkRepository.
type PaymentLinkRepo struct {
	pool Pool
}

func NewPaymentLinkRepo(pool Pool) *PaymentLinkRepo {
	return &PaymentLinkRepo{pool: pool}
}

// Create inserts a payment link. A taken slug yields ports.ErrConflict.
func (r *PaymentLinkRepo) Create(ctx context.Context, l *domain.PaymentLink) error {
	now := time.Now().UTC()
	l.CreatedAt, l.UpdatedAt = now, now
	if l.Subaccounts == nil {
		l.Subaccounts = []domain.Subaccount{}
	}
	subaccounts, err := json.Marshal(l.Subaccounts)
	if err != nil {
		return fmt.Errorf("encode subaccounts: %w", err)
	}

	query := `INSERT INTO payment_links (` + linkColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	_, err = r.pool.Exec(ctx, query,
		l.ID, l.BusinessID, l.Slug, l.Name, l.Type, l.Feature, l.Amount, l.Reusable, l.Active,
		l.Initialized, l.InitializeRef, l.ProductID, l.InvoiceID, subaccounts,
		l.Analytics.Payments, l.Analytics.TotalAmount, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payment link: %w", mapConflict(err))
	}
	return nil
}

func (r *PaymentLinkRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentLink, error) {
	l, err := scanLink(r.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM payment_links WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get payment link by id: %w", err)
	}
	return l, nil
}

func (r *PaymentLinkRepo) GetBySlug(ctx context.Context, slug string) (*domain.PaymentLink, error) {
	l, err := scanLink(r.pool.QueryRow(ctx, `SELECT `+linkColumns+` FROM payment_links WHERE slug = $1`, slug))
	if err != nil {
		return nil, fmt.Errorf("get payment link by slug: %w", err)
	}
	return l, nil
}

// Initialize swaps the lock reference from expectedRef to newRef. An empty
// expectedRef only matches a free link.
func (r *PaymentLinkRepo) Initialize(ctx context.Context, id uuid.UUID, expectedRef, newRef string) (bool, error) {
	query := `UPDATE payment_links SET initialized = TRUE, initialize_ref = $3, updated_at = $4
		WHERE id = $1 AND initialize_ref = $2`

	tag, err := r.pool.Exec(ctx, query, id, expectedRef, newRef, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("initialize payment link: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Release frees the lock only while ref still holds it.
func (r *PaymentLinkRepo) Release(ctx context.Context, id uuid.UUID, ref string) error {
	query := `UPDATE payment_links SET initialized = FALSE, initialize_ref = '', updated_at = $3
		WHERE id = $1 AND initialize_ref = $2`

	if _, err := r.pool.Exec(ctx, query, id, ref, time.Now().UTC()); err != nil {
		return fmt.Errorf("release payment link: %w", err)
	}
	return nil
}

func (r *PaymentLinkRepo) Deactivate(ctx context.Context, id uuid.UUID) error {
	query := `UPDATE payment_links SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate payment link: %w", err)
	}
	return nil
}

func (r *PaymentLinkRepo) RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	query := `UPDATE payment_links
		SET analytics_payments = analytics_payments + 1, analytics_total = analytics_total + $2, updated_at = $3
		WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, amount, time.Now().UTC()); err != nil {
		return fmt.Errorf("record link payment: %w", err)
	}
	return nil
}

func scanLink(row pgx.Row) (*domain.PaymentLink, error) {
	l := &domain.PaymentLink{}
	var subaccounts []byte
	err := row.Scan(
		&l.ID, &l.BusinessID, &l.Slug, &l.Name, &l.Type, &l.Feature, &l.Amount, &l.Reusable, &l.Active,
		&l.Initialized, &l.InitializeRef, &l.ProductID, &l.InvoiceID, &subaccounts,
		&l.Analytics.Payments, &l.Analytics.TotalAmount, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(subaccounts) > 0 {
		if err := json.Unmarshal(subaccounts, &l.Subaccounts); err != nil {
			return nil, fmt.Errorf("decode subaccounts: %w", err)
		}
	}
	return l, nil
}

// ProductRepo implements ports.ProductRepository.
type ProductRepo struct {
	pool Pool
}

func NewProductRepo(pool Pool) *ProductRepo {
	return &ProductRepo{pool: pool}
}

func (r *ProductRepo) Create(ctx context.Context, p *domain.Product) error {
	query := `INSERT INTO products (id, business_id, name, unit_price) VALUES ($1, $2, $3, $4)`
	if _, err := r.pool.Exec(ctx, query, p.ID, p.BusinessID, p.Name, p.UnitPrice); err != nil {
		return fmt.Errorf("insert product: %w", err)
	}
	return nil
}

func (r *ProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	p := &domain.Product{}
	err := r.pool.QueryRow(ctx, `SELECT id, business_id, name, unit_price FROM products WHERE id = $1`, id).
		Scan(&p.ID, &p.BusinessID, &p.Name, &p.UnitPrice)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// InvoiceRepo implements ports.InvoiceRepository.
type InvoiceRepo struct {
	pool Pool
}

func NewInvoiceRepo(pool Pool) *InvoiceRepo {
	return &InvoiceRepo{pool: pool}
}

func (r *InvoiceRepo) Create(ctx context.Context, i *domain.Invoice) error {
	query := `INSERT INTO invoices (id, business_id, number, total_amount, amount_paid) VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.pool.Exec(ctx, query, i.ID, i.BusinessID, i.Number, i.TotalAmount, i.AmountPaid); err != nil {
		return fmt.Errorf("insert invoice: %w", err)
	}
	return nil
}

func (r *InvoiceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	i := &domain.Invoice{}
	err := r.pool.QueryRow(ctx, `SELECT id, business_id, number, total_amount, amount_paid FROM invoices WHERE id = $1`, id).
		Scan(&i.ID, &i.BusinessID, &i.Number, &i.TotalAmount, &i.AmountPaid)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return i, nil
}

func (r *InvoiceRepo) RecordPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	if _, err := r.pool.Exec(ctx, `UPDATE invoices SET amount_paid = amount_paid + $2 WHERE id = $1`, id, amount); err != nil {
		return fmt.Errorf("record invoice payment: %w", err)
	}
	return nil
}
