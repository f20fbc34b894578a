package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const txColumns = `id, reference, provider_ref, provider, type, feature, status, auth_step, currency,
	amount, fee, vat_fee, stamp_fee, revenue_amount, revenue_reversed,
	settle_destination, settle_status, settle_amount, settled_at,
	bank, customer, card, webhook_enabled, webhook_event, webhook_sent, webhook_lease,
	narration, business_id, wallet_id, payment_link_id, invoice_id, product_id, refund_id, chargeback_id,
	created_at, updated_at`

// TransactionRepo implements ports.TransactionRepository. Status moves and webhook
// flags are compare-and-set UPDATEs; the returned bool says whether this caller won.
type TransactionRepo struct {
	pool Pool
}

// NewTransactionRepo creates a new TransactionRepo.
func NewTransactionRepo(pool Pool) *TransactionRepo {
	return &TransactionRepo{pool: pool}
}

// Create inserts a new transaction. A duplicate reference yields ports.ErrConflict.
func (r *TransactionRepo) Create(ctx context.Context, t *domain.Transaction) error {
	now := time.Now().UTC()
	if t.CreatedAt.IsZero() {
		t.CreatedAt = now
	}
	t.UpdatedAt = now
	if t.Settle.Status == "" {
		t.Settle.Status = domain.SettlePending
	}

	bank, customer, card, err := encodeTxDetails(t)
	if err != nil {
		return fmt.Errorf("encode transaction: %w", err)
	}

	query := `INSERT INTO transactions (` + txColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18,
			$19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30, $31, $32, $33, $34, $35, $36)`

	_, err = r.pool.Exec(ctx, query,
		t.ID, t.Reference, t.ProviderRef, t.Provider, t.Type, t.Feature, t.Status, t.AuthStep, t.Currency,
		t.Amount, t.Fee, t.VatFee, t.StampFee, t.Revenue.Amount, t.Revenue.Reversed,
		t.Settle.Destination, t.Settle.Status, t.Settle.Amount, t.Settle.SettledAt,
		bank, customer, card, t.Webhook.Enabled, t.Webhook.Event, t.Webhook.IsSent, t.Webhook.LeaseUntil,
		t.Narration, t.BusinessID, t.WalletID, t.PaymentLinkID, t.InvoiceID, t.ProductID, t.RefundID, t.ChargebackID,
		t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", mapConflict(err))
	}
	return nil
}

// GetByID fetches a transaction by its UUID.
func (r *TransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get transaction by id: %w", err)
	}
	return t, nil
}

// GetByReference fetches a transaction by its engine reference.
func (r *TransactionRepo) GetByReference(ctx context.Context, reference string) (*domain.Transaction, error) {
	t, err := scanTransaction(r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE reference = $1`, reference))
	if err != nil {
		return nil, fmt.Errorf("get transaction by reference: %w", err)
	}
	return t, nil
}

// GetByProviderRef fetches a transaction by the provider's own reference.
func (r *TransactionRepo) GetByProviderRef(ctx context.Context, provider, providerRef string) (*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions WHERE provider = $1 AND provider_ref = $2`
	t, err := scanTransaction(r.pool.QueryRow(ctx, query, provider, providerRef))
	if err != nil {
		return nil, fmt.Errorf("get transaction by provider ref: %w", err)
	}
	return t, nil
}

// Transition moves the status to `to` only while it is one of `from`.
func (r *TransactionRepo) Transition(ctx context.Context, id uuid.UUID, from []domain.TransactionStatus, to domain.TransactionStatus) (bool, error) {
	sources := make([]string, len(from))
	for i, s := range from {
		sources[i] = string(s)
	}
	query := `UPDATE transactions SET status = $2, updated_at = $3 WHERE id = $1 AND status = ANY($4)`

	tag, err := r.pool.Exec(ctx, query, id, to, time.Now().UTC(), sources)
	if err != nil {
		return false, fmt.Errorf("transition transaction: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TransactionRepo) SetProviderRef(ctx context.Context, id uuid.UUID, providerRef string) error {
	return r.exec(ctx, "set provider ref",
		`UPDATE transactions SET provider_ref = $2, updated_at = $3 WHERE id = $1`, id, providerRef, time.Now().UTC())
}

func (r *TransactionRepo) UpdateAuthStep(ctx context.Context, id uuid.UUID, step domain.AuthStep) error {
	return r.exec(ctx, "update auth step",
		`UPDATE transactions SET auth_step = $2, updated_at = $3 WHERE id = $1`, id, step, time.Now().UTC())
}

func (r *TransactionRepo) MarkRevenueReversed(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "mark revenue reversed",
		`UPDATE transactions SET revenue_reversed = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
}

// ClaimWebhookLease takes the delivery lease when the webhook is unsent and no
// live lease exists.
func (r *TransactionRepo) ClaimWebhookLease(ctx context.Context, id uuid.UUID, now, until time.Time) (bool, error) {
	query := `UPDATE transactions SET webhook_lease = $3
		WHERE id = $1 AND NOT webhook_sent AND (webhook_lease IS NULL OR webhook_lease <= $2)`

	tag, err := r.pool.Exec(ctx, query, id, now, until)
	if err != nil {
		return false, fmt.Errorf("claim webhook lease: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkWebhookSent flips is_sent once; later callers get false.
func (r *TransactionRepo) MarkWebhookSent(ctx context.Context, id uuid.UUID, event string) (bool, error) {
	query := `UPDATE transactions SET webhook_sent = TRUE, webhook_event = $2, webhook_lease = NULL
		WHERE id = $1 AND NOT webhook_sent`

	tag, err := r.pool.Exec(ctx, query, id, event)
	if err != nil {
		return false, fmt.Errorf("mark webhook sent: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *TransactionRepo) ReleaseWebhookLease(ctx context.Context, id uuid.UUID) error {
	return r.exec(ctx, "release webhook lease", `UPDATE transactions SET webhook_lease = NULL WHERE id = $1`, id)
}

// ListPendingByProvider returns the next page of open transactions the provider knows about.
func (r *TransactionRepo) ListPendingByProvider(ctx context.Context, provider string, after ports.PageCursor, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE provider = $1 AND status IN ('PENDING', 'PROCESSING') AND provider_ref <> ''
			AND (created_at, id) > ($2, $3)
		ORDER BY created_at ASC, id ASC LIMIT $4`
	return r.list(ctx, "list pending transactions", query, provider, after.CreatedAt, after.ID, limit)
}

// ListUnsettled returns successful payment link transactions awaiting settlement.
func (r *TransactionRepo) ListUnsettled(ctx context.Context, limit int) ([]domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE payment_link_id IS NOT NULL AND settle_status = 'pending'
			AND status IN ('SUCCESSFUL', 'COMPLETED')
		ORDER BY created_at ASC LIMIT $1`
	return r.list(ctx, "list unsettled transactions", query, limit)
}

func (r *TransactionRepo) exec(ctx context.Context, op, query string, args ...any) error {
	if _, err := r.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (r *TransactionRepo) list(ctx context.Context, op, query string, args ...any) ([]domain.Transaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

func encodeTxDetails(t *domain.Transaction) (bank, customer, card []byte, err error) {
	if t.Bank != nil {
		if bank, err = json.Marshal(t.Bank); err != nil {
			return nil, nil, nil, err
		}
	}
	if t.Customer != nil {
		if customer, err = json.Marshal(t.Customer); err != nil {
			return nil, nil, nil, err
		}
	}
	if t.Card != nil {
		if card, err = json.Marshal(t.Card); err != nil {
			return nil, nil, nil, err
		}
	}
	return bank, customer, card, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	t := &domain.Transaction{}
	var bank, customer, card []byte
	err := row.Scan(
		&t.ID, &t.Reference, &t.ProviderRef, &t.Provider, &t.Type, &t.Feature, &t.Status, &t.AuthStep, &t.Currency,
		&t.Amount, &t.Fee, &t.VatFee, &t.StampFee, &t.Revenue.Amount, &t.Revenue.Reversed,
		&t.Settle.Destination, &t.Settle.Status, &t.Settle.Amount, &t.Settle.SettledAt,
		&bank, &customer, &card, &t.Webhook.Enabled, &t.Webhook.Event, &t.Webhook.IsSent, &t.Webhook.LeaseUntil,
		&t.Narration, &t.BusinessID, &t.WalletID, &t.PaymentLinkID, &t.InvoiceID, &t.ProductID, &t.RefundID, &t.ChargebackID,
		&t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(bank) > 0 {
		t.Bank = &domain.BankDetails{}
		if err := json.Unmarshal(bank, t.Bank); err != nil {
			return nil, fmt.Errorf("decode bank: %w", err)
		}
	}
	if len(customer) > 0 {
		t.Customer = &domain.Customer{}
		if err := json.Unmarshal(customer, t.Customer); err != nil {
			return nil, fmt.Errorf("decode customer: %w", err)
		}
	}
	if len(card) > 0 {
		t.Card = &domain.CardSummary{}
		if err := json.Unmarshal(card, t.Card); err != nil {
			return nil, fmt.Errorf("decode card: %w", err)
		}
	}
	return t, nil
}
