package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentLinkRepo_GetBySlugDecodesSubaccounts(t *testing.T) {
	mock := newMock(t)
	repo := NewPaymentLinkRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	id, businessID := uuid.New(), uuid.New()
	subs := []domain.Subaccount{{ID: uuid.New(), Name: "Partner", SplitType: domain.SplitPercentage, SplitValue: decimal.NewFromInt(10)}}
	raw, _ := json.Marshal(subs)

	mock.ExpectQuery("SELECT .+ FROM payment_links WHERE slug").
		WithArgs("shop-abc").
		WillReturnRows(pgxmock.NewRows([]string{"id", "business_id", "slug", "name", "type", "feature", "amount",
			"reusable", "active", "initialized", "initialize_ref", "product_id", "invoice_id", "subaccounts",
			"analytics_payments", "analytics_total", "created_at", "updated_at"}).
			AddRow(id, businessID, "shop-abc", "Shop", domain.LinkDynamic, domain.LinkRequest, decimal.Zero,
				true, true, false, "", (*uuid.UUID)(nil), (*uuid.UUID)(nil), raw,
				int64(3), decimal.NewFromInt(30000), now, now))

	l, err := repo.GetBySlug(context.Background(), "shop-abc")
	require.NoError(t, err)
	require.NotNil(t, l)
	require.Len(t, l.Subaccounts, 1)
	assert.Equal(t, "Partner", l.Subaccounts[0].Name)
	assert.EqualValues(t, 3, l.Analytics.Payments)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPaymentLinkRepo_CreateSlugTaken(t *testing.T) {
	mock := newMock(t)
	repo := NewPaymentLinkRepo(mock)

	mock.ExpectExec("INSERT INTO payment_links").WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &domain.PaymentLink{ID: uuid.New(), Slug: "shop-abc"})
	assert.ErrorIs(t, err, ports.ErrConflict)
}

func TestPaymentLinkRepo_InitializeIsCompareAndSet(t *testing.T) {
	mock := newMock(t)
	repo := NewPaymentLinkRepo(mock)
	id := uuid.New()
	ctx := context.Background()

	mock.ExpectExec("UPDATE payment_links SET initialized = TRUE").
		WithArgs(id, "", "VACE-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE payment_links SET initialized = TRUE").
		WithArgs(id, "", "VACE-2", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("UPDATE payment_links SET initialized = FALSE").
		WithArgs(id, "VACE-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.Initialize(ctx, id, "", "VACE-1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Initialize(ctx, id, "", "VACE-2")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Release(ctx, id, "VACE-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInvoiceRepo_RecordPayment(t *testing.T) {
	mock := newMock(t)
	repo := NewInvoiceRepo(mock)
	id := uuid.New()
	amount := decimal.NewFromInt(4000)

	mock.ExpectExec("UPDATE invoices SET amount_paid = amount_paid").
		WithArgs(id, amount).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.RecordPayment(context.Background(), id, amount))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProductRepo_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewProductRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM products").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id", "business_id", "name", "unit_price"}))

	p, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestRefundRepo_CreateSecondOpenRefundConflicts(t *testing.T) {
	mock := newMock(t)
	repo := NewRefundRepo(mock)

	mock.ExpectExec("INSERT INTO refunds").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "uq_refunds_open"})

	err := repo.Create(context.Background(), &domain.Refund{ID: uuid.New(), TransactionID: uuid.New(), Status: domain.RefundPending})
	assert.ErrorIs(t, err, ports.ErrConflict)
}

func TestRefundRepo_UpdateStatus(t *testing.T) {
	mock := newMock(t)
	repo := NewRefundRepo(mock)
	id := uuid.New()

	mock.ExpectExec("UPDATE refunds SET status").
		WithArgs(id, domain.RefundProcessing, pgxmock.AnyArg(), []string{"PENDING"}).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.UpdateStatus(context.Background(), id, []domain.RefundStatus{domain.RefundPending}, domain.RefundProcessing)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRefundRepo_GetLatestByTransaction(t *testing.T) {
	mock := newMock(t)
	repo := NewRefundRepo(mock)
	now := time.Now().UTC().Truncate(time.Microsecond)
	rf := &domain.Refund{
		ID: uuid.New(), Reference: "RFD-1", TransactionID: uuid.New(), BusinessID: uuid.New(),
		Option: domain.RefundInstant, Type: domain.RefundFull, Status: domain.RefundSuccessful,
		Amount: decimal.NewFromInt(5000), CreatedAt: now, UpdatedAt: now,
	}

	mock.ExpectQuery("SELECT .+ FROM refunds WHERE transaction_id .+ ORDER BY created_at DESC LIMIT 1").
		WithArgs(rf.TransactionID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "reference", "transaction_id", "business_id", "option", "type",
			"status", "amount", "bank", "reason", "payout_transaction_id", "created_at", "updated_at"}).
			AddRow(rf.ID, rf.Reference, rf.TransactionID, rf.BusinessID, rf.Option, rf.Type,
				rf.Status, rf.Amount, []byte(nil), "", (*uuid.UUID)(nil), now, now))

	got, err := repo.GetLatestByTransaction(context.Background(), rf.TransactionID)
	require.NoError(t, err)
	assert.Equal(t, domain.RefundSuccessful, got.Status)
	assert.Nil(t, got.Bank)
}
