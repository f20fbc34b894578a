package postgres

import (
	"context"
	"encoding/json"
	"errors"
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

func newTestBusiness() *domain.Business {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Business{
		ID:                 uuid.New(),
		Name:               "Acme Stores",
		Email:              "ops@acme.test",
		BusinessType:       domain.BusinessCorporate,
		KYCStatus:          domain.ComplianceApproved,
		KYBStatus:          domain.CompliancePending,
		WalletID:           uuid.New(),
		TransactionPinHash: "$argon2id$hash",
		SecretKeyEnc:       "enc",
		Webhook:            domain.WebhookConfig{URL: "https://acme.test/hooks", Active: true},
		CreatedAt:          now,
		UpdatedAt:          now,
	}
}

func businessRow(b *domain.Business) *pgxmock.Rows {
	return pgxmock.NewRows([]string{"id", "name", "email", "business_type", "kyc_status", "kyb_status", "wallet_id",
		"transaction_pin_hash", "secret_key_enc", "webhook_url", "webhook_active", "created_at", "updated_at"}).
		AddRow(b.ID, b.Name, b.Email, b.BusinessType, b.KYCStatus, b.KYBStatus, b.WalletID,
			b.TransactionPinHash, b.SecretKeyEnc, b.Webhook.URL, b.Webhook.Active, b.CreatedAt, b.UpdatedAt)
}

func TestBusinessRepo_Create(t *testing.T) {
	mock := newMock(t)
	repo := NewBusinessRepo(mock)
	b := newTestBusiness()

	mock.ExpectExec("INSERT INTO businesses").
		WithArgs(b.ID, b.Name, b.Email, b.BusinessType, b.KYCStatus, b.KYBStatus, b.WalletID,
			b.TransactionPinHash, b.SecretKeyEnc, b.Webhook.URL, b.Webhook.Active,
			b.CreatedAt, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Create(context.Background(), b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusinessRepo_Create_DuplicateEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewBusinessRepo(mock)

	mock.ExpectExec("INSERT INTO businesses").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "businesses_email_key"})

	err := repo.Create(context.Background(), newTestBusiness())
	assert.ErrorIs(t, err, ports.ErrConflict)
}

func TestBusinessRepo_GetByEmail(t *testing.T) {
	mock := newMock(t)
	repo := NewBusinessRepo(mock)
	b := newTestBusiness()

	mock.ExpectQuery("SELECT .+ FROM businesses WHERE email").
		WithArgs(b.Email).
		WillReturnRows(businessRow(b))

	got, err := repo.GetByEmail(context.Background(), b.Email)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, b.ID, got.ID)
	assert.Equal(t, b.Webhook, got.Webhook)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBusinessRepo_GetByID_NotFound(t *testing.T) {
	mock := newMock(t)
	repo := NewBusinessRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM businesses WHERE id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	got, err := repo.GetByID(context.Background(), uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestBusinessRepo_Update(t *testing.T) {
	mock := newMock(t)
	repo := NewBusinessRepo(mock)
	b := newTestBusiness()

	mock.ExpectExec("UPDATE businesses").
		WithArgs(b.Name, b.KYCStatus, b.KYBStatus, b.SecretKeyEnc, b.Webhook.URL, b.Webhook.Active, pgxmock.AnyArg(), b.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, repo.Update(context.Background(), b))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingRepo_UpsertStoresNilBlocksAsNull(t *testing.T) {
	mock := newMock(t)
	repo := NewSettingRepo(mock)
	value := decimal.RequireFromString("1.2")
	s := &domain.Setting{ID: uuid.New(), BusinessID: uuid.New(), CardFee: &domain.ChargeBlock{Value: &value}}
	card, _ := json.Marshal(s.CardFee)

	mock.ExpectExec("INSERT INTO settings .+ ON CONFLICT").
		WithArgs(s.ID, s.BusinessID, card, []byte(nil), []byte(nil), []byte(nil)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, repo.Upsert(context.Background(), s))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingRepo_GetByBusinessID(t *testing.T) {
	mock := newMock(t)
	repo := NewSettingRepo(mock)
	id, businessID := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT .+ FROM settings WHERE business_id").
		WithArgs(businessID).
		WillReturnRows(pgxmock.NewRows([]string{"id", "business_id", "card_fee", "bills_fee", "transfer_fee", "inflow_fee"}).
			AddRow(id, businessID, []byte(`{"value":"1.2","type":"percentage"}`), []byte(nil), []byte(nil), []byte(nil)))

	got, err := repo.GetByBusinessID(context.Background(), businessID)
	require.NoError(t, err)
	require.NotNil(t, got.CardFee)
	assert.Equal(t, "1.2", got.CardFee.Value.String())
	assert.Nil(t, got.TransferFee)
}

func TestProviderRepo_GetByName(t *testing.T) {
	mock := newMock(t)
	repo := NewProviderRepo(mock)
	id := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM providers WHERE name").
		WithArgs("sandbox").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "active", "vace_inflow", "vace_outflow"}).
			AddRow(id, "sandbox", true,
				[]byte(`{"card":{"type":"percentage","value":"1.5"},"transfer":{},"bills":{}}`),
				[]byte(`{"transfer":{"type":"flat","value":"25","stamp_duty":"50"},"card":{},"bills":{}}`)))

	got, err := repo.GetByName(context.Background(), "sandbox")
	require.NoError(t, err)
	assert.Equal(t, "1.5", got.VaceInflow.Card.Value.String())
	assert.Equal(t, "50", got.VaceOutflow.Transfer.StampDuty.String())
}

func TestProviderRepo_GetByName_QueryError(t *testing.T) {
	mock := newMock(t)
	repo := NewProviderRepo(mock)

	mock.ExpectQuery("SELECT .+ FROM providers").WillReturnError(errors.New("conn closed"))

	_, err := repo.GetByName(context.Background(), "sandbox")
	assert.ErrorContains(t, err, "get provider")
}
