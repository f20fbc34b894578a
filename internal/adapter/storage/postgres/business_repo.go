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
)

const businessColumns = `id, name, email, business_type, kyc_status, kyb_status, wallet_id,
	transaction_pin_hash, secret_key_enc, webhook_url, webhook_active, created_at, updated_at`

// BusinessRepo implements ports.BusinessRepository.
type BusinessRepo struct {
	pool Pool
}

// NewBusinessRepo creates a new BusinessRepo.
func NewBusinessRepo(pool Pool) *BusinessRepo {
	return &BusinessRepo{pool: pool}
}

// Create inserts a new business. A duplicate email yields ports.ErrConflict.
func (r *BusinessRepo) Create(ctx context.Context, b *domain.Business) error {
	now := time.Now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	b.UpdatedAt = now

	query := `INSERT INTO businesses (` + businessColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		b.ID, b.Name, b.Email, b.BusinessType, b.KYCStatus, b.KYBStatus, b.WalletID,
		b.TransactionPinHash, b.SecretKeyEnc, b.Webhook.URL, b.Webhook.Active,
		b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert business: %w", mapConflict(err))
	}
	return nil
}

// GetByID fetches a business by its UUID.
func (r *BusinessRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Business, error) {
	b, err := scanBusiness(r.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get business by id: %w", err)
	}
	return b, nil
}

// GetByEmail fetches a business by its login email.
func (r *BusinessRepo) GetByEmail(ctx context.Context, email string) (*domain.Business, error) {
	b, err := scanBusiness(r.pool.QueryRow(ctx, `SELECT `+businessColumns+` FROM businesses WHERE email = $1`, email))
	if err != nil {
		return nil, fmt.Errorf("get business by email: %w", err)
	}
	return b, nil
}

// Update persists the mutable business fields.
func (r *BusinessRepo) Update(ctx context.Context, b *domain.Business) error {
	b.UpdatedAt = time.Now().UTC()
	query := `UPDATE businesses
		SET name = $1, kyc_status = $2, kyb_status = $3, secret_key_enc = $4,
			webhook_url = $5, webhook_active = $6, updated_at = $7
		WHERE id = $8`

	_, err := r.pool.Exec(ctx, query,
		b.Name, b.KYCStatus, b.KYBStatus, b.SecretKeyEnc,
		b.Webhook.URL, b.Webhook.Active, b.UpdatedAt, b.ID,
	)
	if err != nil {
		return fmt.Errorf("update business: %w", err)
	}
	return nil
}

func scanBusiness(row pgx.Row) (*domain.Business, error) {
	b := &domain.Business{}
	err := row.Scan(
		&b.ID, &b.Name, &b.Email, &b.BusinessType, &b.KYCStatus, &b.KYBStatus, &b.WalletID,
		&b.TransactionPinHash, &b.SecretKeyEnc, &b.Webhook.URL, &b.Webhook.Active,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return b, nil
}

// SettingRepo implements ports.SettingRepository. Rate card blocks are stored as JSONB.
type SettingRepo struct {
	pool Pool
}

func NewSettingRepo(pool Pool) *SettingRepo {
	return &SettingRepo{pool: pool}
}

func (r *SettingRepo) Upsert(ctx context.Context, s *domain.Setting) error {
	blocks, err := marshalAll(s.CardFee, s.BillsFee, s.TransferFee, s.InflowFee)
	if err != nil {
		return fmt.Errorf("encode setting: %w", err)
	}
	query := `INSERT INTO settings (id, business_id, card_fee, bills_fee, transfer_fee, inflow_fee)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (business_id) DO UPDATE
		SET card_fee = EXCLUDED.card_fee, bills_fee = EXCLUDED.bills_fee,
			transfer_fee = EXCLUDED.transfer_fee, inflow_fee = EXCLUDED.inflow_fee`

	if _, err := r.pool.Exec(ctx, query, s.ID, s.BusinessID, blocks[0], blocks[1], blocks[2], blocks[3]); err != nil {
		return fmt.Errorf("upsert setting: %w", err)
	}
	return nil
}

func (r *SettingRepo) GetByBusinessID(ctx context.Context, businessID uuid.UUID) (*domain.Setting, error) {
	query := `SELECT id, business_id, card_fee, bills_fee, transfer_fee, inflow_fee
		FROM settings WHERE business_id = $1`

	s := &domain.Setting{}
	var card, bills, transfer, inflow []byte
	err := r.pool.QueryRow(ctx, query, businessID).Scan(&s.ID, &s.BusinessID, &card, &bills, &transfer, &inflow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get setting: %w", err)
	}
	for _, f := range []struct {
		raw []byte
		dst **domain.ChargeBlock
	}{{card, &s.CardFee}, {bills, &s.BillsFee}, {transfer, &s.TransferFee}, {inflow, &s.InflowFee}} {
		if len(f.raw) == 0 {
			continue
		}
		block := &domain.ChargeBlock{}
		if err := json.Unmarshal(f.raw, block); err != nil {
			return nil, fmt.Errorf("decode setting: %w", err)
		}
		*f.dst = block
	}
	return s, nil
}

// ProviderRepo implements ports.ProviderRepository.
type ProviderRepo struct {
	pool Pool
}

func NewProviderRepo(pool Pool) *ProviderRepo {
	return &ProviderRepo{pool: pool}
}

func (r *ProviderRepo) Upsert(ctx context.Context, p *domain.Provider) error {
	schedules, err := marshalAll(p.VaceInflow, p.VaceOutflow)
	if err != nil {
		return fmt.Errorf("encode provider: %w", err)
	}
	query := `INSERT INTO providers (id, name, active, vace_inflow, vace_outflow)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (name) DO UPDATE
		SET active = EXCLUDED.active, vace_inflow = EXCLUDED.vace_inflow, vace_outflow = EXCLUDED.vace_outflow`

	if _, err := r.pool.Exec(ctx, query, p.ID, p.Name, p.Active, schedules[0], schedules[1]); err != nil {
		return fmt.Errorf("upsert provider: %w", err)
	}
	return nil
}

func (r *ProviderRepo) GetByName(ctx context.Context, name string) (*domain.Provider, error) {
	query := `SELECT id, name, active, vace_inflow, vace_outflow FROM providers WHERE name = $1`

	p := &domain.Provider{}
	var inflow, outflow []byte
	err := r.pool.QueryRow(ctx, query, name).Scan(&p.ID, &p.Name, &p.Active, &inflow, &outflow)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get provider: %w", err)
	}
	if err := json.Unmarshal(inflow, &p.VaceInflow); err != nil {
		return nil, fmt.Errorf("decode provider inflow: %w", err)
	}
	if err := json.Unmarshal(outflow, &p.VaceOutflow); err != nil {
		return nil, fmt.Errorf("decode provider outflow: %w", err)
	}
	return p, nil
}

// marshalAll JSON-encodes each value; nil pointers become SQL NULL.
func marshalAll(values ...any) ([][]byte, error) {
	out := make([][]byte, len(values))
	for i, v := range values {
		if b, ok := v.(*domain.ChargeBlock); ok && b == nil {
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		out[i] = raw
	}
	return out, nil
}
