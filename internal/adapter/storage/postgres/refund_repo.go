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

const refundColumns = `id, reference, transaction_id, business_id, option, type, status, amount,
	bank, reason, payout_transaction_id, created_at, updated_at`

// RefundRepo implements ports.RefundRepository. The partial unique index on open
// refunds turns a concurrent second refund into ports.ErrConflict.
type RefundRepo struct {
	pool Pool
}

func NewRefundRepo(pool Pool) *RefundRepo {
	return &RefundRepo{pool: pool}
}

func (r *RefundRepo) Create(ctx context.Context, rf *domain.Refund) error {
	now := time.Now().UTC()
	rf.CreatedAt, rf.UpdatedAt = now, now

	var bank []byte
	if rf.Bank != nil {
		var err error
		if bank, err = json.Marshal(rf.Bank); err != nil {
			return fmt.Errorf("encode refund bank: %w", err)
		}
	}

	query := `INSERT INTO refunds (` + refundColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		rf.ID, rf.Reference, rf.TransactionID, rf.BusinessID, rf.Option, rf.Type, rf.Status, rf.Amount,
		bank, rf.Reason, rf.PayoutTxID, rf.CreatedAt, rf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert refund: %w", mapConflict(err))
	}
	return nil
}

func (r *RefundRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Refund, error) {
	rf, err := scanRefund(r.pool.QueryRow(ctx, `SELECT `+refundColumns+` FROM refunds WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get refund: %w", err)
	}
	return rf, nil
}

// GetLatestByTransaction returns the newest refund raised against a transaction.
func (r *RefundRepo) GetLatestByTransaction(ctx context.Context, transactionID uuid.UUID) (*domain.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE transaction_id = $1 ORDER BY created_at DESC LIMIT 1`
	rf, err := scanRefund(r.pool.QueryRow(ctx, query, transactionID))
	if err != nil {
		return nil, fmt.Errorf("get latest refund: %w", err)
	}
	return rf, nil
}

// UpdateStatus moves the refund to `to` only while it is one of `from`.
func (r *RefundRepo) UpdateStatus(ctx context.Context, id uuid.UUID, from []domain.RefundStatus, to domain.RefundStatus) (bool, error) {
	sources := make([]string, len(from))
	for i, s := range from {
		sources[i] = string(s)
	}
	query := `UPDATE refunds SET status = $2, updated_at = $3 WHERE id = $1 AND status = ANY($4)`

	tag, err := r.pool.Exec(ctx, query, id, to, time.Now().UTC(), sources)
	if err != nil {
		return false, fmt.Errorf("update refund status: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *RefundRepo) SetPayoutTransaction(ctx context.Context, id, transactionID uuid.UUID) error {
	query := `UPDATE refunds SET payout_transaction_id = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.pool.Exec(ctx, query, id, transactionID, time.Now().UTC()); err != nil {
		return fmt.Errorf("set refund payout: %w", err)
	}
	return nil
}

func scanRefund(row pgx.Row) (*domain.Refund, error) {
	rf := &domain.Refund{}
	var bank []byte
	err := row.Scan(
		&rf.ID, &rf.Reference, &rf.TransactionID, &rf.BusinessID, &rf.Option, &rf.Type, &rf.Status, &rf.Amount,
		&bank, &rf.Reason, &rf.PayoutTxID, &rf.CreatedAt, &rf.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if len(bank) > 0 {
		rf.Bank = &domain.BankDetails{}
		if err := json.Unmarshal(bank, rf.Bank); err != nil {
			return nil, fmt.Errorf("decode refund bank: %w", err)
		}
	}
	return rf, nil
}
