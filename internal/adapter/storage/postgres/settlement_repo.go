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

// SettlementRepo implements ports.SettlementRepository. A run's groups are
// written once as a JSONB document, together with the rows the run settles.
type SettlementRepo struct {
	pool Pool
}

// NewSettlementRepo creates a new SettlementRepo.
func NewSettlementRepo(pool Pool) *SettlementRepo {
	return &SettlementRepo{pool: pool}
}

// Commit marks the run's transactions settled, inserts the history and credits
// settlement balances in one database transaction.
func (r *SettlementRepo) Commit(ctx context.Context, h *domain.SettlementHistory, settled []domain.SettledTransaction, destination string) error {
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}
	groups, err := json.Marshal(h.Groups)
	if err != nil {
		return fmt.Errorf("encode settlement groups: %w", err)
	}

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		markQuery := `UPDATE transactions
			SET settle_status = 'settled', settle_amount = $2, settle_destination = $3, settled_at = $4, updated_at = $4
			WHERE id = $1 AND settle_status = 'pending'`
		for _, st := range settled {
			tag, err := tx.Exec(ctx, markQuery, st.TransactionID, st.Amount, destination, h.CreatedAt)
			if err != nil {
				return fmt.Errorf("mark settled: %w", err)
			}
			if tag.RowsAffected() != 1 {
				return ports.ErrConflict
			}
		}

		insertQuery := `INSERT INTO settlement_histories (id, run_id, groups, created_at) VALUES ($1, $2, $3, $4)`
		if _, err := tx.Exec(ctx, insertQuery, h.ID, h.RunID, groups, h.CreatedAt); err != nil {
			return fmt.Errorf("insert settlement history: %w", mapConflict(err))
		}

		creditQuery := `UPDATE wallets SET settlement_balance = settlement_balance + $2, updated_at = $3 WHERE id = $1`
		for _, g := range h.Groups {
			if !g.Summary.AmountToSettle.IsPositive() {
				continue
			}
			if _, err := tx.Exec(ctx, creditQuery, g.WalletID, g.Summary.AmountToSettle, h.CreatedAt); err != nil {
				return fmt.Errorf("credit settlement balance: %w", err)
			}
		}
		return nil
	})
}

// GetByID fetches a settlement history record.
func (r *SettlementRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.SettlementHistory, error) {
	query := `SELECT id, run_id, groups, created_at FROM settlement_histories WHERE id = $1`

	h := &domain.SettlementHistory{}
	var groups []byte
	err := r.pool.QueryRow(ctx, query, id).Scan(&h.ID, &h.RunID, &groups, &h.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get settlement history: %w", err)
	}
	if err := json.Unmarshal(groups, &h.Groups); err != nil {
		return nil, fmt.Errorf("decode settlement groups: %w", err)
	}
	return h, nil
}
