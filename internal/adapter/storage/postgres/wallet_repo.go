package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"fee-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

const walletColumns = `id, business_id, currency, available_balance, locked_balance, settlement_balance,
	inflow, outflow, transfer, withdrawal, created_at, updated_at`

var counterColumns = map[domain.WalletCounter]string{
	domain.CounterInflow:     "inflow",
	domain.CounterOutflow:    "outflow",
	domain.CounterTransfer:   "transfer",
	domain.CounterWithdrawal: "withdrawal",
}

// WalletRepo implements ports.WalletRepository. Balance changes are single
// conditional UPDATE statements, so no row lock outlives a call.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet into the database.
func (r *WalletRepo) Create(ctx context.Context, w *domain.Wallet) error {
	now := time.Now().UTC()
	w.CreatedAt, w.UpdatedAt = now, now

	query := `INSERT INTO wallets (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.BusinessID, w.Currency,
		w.Balance.Available, w.Balance.Locked, w.Balance.Settlement,
		w.Inflow, w.Outflow, w.Transfer, w.Withdrawal,
		w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// GetByID fetches a wallet by its UUID.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id))
	if err != nil {
		return nil, fmt.Errorf("get wallet by id: %w", err)
	}
	return w, nil
}

// GetByBusinessID fetches the wallet owned by a business.
func (r *WalletRepo) GetByBusinessID(ctx context.Context, businessID uuid.UUID) (*domain.Wallet, error) {
	w, err := scanWallet(r.pool.QueryRow(ctx, `SELECT `+walletColumns+` FROM wallets WHERE business_id = $1`, businessID))
	if err != nil {
		return nil, fmt.Errorf("get wallet by business id: %w", err)
	}
	return w, nil
}

// Debit subtracts amount when the available balance covers it and adds counted to
// the running counter. It reports false when funds are insufficient.
func (r *WalletRepo) Debit(ctx context.Context, id uuid.UUID, amount, counted decimal.Decimal, counter domain.WalletCounter) (bool, error) {
	col, err := counterColumn(counter)
	if err != nil {
		return false, err
	}
	query := `UPDATE wallets
		SET available_balance = available_balance - $2, ` + col + ` = ` + col + ` + $3, updated_at = $4
		WHERE id = $1 AND available_balance >= $2`

	tag, err := r.pool.Exec(ctx, query, id, amount, counted, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("debit wallet: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// Credit adds amount to the available balance and the running counter.
func (r *WalletRepo) Credit(ctx context.Context, id uuid.UUID, amount decimal.Decimal, counter domain.WalletCounter) error {
	col, err := counterColumn(counter)
	if err != nil {
		return err
	}
	query := `UPDATE wallets
		SET available_balance = available_balance + $2, ` + col + ` = ` + col + ` + $2, updated_at = $3
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id, amount, time.Now().UTC()); err != nil {
		return fmt.Errorf("credit wallet: %w", err)
	}
	return nil
}

// Reverse returns amount to the available balance and removes counted from the counter.
func (r *WalletRepo) Reverse(ctx context.Context, id uuid.UUID, amount, counted decimal.Decimal, counter domain.WalletCounter) error {
	col, err := counterColumn(counter)
	if err != nil {
		return err
	}
	query := `UPDATE wallets
		SET available_balance = available_balance + $2, ` + col + ` = ` + col + ` - $3, updated_at = $4
		WHERE id = $1`

	if _, err := r.pool.Exec(ctx, query, id, amount, counted, time.Now().UTC()); err != nil {
		return fmt.Errorf("reverse wallet debit: %w", err)
	}
	return nil
}

func counterColumn(c domain.WalletCounter) (string, error) {
	col, ok := counterColumns[c]
	if !ok {
		return "", fmt.Errorf("unknown wallet counter %q", c)
	}
	return col, nil
}

func scanWallet(row pgx.Row) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(
		&w.ID, &w.BusinessID, &w.Currency,
		&w.Balance.Available, &w.Balance.Locked, &w.Balance.Settlement,
		&w.Inflow, &w.Outflow, &w.Transfer, &w.Withdrawal,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return w, nil
}
