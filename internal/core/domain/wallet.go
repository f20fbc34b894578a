package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Balance splits a wallet's funds by availability.
type Balance struct {
	Available  decimal.Decimal `json:"available"`
	Locked     decimal.Decimal `json:"locked"`
	// Settlement is the running total released by settlement runs. It is not
	// spendable; payouts draw on Available only.
	Settlement decimal.Decimal `json:"settlement"`
}

// WalletCounter names a running total kept on the wallet.
type WalletCounter string

const (
	CounterInflow     WalletCounter = "inflow"
	CounterOutflow    WalletCounter = "outflow"
	CounterTransfer   WalletCounter = "transfer"
	CounterWithdrawal WalletCounter = "withdrawal"
)

// Wallet is a business's single balance holder.
type Wallet struct {
	ID         uuid.UUID       `json:"id"`
	BusinessID uuid.UUID       `json:"business_id"`
	Currency   string          `json:"currency"`
	Balance    Balance         `json:"balance"`
	Inflow     decimal.Decimal `json:"inflow"`
	Outflow    decimal.Decimal `json:"outflow"`
	Transfer   decimal.Decimal `json:"transfer"`
	Withdrawal decimal.Decimal `json:"withdrawal"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CounterFor picks the running total a feature contributes to.
func CounterFor(f Feature) WalletCounter {
	switch f {
	case FeatureTransfer:
		return CounterTransfer
	case FeatureWithdrawal, FeaturePayout, FeatureCardPayout:
		return CounterWithdrawal
	}
	if f.IsOutbound() {
		return CounterOutflow
	}
	return CounterInflow
}
