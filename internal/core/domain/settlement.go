package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SettlementSummary is the per-business total of one settlement run.
type SettlementSummary struct {
	TotalAmount    decimal.Decimal `json:"total_amount"`
	TotalFee       decimal.Decimal `json:"total_fee"`
	TotalVat       decimal.Decimal `json:"total_vat"`
	TotalRevenue   decimal.Decimal `json:"total_revenue"`
	LumpAmount     decimal.Decimal `json:"lump_amount"`
	SharedAmount   decimal.Decimal `json:"shared_amount"`
	AmountToSettle decimal.Decimal `json:"amount_to_settle"`
}

// SubaccountShare is the amount a subaccount received in a run, together with the
// split configuration in force at the time.
type SubaccountShare struct {
	SubaccountID uuid.UUID       `json:"subaccount_id"`
	Name         string          `json:"name"`
	SplitType    SplitType       `json:"split_type"`
	SplitValue   decimal.Decimal `json:"split_value"`
	Amount       decimal.Decimal `json:"amount"`
}

// LinkSettlement is the part of a run attributed to one payment link.
type LinkSettlement struct {
	PaymentLinkID uuid.UUID         `json:"payment_link_id"`
	Transactions  []uuid.UUID       `json:"transactions"`
	Subaccounts   []SubaccountShare `json:"subaccounts,omitempty"`
	NetAmount     decimal.Decimal   `json:"net_amount"`
}

// BusinessSettlement groups one business's links within a run.
type BusinessSettlement struct {
	BusinessID uuid.UUID         `json:"business_id"`
	WalletID   uuid.UUID         `json:"wallet_id"`
	Summary    SettlementSummary `json:"summary"`
	Links      []LinkSettlement  `json:"links"`
}

// SettledTransaction is one transaction released by a settlement run, with the
// amount left to the business after subaccount shares.
type SettledTransaction struct {
	TransactionID uuid.UUID
	Amount        decimal.Decimal
}

// SettlementHistory is the immutable record of a completed settlement run.
type SettlementHistory struct {
	ID        uuid.UUID            `json:"id"`
	RunID     string               `json:"run_id"`
	Groups    []BusinessSettlement `json:"groups"`
	CreatedAt time.Time            `json:"created_at"`
}
