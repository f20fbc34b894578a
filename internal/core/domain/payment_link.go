package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// LinkType decides who controls a payment link's amount.
type LinkType string

const (
	LinkFixed   LinkType = "fixed"
	LinkDynamic LinkType = "dynamic"
)

// LinkFeature is what a payment link sells.
type LinkFeature string

const (
	LinkProduct LinkFeature = "product"
	LinkInvoice LinkFeature = "invoice"
	LinkRequest LinkFeature = "request"
)

// TransactionFeature maps the link feature onto the ledger feature.
func (f LinkFeature) TransactionFeature() Feature {
	switch f {
	case LinkProduct:
		return FeatureProduct
	case LinkInvoice:
		return FeatureInvoice
	case LinkRequest:
		return FeatureRequest
	}
	return FeaturePaymentLink
}

// SplitType is how a subaccount share is computed.
type SplitType string

const (
	SplitPercentage SplitType = "percentage"
	SplitFlat       SplitType = "flat"
)

// Subaccount is a secondary payee on a payment link.
type Subaccount struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Bank       BankDetails     `json:"bank"`
	SplitType  SplitType       `json:"split_type"`
	SplitValue decimal.Decimal `json:"split_value"`
}

// Share returns the subaccount's cut of net, never more than remaining.
func (s Subaccount) Share(net, remaining decimal.Decimal) decimal.Decimal {
	var share decimal.Decimal
	switch s.SplitType {
	case SplitPercentage:
		share = RoundMoney(Percent(net, s.SplitValue))
	default:
		share = s.SplitValue
	}
	if share.IsNegative() {
		return decimal.Zero
	}
	return MinDecimal(share, remaining)
}

// LinkAnalytics are rollups kept on the link.
type LinkAnalytics struct {
	Payments    int64           `json:"payments"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// PaymentLink is a hosted checkout owned by a business.
type PaymentLink struct {
	ID            uuid.UUID       `json:"id"`
	BusinessID    uuid.UUID       `json:"business_id"`
	Slug          string          `json:"slug"`
	Name          string          `json:"name"`
	Type          LinkType        `json:"type"`
	Feature       LinkFeature     `json:"feature"`
	Amount        decimal.Decimal `json:"amount"`
	Reusable      bool            `json:"reusable"`
	Active        bool            `json:"active"`
	Initialized   bool            `json:"initialized"`
	InitializeRef string          `json:"initialize_ref,omitempty"`
	ProductID     *uuid.UUID      `json:"product_id,omitempty"`
	InvoiceID     *uuid.UUID      `json:"invoice_id,omitempty"`
	Subaccounts   []Subaccount    `json:"subaccounts,omitempty"`
	Analytics     LinkAnalytics   `json:"analytics"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// Product is a catalog item sold through a product link.
type Product struct {
	ID         uuid.UUID       `json:"id"`
	BusinessID uuid.UUID       `json:"business_id"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// Invoice is a bill collected through an invoice link.
type Invoice struct {
	ID          uuid.UUID       `json:"id"`
	BusinessID  uuid.UUID       `json:"business_id"`
	Number      string          `json:"number"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	AmountPaid  decimal.Decimal `json:"amount_paid"`
}

// Outstanding is what remains to be paid on the invoice.
func (i *Invoice) Outstanding() decimal.Decimal {
	return i.TotalAmount.Sub(i.AmountPaid)
}
