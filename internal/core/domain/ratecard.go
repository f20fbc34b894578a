package domain

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FeeKind says how a fee value is applied to an amount.
type FeeKind string

const (
	FeeFlat       FeeKind = "flat"
	FeePercentage FeeKind = "percentage"
)

// Category is the direction of money relative to the business wallet.
type Category string

const (
	CategoryInflow  Category = "inflow"
	CategoryOutflow Category = "outflow"
)

// ChargeKind is the product family a fee block prices.
type ChargeKind string

const (
	KindTransfer ChargeKind = "transfer"
	KindCard     ChargeKind = "card"
	KindBills    ChargeKind = "bills"
)

// ChargeBlock is one rate card entry. A nil field is "not defined"; a zero value is
// a real override.
type ChargeBlock struct {
	ChargeFee      *bool            `json:"charge_fee,omitempty"`
	Type           *FeeKind         `json:"type,omitempty"`
	Value          *decimal.Decimal `json:"value,omitempty"`
	ProviderFee    *decimal.Decimal `json:"provider_fee,omitempty"`
	Markup         *decimal.Decimal `json:"markup,omitempty"`
	ProviderMarkup *decimal.Decimal `json:"provider_markup,omitempty"`
	Capped         *decimal.Decimal `json:"capped,omitempty"`
	ProviderCap    *decimal.Decimal `json:"provider_cap,omitempty"`
	VatType        *FeeKind         `json:"vat_type,omitempty"`
	VatValue       *decimal.Decimal `json:"vat_value,omitempty"`
	StampDuty      *decimal.Decimal `json:"stamp_duty,omitempty"`
}

// Setting is a business's negotiated rate card.
type Setting struct {
	ID          uuid.UUID    `json:"id"`
	BusinessID  uuid.UUID    `json:"business_id"`
	CardFee     *ChargeBlock `json:"card_fee,omitempty"`
	BillsFee    *ChargeBlock `json:"bills_fee,omitempty"`
	TransferFee *ChargeBlock `json:"transfer_fee,omitempty"`
	InflowFee   *ChargeBlock `json:"inflow_fee,omitempty"`
}

// FeeSchedule is a provider's default pricing for one category.
type FeeSchedule struct {
	Transfer ChargeBlock `json:"transfer"`
	Card     ChargeBlock `json:"card"`
	Bills    ChargeBlock `json:"bills"`
}

// Block returns the schedule entry for a charge kind.
func (s *FeeSchedule) Block(kind ChargeKind) *ChargeBlock {
	switch kind {
	case KindTransfer:
		return &s.Transfer
	case KindCard:
		return &s.Card
	case KindBills:
		return &s.Bills
	}
	return nil
}

// Provider is a payment processor and its default pricing.
type Provider struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Active      bool        `json:"active"`
	VaceInflow  FeeSchedule `json:"vace_inflow"`
	VaceOutflow FeeSchedule `json:"vace_outflow"`
}

// Charge is a fully resolved fee structure; every field has a value.
type Charge struct {
	ChargeFee      bool            `json:"charge_fee"`
	Type           FeeKind         `json:"type"`
	Value          decimal.Decimal `json:"value"`
	ProviderFee    decimal.Decimal `json:"provider_fee"`
	Markup         decimal.Decimal `json:"markup"`
	ProviderMarkup decimal.Decimal `json:"provider_markup"`
	Capped         decimal.Decimal `json:"capped"`
	ProviderCap    decimal.Decimal `json:"provider_cap"`
	VatType        FeeKind         `json:"vat_type"`
	VatValue       decimal.Decimal `json:"vat_value"`
	StampDuty      decimal.Decimal `json:"stamp_duty"`
}

// Breakdown is the fee math applied to one amount.
type Breakdown struct {
	Amount       decimal.Decimal `json:"amount"`
	Fee          decimal.Decimal `json:"fee"`
	ProviderCost decimal.Decimal `json:"provider_cost"`
	Revenue      decimal.Decimal `json:"revenue"`
	Vat          decimal.Decimal `json:"vat"`
	StampDuty    decimal.Decimal `json:"stamp_duty"`
	TotalCharge  decimal.Decimal `json:"total_charge"`
}
