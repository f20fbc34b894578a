package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the ledger direction of a transaction.
type TransactionType string

const (
	TransactionTypeDefault TransactionType = "default"
	TransactionTypeCredit  TransactionType = "credit"
	TransactionTypeDebit   TransactionType = "debit"
)

// Feature identifies the product flow that created a transaction.
type Feature string

const (
	FeatureTransfer       Feature = "transfer"
	FeatureBankTransfer   Feature = "bank_transfer"
	FeatureVirtualAccount Feature = "virtual_account"
	FeatureCard           Feature = "card"
	FeaturePaymentLink    Feature = "payment_link"
	FeatureProduct        Feature = "product"
	FeatureInvoice        Feature = "invoice"
	FeatureRequest        Feature = "request"
	FeaturePayout         Feature = "payout"
	FeatureCardPayout     Feature = "card_payout"
	FeatureRefund         Feature = "refund"
	FeatureChargeback     Feature = "chargeback"
	FeatureVAS            Feature = "vas"
	FeatureAirtime        Feature = "airtime"
	FeatureWithdrawal     Feature = "withdrawal"
	FeatureSettlement     Feature = "settlement"
)

// IsOutbound reports whether money leaves the business wallet for this feature.
// Outbound flows are debited before the provider is called.
func (f Feature) IsOutbound() bool {
	switch f {
	case FeatureTransfer, FeaturePayout, FeatureCardPayout, FeatureRefund,
		FeatureWithdrawal, FeatureVAS, FeatureAirtime:
		return true
	}
	return false
}

// IsLink reports whether the feature belongs to a payment link checkout.
func (f Feature) IsLink() bool {
	switch f {
	case FeaturePaymentLink, FeatureProduct, FeatureInvoice, FeatureRequest:
		return true
	}
	return false
}

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	StatusPending    TransactionStatus = "PENDING"
	StatusProcessing TransactionStatus = "PROCESSING"
	StatusCompleted  TransactionStatus = "COMPLETED"
	StatusSuccessful TransactionStatus = "SUCCESSFUL"
	StatusPaid       TransactionStatus = "PAID"
	StatusFailed     TransactionStatus = "FAILED"
	StatusCancelled  TransactionStatus = "CANCELLED"
	StatusRefunded   TransactionStatus = "REFUNDED"
)

var transitions = map[TransactionStatus][]TransactionStatus{
	StatusPending:    {StatusProcessing, StatusCompleted, StatusSuccessful, StatusPaid, StatusFailed, StatusCancelled},
	StatusProcessing: {StatusCompleted, StatusSuccessful, StatusPaid, StatusFailed, StatusCancelled},
	StatusCompleted:  {StatusRefunded},
	StatusSuccessful: {StatusRefunded},
	StatusPaid:       {StatusRefunded},
}

// CanTransition reports whether from → to is a legal ledger move.
func CanTransition(from, to TransactionStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// SourcesFor lists every status that may move to the target status.
func SourcesFor(to TransactionStatus) []TransactionStatus {
	var out []TransactionStatus
	for from, targets := range transitions {
		for _, s := range targets {
			if s == to {
				out = append(out, from)
			}
		}
	}
	return out
}

// IsSuccess reports whether the status is one of the success terminals.
func (s TransactionStatus) IsSuccess() bool {
	return s == StatusCompleted || s == StatusSuccessful || s == StatusPaid
}

// IsTerminal reports whether the status ends the forward lifecycle.
func (s TransactionStatus) IsTerminal() bool {
	return s.IsSuccess() || s == StatusFailed || s == StatusCancelled || s == StatusRefunded
}

// SettleStatus tracks whether revenue has been released to the business.
type SettleStatus string

const (
	SettlePending SettleStatus = "pending"
	SettleSettled SettleStatus = "settled"
)

// Revenue is the platform's share of the fee.
type Revenue struct {
	Amount   decimal.Decimal `json:"amount"`
	Reversed bool            `json:"reversed"`
}

// Settle records where and when a transaction's net amount was released.
type Settle struct {
	Destination string          `json:"destination,omitempty"`
	Status      SettleStatus    `json:"status"`
	Amount      decimal.Decimal `json:"amount"`
	SettledAt   *time.Time      `json:"settled_at,omitempty"`
}

// BankDetails identifies a bank account counterparty.
type BankDetails struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	BankCode      string `json:"bank_code"`
	BankName      string `json:"bank_name,omitempty"`
}

// Customer is the paying or receiving end user.
type Customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

// WebhookState tracks notification of the transaction outcome.
type WebhookState struct {
	Enabled    bool       `json:"enabled"`
	Event      string     `json:"event,omitempty"`
	IsSent     bool       `json:"is_sent"`
	LeaseUntil *time.Time `json:"-"`
}

// CardSummary is the non-sensitive part of a charged card.
type CardSummary struct {
	Brand CardBrand `json:"brand"`
	Last4 string    `json:"last4"`
}

// Transaction is the ledger record of one money movement.
type Transaction struct {
	ID            uuid.UUID         `json:"id"`
	Reference     string            `json:"reference"`
	ProviderRef   string            `json:"provider_ref,omitempty"`
	Provider      string            `json:"provider"`
	Type          TransactionType   `json:"type"`
	Feature       Feature           `json:"feature"`
	Status        TransactionStatus `json:"status"`
	AuthStep      AuthStep          `json:"auth_step,omitempty"`
	Currency      string            `json:"currency"`
	Amount        decimal.Decimal   `json:"amount"`
	Fee           decimal.Decimal   `json:"fee"`
	VatFee        decimal.Decimal   `json:"vat_fee"`
	StampFee      decimal.Decimal   `json:"stamp_fee"`
	Revenue       Revenue           `json:"revenue"`
	Settle        Settle            `json:"settle"`
	Bank          *BankDetails      `json:"bank,omitempty"`
	Customer      *Customer         `json:"customer,omitempty"`
	Card          *CardSummary      `json:"card,omitempty"`
	Webhook       WebhookState      `json:"webhook"`
	Narration     string            `json:"narration,omitempty"`
	BusinessID    uuid.UUID         `json:"business_id"`
	WalletID      uuid.UUID         `json:"wallet_id"`
	PaymentLinkID *uuid.UUID        `json:"payment_link_id,omitempty"`
	InvoiceID     *uuid.UUID        `json:"invoice_id,omitempty"`
	ProductID     *uuid.UUID        `json:"product_id,omitempty"`
	RefundID      *uuid.UUID        `json:"refund_id,omitempty"`
	ChargebackID  *uuid.UUID        `json:"chargeback_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// Charges is the total amount the fee breakdown adds on top of the principal.
func (t *Transaction) Charges() decimal.Decimal {
	return t.Fee.Add(t.VatFee).Add(t.StampFee)
}

// DebitTotal is what an outbound transaction reserves from the wallet.
func (t *Transaction) DebitTotal() decimal.Decimal {
	return t.Amount.Add(t.Charges())
}

// NetAmount is what an inbound transaction leaves in the wallet.
func (t *Transaction) NetAmount() decimal.Decimal {
	return t.Amount.Sub(t.Charges())
}

// IsTerminal reports whether the transaction reached an end state.
func (t *Transaction) IsTerminal() bool {
	return t.Status.IsTerminal()
}

// IsRefundable reports whether a refund may be issued against this transaction.
func (t *Transaction) IsRefundable() bool {
	return !t.Feature.IsOutbound() && t.Status.IsSuccess()
}
