package domain

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the terminal result a webhook reports.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
)

// OutcomeOf maps a transaction status onto a webhook outcome. The second return is
// false while the status is not final.
func OutcomeOf(s TransactionStatus) (Outcome, bool) {
	switch {
	case s.IsSuccess(), s == StatusRefunded:
		return OutcomeSuccess, true
	case s == StatusFailed, s == StatusCancelled:
		return OutcomeFailed, true
	}
	return "", false
}

var eventPrefixes = map[Feature]string{
	FeatureBankTransfer:   "payin",
	FeatureVirtualAccount: "payin",
	FeatureCard:           "payin",
	FeaturePaymentLink:    "payin.link",
	FeatureProduct:        "payin.link",
	FeatureInvoice:        "payin.link",
	FeatureRequest:        "payin.link",
	FeatureTransfer:       "payout",
	FeaturePayout:         "payout",
	FeatureCardPayout:     "payout",
	FeatureWithdrawal:     "payout",
	FeatureVAS:            "vas",
	FeatureAirtime:        "vas",
	FeatureChargeback:     "chargeback",
	FeatureRefund:         "refund",
	FeatureSettlement:     "settlement",
}

// EventName returns the webhook event for a feature and outcome, e.g. "payin.link.success".
func EventName(f Feature, o Outcome) (string, bool) {
	prefix, ok := eventPrefixes[f]
	if !ok {
		return "", false
	}
	return prefix + "." + string(o), true
}

// WebhookStatus represents the delivery state of a webhook attempt.
type WebhookStatus string

const (
	WebhookStatusDelivered WebhookStatus = "DELIVERED"
	WebhookStatusFailed    WebhookStatus = "FAILED"
	WebhookStatusSkipped   WebhookStatus = "SKIPPED"
)

// WebhookDelivery records each webhook delivery attempt.
type WebhookDelivery struct {
	ID            uuid.UUID     `json:"id"`
	TransactionID uuid.UUID     `json:"transaction_id"`
	BusinessID    uuid.UUID     `json:"business_id"`
	URL           string        `json:"url"`
	Event         string        `json:"event"`
	Status        WebhookStatus `json:"status"`
	HTTPStatus    *int          `json:"http_status,omitempty"`
	Attempt       int           `json:"attempt"`
	Error         *string       `json:"error,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
}

// WebhookPayload is the body posted to the business.
type WebhookPayload struct {
	Event string      `json:"event"`
	Data  WebhookData `json:"data"`
}

// WebhookData is the mapped transaction plus its related summaries.
type WebhookData struct {
	ID          uuid.UUID         `json:"id"`
	Reference   string            `json:"reference"`
	Feature     Feature           `json:"feature"`
	Type        TransactionType   `json:"type"`
	Status      TransactionStatus `json:"status"`
	Currency    string            `json:"currency"`
	Amount      string            `json:"amount"`
	Fee         string            `json:"fee"`
	VatFee      string            `json:"vat_fee"`
	StampFee    string            `json:"stamp_fee"`
	Narration   string            `json:"narration,omitempty"`
	Customer    *Customer         `json:"customer,omitempty"`
	Bank        *BankDetails      `json:"bank,omitempty"`
	Card        *CardSummary      `json:"card,omitempty"`
	Refund      *RefundSummary    `json:"refund,omitempty"`
	Product     *ProductSummary   `json:"product,omitempty"`
	Invoice     *InvoiceSummary   `json:"invoice,omitempty"`
	PaymentLink *LinkSummary      `json:"payment_link,omitempty"`
	Subaccounts []SubaccountShare `json:"subaccounts,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// RefundSummary is the refund view embedded in webhook data.
type RefundSummary struct {
	ID     uuid.UUID    `json:"id"`
	Amount string       `json:"amount"`
	Status RefundStatus `json:"status"`
	Type   RefundType   `json:"type"`
}

// ProductSummary is the product view embedded in webhook data.
type ProductSummary struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	UnitPrice string    `json:"unit_price"`
}

// InvoiceSummary is the invoice view embedded in webhook data.
type InvoiceSummary struct {
	ID          uuid.UUID `json:"id"`
	Number      string    `json:"number"`
	TotalAmount string    `json:"total_amount"`
	AmountPaid  string    `json:"amount_paid"`
}

// LinkSummary is the payment link view embedded in webhook data.
type LinkSummary struct {
	ID   uuid.UUID   `json:"id"`
	Slug string      `json:"slug"`
	Name string      `json:"name"`
	Type LinkType    `json:"type"`
	Kind LinkFeature `json:"feature"`
}
