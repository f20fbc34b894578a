package dto

import (
	"fee-engine/internal/core/domain"

	"github.com/shopspring/decimal"
)

// RegisterRequest is the request body for business onboarding.
type RegisterRequest struct {
	Name         string `json:"name" binding:"required,min=1,max=100"`
	Email        string `json:"email" binding:"required,email,max=254"`
	BusinessType string `json:"business_type" binding:"required,oneof=corporate entrepreneur sme smb"`
	PIN          string `json:"pin" binding:"required,numeric,len=4"`
	WebhookURL   string `json:"webhook_url,omitempty" binding:"omitempty,safe_url"`
}

// TokenRequest exchanges a business secret for a bearer token.
type TokenRequest struct {
	BusinessID string `json:"business_id" binding:"required,uuid"`
	SecretKey  string `json:"secret_key" binding:"required"`
}

// TokenResponse is the response body for a token exchange.
type TokenResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// UpdateWebhookRequest replaces the business's webhook configuration.
type UpdateWebhookRequest struct {
	URL    string `json:"url" binding:"omitempty,safe_url"`
	Active bool   `json:"active"`
}

// RotateSecretResponse returns the new secret once.
type RotateSecretResponse struct {
	SecretKey string `json:"secret_key"`
}

// CardRequest carries raw card data for a charge.
type CardRequest struct {
	Number      string `json:"number" binding:"required,min=12,max=23"`
	CVV         string `json:"cvv" binding:"required,numeric,min=3,max=4"`
	ExpiryMonth string `json:"expiry_month" binding:"required,numeric,len=2"`
	ExpiryYear  string `json:"expiry_year" binding:"required,numeric,min=2,max=4"`
	PIN         string `json:"pin,omitempty" binding:"omitempty,numeric,len=4"`
}

// CustomerRequest identifies who is paying.
type CustomerRequest struct {
	Name  string `json:"name" binding:"max=100"`
	Email string `json:"email" binding:"required,email"`
	Phone string `json:"phone,omitempty" binding:"max=20"`
}

// LinkChargeRequest is the request body for paying a link by card.
type LinkChargeRequest struct {
	Amount   *decimal.Decimal `json:"amount,omitempty"`
	Quantity int              `json:"quantity,omitempty" binding:"min=0,max=1000"`
	Card     CardRequest      `json:"card"`
	Customer CustomerRequest  `json:"customer"`
}

// ChargeResponse reports a created charge and what the payer must do next.
type ChargeResponse struct {
	Reference string                   `json:"reference"`
	Status    domain.TransactionStatus `json:"status"`
	Amount    decimal.Decimal          `json:"amount"`
	Fee       decimal.Decimal          `json:"fee"`
	Next      domain.NextStep          `json:"next"`
}

// AuthorizeRequest answers a pending card challenge.
type AuthorizeRequest struct {
	Reference    string `json:"reference" binding:"required,safe_id"`
	ValidateType string `json:"validate_type" binding:"required,oneof=OTP_REQUIRED PIN_REQUIRED PHONE_REQUIRED BIRTHDAY_REQUIRED ADDRESS_REQUIRED"`
	Answer       string `json:"answer" binding:"required,max=255"`
}

// BankRequest is a destination bank account.
type BankRequest struct {
	AccountNumber string `json:"account_number" binding:"required,numeric,min=6,max=20"`
	AccountName   string `json:"account_name" binding:"max=100"`
	BankCode      string `json:"bank_code" binding:"required,safe_id"`
	BankName      string `json:"bank_name,omitempty" binding:"max=100"`
}

// ToDomain converts the request into bank details.
func (b BankRequest) ToDomain() domain.BankDetails {
	return domain.BankDetails{
		AccountNumber: b.AccountNumber,
		AccountName:   b.AccountName,
		BankCode:      b.BankCode,
		BankName:      b.BankName,
	}
}

// PayoutRequest is the request body for a bank transfer out of the wallet.
type PayoutRequest struct {
	IdempotencyKey string           `json:"idempotencyKey,omitempty"`
	Provider       string           `json:"provider" binding:"required,safe_id"`
	Amount         *decimal.Decimal `json:"amount" binding:"required"`
	Currency       string           `json:"currency,omitempty" binding:"omitempty,len=3"`
	Bank           BankRequest      `json:"bank"`
	Narration      string           `json:"narration,omitempty" binding:"max=140"`
	PIN            string           `json:"pin" binding:"required,numeric,len=4"`
}

// RefundRequest is the request body for refund creation.
type RefundRequest struct {
	IdempotencyKey string           `json:"idempotencyKey,omitempty"`
	Reference      string           `json:"reference" binding:"required,safe_id"`
	Option         string           `json:"option" binding:"required,oneof=instant request"`
	Type           string           `json:"type" binding:"required,oneof=partial full"`
	Amount         *decimal.Decimal `json:"amount,omitempty" binding:"required_if=Type partial"`
	Bank           *BankRequest     `json:"bank,omitempty"`
	Reason         string           `json:"reason,omitempty" binding:"max=255"`
}

// CollectionRequest asks for an account a customer can pay into by bank transfer.
type CollectionRequest struct {
	IdempotencyKey string           `json:"idempotencyKey,omitempty"`
	Provider       string           `json:"provider" binding:"required,safe_id"`
	Feature        string           `json:"feature,omitempty" binding:"omitempty,oneof=bank_transfer virtual_account"`
	Amount         *decimal.Decimal `json:"amount" binding:"required"`
	Currency       string           `json:"currency,omitempty" binding:"omitempty,len=3"`
	Customer       CustomerRequest  `json:"customer"`
}

// CollectionResponse carries the account to pay into and the pending transaction.
type CollectionResponse struct {
	Reference     string                   `json:"reference"`
	Status        domain.TransactionStatus `json:"status"`
	Amount        decimal.Decimal          `json:"amount"`
	Fee           decimal.Decimal          `json:"fee"`
	AccountNumber string                   `json:"account_number"`
	AccountName   string                   `json:"account_name"`
	BankName      string                   `json:"bank_name"`
}

// ProviderUpdateRequest is a provider's push of a transaction's final status.
type ProviderUpdateRequest struct {
	ProviderRef string `json:"provider_ref" binding:"required,safe_id"`
	Status      string `json:"status" binding:"required"`
}

// FeeQuoteRequest asks for the fee breakdown of a prospective transaction.
type FeeQuoteRequest struct {
	Provider string           `json:"provider" binding:"required,safe_id"`
	Category string           `json:"category" binding:"required,oneof=inflow outflow"`
	Kind     string           `json:"kind" binding:"required,oneof=transfer card bills"`
	Amount   *decimal.Decimal `json:"amount" binding:"required"`
}
