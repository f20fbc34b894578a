package ports

import (
	"context"

	"fee-engine/internal/core/domain"

	"github.com/shopspring/decimal"
)

// Result is the per-call outcome of a provider operation. Business failures are
// reported here with OK=false; transport faults come back as a Go error instead.
type Result[T any] struct {
	OK         bool
	Message    string
	Code       string
	StatusCode int
	Data       T
}

// ServerError reports whether the provider failed on its side.
func (r Result[T]) ServerError() bool {
	return r.StatusCode >= 500
}

// AccountSpec asks a provider for a virtual collection account.
type AccountSpec struct {
	Reference string
	Name      string
	Email     string
	Amount    *decimal.Decimal
}

// VirtualAccount is a provisioned collection account.
type VirtualAccount struct {
	AccountNumber string
	AccountName   string
	BankName      string
	ProviderRef   string
}

// CardChargeSpec is a card debit request sent to a provider.
type CardChargeSpec struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
	Card      domain.Card
	Customer  domain.Customer
}

// ChargeOutcome is what the provider wants next from a card charge.
type ChargeOutcome struct {
	ProviderRef string
	Step        domain.AuthStep
	URL         string
	DisplayText string
}

// PayoutSpec is a bank transfer request sent to a provider.
type PayoutSpec struct {
	Reference string
	Amount    decimal.Decimal
	Currency  string
	Bank      domain.BankDetails
	Narration string
}

// PayoutRef acknowledges an accepted payout.
type PayoutRef struct {
	ProviderRef string
	Status      domain.TransactionStatus
}

// StatusReport is the provider's view of a transaction.
type StatusReport struct {
	ProviderRef string
	Status      domain.TransactionStatus
	Message     string
}

// ProviderGateway is one payment provider's API.
type ProviderGateway interface {
	Name() string
	GenerateAccount(ctx context.Context, spec AccountSpec) (Result[VirtualAccount], error)
	ChargeCard(ctx context.Context, spec CardChargeSpec) (Result[ChargeOutcome], error)
	AuthorizeCharge(ctx context.Context, providerRef string, step domain.AuthStep, answer string) (Result[ChargeOutcome], error)
	Payout(ctx context.Context, spec PayoutSpec) (Result[PayoutRef], error)
	VerifyStatus(ctx context.Context, providerRef string) (Result[StatusReport], error)
}

// GatewayRegistry resolves a provider gateway by name.
type GatewayRegistry interface {
	Gateway(name string) (ProviderGateway, bool)
}
