package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RefundOption is how a refund is paid out.
type RefundOption string

const (
	RefundInstant RefundOption = "instant"
	RefundRequest RefundOption = "request"
)

// RefundType is whether the whole transaction amount is returned.
type RefundType string

const (
	RefundPartial RefundType = "partial"
	RefundFull    RefundType = "full"
)

// RefundStatus is the lifecycle of a refund.
type RefundStatus string

const (
	RefundPending    RefundStatus = "PENDING"
	RefundProcessing RefundStatus = "PROCESSING"
	RefundSuccessful RefundStatus = "SUCCESSFUL"
	RefundFailed     RefundStatus = "FAILED"
)

// IsTerminal reports whether the refund can no longer change.
func (s RefundStatus) IsTerminal() bool {
	return s == RefundSuccessful || s == RefundFailed
}

// Refund returns money from a settled transaction to its payer. It is a separate
// entity; the original transaction keeps its own status.
type Refund struct {
	ID            uuid.UUID       `json:"id"`
	Reference     string          `json:"reference"`
	TransactionID uuid.UUID       `json:"transaction_id"`
	BusinessID    uuid.UUID       `json:"business_id"`
	Option        RefundOption    `json:"option"`
	Type          RefundType      `json:"type"`
	Status        RefundStatus    `json:"status"`
	Amount        decimal.Decimal `json:"amount"`
	Bank          *BankDetails    `json:"bank,omitempty"`
	Reason        string          `json:"reason,omitempty"`
	PayoutTxID    *uuid.UUID      `json:"payout_transaction_id,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BlocksNewRefund returns the blocking status when latest prevents another refund.
// Only a FAILED latest refund, or none at all, leaves the transaction open.
func BlocksNewRefund(latest *Refund) (string, bool) {
	if latest == nil || latest.Status == RefundFailed {
		return "", false
	}
	return strings.ToLower(string(latest.Status)), true
}
