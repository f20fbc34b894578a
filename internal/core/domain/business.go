package domain

import (
	"time"

	"github.com/google/uuid"
)

// BusinessType decides which pricing rules apply to a business.
type BusinessType string

const (
	BusinessCorporate    BusinessType = "corporate"
	BusinessEntrepreneur BusinessType = "entrepreneur"
	BusinessSME          BusinessType = "sme"
	BusinessSMB          BusinessType = "smb"
)

// ComplianceStatus is the state of a KYC or KYB review.
type ComplianceStatus string

const (
	CompliancePending  ComplianceStatus = "PENDING"
	ComplianceApproved ComplianceStatus = "APPROVED"
	ComplianceRejected ComplianceStatus = "REJECTED"
)

// WebhookConfig is where and whether a business receives notifications.
type WebhookConfig struct {
	URL    string `json:"url"`
	Active bool   `json:"active"`
}

// Business is a merchant account owning one wallet.
type Business struct {
	ID                 uuid.UUID        `json:"id"`
	Name               string           `json:"name"`
	Email              string           `json:"email"`
	BusinessType       BusinessType     `json:"business_type"`
	KYCStatus          ComplianceStatus `json:"kyc_status"`
	KYBStatus          ComplianceStatus `json:"kyb_status"`
	WalletID           uuid.UUID        `json:"wallet_id"`
	TransactionPinHash string           `json:"-"`
	SecretKeyEnc       string           `json:"-"`
	Webhook            WebhookConfig    `json:"webhook"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// IsCompliant reports whether the business passed the review its type requires.
// Registered companies need KYB; sole entrepreneurs need KYC.
func (b *Business) IsCompliant() bool {
	if b.BusinessType == BusinessEntrepreneur {
		return b.KYCStatus == ComplianceApproved
	}
	return b.KYBStatus == ComplianceApproved
}

// NegotiatesPricing reports whether business-level rate card overrides apply.
func (b *Business) NegotiatesPricing() bool {
	return b.BusinessType == BusinessCorporate
}

// WebhookEnabled reports whether outcome notifications can be delivered.
func (b *Business) WebhookEnabled() bool {
	return b.Webhook.Active && b.Webhook.URL != ""
}
