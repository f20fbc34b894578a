package domain

import (
	"regexp"
	"strings"
)

// CardBrand is the scheme of a payment card.
type CardBrand string

const (
	CardVisa       CardBrand = "VISA"
	CardMastercard CardBrand = "MASTERCARD"
	CardVerve      CardBrand = "VERVE"
	CardUnknown    CardBrand = "UNKNOWN"
)

var (
	visaRe   = regexp.MustCompile(`^4[0-9]{12}(?:[0-9]{3})?$`)
	masterRe = regexp.MustCompile(`^(5[1-5][0-9]{14}|2[2-7][0-9]{14})$`)
	verveRe  = regexp.MustCompile(`^(506[01]|507[89]|6500)[0-9]{12,15}$`)
)

// Card holds the raw card data submitted for a charge. It is never persisted.
type Card struct {
	Number      string `json:"number"`
	CVV         string `json:"cvv"`
	ExpiryMonth string `json:"expiry_month"`
	ExpiryYear  string `json:"expiry_year"`
	PIN         string `json:"pin,omitempty"`
}

// Normalize strips spaces and dashes from the card number.
func (c Card) Normalize() Card {
	c.Number = strings.NewReplacer(" ", "", "-", "").Replace(c.Number)
	return c
}

// Brand detects the card scheme, or CardUnknown.
func (c Card) Brand() CardBrand {
	n := c.Normalize().Number
	switch {
	case visaRe.MatchString(n):
		return CardVisa
	case masterRe.MatchString(n):
		return CardMastercard
	case verveRe.MatchString(n):
		return CardVerve
	}
	return CardUnknown
}

// Valid reports whether the number passes the Luhn check and maps to a supported brand.
func (c Card) Valid() bool {
	n := c.Normalize().Number
	return passesLuhn(n) && c.Brand() != CardUnknown
}

// Summary returns the persisted view of the card.
func (c Card) Summary() *CardSummary {
	n := c.Normalize().Number
	last4 := n
	if len(n) > 4 {
		last4 = n[len(n)-4:]
	}
	return &CardSummary{Brand: c.Brand(), Last4: last4}
}

func passesLuhn(number string) bool {
	if len(number) < 12 {
		return false
	}
	sum := 0
	alternate := false
	for i := len(number) - 1; i >= 0; i-- {
		d := number[i]
		if d < '0' || d > '9' {
			return false
		}
		n := int(d - '0')
		if alternate {
			n *= 2
			if n > 9 {
				n -= 9
			}
		}
		sum += n
		alternate = !alternate
	}
	return sum%10 == 0
}

// AuthStep is a state of the card authorization state machine.
type AuthStep string

const (
	StepInitiated        AuthStep = "INITIATED"
	StepProviderPending  AuthStep = "PROVIDER_PENDING"
	StepOTPRequired      AuthStep = "OTP_REQUIRED"
	StepPINRequired      AuthStep = "PIN_REQUIRED"
	StepPhoneRequired    AuthStep = "PHONE_REQUIRED"
	StepBirthdayRequired AuthStep = "BIRTHDAY_REQUIRED"
	StepAddressRequired  AuthStep = "ADDRESS_REQUIRED"
	StepSuccess          AuthStep = "SUCCESS"
	StepFailed           AuthStep = "FAILED"
)

// IsChallenge reports whether the step waits on an answer from the card holder.
func (s AuthStep) IsChallenge() bool {
	switch s {
	case StepOTPRequired, StepPINRequired, StepPhoneRequired, StepBirthdayRequired, StepAddressRequired:
		return true
	}
	return false
}

// IsTerminal reports whether the authorization flow is over.
func (s AuthStep) IsTerminal() bool {
	return s == StepSuccess || s == StepFailed
}

// NextStep is what the caller shows the card holder after each authorization call.
type NextStep struct {
	Type        AuthStep `json:"type"`
	URL         string   `json:"url,omitempty"`
	DisplayText string   `json:"display_text,omitempty"`
	StatusCode  int      `json:"status_code"`
	Reference   string   `json:"reference"`
}
