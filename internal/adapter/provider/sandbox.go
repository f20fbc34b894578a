package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"

	"github.com/google/uuid"
)

// Sandbox test values.
const (
	SandboxPIN = "1234"
	SandboxOTP = "123456"
	// SandboxDeclinedCard is rejected at charge time.
	SandboxDeclinedCard = "4084080000000409"
	// Payouts to this account stay PROCESSING until VerifyStatus is called.
	SandboxSlowAccount = "0000000000"
)

type sandboxEntry struct {
	step   domain.AuthStep
	status domain.TransactionStatus
}

// Sandbox is an in-process provider for development and end-to-end tests. A card
// charge asks for the PIN, then an OTP, then succeeds.
type Sandbox struct {
	name string
	mu   sync.Mutex
	refs map[string]*sandboxEntry
}

// NewSandbox creates a sandbox provider registered under name.
func NewSandbox(name string) *Sandbox {
	return &Sandbox{name: name, refs: make(map[string]*sandboxEntry)}
}

func (s *Sandbox) Name() string { return s.name }

func (s *Sandbox) GenerateAccount(_ context.Context, spec ports.AccountSpec) (ports.Result[ports.VirtualAccount], error) {
	ref := s.newRef("va")
	s.put(ref, &sandboxEntry{status: domain.StatusPending})
	digits := strings.ReplaceAll(uuid.NewString(), "-", "")
	var number strings.Builder
	for _, r := range digits {
		if number.Len() == 10 {
			break
		}
		number.WriteByte('0' + byte(r)%10)
	}
	return ok(ports.VirtualAccount{
		AccountNumber: number.String(),
		AccountName:   spec.Name,
		BankName:      "Sandbox Bank",
		ProviderRef:   ref,
	}), nil
}

func (s *Sandbox) ChargeCard(_ context.Context, spec ports.CardChargeSpec) (ports.Result[ports.ChargeOutcome], error) {
	if spec.Card.Normalize().Number == SandboxDeclinedCard {
		return ports.Result[ports.ChargeOutcome]{Message: "card declined", Code: "declined", StatusCode: http.StatusBadRequest}, nil
	}
	ref := s.newRef("ch")
	step := domain.StepPINRequired
	if spec.Card.PIN != "" {
		step = domain.StepOTPRequired
	}
	s.put(ref, &sandboxEntry{step: step, status: domain.StatusPending})
	return ok(ports.ChargeOutcome{ProviderRef: ref, Step: step, DisplayText: prompt(step)}), nil
}

func (s *Sandbox) AuthorizeCharge(_ context.Context, providerRef string, step domain.AuthStep, answer string) (ports.Result[ports.ChargeOutcome], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.refs[providerRef]
	if !found {
		return ports.Result[ports.ChargeOutcome]{Message: "charge not found", StatusCode: http.StatusNotFound}, nil
	}
	if e.step != step {
		return ports.Result[ports.ChargeOutcome]{
			Message:    fmt.Sprintf("charge is awaiting %s", e.step),
			StatusCode: http.StatusBadRequest,
		}, nil
	}

	switch {
	case step == domain.StepPINRequired && answer == SandboxPIN:
		e.step = domain.StepOTPRequired
	case step == domain.StepOTPRequired && answer == SandboxOTP:
		e.step, e.status = domain.StepSuccess, domain.StatusSuccessful
	default:
		e.step, e.status = domain.StepFailed, domain.StatusFailed
	}
	return ok(ports.ChargeOutcome{ProviderRef: providerRef, Step: e.step, DisplayText: prompt(e.step)}), nil
}

func (s *Sandbox) Payout(_ context.Context, spec ports.PayoutSpec) (ports.Result[ports.PayoutRef], error) {
	if len(spec.Bank.AccountNumber) != 10 {
		return ports.Result[ports.PayoutRef]{Message: "invalid account number", StatusCode: http.StatusBadRequest}, nil
	}
	ref := s.newRef("po")
	status := domain.StatusSuccessful
	if spec.Bank.AccountNumber == SandboxSlowAccount {
		status = domain.StatusProcessing
	}
	s.put(ref, &sandboxEntry{status: status})
	return ok(ports.PayoutRef{ProviderRef: ref, Status: status}), nil
}

// VerifyStatus settles a PROCESSING payout as successful on first inspection.
func (s *Sandbox) VerifyStatus(_ context.Context, providerRef string) (ports.Result[ports.StatusReport], error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, found := s.refs[providerRef]
	if !found {
		return ports.Result[ports.StatusReport]{Message: "transaction not found", StatusCode: http.StatusNotFound}, nil
	}
	if e.status == domain.StatusProcessing {
		e.status = domain.StatusSuccessful
	}
	return ok(ports.StatusReport{ProviderRef: providerRef, Status: e.status}), nil
}

func (s *Sandbox) newRef(prefix string) string {
	return s.name + "_" + prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func (s *Sandbox) put(ref string, e *sandboxEntry) {
	s.mu.Lock()
	s.refs[ref] = e
	s.mu.Unlock()
}

func ok[T any](data T) ports.Result[T] {
	return ports.Result[T]{OK: true, Message: "ok", StatusCode: http.StatusOK, Data: data}
}

func prompt(step domain.AuthStep) string {
	switch step {
	case domain.StepPINRequired:
		return "Enter your card PIN"
	case domain.StepOTPRequired:
		return "Enter the OTP sent to your phone"
	case domain.StepSuccess:
		return "Approved"
	case domain.StepFailed:
		return "Declined"
	}
	return ""
}
