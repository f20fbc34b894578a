package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// maxBody caps how much of a provider response is read.
const maxBody = 1 << 20

// envelope is the response shape every provider endpoint returns.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
}

// HTTPGateway talks to a provider's JSON API with a bearer secret.
type HTTPGateway struct {
	name      string
	baseURL   string
	secretKey string
	client    *http.Client
	log       zerolog.Logger
}

// NewHTTPGateway creates a gateway for the provider at baseURL.
func NewHTTPGateway(name, baseURL, secretKey string, client *http.Client, log zerolog.Logger) *HTTPGateway {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTPGateway{
		name:      name,
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		client:    client,
		log:       log.With().Str("provider", name).Logger(),
	}
}

func (g *HTTPGateway) Name() string { return g.name }

type accountBody struct {
	Reference string           `json:"reference"`
	Name      string           `json:"name"`
	Email     string           `json:"email"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
}

type accountData struct {
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
	BankName      string `json:"bank_name"`
	Reference     string `json:"reference"`
}

func (g *HTTPGateway) GenerateAccount(ctx context.Context, spec ports.AccountSpec) (ports.Result[ports.VirtualAccount], error) {
	var data accountData
	res, err := call(ctx, g, http.MethodPost, "/virtual-accounts", accountBody{
		Reference: spec.Reference,
		Name:      spec.Name,
		Email:     spec.Email,
		Amount:    spec.Amount,
	}, &data)
	return convert(res, ports.VirtualAccount{
		AccountNumber: data.AccountNumber,
		AccountName:   data.AccountName,
		BankName:      data.BankName,
		ProviderRef:   data.Reference,
	}), err
}

type chargeBody struct {
	Reference   string          `json:"reference"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	CardNumber  string          `json:"card_number"`
	CVV         string          `json:"cvv"`
	ExpiryMonth string          `json:"expiry_month"`
	ExpiryYear  string          `json:"expiry_year"`
	PIN         string          `json:"pin,omitempty"`
	Email       string          `json:"email,omitempty"`
	Name        string          `json:"name,omitempty"`
}

type chargeData struct {
	Reference   string `json:"reference"`
	Step        string `json:"step"`
	URL         string `json:"url"`
	DisplayText string `json:"display_text"`
}

func (d chargeData) outcome() ports.ChargeOutcome {
	return ports.ChargeOutcome{
		ProviderRef: d.Reference,
		Step:        parseStep(d.Step),
		URL:         d.URL,
		DisplayText: d.DisplayText,
	}
}

func (g *HTTPGateway) ChargeCard(ctx context.Context, spec ports.CardChargeSpec) (ports.Result[ports.ChargeOutcome], error) {
	var data chargeData
	res, err := call(ctx, g, http.MethodPost, "/charges", chargeBody{
		Reference:   spec.Reference,
		Amount:      spec.Amount,
		Currency:    spec.Currency,
		CardNumber:  spec.Card.Number,
		CVV:         spec.Card.CVV,
		ExpiryMonth: spec.Card.ExpiryMonth,
		ExpiryYear:  spec.Card.ExpiryYear,
		PIN:         spec.Card.PIN,
		Email:       spec.Customer.Email,
		Name:        spec.Customer.Name,
	}, &data)
	return convert(res, data.outcome()), err
}

type authorizeBody struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

func (g *HTTPGateway) AuthorizeCharge(ctx context.Context, providerRef string, step domain.AuthStep, answer string) (ports.Result[ports.ChargeOutcome], error) {
	var data chargeData
	path := "/charges/" + url.PathEscape(providerRef) + "/authorize"
	res, err := call(ctx, g, http.MethodPost, path, authorizeBody{Type: string(step), Value: answer}, &data)
	if data.Reference == "" {
		data.Reference = providerRef
	}
	return convert(res, data.outcome()), err
}

type payoutBody struct {
	Reference     string          `json:"reference"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	AccountNumber string          `json:"account_number"`
	AccountName   string          `json:"account_name"`
	BankCode      string          `json:"bank_code"`
	Narration     string          `json:"narration,omitempty"`
}

type statusData struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}

func (g *HTTPGateway) Payout(ctx context.Context, spec ports.PayoutSpec) (ports.Result[ports.PayoutRef], error) {
	var data statusData
	res, err := call(ctx, g, http.MethodPost, "/transfers", payoutBody{
		Reference:     spec.Reference,
		Amount:        spec.Amount,
		Currency:      spec.Currency,
		AccountNumber: spec.Bank.AccountNumber,
		AccountName:   spec.Bank.AccountName,
		BankCode:      spec.Bank.BankCode,
		Narration:     spec.Narration,
	}, &data)
	return convert(res, ports.PayoutRef{ProviderRef: data.Reference, Status: ParseStatus(data.Status)}), err
}

func (g *HTTPGateway) VerifyStatus(ctx context.Context, providerRef string) (ports.Result[ports.StatusReport], error) {
	var data statusData
	res, err := call(ctx, g, http.MethodGet, "/transactions/"+url.PathEscape(providerRef), nil, &data)
	if data.Reference == "" {
		data.Reference = providerRef
	}
	return convert(res, ports.StatusReport{
		ProviderRef: data.Reference,
		Status:      ParseStatus(data.Status),
		Message:     data.Message,
	}), err
}

// call performs one request. Only transport faults and unreadable bodies come back as
// an error; any HTTP answer from the provider is reported in the result.
func call(ctx context.Context, g *HTTPGateway, method, path string, body any, out any) (ports.Result[struct{}], error) {
	var res ports.Result[struct{}]

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return res, fmt.Errorf("%s: encode request: %w", g.name, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, reader)
	if err != nil {
		return res, fmt.Errorf("%s: build request: %w", g.name, err)
	}
	req.Header.Set("Authorization", "Bearer "+g.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Warn().Err(err).Str("path", path).Msg("provider request failed")
		return res, fmt.Errorf("%s: %s %s: %w", g.name, method, path, err)
	}
	defer resp.Body.Close()

	res.StatusCode = resp.StatusCode
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return res, fmt.Errorf("%s: read response: %w", g.name, err)
	}

	var env envelope
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &env); err != nil {
			// Gateways in front of providers answer outages with HTML.
			res.Message = http.StatusText(resp.StatusCode)
			g.log.Warn().Int("status_code", resp.StatusCode).Str("path", path).Msg("provider returned a non-JSON body")
			return res, nil
		}
	}
	res.Message = env.Message
	res.Code = env.Code
	res.OK = env.Status && resp.StatusCode >= 200 && resp.StatusCode < 300
	if res.Message == "" && !res.OK {
		res.Message = http.StatusText(resp.StatusCode)
	}

	if len(env.Data) > 0 && string(env.Data) != "null" && out != nil {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return res, fmt.Errorf("%s: decode data: %w", g.name, err)
		}
	}

	g.log.Debug().
		Str("path", path).
		Int("status_code", resp.StatusCode).
		Bool("ok", res.OK).
		Msg("provider responded")
	return res, nil
}

func convert[T any](res ports.Result[struct{}], data T) ports.Result[T] {
	return ports.Result[T]{
		OK:         res.OK,
		Message:    res.Message,
		Code:       res.Code,
		StatusCode: res.StatusCode,
		Data:       data,
	}
}

func parseStep(s string) domain.AuthStep {
	switch step := domain.AuthStep(strings.ToUpper(s)); step {
	case domain.StepOTPRequired, domain.StepPINRequired, domain.StepPhoneRequired,
		domain.StepBirthdayRequired, domain.StepAddressRequired, domain.StepSuccess, domain.StepFailed:
		return step
	case "":
		return ""
	}
	return domain.StepProviderPending
}

// ParseStatus maps a provider status word onto the ledger lifecycle. Unknown words read as PENDING.
func ParseStatus(s string) domain.TransactionStatus {
	switch strings.ToLower(s) {
	case "success", "successful":
		return domain.StatusSuccessful
	case "completed":
		return domain.StatusCompleted
	case "paid":
		return domain.StatusPaid
	case "failed", "reversed", "declined":
		return domain.StatusFailed
	case "cancelled", "canceled":
		return domain.StatusCancelled
	case "processing":
		return domain.StatusProcessing
	}
	return domain.StatusPending
}
