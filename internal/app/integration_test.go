package app_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fee-engine/config"
	httpHandler "fee-engine/internal/adapter/http/handler"
	"fee-engine/internal/app"
	"fee-engine/internal/core/domain"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testApp runs the real router, middleware and services over the memory drivers.
type testApp struct {
	server *httptest.Server
	infra  *app.Infra
	svcs   *app.Services
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := &config.Config{
		JWT:         config.JWTConfig{Secret: "test-jwt-secret-key-32bytes!!", Expiry: time.Hour, Issuer: "test-issuer"},
		AES:         config.AESConfig{Key: "0123456789abcdef0123456789abcdef0123456789abcdef0123456789abcdef"},
		Idempotency: config.IdempotencyConfig{TTL: 2 * time.Minute, Env: "test"},
		Webhook:     config.WebhookConfig{MaxAttempts: 3, Timeout: time.Second},
		Ledger:      config.LedgerConfig{ReverseFee: true, MinimumAmount: "500", Currency: "NGN", CardProvider: "sandbox"},
		Jobs:        config.JobsConfig{Driver: "memory"},
		Storage:     config.StorageConfig{Driver: "memory"},
		Providers:   []config.ProviderConfig{{Name: "sandbox", Kind: "sandbox"}},
	}
	log := zerolog.Nop()

	infra, err := app.Connect(context.Background(), cfg, log)
	require.NoError(t, err)
	svcs, err := app.Build(cfg, infra, log)
	require.NoError(t, err)

	router := httpHandler.SetupRouter(httpHandler.RouterDeps{
		AuthSvc:         svcs.Auth,
		BusinessSvc:     svcs.Business,
		ChargeSvc:       svcs.Charge,
		CollectionSvc:   svcs.Collection,
		PayoutSvc:       svcs.Payout,
		RefundSvc:       svcs.Refund,
		ReconcileSvc:    svcs.Reconcile,
		ReportingSvc:    svcs.Reporting,
		Idempotency:     svcs.Idempotency,
		SigSvc:          svcs.Signatures,
		TokenSvc:        svcs.Tokens,
		RateLimiter:     svcs.RateLimiter,
		ProviderSecrets: app.ProviderSecrets(cfg.Providers),
		HealthCheckers:  infra.Health,
		Logger:          log,
	})

	a := &testApp{server: httptest.NewServer(router), infra: infra, svcs: svcs}
	t.Cleanup(func() {
		a.server.Close()
		infra.Close()
	})
	return a
}

type business struct {
	id       uuid.UUID
	walletID uuid.UUID
	token    string
}

// onboard registers a business over HTTP, approves it and funds its wallet.
func (a *testApp) onboard(t *testing.T, funds string) business {
	t.Helper()
	ctx := context.Background()

	var reg struct {
		Data struct {
			BusinessID uuid.UUID `json:"business_id"`
			WalletID   uuid.UUID `json:"wallet_id"`
			SecretKey  string    `json:"secret_key"`
		} `json:"data"`
	}
	resp := a.post(t, "/api/v1/auth/register", "", "", map[string]string{
		"name": "Acme Stores", "email": uuid.NewString()[:8] + "@acme.test", "business_type": "sme", "pin": "1234",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	decode(t, resp, &reg)

	var tok struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	}
	resp = a.post(t, "/api/v1/auth/token", "", "", map[string]string{
		"business_id": reg.Data.BusinessID.String(), "secret_key": reg.Data.SecretKey,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &tok)

	require.NoError(t, a.svcs.Business.SetCompliance(ctx, reg.Data.BusinessID, domain.ComplianceApproved, domain.ComplianceApproved))
	require.NoError(t, a.infra.Repos.Providers.Upsert(ctx, &domain.Provider{
		ID: uuid.New(), Name: "sandbox", Active: true,
		VaceOutflow: domain.FeeSchedule{Transfer: domain.ChargeBlock{
			Type: ptr(domain.FeeFlat), Value: ptr(decimal.RequireFromString("25")), StampDuty: ptr(decimal.RequireFromString("50")),
		}},
	}))
	if funds != "" {
		require.NoError(t, a.infra.Repos.Wallets.Credit(ctx, reg.Data.WalletID, decimal.RequireFromString(funds), domain.CounterInflow))
	}

	return business{id: reg.Data.BusinessID, walletID: reg.Data.WalletID, token: tok.Data.Token}
}

func (a *testApp) post(t *testing.T, path, token, idemKey string, body any) *http.Response {
	t.Helper()
	resp, err := a.send(path, token, idemKey, body)
	require.NoError(t, err)
	return resp
}

// send is safe to call from goroutines other than the test's own.
func (a *testApp) send(path, token, idemKey string, body any) (*http.Response, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequest(http.MethodPost, a.server.URL+path, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}
	return http.DefaultClient.Do(req)
}

func (a *testApp) available(t *testing.T, b business) decimal.Decimal {
	t.Helper()
	w, err := a.infra.Repos.Wallets.GetByID(context.Background(), b.walletID)
	require.NoError(t, err)
	require.NotNil(t, w)
	return w.Balance.Available
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func ptr[T any](v T) *T { return &v }

func payoutBody(amount string) map[string]any {
	return map[string]any{
		"provider": "sandbox",
		"amount":   amount,
		"pin":      "1234",
		"bank":     map[string]string{"account_number": "0123456789", "bank_code": "058", "account_name": "Jane Doe"},
	}
}

func TestIntegration_HealthCheck(t *testing.T) {
	a := newTestApp(t)

	resp, err := http.Get(a.server.URL + "/health")
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var body map[string]any
	decode(t, resp, &body)
	assert.Equal(t, "healthy", body["status"])
}

func TestIntegration_WalletRequiresToken(t *testing.T) {
	a := newTestApp(t)
	b := a.onboard(t, "")

	resp, err := http.Get(a.server.URL + "/api/v1/wallet")
	require.NoError(t, err)
	drain(resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req, _ := http.NewRequest(http.MethodGet, a.server.URL+"/api/v1/wallet", nil)
	req.Header.Set("Authorization", "Bearer "+b.token)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	var wallet struct {
		Data struct {
			ID      uuid.UUID      `json:"id"`
			Balance domain.Balance `json:"balance"`
		} `json:"data"`
	}
	decode(t, resp, &wallet)
	assert.Equal(t, b.walletID, wallet.Data.ID)
	assert.True(t, wallet.Data.Balance.Available.IsZero())
}

func TestIntegration_PayoutChargesFeeAndRejectsReplay(t *testing.T) {
	a := newTestApp(t)
	b := a.onboard(t, "5000")

	resp := a.post(t, "/api/v1/payouts", b.token, "payout-1", payoutBody("1000"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var created struct {
		Data struct {
			Reference string                   `json:"reference"`
			Status    domain.TransactionStatus `json:"status"`
		} `json:"data"`
	}
	decode(t, resp, &created)
	assert.NotEmpty(t, created.Data.Reference)
	assert.Equal(t, domain.StatusSuccessful, created.Data.Status)
	assert.True(t, a.available(t, b).Equal(decimal.RequireFromString("3925")), a.available(t, b).String())

	resp = a.post(t, "/api/v1/payouts", b.token, "payout-1", payoutBody("1000"))
	drain(resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, string(domain.ReasonTransactionAttached), resp.Header.Get("X-Duplicate-Reason"))
	assert.True(t, a.available(t, b).Equal(decimal.RequireFromString("3925")))
}

func TestIntegration_RejectedPayoutReleasesKey(t *testing.T) {
	a := newTestApp(t)
	b := a.onboard(t, "5000")

	bad := payoutBody("1000")
	bad["pin"] = "9999"
	resp := a.post(t, "/api/v1/payouts", b.token, "payout-retry", bad)
	drain(resp)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = a.post(t, "/api/v1/payouts", b.token, "payout-retry", payoutBody("1000"))
	drain(resp)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

// TestIntegration_ConcurrentPayoutsSameKey fires one idempotency key from many
// clients at once; exactly one may move money.
func TestIntegration_ConcurrentPayoutsSameKey(t *testing.T) {
	a := newTestApp(t)
	b := a.onboard(t, "20000")

	const clients = 10
	var wg sync.WaitGroup
	var created, duplicate atomic.Int64
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := a.send("/api/v1/payouts", b.token, "same-key", payoutBody("1000"))
			if err != nil {
				return
			}
			drain(resp)
			switch resp.StatusCode {
			case http.StatusCreated:
				created.Add(1)
			case http.StatusForbidden:
				duplicate.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, created.Load())
	assert.EqualValues(t, clients-1, duplicate.Load())
	assert.True(t, a.available(t, b).Equal(decimal.RequireFromString("18925")), a.available(t, b).String())
}

// TestIntegration_ConcurrentPayoutsNeverOverdraw drains a wallet from many clients;
// the balance must land on zero and never go below it.
func TestIntegration_ConcurrentPayoutsNeverOverdraw(t *testing.T) {
	a := newTestApp(t)
	// Room for exactly ten payouts of 1000 plus 75 in fees.
	b := a.onboard(t, "10750")

	const clients = 20
	var wg sync.WaitGroup
	var created, rejected atomic.Int64
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			resp, err := a.send("/api/v1/payouts", b.token, fmt.Sprintf("drain-%d", i), payoutBody("1000"))
			if err != nil {
				rejected.Add(1)
				return
			}
			drain(resp)
			if resp.StatusCode == http.StatusCreated {
				created.Add(1)
			} else {
				rejected.Add(1)
			}
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 10, created.Load())
	assert.EqualValues(t, 10, rejected.Load())
	assert.True(t, a.available(t, b).IsZero(), a.available(t, b).String())
}
