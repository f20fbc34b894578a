package app

import (
	"context"
	"testing"
	"time"

	"fee-engine/config"
	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func memoryConfig() *config.Config {
	return &config.Config{
		JWT:         config.JWTConfig{Secret: "test-secret", Expiry: time.Hour, Issuer: "fee-engine"},
		AES:         config.AESConfig{Key: "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"},
		Idempotency: config.IdempotencyConfig{TTL: 2 * time.Minute, Env: "test"},
		Webhook:     config.WebhookConfig{MaxAttempts: 3, Timeout: time.Second},
		Ledger:      config.LedgerConfig{ReverseFee: true, MinimumAmount: "500", Currency: "NGN", CardProvider: "sandbox"},
		Jobs:        config.JobsConfig{Driver: "memory"},
		Storage:     config.StorageConfig{Driver: "memory"},
		Providers: []config.ProviderConfig{
			{Name: "sandbox", Kind: "sandbox"},
			{Name: "partner", Kind: "http", BaseURL: "https://partner.example", SecretKey: "psk"},
		},
	}
}

func TestConnectAndBuild_MemoryDrivers(t *testing.T) {
	cfg := memoryConfig()
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	infra, err := Connect(ctx, cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(infra.Close)

	assert.Equal(t, []string{"partner", "sandbox"}, infra.Gateways.Names())
	require.Len(t, infra.Health, 1)
	assert.NoError(t, infra.Health[0].Ping(ctx))

	svcs, err := Build(cfg, infra, zerolog.Nop())
	require.NoError(t, err)

	resp, err := svcs.Auth.Register(ctx, ports.RegisterRequest{
		Name: "Acme", Email: "ops@acme.test", BusinessType: domain.BusinessCorporate, PIN: "1234",
	})
	require.NoError(t, err)

	token, _, err := svcs.Auth.IssueToken(ctx, resp.BusinessID, resp.SecretKey)
	require.NoError(t, err)
	claims, err := svcs.Tokens.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, resp.BusinessID, claims.BusinessID)

	wallet, err := svcs.Reporting.GetWallet(ctx, resp.BusinessID)
	require.NoError(t, err)
	assert.Equal(t, resp.WalletID, wallet.ID)

	check, err := svcs.Idempotency.Check(ctx, "k-1", []byte(`{}`), domain.RequestUser{Email: "ops@acme.test"})
	require.NoError(t, err)
	assert.False(t, check.Duplicate)

	history, err := svcs.Settlement.Run(ctx)
	require.NoError(t, err)
	assert.Nil(t, history)
}

func TestBuild_RejectsBadSettings(t *testing.T) {
	cfg := memoryConfig()
	infra, err := Connect(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(infra.Close)

	bad := *cfg
	bad.Ledger.MinimumAmount = "five hundred"
	_, err = Build(&bad, infra, zerolog.Nop())
	assert.ErrorContains(t, err, "ledger.minimum_amount")

	bad = *cfg
	bad.AES.Key = "short"
	_, err = Build(&bad, infra, zerolog.Nop())
	assert.ErrorContains(t, err, "encryption service")
}

func TestConnect_BadProvider(t *testing.T) {
	cfg := memoryConfig()
	cfg.Providers = []config.ProviderConfig{{Name: "partner", Kind: "http"}}
	_, err := Connect(context.Background(), cfg, zerolog.Nop())
	assert.Error(t, err)
}

func TestProviderSecrets(t *testing.T) {
	secrets := ProviderSecrets(memoryConfig().Providers)
	assert.Equal(t, map[string]string{"sandbox": "", "partner": "psk"}, secrets)
}
