package service

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"fee-engine/internal/adapter/storage/memory"
	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const webhookSecret = "sk_test_webhook"

type webhookEnv struct {
	store    *memory.Store
	jobs     *mocks.MockJobRunner
	notifier *WebhookNotifierImpl
	business *domain.Business
	hits     atomic.Int32
	status   atomic.Int32
	bodies   chan []byte
}

func newWebhookEnv(t *testing.T) *webhookEnv {
	t.Helper()
	ctx := context.Background()
	env := &webhookEnv{store: memory.New(), bodies: make(chan []byte, 16)}
	env.status.Store(http.StatusOK)

	sig := NewHMACSignatureService()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.hits.Add(1)
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.True(t, sig.Verify(webhookSecret, body, r.Header.Get("X-Signature")), "signature mismatch")
		env.bodies <- body
		w.WriteHeader(int(env.status.Load()))
	}))
	t.Cleanup(srv.Close)

	enc, err := NewAESEncryptionService(testAESKey)
	require.NoError(t, err)
	secretEnc, err := enc.Encrypt(webhookSecret)
	require.NoError(t, err)

	env.business = &domain.Business{
		ID:           uuid.New(),
		Name:         "Acme Stores",
		BusinessType: domain.BusinessSME,
		KYBStatus:    domain.ComplianceApproved,
		WalletID:     uuid.New(),
		SecretKeyEnc: secretEnc,
		Webhook:      domain.WebhookConfig{URL: srv.URL, Active: true},
	}
	require.NoError(t, env.store.Businesses().Create(ctx, env.business))

	env.jobs = mocks.NewMockJobRunner(gomock.NewController(t))
	env.notifier = NewWebhookNotifier(WebhookRepos{
		Transactions: env.store.Transactions(),
		Businesses:   env.store.Businesses(),
		Refunds:      env.store.Refunds(),
		Products:     env.store.Products(),
		Invoices:     env.store.Invoices(),
		Links:        env.store.PaymentLinks(),
		Deliveries:   env.store.WebhookDeliveries(),
	}, enc, sig, env.jobs, srv.Client(), WebhookConfig{MaxAttempts: 5}, zerolog.Nop())
	return env
}

func (e *webhookEnv) linkTx(t *testing.T, status domain.TransactionStatus) *domain.Transaction {
	t.Helper()
	ctx := context.Background()
	link := &domain.PaymentLink{
		ID: uuid.New(), BusinessID: e.business.ID, Slug: "shop-" + uuid.NewString()[:6], Name: "Shop",
		Type: domain.LinkDynamic, Feature: domain.LinkRequest, Active: true,
		Subaccounts: []domain.Subaccount{{ID: uuid.New(), Name: "Partner", SplitType: domain.SplitPercentage, SplitValue: dec("10")}},
	}
	require.NoError(t, e.store.PaymentLinks().Create(ctx, link))
	tx := &domain.Transaction{
		ID:            uuid.New(),
		Reference:     newReference(),
		Provider:      "sandbox",
		Type:          domain.TransactionTypeCredit,
		Feature:       domain.FeatureRequest,
		Status:        status,
		Currency:      "NGN",
		Amount:        dec("10000"),
		Fee:           dec("150"),
		VatFee:        dec("11.25"),
		Webhook:       domain.WebhookState{Enabled: true},
		BusinessID:    e.business.ID,
		WalletID:      e.business.WalletID,
		PaymentLinkID: &link.ID,
	}
	require.NoError(t, e.store.Transactions().Create(ctx, tx))
	return tx
}

func (e *webhookEnv) deliveries(t *testing.T, id uuid.UUID) []domain.WebhookDelivery {
	t.Helper()
	out, err := e.store.WebhookDeliveries().ListByTransaction(context.Background(), id)
	require.NoError(t, err)
	return out
}

func TestWebhookNotifier_NotifyEnqueuesFinalOutcomes(t *testing.T) {
	env := newWebhookEnv(t)
	tx := env.linkTx(t, domain.StatusSuccessful)

	env.jobs.EXPECT().Enqueue(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, jobs ...ports.Job) error {
			require.Len(t, jobs, 1)
			assert.Equal(t, ports.JobWebhookDelivery, jobs[0].Kind)
			assert.Equal(t, tx.ID.String(), string(jobs[0].Payload))
			assert.Equal(t, 5, jobs[0].MaxAttempts)
			return nil
		})
	require.NoError(t, env.notifier.Notify(context.Background(), tx))

	pending := env.linkTx(t, domain.StatusPending)
	require.NoError(t, env.notifier.Notify(context.Background(), pending))

	disabled := env.linkTx(t, domain.StatusFailed)
	disabled.Webhook.Enabled = false
	require.NoError(t, env.notifier.Notify(context.Background(), disabled))
}

func TestWebhookNotifier_DeliverSignsAndSendsOnce(t *testing.T) {
	env := newWebhookEnv(t)
	ctx := context.Background()
	tx := env.linkTx(t, domain.StatusSuccessful)

	require.NoError(t, env.notifier.Deliver(ctx, tx.ID, 1))
	require.EqualValues(t, 1, env.hits.Load())

	var payload domain.WebhookPayload
	require.NoError(t, json.Unmarshal(<-env.bodies, &payload))
	assert.Equal(t, "payin.link.success", payload.Event)
	assert.Equal(t, tx.Reference, payload.Data.Reference)
	assert.Equal(t, "10000.00", payload.Data.Amount)
	assert.Equal(t, "11.25", payload.Data.VatFee)
	require.NotNil(t, payload.Data.PaymentLink)
	require.Len(t, payload.Data.Subaccounts, 1)
	assert.True(t, payload.Data.Subaccounts[0].Amount.Equal(dec("985")))

	stored, err := env.store.Transactions().GetByID(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, stored.Webhook.IsSent)
	assert.Equal(t, "payin.link.success", stored.Webhook.Event)

	require.NoError(t, env.notifier.Deliver(ctx, tx.ID, 2))
	assert.EqualValues(t, 1, env.hits.Load(), "a sent webhook is never posted again")

	log := env.deliveries(t, tx.ID)
	require.Len(t, log, 1)
	assert.Equal(t, domain.WebhookStatusDelivered, log[0].Status)
	require.NotNil(t, log[0].HTTPStatus)
	assert.Equal(t, http.StatusOK, *log[0].HTTPStatus)
}

func TestWebhookNotifier_FailedAttemptIsRetried(t *testing.T) {
	env := newWebhookEnv(t)
	ctx := context.Background()
	tx := env.linkTx(t, domain.StatusFailed)

	env.status.Store(http.StatusInternalServerError)
	err := env.notifier.Deliver(ctx, tx.ID, 1)
	require.Error(t, err)
	<-env.bodies

	stored, _ := env.store.Transactions().GetByID(ctx, tx.ID)
	assert.False(t, stored.Webhook.IsSent)
	assert.Nil(t, stored.Webhook.LeaseUntil, "failed attempts release the lease")

	env.status.Store(http.StatusOK)
	require.NoError(t, env.notifier.Deliver(ctx, tx.ID, 2))

	var payload domain.WebhookPayload
	require.NoError(t, json.Unmarshal(<-env.bodies, &payload))
	assert.Equal(t, "payin.link.failed", payload.Event)

	log := env.deliveries(t, tx.ID)
	require.Len(t, log, 2)
	statuses := []domain.WebhookStatus{log[0].Status, log[1].Status}
	assert.ElementsMatch(t, []domain.WebhookStatus{domain.WebhookStatusFailed, domain.WebhookStatusDelivered}, statuses)
}

func TestWebhookNotifier_ConcurrentDeliveriesPostOnce(t *testing.T) {
	env := newWebhookEnv(t)
	tx := env.linkTx(t, domain.StatusSuccessful)

	var wg sync.WaitGroup
	for i := range 10 {
		wg.Add(1)
		go func(attempt int) {
			defer wg.Done()
			assert.NoError(t, env.notifier.Deliver(context.Background(), tx.ID, attempt))
		}(i + 1)
	}
	wg.Wait()

	assert.EqualValues(t, 1, env.hits.Load())
	assert.Len(t, env.deliveries(t, tx.ID), 1)
}

func TestWebhookNotifier_DisabledBusinessIsSkipped(t *testing.T) {
	env := newWebhookEnv(t)
	ctx := context.Background()

	quiet := &domain.Business{ID: uuid.New(), BusinessType: domain.BusinessSME, WalletID: uuid.New()}
	require.NoError(t, env.store.Businesses().Create(ctx, quiet))
	tx := env.linkTx(t, domain.StatusSuccessful)
	tx.ID = uuid.New()
	tx.Reference = newReference()
	tx.BusinessID = quiet.ID
	require.NoError(t, env.store.Transactions().Create(ctx, tx))

	require.NoError(t, env.notifier.Deliver(ctx, tx.ID, 1))
	assert.Zero(t, env.hits.Load())

	log := env.deliveries(t, tx.ID)
	require.Len(t, log, 1)
	assert.Equal(t, domain.WebhookStatusSkipped, log[0].Status)
}

func TestWebhookNotifier_NonFinalIsIgnored(t *testing.T) {
	env := newWebhookEnv(t)
	tx := env.linkTx(t, domain.StatusProcessing)

	require.NoError(t, env.notifier.Deliver(context.Background(), tx.ID, 1))
	assert.Zero(t, env.hits.Load())
	assert.Empty(t, env.deliveries(t, tx.ID))
}

func TestWebhookNotifier_HandleJob(t *testing.T) {
	env := newWebhookEnv(t)
	tx := env.linkTx(t, domain.StatusSuccessful)

	require.NoError(t, env.notifier.HandleJob(context.Background(), ports.JobDelivery{
		Job: ports.Job{ID: "bad", Kind: ports.JobWebhookDelivery, Payload: []byte("not-a-uuid")}, Attempt: 1,
	}))
	assert.Zero(t, env.hits.Load())

	require.NoError(t, env.notifier.HandleJob(context.Background(), ports.JobDelivery{
		Job: ports.Job{ID: "ok", Kind: ports.JobWebhookDelivery, Payload: []byte(tx.ID.String())}, Attempt: 1,
	}))
	assert.EqualValues(t, 1, env.hits.Load())
}
