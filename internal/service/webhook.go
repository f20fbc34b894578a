package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/internal/platform/metrics"
	"fee-engine/pkg/apperror"
	"fee-engine/pkg/logger"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookConfig tunes webhook delivery.
type WebhookConfig struct {
	SignatureHeader string
	Delay           time.Duration
	MaxAttempts     int
	Timeout         time.Duration
	Lease           time.Duration
}

// WebhookRepos groups the repositories a webhook payload is assembled from.
type WebhookRepos struct {
	Transactions ports.TransactionRepository
	Businesses   ports.BusinessRepository
	Refunds      ports.RefundRepository
	Products     ports.ProductRepository
	Invoices     ports.InvoiceRepository
	Links        ports.PaymentLinkRepository
	Deliveries   ports.WebhookDeliveryRepository
}

// WebhookNotifierImpl implements ports.WebhookNotifier. Notify only enqueues; the
// job runner calls Deliver and retries it on error.
type WebhookNotifierImpl struct {
	repos      WebhookRepos
	encSvc     ports.EncryptionService
	sigSvc     ports.SignatureService
	jobs       ports.JobRunner
	httpClient HTTPClient
	cfg        WebhookConfig
	now        func() time.Time
	log        zerolog.Logger
}

// NewWebhookNotifier creates a new WebhookNotifierImpl.
func NewWebhookNotifier(
	repos WebhookRepos,
	encSvc ports.EncryptionService,
	sigSvc ports.SignatureService,
	jobs ports.JobRunner,
	httpClient HTTPClient,
	cfg WebhookConfig,
	log zerolog.Logger,
) *WebhookNotifierImpl {
	if cfg.SignatureHeader == "" {
		cfg.SignatureHeader = "X-Signature"
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Lease <= 0 {
		cfg.Lease = 30 * time.Second
	}
	return &WebhookNotifierImpl{
		repos:      repos,
		encSvc:     encSvc,
		sigSvc:     sigSvc,
		jobs:       jobs,
		httpClient: httpClient,
		cfg:        cfg,
		now:        time.Now,
		log:        logger.Component(log, "webhook"),
	}
}

// Notify schedules delivery for a transaction that reached a reportable status.
func (s *WebhookNotifierImpl) Notify(ctx context.Context, t *domain.Transaction) error {
	if !t.Webhook.Enabled || t.Webhook.IsSent {
		return nil
	}
	if _, final := domain.OutcomeOf(t.Status); !final {
		return nil
	}
	job := ports.Job{
		ID:          t.ID.String() + ":" + string(t.Status),
		Kind:        ports.JobWebhookDelivery,
		Payload:     []byte(t.ID.String()),
		Delay:       s.cfg.Delay,
		MaxAttempts: s.cfg.MaxAttempts,
	}
	if err := s.jobs.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue webhook: %w", err)
	}
	s.log.Debug().Str("tx_ref", t.Reference).Str("status", string(t.Status)).Msg("webhook enqueued")
	return nil
}

// HandleJob adapts Deliver to the job runner.
func (s *WebhookNotifierImpl) HandleJob(ctx context.Context, d ports.JobDelivery) error {
	id, err := uuid.ParseBytes(d.Payload)
	if err != nil {
		s.log.Error().Err(err).Str("job_id", d.ID).Msg("malformed webhook job payload, dropping")
		return nil
	}
	return s.Deliver(ctx, id, d.Attempt)
}

// Deliver posts the signed outcome to the business. A returned error means the
// attempt failed and should be retried.
func (s *WebhookNotifierImpl) Deliver(ctx context.Context, transactionID uuid.UUID, attempt int) error {
	tx, err := s.repos.Transactions.GetByID(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}
	if tx == nil || tx.Webhook.IsSent {
		return nil
	}
	outcome, final := domain.OutcomeOf(tx.Status)
	if !final {
		return nil
	}
	event, ok := domain.EventName(tx.Feature, outcome)
	if !ok {
		s.log.Warn().Str("tx_ref", tx.Reference).Str("feature", string(tx.Feature)).Msg("no webhook event for feature")
		return nil
	}

	business, err := s.repos.Businesses.GetByID(ctx, tx.BusinessID)
	if err != nil {
		return fmt.Errorf("get business: %w", err)
	}
	if business == nil || !business.WebhookEnabled() {
		s.record(ctx, tx, "", event, domain.WebhookStatusSkipped, nil, attempt, "webhook disabled")
		metrics.WebhookDeliveries.WithLabelValues(string(domain.WebhookStatusSkipped)).Inc()
		return nil
	}

	now := s.now()
	claimed, err := s.repos.Transactions.ClaimWebhookLease(ctx, tx.ID, now, now.Add(s.cfg.Lease))
	if err != nil {
		return fmt.Errorf("claim webhook lease: %w", err)
	}
	if !claimed {
		s.log.Debug().Str("tx_ref", tx.Reference).Msg("webhook already sent or being sent")
		return nil
	}

	status, deliverErr := s.send(ctx, tx, business, event)
	if deliverErr != nil {
		errMsg := deliverErr.Error()
		s.record(ctx, tx, business.Webhook.URL, event, domain.WebhookStatusFailed, status, attempt, errMsg)
		metrics.WebhookDeliveries.WithLabelValues(string(domain.WebhookStatusFailed)).Inc()
		if err := s.repos.Transactions.ReleaseWebhookLease(ctx, tx.ID); err != nil {
			s.log.Error().Err(err).Str("tx_ref", tx.Reference).Msg("failed to release webhook lease")
		}
		s.log.Warn().Err(deliverErr).
			Str("tx_ref", tx.Reference).
			Str("event", event).
			Int("attempt", attempt).
			Msg("webhook delivery failed")
		return deliverErr
	}

	s.record(ctx, tx, business.Webhook.URL, event, domain.WebhookStatusDelivered, status, attempt, "")
	metrics.WebhookDeliveries.WithLabelValues(string(domain.WebhookStatusDelivered)).Inc()
	if _, err := s.repos.Transactions.MarkWebhookSent(ctx, tx.ID, event); err != nil {
		return fmt.Errorf("mark webhook sent: %w", err)
	}
	s.log.Info().
		Str("tx_ref", tx.Reference).
		Str("event", event).
		Int("attempt", attempt).
		Msg("webhook delivered")
	return nil
}

func (s *WebhookNotifierImpl) send(ctx context.Context, tx *domain.Transaction, business *domain.Business, event string) (*int, error) {
	secret, err := s.encSvc.Decrypt(business.SecretKeyEnc)
	if err != nil {
		return nil, apperror.ErrEncryptionFailure(fmt.Errorf("decrypt business secret: %w", err))
	}
	data, err := s.BuildData(ctx, tx)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(domain.WebhookPayload{Event: event, Data: *data})
	if err != nil {
		return nil, fmt.Errorf("marshal webhook payload: %w", err)
	}

	rctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(rctx, http.MethodPost, business.Webhook.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(s.cfg.SignatureHeader, s.sigSvc.Sign(secret, body))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("post webhook: %w", err)
	}
	resp.Body.Close()

	code := resp.StatusCode
	if code < 200 || code >= 300 {
		return &code, fmt.Errorf("webhook endpoint returned %d", code)
	}
	return &code, nil
}

// BuildData maps a transaction and its related records onto the webhook data block.
func (s *WebhookNotifierImpl) BuildData(ctx context.Context, tx *domain.Transaction) (*domain.WebhookData, error) {
	data := &domain.WebhookData{
		ID:        tx.ID,
		Reference: tx.Reference,
		Feature:   tx.Feature,
		Type:      tx.Type,
		Status:    tx.Status,
		Currency:  tx.Currency,
		Amount:    tx.Amount.StringFixed(domain.MoneyPlaces),
		Fee:       tx.Fee.StringFixed(domain.MoneyPlaces),
		VatFee:    tx.VatFee.StringFixed(domain.MoneyPlaces),
		StampFee:  tx.StampFee.StringFixed(domain.MoneyPlaces),
		Narration: tx.Narration,
		Customer:  tx.Customer,
		Bank:      tx.Bank,
		Card:      tx.Card,
		CreatedAt: tx.CreatedAt,
	}

	if tx.RefundID != nil {
		refund, err := s.repos.Refunds.GetByID(ctx, *tx.RefundID)
		if err != nil {
			return nil, fmt.Errorf("get refund: %w", err)
		}
		if refund != nil {
			data.Refund = &domain.RefundSummary{
				ID:     refund.ID,
				Amount: refund.Amount.StringFixed(domain.MoneyPlaces),
				Status: refund.Status,
				Type:   refund.Type,
			}
		}
	}
	if tx.ProductID != nil {
		product, err := s.repos.Products.GetByID(ctx, *tx.ProductID)
		if err != nil {
			return nil, fmt.Errorf("get product: %w", err)
		}
		if product != nil {
			data.Product = &domain.ProductSummary{
				ID:        product.ID,
				Name:      product.Name,
				UnitPrice: product.UnitPrice.StringFixed(domain.MoneyPlaces),
			}
		}
	}
	if tx.InvoiceID != nil {
		invoice, err := s.repos.Invoices.GetByID(ctx, *tx.InvoiceID)
		if err != nil {
			return nil, fmt.Errorf("get invoice: %w", err)
		}
		if invoice != nil {
			data.Invoice = &domain.InvoiceSummary{
				ID:          invoice.ID,
				Number:      invoice.Number,
				TotalAmount: invoice.TotalAmount.StringFixed(domain.MoneyPlaces),
				AmountPaid:  invoice.AmountPaid.StringFixed(domain.MoneyPlaces),
			}
		}
	}
	if tx.PaymentLinkID != nil {
		link, err := s.repos.Links.GetByID(ctx, *tx.PaymentLinkID)
		if err != nil {
			return nil, fmt.Errorf("get payment link: %w", err)
		}
		if link != nil {
			data.PaymentLink = &domain.LinkSummary{
				ID:   link.ID,
				Slug: link.Slug,
				Name: link.Name,
				Type: link.Type,
				Kind: link.Feature,
			}
			data.Subaccounts = projectShares(tx, link.Subaccounts)
		}
	}
	return data, nil
}

// projectShares shows what each subaccount receives from this transaction at settlement.
func projectShares(tx *domain.Transaction, subs []domain.Subaccount) []domain.SubaccountShare {
	if len(subs) == 0 {
		return nil
	}
	net := tx.Amount.Sub(tx.Fee)
	remaining := net
	out := make([]domain.SubaccountShare, 0, len(subs))
	for _, sub := range subs {
		cut := sub.Share(net, remaining)
		remaining = remaining.Sub(cut)
		out = append(out, domain.SubaccountShare{
			SubaccountID: sub.ID,
			Name:         sub.Name,
			SplitType:    sub.SplitType,
			SplitValue:   sub.SplitValue,
			Amount:       cut,
		})
	}
	return out
}

func (s *WebhookNotifierImpl) record(ctx context.Context, tx *domain.Transaction, url, event string, status domain.WebhookStatus, httpStatus *int, attempt int, errMsg string) {
	d := &domain.WebhookDelivery{
		ID:            uuid.New(),
		TransactionID: tx.ID,
		BusinessID:    tx.BusinessID,
		URL:           url,
		Event:         event,
		Status:        status,
		HTTPStatus:    httpStatus,
		Attempt:       attempt,
		CreatedAt:     s.now().UTC(),
	}
	if errMsg != "" {
		d.Error = &errMsg
	}
	if err := s.repos.Deliveries.Create(ctx, d); err != nil {
		s.log.Error().Err(err).Str("tx_ref", tx.Reference).Msg("failed to log webhook attempt")
	}
}
