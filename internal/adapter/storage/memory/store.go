// Package memory is a process-local implementation of the repository ports. Every
// method holds one mutex for its whole body, so conditional writes behave like the
// single-statement updates of the Postgres adapter.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Store holds every table.
type Store struct {
	mu           sync.Mutex
	businesses   map[uuid.UUID]domain.Business
	settings     map[uuid.UUID]domain.Setting // by business
	providers    map[string]domain.Provider
	wallets      map[uuid.UUID]domain.Wallet
	transactions map[uuid.UUID]domain.Transaction
	links        map[uuid.UUID]domain.PaymentLink
	products     map[uuid.UUID]domain.Product
	invoices     map[uuid.UUID]domain.Invoice
	refunds      map[uuid.UUID]domain.Refund
	settlements  map[uuid.UUID]domain.SettlementHistory
	deliveries   []domain.WebhookDelivery
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		businesses:   make(map[uuid.UUID]domain.Business),
		settings:     make(map[uuid.UUID]domain.Setting),
		providers:    make(map[string]domain.Provider),
		wallets:      make(map[uuid.UUID]domain.Wallet),
		transactions: make(map[uuid.UUID]domain.Transaction),
		links:        make(map[uuid.UUID]domain.PaymentLink),
		products:     make(map[uuid.UUID]domain.Product),
		invoices:     make(map[uuid.UUID]domain.Invoice),
		refunds:      make(map[uuid.UUID]domain.Refund),
		settlements:  make(map[uuid.UUID]domain.SettlementHistory),
	}
}

func (s *Store) Businesses() *BusinessRepo               { return &BusinessRepo{s} }
func (s *Store) Settings() *SettingRepo                  { return &SettingRepo{s} }
func (s *Store) Providers() *ProviderRepo                { return &ProviderRepo{s} }
func (s *Store) Wallets() *WalletRepo                    { return &WalletRepo{s} }
func (s *Store) Transactions() *TransactionRepo          { return &TransactionRepo{s} }
func (s *Store) PaymentLinks() *PaymentLinkRepo          { return &PaymentLinkRepo{s} }
func (s *Store) Products() *ProductRepo                  { return &ProductRepo{s} }
func (s *Store) Invoices() *InvoiceRepo                  { return &InvoiceRepo{s} }
func (s *Store) Refunds() *RefundRepo                    { return &RefundRepo{s} }
func (s *Store) Settlements() *SettlementRepo            { return &SettlementRepo{s} }
func (s *Store) WebhookDeliveries() *WebhookDeliveryRepo { return &WebhookDeliveryRepo{s} }

// ---- Businesses ----

type BusinessRepo struct{ s *Store }

func (r *BusinessRepo) Create(_ context.Context, b *domain.Business) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.businesses[b.ID]; ok {
		return ports.ErrConflict
	}
	for _, existing := range r.s.businesses {
		if b.Email != "" && existing.Email == b.Email {
			return ports.ErrConflict
		}
	}
	stamp(&b.CreatedAt, &b.UpdatedAt)
	r.s.businesses[b.ID] = *b
	return nil
}

func (r *BusinessRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Business, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.businesses[id]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *BusinessRepo) GetByEmail(_ context.Context, email string) (*domain.Business, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.businesses {
		if b.Email == email {
			return &b, nil
		}
	}
	return nil, nil
}

func (r *BusinessRepo) Update(_ context.Context, b *domain.Business) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.businesses[b.ID]; !ok {
		return nil
	}
	b.UpdatedAt = time.Now().UTC()
	r.s.businesses[b.ID] = *b
	return nil
}

// ---- Settings ----

type SettingRepo struct{ s *Store }

func (r *SettingRepo) Upsert(_ context.Context, st *domain.Setting) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	r.s.settings[st.BusinessID] = *st
	return nil
}

func (r *SettingRepo) GetByBusinessID(_ context.Context, businessID uuid.UUID) (*domain.Setting, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.settings[businessID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

// ---- Providers ----

type ProviderRepo struct{ s *Store }

func (r *ProviderRepo) Upsert(_ context.Context, p *domain.Provider) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	r.s.providers[p.Name] = *p
	return nil
}

func (r *ProviderRepo) GetByName(_ context.Context, name string) (*domain.Provider, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.providers[name]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ---- Wallets ----

type WalletRepo struct{ s *Store }

func (r *WalletRepo) Create(_ context.Context, w *domain.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.wallets {
		if existing.BusinessID == w.BusinessID {
			return ports.ErrConflict
		}
	}
	stamp(&w.CreatedAt, &w.UpdatedAt)
	r.s.wallets[w.ID] = *w
	return nil
}

func (r *WalletRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[id]
	if !ok {
		return nil, nil
	}
	return &w, nil
}

func (r *WalletRepo) GetByBusinessID(_ context.Context, businessID uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, w := range r.s.wallets {
		if w.BusinessID == businessID {
			return &w, nil
		}
	}
	return nil, nil
}

func (r *WalletRepo) Debit(_ context.Context, id uuid.UUID, amount, counted decimal.Decimal, counter domain.WalletCounter) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[id]
	if !ok || w.Balance.Available.LessThan(amount) {
		return false, nil
	}
	w.Balance.Available = w.Balance.Available.Sub(amount)
	addCounter(&w, counter, counted)
	w.UpdatedAt = time.Now().UTC()
	r.s.wallets[id] = w
	return true, nil
}

func (r *WalletRepo) Credit(_ context.Context, id uuid.UUID, amount decimal.Decimal, counter domain.WalletCounter) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[id]
	if !ok {
		return nil
	}
	w.Balance.Available = w.Balance.Available.Add(amount)
	addCounter(&w, counter, amount)
	w.UpdatedAt = time.Now().UTC()
	r.s.wallets[id] = w
	return nil
}

func (r *WalletRepo) Reverse(_ context.Context, id uuid.UUID, amount, counted decimal.Decimal, counter domain.WalletCounter) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[id]
	if !ok {
		return nil
	}
	w.Balance.Available = w.Balance.Available.Add(amount)
	addCounter(&w, counter, counted.Neg())
	w.UpdatedAt = time.Now().UTC()
	r.s.wallets[id] = w
	return nil
}

func addCounter(w *domain.Wallet, counter domain.WalletCounter, amount decimal.Decimal) {
	switch counter {
	case domain.CounterInflow:
		w.Inflow = w.Inflow.Add(amount)
	case domain.CounterOutflow:
		w.Outflow = w.Outflow.Add(amount)
	case domain.CounterTransfer:
		w.Transfer = w.Transfer.Add(amount)
	case domain.CounterWithdrawal:
		w.Withdrawal = w.Withdrawal.Add(amount)
	}
}

// ---- Transactions ----

type TransactionRepo struct{ s *Store }

func (r *TransactionRepo) Create(_ context.Context, t *domain.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.transactions {
		if existing.Reference == t.Reference {
			return ports.ErrConflict
		}
	}
	stamp(&t.CreatedAt, &t.UpdatedAt)
	r.s.transactions[t.ID] = *t
	return nil
}

func (r *TransactionRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, nil
	}
	return &t, nil
}

func (r *TransactionRepo) GetByReference(_ context.Context, reference string) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.Reference == reference {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *TransactionRepo) GetByProviderRef(_ context.Context, provider, providerRef string) (*domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.Provider == provider && t.ProviderRef == providerRef {
			return &t, nil
		}
	}
	return nil, nil
}

func (r *TransactionRepo) Transition(_ context.Context, id uuid.UUID, from []domain.TransactionStatus, to domain.TransactionStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok || !containsStatus(from, t.Status) {
		return false, nil
	}
	t.Status = to
	t.UpdatedAt = time.Now().UTC()
	r.s.transactions[id] = t
	return true, nil
}

func (r *TransactionRepo) SetProviderRef(_ context.Context, id uuid.UUID, providerRef string) error {
	return r.update(id, func(t *domain.Transaction) { t.ProviderRef = providerRef })
}

func (r *TransactionRepo) UpdateAuthStep(_ context.Context, id uuid.UUID, step domain.AuthStep) error {
	return r.update(id, func(t *domain.Transaction) { t.AuthStep = step })
}

func (r *TransactionRepo) MarkRevenueReversed(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(t *domain.Transaction) { t.Revenue.Reversed = true })
}

func (r *TransactionRepo) ClaimWebhookLease(_ context.Context, id uuid.UUID, now, until time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok || t.Webhook.IsSent {
		return false, nil
	}
	if t.Webhook.LeaseUntil != nil && t.Webhook.LeaseUntil.After(now) {
		return false, nil
	}
	t.Webhook.LeaseUntil = &until
	r.s.transactions[id] = t
	return true, nil
}

func (r *TransactionRepo) MarkWebhookSent(_ context.Context, id uuid.UUID, event string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok || t.Webhook.IsSent {
		return false, nil
	}
	t.Webhook.IsSent = true
	t.Webhook.Event = event
	t.Webhook.LeaseUntil = nil
	r.s.transactions[id] = t
	return true, nil
}

func (r *TransactionRepo) ReleaseWebhookLease(_ context.Context, id uuid.UUID) error {
	return r.update(id, func(t *domain.Transaction) { t.Webhook.LeaseUntil = nil })
}

func (r *TransactionRepo) ListPendingByProvider(_ context.Context, provider string, after ports.PageCursor, limit int) ([]domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Transaction
	for _, t := range r.s.transactions {
		if t.Provider != provider || t.ProviderRef == "" {
			continue
		}
		if t.Status != domain.StatusPending && t.Status != domain.StatusProcessing {
			continue
		}
		if !after.CreatedAt.IsZero() && !afterCursor(t, after) {
			continue
		}
		out = append(out, t)
	}
	return limitOldest(out, limit), nil
}

func afterCursor(t domain.Transaction, c ports.PageCursor) bool {
	if !t.CreatedAt.Equal(c.CreatedAt) {
		return t.CreatedAt.After(c.CreatedAt)
	}
	return bytes.Compare(t.ID[:], c.ID[:]) > 0
}

func (r *TransactionRepo) ListUnsettled(_ context.Context, limit int) ([]domain.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Transaction
	for _, t := range r.s.transactions {
		if t.PaymentLinkID == nil || t.Settle.Status != domain.SettlePending {
			continue
		}
		if t.Status == domain.StatusSuccessful || t.Status == domain.StatusCompleted {
			out = append(out, t)
		}
	}
	return limitOldest(out, limit), nil
}

func (r *TransactionRepo) update(id uuid.UUID, fn func(t *domain.Transaction)) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return nil
	}
	fn(&t)
	t.UpdatedAt = time.Now().UTC()
	r.s.transactions[id] = t
	return nil
}

func containsStatus(set []domain.TransactionStatus, s domain.TransactionStatus) bool {
	for _, v := range set {
		if v == s {
			return true
		}
	}
	return false
}

func limitOldest(txs []domain.Transaction, limit int) []domain.Transaction {
	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.Before(txs[j].CreatedAt)
		}
		return bytes.Compare(txs[i].ID[:], txs[j].ID[:]) < 0
	})
	if limit > 0 && len(txs) > limit {
		txs = txs[:limit]
	}
	return txs
}

// ---- Payment links ----

type PaymentLinkRepo struct{ s *Store }

func (r *PaymentLinkRepo) Create(_ context.Context, l *domain.PaymentLink) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.links {
		if existing.Slug == l.Slug {
			return ports.ErrConflict
		}
	}
	stamp(&l.CreatedAt, &l.UpdatedAt)
	r.s.links[l.ID] = *l
	return nil
}

func (r *PaymentLinkRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.PaymentLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (r *PaymentLinkRepo) GetBySlug(_ context.Context, slug string) (*domain.PaymentLink, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, l := range r.s.links {
		if l.Slug == slug {
			return &l, nil
		}
	}
	return nil, nil
}

func (r *PaymentLinkRepo) Initialize(_ context.Context, id uuid.UUID, expectedRef, newRef string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if !ok || l.InitializeRef != expectedRef {
		return false, nil
	}
	l.Initialized = true
	l.InitializeRef = newRef
	r.s.links[id] = l
	return true, nil
}

func (r *PaymentLinkRepo) Release(_ context.Context, id uuid.UUID, ref string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.links[id]
	if !ok || l.InitializeRef != ref {
		return nil
	}
	l.Initialized = false
	l.InitializeRef = ""
	r.s.links[id] = l
	return nil
}

func (r *PaymentLinkRepo) Deactivate(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l, ok := r.s.links[id]; ok {
		l.Active = false
		r.s.links[id] = l
	}
	return nil
}

func (r *PaymentLinkRepo) RecordPayment(_ context.Context, id uuid.UUID, amount decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if l, ok := r.s.links[id]; ok {
		l.Analytics.Payments++
		l.Analytics.TotalAmount = l.Analytics.TotalAmount.Add(amount)
		r.s.links[id] = l
	}
	return nil
}

// ---- Products ----

type ProductRepo struct{ s *Store }

func (r *ProductRepo) Create(_ context.Context, p *domain.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.products[p.ID] = *p
	return nil
}

func (r *ProductRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

// ---- Invoices ----

type InvoiceRepo struct{ s *Store }

func (r *InvoiceRepo) Create(_ context.Context, i *domain.Invoice) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.invoices[i.ID] = *i
	return nil
}

func (r *InvoiceRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Invoice, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.invoices[id]
	if !ok {
		return nil, nil
	}
	return &i, nil
}

func (r *InvoiceRepo) RecordPayment(_ context.Context, id uuid.UUID, amount decimal.Decimal) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if i, ok := r.s.invoices[id]; ok {
		i.AmountPaid = i.AmountPaid.Add(amount)
		r.s.invoices[id] = i
	}
	return nil
}

// ---- Refunds ----

type RefundRepo struct{ s *Store }

func (r *RefundRepo) Create(_ context.Context, rf *domain.Refund) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.refunds {
		if existing.TransactionID == rf.TransactionID && !existing.Status.IsTerminal() {
			return ports.ErrConflict
		}
	}
	stamp(&rf.CreatedAt, &rf.UpdatedAt)
	r.s.refunds[rf.ID] = *rf
	return nil
}

func (r *RefundRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rf, ok := r.s.refunds[id]
	if !ok {
		return nil, nil
	}
	return &rf, nil
}

func (r *RefundRepo) GetLatestByTransaction(_ context.Context, transactionID uuid.UUID) (*domain.Refund, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *domain.Refund
	for _, rf := range r.s.refunds {
		if rf.TransactionID != transactionID {
			continue
		}
		if latest == nil || rf.CreatedAt.After(latest.CreatedAt) {
			rf := rf
			latest = &rf
		}
	}
	return latest, nil
}

func (r *RefundRepo) UpdateStatus(_ context.Context, id uuid.UUID, from []domain.RefundStatus, to domain.RefundStatus) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	rf, ok := r.s.refunds[id]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, s := range from {
		if rf.Status == s {
			allowed = true
			break
		}
	}
	if !allowed {
		return false, nil
	}
	rf.Status = to
	rf.UpdatedAt = time.Now().UTC()
	r.s.refunds[id] = rf
	return true, nil
}

func (r *RefundRepo) SetPayoutTransaction(_ context.Context, id, transactionID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if rf, ok := r.s.refunds[id]; ok {
		rf.PayoutTxID = &transactionID
		r.s.refunds[id] = rf
	}
	return nil
}

// ---- Settlements ----

type SettlementRepo struct{ s *Store }

// Commit checks every transaction before writing anything, so a conflict leaves the
// store untouched.
func (r *SettlementRepo) Commit(_ context.Context, h *domain.SettlementHistory, settled []domain.SettledTransaction, destination string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.settlements[h.ID]; ok {
		return ports.ErrConflict
	}
	for _, st := range settled {
		t, ok := r.s.transactions[st.TransactionID]
		if !ok || t.Settle.Status != domain.SettlePending {
			return ports.ErrConflict
		}
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now().UTC()
	}

	at := h.CreatedAt
	for _, st := range settled {
		t := r.s.transactions[st.TransactionID]
		t.Settle = domain.Settle{
			Destination: destination,
			Status:      domain.SettleSettled,
			Amount:      st.Amount,
			SettledAt:   &at,
		}
		t.UpdatedAt = at
		r.s.transactions[st.TransactionID] = t
	}
	r.s.settlements[h.ID] = *h
	for _, g := range h.Groups {
		w, ok := r.s.wallets[g.WalletID]
		if !ok || !g.Summary.AmountToSettle.IsPositive() {
			continue
		}
		w.Balance.Settlement = w.Balance.Settlement.Add(g.Summary.AmountToSettle)
		w.UpdatedAt = at
		r.s.wallets[g.WalletID] = w
	}
	return nil
}

func (r *SettlementRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.SettlementHistory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	h, ok := r.s.settlements[id]
	if !ok {
		return nil, nil
	}
	return &h, nil
}

// ---- Webhook deliveries ----

type WebhookDeliveryRepo struct{ s *Store }

func (r *WebhookDeliveryRepo) Create(_ context.Context, d *domain.WebhookDelivery) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}
	r.s.deliveries = append(r.s.deliveries, *d)
	return nil
}

func (r *WebhookDeliveryRepo) ListByTransaction(_ context.Context, transactionID uuid.UUID) ([]domain.WebhookDelivery, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.WebhookDelivery
	for _, d := range r.s.deliveries {
		if d.TransactionID == transactionID {
			out = append(out, d)
		}
	}
	return out, nil
}

func stamp(created, updated *time.Time) {
	now := time.Now().UTC()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}
