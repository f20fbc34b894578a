package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/internal/platform/metrics"
	"fee-engine/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultIdempotencyTTL bounds how long a claimed key blocks resubmission.
const DefaultIdempotencyTTL = 120 * time.Second

// IdempotencyGuardImpl implements ports.IdempotencyGuard over an IdempotencyStore.
type IdempotencyGuardImpl struct {
	store  ports.IdempotencyStore
	sigSvc ports.SignatureService
	env    string
	ttl    time.Duration
	now    func() time.Time
	log    zerolog.Logger
}

// NewIdempotencyGuard creates a new IdempotencyGuardImpl.
func NewIdempotencyGuard(
	store ports.IdempotencyStore,
	sigSvc ports.SignatureService,
	env string,
	ttl time.Duration,
	log zerolog.Logger,
) *IdempotencyGuardImpl {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	return &IdempotencyGuardImpl{
		store:  store,
		sigSvc: sigSvc,
		env:    env,
		ttl:    ttl,
		now:    time.Now,
		log:    log,
	}
}

// Check claims key for this request. A key already held is a duplicate whether or
// not a transaction has been attached to it yet.
func (g *IdempotencyGuardImpl) Check(ctx context.Context, key string, payload []byte, user domain.RequestUser) (domain.IdempotencyCheck, error) {
	if key == "" {
		return domain.IdempotencyCheck{}, apperror.Validation("idempotency key is required")
	}
	fullKey := domain.BuildIdempotencyKey(g.env, key)
	rec := domain.IdempotencyRecord{
		Key:     key,
		User:    user,
		Payload: rawPayload(payload),
	}

	// One retry covers a record that expires between the failed claim and the read.
	for i := 0; i < 2; i++ {
		claimed, err := g.store.Claim(ctx, fullKey, rec, g.ttl)
		if err != nil {
			return domain.IdempotencyCheck{}, apperror.ErrCacheError(fmt.Errorf("claim idempotency key: %w", err))
		}
		if claimed {
			return domain.IdempotencyCheck{}, nil
		}

		existing, err := g.store.Get(ctx, fullKey)
		if err != nil {
			return domain.IdempotencyCheck{}, apperror.ErrCacheError(fmt.Errorf("read idempotency key: %w", err))
		}
		if existing == nil {
			continue
		}

		reason := domain.ReasonInFlight
		if existing.Transaction != nil {
			reason = domain.ReasonTransactionAttached
		}
		metrics.IdempotencyRejections.WithLabelValues(string(reason)).Inc()
		g.log.Info().
			Str("key", key).
			Str("business_id", user.BusinessID.String()).
			Str("reason", string(reason)).
			Msg("duplicate request rejected")
		return domain.IdempotencyCheck{Duplicate: true, Reason: reason}, nil
	}
	return domain.IdempotencyCheck{}, apperror.ErrCacheError(fmt.Errorf("idempotency key %s flapped during claim", key))
}

// Store attaches the created transaction to a claimed key without extending its expiry.
func (g *IdempotencyGuardImpl) Store(ctx context.Context, key string, payload []byte, user domain.RequestUser, transactionID uuid.UUID) error {
	rec := domain.IdempotencyRecord{
		Key:         key,
		User:        user,
		Payload:     rawPayload(payload),
		Transaction: &transactionID,
	}
	if err := g.store.Attach(ctx, domain.BuildIdempotencyKey(g.env, key), rec); err != nil {
		return apperror.ErrCacheError(fmt.Errorf("attach transaction: %w", err))
	}
	return nil
}

// Release drops a claim for a request that failed before any side effect.
func (g *IdempotencyGuardImpl) Release(ctx context.Context, key string) error {
	if key == "" {
		return nil
	}
	if err := g.store.Delete(ctx, domain.BuildIdempotencyKey(g.env, key)); err != nil {
		return apperror.ErrCacheError(fmt.Errorf("release idempotency key: %w", err))
	}
	return nil
}

type signedRequest struct {
	Payload json.RawMessage    `json:"payload"`
	User    domain.RequestUser `json:"user"`
	Time    string             `json:"time"`
}

// CheckSignature deduplicates requests without a client key by hashing the payload
// and caller into the current minute. A hit on this minute or the next is a duplicate.
func (g *IdempotencyGuardImpl) CheckSignature(ctx context.Context, payload []byte, user domain.RequestUser) (domain.IdempotencyCheck, error) {
	now := g.now()
	current, err := g.signature(payload, user, now)
	if err != nil {
		return domain.IdempotencyCheck{}, err
	}
	next, err := g.signature(payload, user, now.Add(time.Minute))
	if err != nil {
		return domain.IdempotencyCheck{}, err
	}

	currentKey := domain.BuildSignatureKey(g.env, current)
	found, err := g.store.Exists(ctx, currentKey, domain.BuildSignatureKey(g.env, next))
	if err != nil {
		return domain.IdempotencyCheck{}, apperror.ErrCacheError(fmt.Errorf("check signature: %w", err))
	}
	if found {
		metrics.IdempotencyRejections.WithLabelValues(string(domain.ReasonTimeBucket)).Inc()
		return domain.IdempotencyCheck{Duplicate: true, Reason: domain.ReasonTimeBucket}, nil
	}

	rec := domain.IdempotencyRecord{Key: current, User: user, Payload: rawPayload(payload)}
	claimed, err := g.store.Claim(ctx, currentKey, rec, g.ttl)
	if err != nil {
		return domain.IdempotencyCheck{}, apperror.ErrCacheError(fmt.Errorf("claim signature: %w", err))
	}
	if !claimed {
		metrics.IdempotencyRejections.WithLabelValues(string(domain.ReasonTimeBucket)).Inc()
		return domain.IdempotencyCheck{Duplicate: true, Reason: domain.ReasonTimeBucket}, nil
	}
	return domain.IdempotencyCheck{}, nil
}

func (g *IdempotencyGuardImpl) signature(payload []byte, user domain.RequestUser, at time.Time) (string, error) {
	body, err := json.Marshal(signedRequest{
		Payload: rawPayload(payload),
		User:    user,
		Time:    at.Format("15:04"),
	})
	if err != nil {
		return "", apperror.InternalError(fmt.Errorf("marshal signature body: %w", err))
	}
	return g.sigSvc.Sign(user.Email, body), nil
}

// rawPayload keeps valid JSON as-is and quotes anything else.
func rawPayload(payload []byte) json.RawMessage {
	if len(payload) == 0 {
		return json.RawMessage("null")
	}
	if json.Valid(payload) {
		return json.RawMessage(payload)
	}
	quoted, _ := json.Marshal(string(payload))
	return quoted
}
