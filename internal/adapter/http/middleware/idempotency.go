package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports"
	"fee-engine/pkg/apperror"
	"fee-engine/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	// CtxTransactionID is set by handlers once a request has created a transaction.
	CtxTransactionID = "transaction_id"
)

// UserFunc identifies who a request is deduplicated for.
type UserFunc func(c *gin.Context, body []byte) domain.RequestUser

// AuthenticatedUser reads the caller set by JWTAuth.
func AuthenticatedUser(c *gin.Context, _ []byte) domain.RequestUser {
	id, _ := BusinessID(c)
	return domain.RequestUser{BusinessID: id, Email: c.GetString(CtxEmail)}
}

// Idempotency rejects duplicate submissions before the handler runs. The key comes
// from the Idempotency-Key header or an idempotencyKey body field; requests without
// one fall back to payload signatures bucketed by minute.
//
// After the handler, a transaction id found on the context is attached to the key.
// A keyed request rejected as a client error with nothing created releases its key.
func Idempotency(guard ports.IdempotencyGuard, user UserFunc, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" {
			key = bodyKey(body)
		}
		caller := user(c, body)

		var check domain.IdempotencyCheck
		if key != "" {
			check, err = guard.Check(ctx, key, body, caller)
		} else {
			check, err = guard.CheckSignature(ctx, body, caller)
		}
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if check.Duplicate {
			c.Header("X-Duplicate-Reason", string(check.Reason))
			response.Error(c, apperror.ErrRequestInFlight())
			c.Abort()
			return
		}

		c.Next()

		if key == "" {
			return
		}
		if v, ok := c.Get(CtxTransactionID); ok {
			if txID, ok := v.(uuid.UUID); ok {
				if err := guard.Store(ctx, key, body, caller, txID); err != nil {
					log.Error().Err(err).Str("key", key).Msg("failed to attach transaction to idempotency key")
				}
				return
			}
		}
		status := c.Writer.Status()
		if status >= http.StatusBadRequest && status < http.StatusInternalServerError {
			if err := guard.Release(ctx, key); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("failed to release idempotency key")
			}
		}
	}
}

func bodyKey(body []byte) string {
	var envelope struct {
		IdempotencyKey string `json:"idempotencyKey"`
	}
	if len(body) == 0 || json.Unmarshal(body, &envelope) != nil {
		return ""
	}
	return envelope.IdempotencyKey
}

// HeaderProviderSignature carries the HMAC-SHA512 of a provider callback body.
const HeaderProviderSignature = "X-Provider-Signature"

// ProviderSignature authenticates status pushes from a configured provider. Providers
// registered without a secret, such as the sandbox, are accepted unsigned.
func ProviderSignature(secrets map[string]string, sigSvc ports.SignatureService, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("provider")
		secret, ok := secrets[name]
		if !ok {
			response.Error(c, apperror.ErrNotFound("provider"))
			c.Abort()
			return
		}
		if secret == "" {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			response.Error(c, apperror.Validation("cannot read request body"))
			c.Abort()
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		if !sigSvc.Verify(secret, body, c.GetHeader(HeaderProviderSignature)) {
			log.Warn().Str("provider", name).Msg("provider callback signature mismatch")
			response.Error(c, apperror.ErrInvalidToken())
			c.Abort()
			return
		}
		c.Next()
	}
}
