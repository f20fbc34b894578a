package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// IdempotencyRecord is the cache entry claimed by the first request carrying a key.
type IdempotencyRecord struct {
	Key         string          `json:"key"`
	User        RequestUser     `json:"user"`
	Payload     json.RawMessage `json:"payload"`
	Transaction *uuid.UUID      `json:"transaction"`
}

// RequestUser identifies the caller a request is deduplicated for.
type RequestUser struct {
	BusinessID uuid.UUID `json:"business_id"`
	Email      string    `json:"email"`
}

// DuplicateReason says why a request was rejected as a duplicate.
type DuplicateReason string

const (
	ReasonNone                DuplicateReason = ""
	ReasonInFlight            DuplicateReason = "in_flight"
	ReasonTransactionAttached DuplicateReason = "transaction_attached"
	ReasonTimeBucket          DuplicateReason = "time_bucket"
)

// IdempotencyCheck is the outcome of a duplicate check.
type IdempotencyCheck struct {
	Duplicate bool            `json:"duplicate"`
	Reason    DuplicateReason `json:"reason,omitempty"`
}

// BuildIdempotencyKey qualifies a client key with the deployment environment.
func BuildIdempotencyKey(env, key string) string {
	return env + ":idempotency:" + key
}

// BuildSignatureKey qualifies a time-bucket signature with the deployment environment.
func BuildSignatureKey(env, signature string) string {
	return env + ":idempotency:sig:" + signature
}
