package ports

import (
	"context"
	"time"
)

// Job kinds dispatched through the JobRunner.
const (
	JobWebhookDelivery = "webhook.deliver"
	JobReconcile       = "reconcile.provider"
	JobSettlement      = "settlement.run"
)

// Job is a unit of out-of-request work.
type Job struct {
	ID          string
	Kind        string
	Payload     []byte
	Delay       time.Duration
	MaxAttempts int
}

// JobDelivery is a job handed to a handler, with its 1-based attempt number.
type JobDelivery struct {
	Job
	Attempt int
}

// JobHandler processes one job delivery. A returned error fails the attempt.
type JobHandler func(ctx context.Context, d JobDelivery) error

// JobRunner enqueues jobs and drives consumers until ctx is cancelled.
type JobRunner interface {
	Enqueue(ctx context.Context, jobs ...Job) error
	// Consume runs handler once per job; failures are logged and dropped.
	Consume(ctx context.Context, kind string, handler JobHandler) error
	// ConsumeWithRetry re-runs a failed job with backoff until MaxAttempts is spent.
	ConsumeWithRetry(ctx context.Context, kind string, handler JobHandler) error
}
