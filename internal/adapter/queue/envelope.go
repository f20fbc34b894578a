// Package queue holds what the job runners share: the wire envelope and the retry
// schedule.
package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"fee-engine/internal/core/ports"
	"fee-engine/internal/platform/metrics"

	"github.com/google/uuid"
)

// Schedule is the wait before attempt n+1 after attempt n failed. The last entry
// repeats for budgets longer than the table.
var Schedule = []time.Duration{
	15 * time.Second,
	60 * time.Second,
	2 * time.Minute,
	5 * time.Minute,
	10 * time.Minute,
}

// Backoff returns the delay after the given failed 1-based attempt.
func Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	if attempt > len(Schedule) {
		return Schedule[len(Schedule)-1]
	}
	return Schedule[attempt-1]
}

// Envelope is a job in flight.
type Envelope struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	Payload     []byte    `json:"payload"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	NotBefore   time.Time `json:"not_before"`
}

// NewEnvelope wraps job for its first attempt.
func NewEnvelope(job ports.Job, now time.Time) Envelope {
	id := job.ID
	if id == "" {
		id = uuid.NewString()
	}
	maxAttempts := job.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	env := Envelope{
		ID:          id,
		Kind:        job.Kind,
		Payload:     job.Payload,
		Attempt:     1,
		MaxAttempts: maxAttempts,
	}
	if job.Delay > 0 {
		env.NotBefore = now.Add(job.Delay)
	}
	return env
}

// Delivery is the view handed to a job handler.
func (e Envelope) Delivery() ports.JobDelivery {
	return ports.JobDelivery{
		Job: ports.Job{
			ID:          e.ID,
			Kind:        e.Kind,
			Payload:     e.Payload,
			MaxAttempts: e.MaxAttempts,
		},
		Attempt: e.Attempt,
	}
}

// Next returns the envelope for the following attempt, or false once the budget is spent.
func (e Envelope) Next(now time.Time, backoff func(int) time.Duration) (Envelope, bool) {
	if e.Attempt >= e.MaxAttempts {
		return e, false
	}
	next := e
	next.NotBefore = now.Add(backoff(e.Attempt))
	next.Attempt++
	return next, true
}

// Wait is how long until the envelope may run.
func (e Envelope) Wait(now time.Time) time.Duration {
	if e.NotBefore.IsZero() {
		return 0
	}
	return e.NotBefore.Sub(now)
}

func (e Envelope) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

func Unmarshal(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return e, fmt.Errorf("decode job envelope: %w", err)
	}
	if e.Kind == "" {
		return e, fmt.Errorf("decode job envelope: kind is empty")
	}
	return e, nil
}

// Job outcomes recorded in metrics.
const (
	OutcomeOK      = "ok"
	OutcomeRetry   = "retry"
	OutcomeDropped = "dropped"
)

// Observe counts one handled delivery.
func Observe(kind, outcome string) {
	metrics.JobsProcessed.WithLabelValues(kind, outcome).Inc()
}
