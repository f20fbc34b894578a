package memjobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"fee-engine/internal/core/ports"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.JobRunner = (*Runner)(nil)

func fastBackoff(int) time.Duration { return 5 * time.Millisecond }

type recorder struct {
	mu       sync.Mutex
	attempts []int
	done     chan struct{}
}

func (rec *recorder) add(attempt int) int {
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.attempts = append(rec.attempts, attempt)
	return len(rec.attempts)
}

func TestRunner_ConsumeRunsJobOnce(t *testing.T) {
	r := New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan ports.JobDelivery, 1)
	go func() {
		_ = r.Consume(ctx, ports.JobReconcile, func(_ context.Context, d ports.JobDelivery) error {
			got <- d
			return nil
		})
	}()

	require.NoError(t, r.Enqueue(ctx, ports.Job{Kind: ports.JobReconcile, Payload: []byte(`{"provider":"sandbox"}`)}))

	select {
	case d := <-got:
		assert.Equal(t, 1, d.Attempt)
		assert.JSONEq(t, `{"provider":"sandbox"}`, string(d.Payload))
	case <-time.After(time.Second):
		t.Fatal("job was not delivered")
	}
}

func TestRunner_RetryUntilBudgetSpent(t *testing.T) {
	r := New(zerolog.Nop(), WithBackoff(fastBackoff))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{done: make(chan struct{})}
	go func() {
		_ = r.ConsumeWithRetry(ctx, ports.JobWebhookDelivery, func(_ context.Context, d ports.JobDelivery) error {
			if rec.add(d.Attempt) == 3 {
				close(rec.done)
			}
			return errors.New("receiver returned 500")
		})
	}()

	require.NoError(t, r.Enqueue(ctx, ports.Job{Kind: ports.JobWebhookDelivery, MaxAttempts: 3}))

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("retries did not happen")
	}
	time.Sleep(50 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []int{1, 2, 3}, rec.attempts, "no fourth attempt")
}

func TestRunner_RetryStopsOnSuccess(t *testing.T) {
	r := New(zerolog.Nop(), WithBackoff(fastBackoff))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := &recorder{done: make(chan struct{})}
	go func() {
		_ = r.ConsumeWithRetry(ctx, ports.JobWebhookDelivery, func(_ context.Context, d ports.JobDelivery) error {
			if rec.add(d.Attempt) == 2 {
				close(rec.done)
				return nil
			}
			return errors.New("timeout")
		})
	}()

	require.NoError(t, r.Enqueue(ctx, ports.Job{Kind: ports.JobWebhookDelivery, MaxAttempts: 5}))

	select {
	case <-rec.done:
	case <-time.After(2 * time.Second):
		t.Fatal("job never succeeded")
	}
	time.Sleep(50 * time.Millisecond)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Len(t, rec.attempts, 2)
}

func TestRunner_DelayedJob(t *testing.T) {
	r := New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan time.Time, 1)
	go func() {
		_ = r.Consume(ctx, ports.JobSettlement, func(context.Context, ports.JobDelivery) error {
			got <- time.Now()
			return nil
		})
	}()

	start := time.Now()
	require.NoError(t, r.Enqueue(ctx, ports.Job{Kind: ports.JobSettlement, Delay: 30 * time.Millisecond}))

	select {
	case at := <-got:
		assert.GreaterOrEqual(t, at.Sub(start), 30*time.Millisecond)
	case <-time.After(time.Second):
		t.Fatal("delayed job was not delivered")
	}
}

func TestRunner_ConsumeReturnsOnCancel(t *testing.T) {
	r := New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- r.Consume(ctx, ports.JobReconcile, func(context.Context, ports.JobDelivery) error { return nil })
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
}
