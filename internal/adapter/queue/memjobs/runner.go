// Package memjobs is a process-local ports.JobRunner for development and tests.
// Jobs do not survive a restart.
package memjobs

import (
	"context"
	"sync"
	"time"

	"fee-engine/internal/adapter/queue"
	"fee-engine/internal/core/ports"

	"github.com/rs/zerolog"
)

const queueSize = 1024

// Runner dispatches jobs over per-kind channels.
type Runner struct {
	mu      sync.Mutex
	queues  map[string]chan queue.Envelope
	backoff func(int) time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// Option customizes a Runner.
type Option func(*Runner)

// WithBackoff replaces the retry schedule.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(r *Runner) { r.backoff = fn }
}

// New creates a Runner.
func New(log zerolog.Logger, opts ...Option) *Runner {
	r := &Runner{
		queues:  make(map[string]chan queue.Envelope),
		backoff: queue.Backoff,
		now:     time.Now,
		log:     log.With().Str("component", "memjobs").Logger(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Runner) queue(kind string) chan queue.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	ch, ok := r.queues[kind]
	if !ok {
		ch = make(chan queue.Envelope, queueSize)
		r.queues[kind] = ch
	}
	return ch
}

func (r *Runner) Enqueue(ctx context.Context, jobs ...ports.Job) error {
	now := r.now()
	for _, job := range jobs {
		if err := r.schedule(ctx, queue.NewEnvelope(job, now)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) schedule(ctx context.Context, env queue.Envelope) error {
	ch := r.queue(env.Kind)
	wait := env.Wait(r.now())
	if wait <= 0 {
		select {
		case ch <- env:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	time.AfterFunc(wait, func() { ch <- env })
	return nil
}

func (r *Runner) Consume(ctx context.Context, kind string, handler ports.JobHandler) error {
	return r.loop(ctx, kind, handler, false)
}

func (r *Runner) ConsumeWithRetry(ctx context.Context, kind string, handler ports.JobHandler) error {
	return r.loop(ctx, kind, handler, true)
}

func (r *Runner) loop(ctx context.Context, kind string, handler ports.JobHandler, retry bool) error {
	ch := r.queue(kind)
	for {
		select {
		case <-ctx.Done():
			return nil
		case env := <-ch:
			r.handle(ctx, env, handler, retry)
		}
	}
}

func (r *Runner) handle(ctx context.Context, env queue.Envelope, handler ports.JobHandler, retry bool) {
	err := handler(ctx, env.Delivery())
	if err == nil {
		queue.Observe(env.Kind, queue.OutcomeOK)
		return
	}

	log := r.log.With().
		Str("job_id", env.ID).
		Str("kind", env.Kind).
		Int("attempt", env.Attempt).
		Err(err).
		Logger()

	if retry {
		if next, ok := env.Next(r.now(), r.backoff); ok {
			if serr := r.schedule(ctx, next); serr == nil {
				queue.Observe(env.Kind, queue.OutcomeRetry)
				log.Warn().Dur("retry_in", next.Wait(r.now())).Msg("job failed, retrying")
				return
			}
		}
	}
	queue.Observe(env.Kind, queue.OutcomeDropped)
	log.Error().Msg("job failed, dropped")
}
