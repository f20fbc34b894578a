// Package natsjobs runs jobs on a NATS JetStream work-queue stream. Every job kind
// gets its own subject and durable pull consumer.
package natsjobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fee-engine/config"
	"fee-engine/internal/adapter/queue"
	"fee-engine/internal/core/ports"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/rs/zerolog"
)

// Publisher is the publishing half of jetstream.JetStream.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// Runner implements ports.JobRunner.
type Runner struct {
	js      jetstream.JetStream
	pub     Publisher
	stream  string
	prefix  string
	ackWait time.Duration
	backoff func(int) time.Duration
	now     func() time.Time
	log     zerolog.Logger
}

// Connect dials NATS, ensures the job stream exists and returns a Runner. The returned
// func drains the connection.
func Connect(ctx context.Context, cfg config.NATSConfig, log zerolog.Logger) (*Runner, func(), error) {
	log = log.With().Str("component", "natsjobs").Logger()
	nc, err := nats.Connect(cfg.URL,
		nats.Name("fee-engine"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn().Err(err).Msg("NATS disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info().Str("url", nc.ConnectedUrl()).Msg("NATS reconnected")
		}),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("create JetStream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      cfg.Stream,
		Subjects:  []string{cfg.SubjectPrefix + ".>"},
		Retention: jetstream.WorkQueuePolicy,
		Storage:   jetstream.FileStorage,
	})
	if err != nil {
		nc.Close()
		return nil, nil, fmt.Errorf("ensure stream %s: %w", cfg.Stream, err)
	}

	log.Info().Str("url", cfg.URL).Str("stream", cfg.Stream).Msg("NATS JetStream job runner ready")

	r := New(js, cfg.Stream, cfg.SubjectPrefix, cfg.AckWait, log)
	return r, func() { _ = nc.Drain() }, nil
}

// New creates a Runner over an existing JetStream context.
func New(js jetstream.JetStream, stream, prefix string, ackWait time.Duration, log zerolog.Logger) *Runner {
	if ackWait <= 0 {
		ackWait = 30 * time.Second
	}
	r := &Runner{
		js:      js,
		stream:  stream,
		prefix:  prefix,
		ackWait: ackWait,
		backoff: queue.Backoff,
		now:     time.Now,
		log:     log,
	}
	if js != nil {
		r.pub = js
	}
	return r
}

func (r *Runner) subject(kind string) string {
	return r.prefix + "." + kind
}

// durable names may not contain dots.
func durable(kind string) string {
	return "fee-" + strings.ReplaceAll(kind, ".", "-")
}

func (r *Runner) Enqueue(ctx context.Context, jobs ...ports.Job) error {
	now := r.now()
	for _, job := range jobs {
		if err := r.publish(ctx, queue.NewEnvelope(job, now)); err != nil {
			return err
		}
	}
	return nil
}

// publish dedups on job id and attempt, so a retried publish of the same attempt is a no-op.
func (r *Runner) publish(ctx context.Context, env queue.Envelope) error {
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	msgID := fmt.Sprintf("%s-%d", env.ID, env.Attempt)
	if _, err := r.pub.Publish(ctx, r.subject(env.Kind), data, jetstream.WithMsgID(msgID)); err != nil {
		return fmt.Errorf("publish job %s: %w", env.Kind, err)
	}
	return nil
}

func (r *Runner) Consume(ctx context.Context, kind string, handler ports.JobHandler) error {
	return r.consume(ctx, kind, handler, false)
}

func (r *Runner) ConsumeWithRetry(ctx context.Context, kind string, handler ports.JobHandler) error {
	return r.consume(ctx, kind, handler, true)
}

func (r *Runner) consume(ctx context.Context, kind string, handler ports.JobHandler, retry bool) error {
	if r.js == nil {
		return errors.New("natsjobs: runner has no JetStream context")
	}
	cons, err := r.js.CreateOrUpdateConsumer(ctx, r.stream, jetstream.ConsumerConfig{
		Durable:       durable(kind),
		FilterSubject: r.subject(kind),
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       r.ackWait,
	})
	if err != nil {
		return fmt.Errorf("create consumer for %s: %w", kind, err)
	}

	cc, err := cons.Consume(func(msg jetstream.Msg) {
		r.handle(ctx, msg, handler, retry)
	})
	if err != nil {
		return fmt.Errorf("start consumer for %s: %w", kind, err)
	}
	r.log.Info().Str("kind", kind).Bool("retry", retry).Msg("job consumer started")

	<-ctx.Done()
	cc.Stop()
	r.log.Info().Str("kind", kind).Msg("job consumer stopped")
	return nil
}

// handle settles one message. Early messages are put back until their NotBefore, and
// a failed attempt is republished as the next attempt before the original is acked.
func (r *Runner) handle(ctx context.Context, msg jetstream.Msg, handler ports.JobHandler, retry bool) {
	env, err := queue.Unmarshal(msg.Data())
	if err != nil {
		r.log.Error().Err(err).Str("subject", msg.Subject()).Msg("discarding malformed job")
		_ = msg.Term()
		return
	}
	if wait := env.Wait(r.now()); wait > 0 {
		_ = msg.NakWithDelay(wait)
		return
	}

	herr := handler(ctx, env.Delivery())
	if herr == nil {
		_ = msg.Ack()
		queue.Observe(env.Kind, queue.OutcomeOK)
		return
	}

	log := r.log.With().
		Str("job_id", env.ID).
		Str("kind", env.Kind).
		Int("attempt", env.Attempt).
		Err(herr).
		Logger()

	if retry {
		if next, ok := env.Next(r.now(), r.backoff); ok {
			if perr := r.publish(ctx, next); perr != nil {
				log.Error().AnErr("publish_error", perr).Msg("could not schedule retry, redelivering")
				_ = msg.NakWithDelay(r.backoff(env.Attempt))
				return
			}
			_ = msg.Ack()
			queue.Observe(env.Kind, queue.OutcomeRetry)
			log.Warn().Time("next_at", next.NotBefore).Msg("job failed, retrying")
			return
		}
	}

	_ = msg.Term()
	queue.Observe(env.Kind, queue.OutcomeDropped)
	log.Error().Msg("job failed, dropped")
}
