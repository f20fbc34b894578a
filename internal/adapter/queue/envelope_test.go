package queue

import (
	"testing"
	"time"

	"fee-engine/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	assert.Equal(t, 15*time.Second, Backoff(0))
	assert.Equal(t, 15*time.Second, Backoff(1))
	assert.Equal(t, 60*time.Second, Backoff(2))
	assert.Equal(t, 2*time.Minute, Backoff(3))
	assert.Equal(t, 10*time.Minute, Backoff(5))
	assert.Equal(t, 10*time.Minute, Backoff(9))
}

func TestEnvelope_Lifecycle(t *testing.T) {
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	env := NewEnvelope(ports.Job{Kind: ports.JobWebhookDelivery, Payload: []byte(`{"id":"x"}`), Delay: 5 * time.Second, MaxAttempts: 2}, now)

	assert.NotEmpty(t, env.ID)
	assert.Equal(t, 1, env.Attempt)
	assert.Equal(t, 5*time.Second, env.Wait(now))

	next, ok := env.Next(now, Backoff)
	require.True(t, ok)
	assert.Equal(t, 2, next.Attempt)
	assert.Equal(t, 15*time.Second, next.Wait(now))
	assert.Equal(t, env.ID, next.ID)

	_, ok = next.Next(now, Backoff)
	assert.False(t, ok, "budget spent")

	d := next.Delivery()
	assert.Equal(t, 2, d.Attempt)
	assert.Equal(t, ports.JobWebhookDelivery, d.Kind)
}

func TestEnvelope_DefaultsToOneAttempt(t *testing.T) {
	env := NewEnvelope(ports.Job{ID: "fixed", Kind: ports.JobReconcile}, time.Now())
	assert.Equal(t, "fixed", env.ID)
	assert.Equal(t, 1, env.MaxAttempts)
	assert.Zero(t, env.Wait(time.Now()))
	_, ok := env.Next(time.Now(), Backoff)
	assert.False(t, ok)
}

func TestEnvelope_WireFormat(t *testing.T) {
	env := NewEnvelope(ports.Job{Kind: ports.JobSettlement, Payload: []byte("{}"), MaxAttempts: 3}, time.Now())
	raw, err := env.Marshal()
	require.NoError(t, err)

	got, err := Unmarshal(raw)
	require.NoError(t, err)
	assert.Equal(t, env.ID, got.ID)
	assert.Equal(t, []byte("{}"), got.Payload)

	_, err = Unmarshal([]byte(`{"id":"x"}`))
	assert.ErrorContains(t, err, "kind is empty")
	_, err = Unmarshal([]byte(`not json`))
	assert.Error(t, err)
}
