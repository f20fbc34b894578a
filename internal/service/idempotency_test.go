package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"fee-engine/internal/core/domain"
	"fee-engine/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func newTestGuard(t *testing.T) (*IdempotencyGuardImpl, *mocks.MockIdempotencyStore) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockIdempotencyStore(ctrl)
	g := NewIdempotencyGuard(store, NewHMACSignatureService(), "test", 0, zerolog.Nop())
	return g, store
}

var guardUser = domain.RequestUser{BusinessID: uuid.MustParse("6f1c1a38-5d8e-4e6a-9f61-0b3d2f0e7a11"), Email: "ops@acme.test"}

func TestIdempotencyGuard_Check(t *testing.T) {
	txID := uuid.New()
	payload := []byte(`{"amount":"1000"}`)

	tests := []struct {
		name   string
		setup  func(s *mocks.MockIdempotencyStore)
		want   domain.IdempotencyCheck
		errHas string
	}{
		{
			name: "first request claims the key",
			setup: func(s *mocks.MockIdempotencyStore) {
				s.EXPECT().Claim(gomock.Any(), "test:idempotency:k1", gomock.Any(), DefaultIdempotencyTTL).Return(true, nil)
			},
			want: domain.IdempotencyCheck{},
		},
		{
			name: "claimed key without transaction is in flight",
			setup: func(s *mocks.MockIdempotencyStore) {
				s.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)
				s.EXPECT().Get(gomock.Any(), "test:idempotency:k1").Return(&domain.IdempotencyRecord{Key: "k1"}, nil)
			},
			want: domain.IdempotencyCheck{Duplicate: true, Reason: domain.ReasonInFlight},
		},
		{
			name: "claimed key with transaction is attached",
			setup: func(s *mocks.MockIdempotencyStore) {
				s.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil)
				s.EXPECT().Get(gomock.Any(), gomock.Any()).Return(&domain.IdempotencyRecord{Key: "k1", Transaction: &txID}, nil)
			},
			want: domain.IdempotencyCheck{Duplicate: true, Reason: domain.ReasonTransactionAttached},
		},
		{
			name: "record expiring between claim and read is claimed again",
			setup: func(s *mocks.MockIdempotencyStore) {
				gomock.InOrder(
					s.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, nil),
					s.EXPECT().Get(gomock.Any(), gomock.Any()).Return(nil, nil),
					s.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil),
				)
			},
			want: domain.IdempotencyCheck{},
		},
		{
			name: "store failure",
			setup: func(s *mocks.MockIdempotencyStore) {
				s.EXPECT().Claim(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("connection refused"))
			},
			errHas: "SYS_002",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, store := newTestGuard(t)
			tt.setup(store)

			got, err := g.Check(context.Background(), "k1", payload, guardUser)
			if tt.errHas != "" {
				requireCode(t, err, tt.errHas)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIdempotencyGuard_CheckRequiresKey(t *testing.T) {
	g, _ := newTestGuard(t)
	_, err := g.Check(context.Background(), "", nil, guardUser)
	requireCode(t, err, "VAL_001")
}

func TestIdempotencyGuard_StoreAttachesTransaction(t *testing.T) {
	g, store := newTestGuard(t)
	txID := uuid.New()

	store.EXPECT().Attach(gomock.Any(), "test:idempotency:k1", gomock.Any()).
		DoAndReturn(func(_ context.Context, _ string, rec domain.IdempotencyRecord) error {
			require.NotNil(t, rec.Transaction)
			assert.Equal(t, txID, *rec.Transaction)
			assert.Equal(t, guardUser, rec.User)
			assert.JSONEq(t, `{"amount":"1000"}`, string(rec.Payload))
			return nil
		})

	require.NoError(t, g.Store(context.Background(), "k1", []byte(`{"amount":"1000"}`), guardUser, txID))
}

func TestIdempotencyGuard_Release(t *testing.T) {
	g, store := newTestGuard(t)
	store.EXPECT().Delete(gomock.Any(), "test:idempotency:k1").Return(nil)

	require.NoError(t, g.Release(context.Background(), "k1"))
	require.NoError(t, g.Release(context.Background(), ""))
}

func TestIdempotencyGuard_CheckSignatureUsesMinuteBuckets(t *testing.T) {
	g, store := newTestGuard(t)
	g.now = func() time.Time { return time.Date(2026, 1, 2, 10, 15, 30, 0, time.UTC) }
	payload := []byte(`{"amount":"1000"}`)

	current, err := g.signature(payload, guardUser, g.now())
	require.NoError(t, err)
	next, err := g.signature(payload, guardUser, g.now().Add(time.Minute))
	require.NoError(t, err)
	require.NotEqual(t, current, next)

	currentKey := domain.BuildSignatureKey("test", current)
	store.EXPECT().Exists(gomock.Any(), currentKey, domain.BuildSignatureKey("test", next)).Return(false, nil)
	store.EXPECT().Claim(gomock.Any(), currentKey, gomock.Any(), DefaultIdempotencyTTL).Return(true, nil)

	got, err := g.CheckSignature(context.Background(), payload, guardUser)
	require.NoError(t, err)
	assert.False(t, got.Duplicate)

	store.EXPECT().Exists(gomock.Any(), gomock.Any(), gomock.Any()).Return(true, nil)
	got, err = g.CheckSignature(context.Background(), payload, guardUser)
	require.NoError(t, err)
	assert.Equal(t, domain.IdempotencyCheck{Duplicate: true, Reason: domain.ReasonTimeBucket}, got)
}

func TestRawPayload(t *testing.T) {
	assert.Equal(t, "null", string(rawPayload(nil)))
	assert.Equal(t, `{"a":1}`, string(rawPayload([]byte(`{"a":1}`))))
	assert.Equal(t, `"not json"`, string(rawPayload([]byte("not json"))))
}
