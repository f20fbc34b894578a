// Package metrics holds the engine's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fee_engine"

var (
	TransactionsFinalized = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_finalized_total",
			Help:      "Total transactions moved to a terminal status.",
		},
		[]string{"status", "feature"},
	)

	WalletReversals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wallet_reversals_total",
			Help:      "Total outbound debits returned to the wallet.",
		},
		[]string{"feature"},
	)

	IdempotencyRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "idempotency_rejections_total",
			Help:      "Total requests rejected as duplicates.",
		},
		[]string{"reason"}, // in_flight, transaction_attached, time_bucket
	)

	WebhookDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_deliveries_total",
			Help:      "Total webhook delivery attempts.",
		},
		[]string{"status"},
	)

	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_calls_total",
			Help:      "Total calls made to payment providers.",
		},
		[]string{"provider", "op", "outcome"}, // outcome: ok, declined, error
	)

	ProviderCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_call_duration_seconds",
			Help:      "Duration of calls to payment providers.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "op"},
	)

	SettlementRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlement_runs_total",
			Help:      "Total settlement runs.",
		},
		[]string{"outcome"},
	)

	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_processed_total",
			Help:      "Total background jobs handled.",
		},
		[]string{"kind", "outcome"}, // outcome: ok, retry, dropped
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
