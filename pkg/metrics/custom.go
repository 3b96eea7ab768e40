package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "traderhub"

var (
	RateLimitBlockTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_block_total",
			Help:      "Total number of rate limit blocks.",
		},
		[]string{"scope", "key"},
	)

	CBRejectTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "circuitbreaker_reject_total",
			Help:      "Total number of circuit breaker rejections.",
		},
		[]string{"name", "reason"},
	)

	CBState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuitbreaker_state",
			Help:      "Circuit breaker state (0/1).",
		},
		[]string{"name", "state"}, // state: closed/open/half-open
	)

	ProviderAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_attempts_total",
			Help:      "Provider fetch attempts by outcome.",
		},
		[]string{"class", "provider", "outcome"}, // ok/timeout/malformed/empty/unavailable/failed
	)

	ProviderLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_fetch_seconds",
			Help:      "Provider fetch latency.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms ~ 20s
		},
		[]string{"class", "provider"},
	)

	ChainExhaustedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_chain_exhausted_total",
			Help:      "Refresh cycles where every provider failed.",
		},
		[]string{"class"},
	)

	SchedulerSkippedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scheduler_skipped_ticks_total",
			Help:      "Ticks skipped because the previous run was still in flight.",
		},
		[]string{"class"},
	)

	RefreshDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "refresh_duration_seconds",
			Help:      "Duration of a refresh cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12),
		},
		[]string{"class", "result"},
	)

	SyntheticSeriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "synthetic_series_total",
			Help:      "Candle series generated because no real provider answered.",
		},
		[]string{"asset_type"},
	)

	InsightFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "insight_fallback_total",
			Help:      "Insights served by the deterministic mock.",
		},
		[]string{"reason"},
	)

	HubSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_subscribers",
			Help:      "Current broadcast hub subscribers.",
		},
	)

	HubMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_messages_total",
			Help:      "Messages published by the hub, by type.",
		},
		[]string{"type"}, // snapshot/update/chat
	)

	HubEvictedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_evicted_total",
			Help:      "Subscribers evicted because their buffer was full.",
		},
	)
)

func MustRegister(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		RateLimitBlockTotal, CBRejectTotal, CBState,
		ProviderAttemptsTotal, ProviderLatency, ChainExhaustedTotal,
		SchedulerSkippedTotal, RefreshDuration,
		SyntheticSeriesTotal, InsightFallbackTotal,
		HubSubscribers, HubMessagesTotal, HubEvictedTotal,
	)
}
