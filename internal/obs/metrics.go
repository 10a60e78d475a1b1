package obs

import "github.com/prometheus/client_golang/prometheus"

// Metrics bundles every Prometheus collector the core registers, grounded on
// the teacher's internal/metrics/collector.go and internal/gates/metrics.go
// pattern of one struct of named collectors wired at startup.
type Metrics struct {
	CacheHits        *prometheus.CounterVec
	CacheMisses      *prometheus.CounterVec
	BuildsInFlight   prometheus.Gauge
	BuildFailures    *prometheus.CounterVec
	RateLimitReject  *prometheus.CounterVec
	StreamFrames     *prometheus.CounterVec
	StreamKeepalives *prometheus.CounterVec
	BreakerState     *prometheus.GaugeVec
}

// NewMetrics constructs and registers every collector against reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotecache",
			Name:      "cache_hits_total",
			Help:      "Payload cache hits by timeframe.",
		}, []string{"timeframe"}),
		CacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotecache",
			Name:      "cache_misses_total",
			Help:      "Payload cache misses by timeframe.",
		}, []string{"timeframe"}),
		BuildsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "quotecache",
			Name:      "builds_in_flight",
			Help:      "Number of payload builds currently executing.",
		}),
		BuildFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotecache",
			Name:      "build_failures_total",
			Help:      "Payload build failures by timeframe.",
		}, []string{"timeframe"}),
		RateLimitReject: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotecache",
			Name:      "rate_limit_rejections_total",
			Help:      "Requests rejected by the rate limiter by route class.",
		}, []string{"route_class"}),
		StreamFrames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotecache",
			Name:      "stream_frames_total",
			Help:      "Data frames emitted over streaming subscriptions.",
		}, []string{"kind"}),
		StreamKeepalives: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quotecache",
			Name:      "stream_keepalives_total",
			Help:      "Keep-alive frames emitted over streaming subscriptions.",
		}, []string{"kind"}),
		BreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "quotecache",
			Name:      "upstream_breaker_state",
			Help:      "Upstream circuit breaker state (0=closed, 1=half-open, 2=open).",
		}, []string{"provider"}),
	}

	reg.MustRegister(
		m.CacheHits, m.CacheMisses, m.BuildsInFlight, m.BuildFailures,
		m.RateLimitReject, m.StreamFrames, m.StreamKeepalives, m.BreakerState,
	)
	return m
}
