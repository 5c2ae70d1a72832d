package providers

import (
	"time"

	"forwarder/internal/models"
	"forwarder/internal/structures"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	ObservePersistenceDuration(duration time.Duration)
	IncEvents(kind, outcome string)
	IncDispatch(op, outcome string)
	ObserveFanOutDuration(duration time.Duration)
}

type MetricsProvider struct {
	requestsTotal       *prometheus.CounterVec
	requestDuration     *prometheus.HistogramVec
	cacheHits           prometheus.Counter
	cacheMisses         prometheus.Counter
	persistenceDuration prometheus.Histogram
	eventsTotal         *prometheus.CounterVec
	dispatchTotal       *prometheus.CounterVec
	fanOutDuration      prometheus.Histogram
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) ObservePersistenceDuration(duration time.Duration) {
	m.persistenceDuration.Observe(duration.Seconds())
}

func (m *MetricsProvider) IncEvents(kind, outcome string) {
	m.eventsTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *MetricsProvider) IncDispatch(op, outcome string) {
	m.dispatchTotal.WithLabelValues(op, outcome).Inc()
}

func (m *MetricsProvider) ObserveFanOutDuration(duration time.Duration) {
	m.fanOutDuration.Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config, fingerprints *models.FingerprintStore, relays *models.RelayMap) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	m := &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "forwarder_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forwarder_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forwarder_cache_hits_total",
			Help: "Total number of feed resolution cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "forwarder_cache_misses_total",
			Help: "Total number of feed resolution cache misses",
		}),

		persistenceDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "forwarder_persistence_duration_seconds",
			Help:    "Duration of persistence operations in seconds",
			Buckets: prometheus.DefBuckets,
		}),

		eventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "forwarder_events_total",
			Help: "Lifecycle events processed by kind and outcome",
		}, []string{"kind", "outcome"}),

		dispatchTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "forwarder_dispatch_total",
			Help: "Outbound transport calls by operation and outcome",
		}, []string{"op", "outcome"}),

		fanOutDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "forwarder_fanout_duration_seconds",
			Help:    "Time spent relaying one message to every destination",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
		}),
	}

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "forwarder_fingerprints",
		Help: "Fingerprints currently held for deduplication",
	}, func() float64 {
		return float64(fingerprints.Len())
	})

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "forwarder_relay_entries",
		Help: "Source messages with live relayed copies",
	}, func() float64 {
		return float64(relays.Len())
	})

	return m
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) ObservePersistenceDuration(_ time.Duration)       {}
func (n *noopMetrics) IncEvents(_, _ string)                            {}
func (n *noopMetrics) IncDispatch(_, _ string)                          {}
func (n *noopMetrics) ObserveFanOutDuration(_ time.Duration)            {}
