package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the gateway.
type Metrics struct {
	HTTPRequests *prometheus.CounterVec   // labels: route, status
	HTTPDuration *prometheus.HistogramVec // labels: route

	// Upstream OpenVisus origin metrics.
	UpstreamDuration *prometheus.HistogramVec // labels: action={readdataset,boxquery}
	UpstreamErrors   *prometheus.CounterVec   // labels: action

	// Size of slice payloads handed to clients, before JSON encoding.
	PayloadBytes prometheus.Histogram

	// Dataset handle cache.
	DatasetCache *prometheus.CounterVec // labels: result={hit,miss}
	DatasetsOpen prometheus.Gauge

	CoordinatesLoaded prometheus.Gauge

	UsageEvents *prometheus.CounterVec // labels: outcome={published,failed}
}

// NewMetrics creates and registers all gateway metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.HTTPRequests,
		m.HTTPDuration,
		m.UpstreamDuration,
		m.UpstreamErrors,
		m.PayloadBytes,
		m.DatasetCache,
		m.DatasetsOpen,
		m.CoordinatesLoaded,
		m.UsageEvents,
	)
	return m
}

// NewMetricsForTesting creates Metrics without touching the default registry,
// avoiding "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llc4320_gateway",
			Name:      "http_requests_total",
			Help:      "API requests by route and status code.",
		}, []string{"route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llc4320_gateway",
			Name:      "http_request_duration_seconds",
			Help:      "API request duration by route.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"route"}),
		UpstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "llc4320_gateway",
			Name:      "upstream_request_duration_seconds",
			Help:      "OpenVisus origin request duration by action.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"action"}),
		UpstreamErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llc4320_gateway",
			Name:      "upstream_errors_total",
			Help:      "Failed OpenVisus origin requests by action.",
		}, []string{"action"}),
		PayloadBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "llc4320_gateway",
			Name:      "payload_bytes",
			Help:      "Raw float32 bytes per served slice, before JSON encoding.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 10),
		}),
		DatasetCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llc4320_gateway",
			Name:      "dataset_cache_total",
			Help:      "Dataset handle cache lookups by result.",
		}, []string{"result"}),
		DatasetsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "llc4320_gateway",
			Name:      "datasets_open",
			Help:      "Number of cached dataset handles.",
		}),
		CoordinatesLoaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "llc4320_gateway",
			Name:      "coordinates_loaded",
			Help:      "1 once the lat/lon coordinate grids are loaded.",
		}),
		UsageEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "llc4320_gateway",
			Name:      "usage_events_total",
			Help:      "Usage events published to Kafka by outcome.",
		}, []string{"outcome"}),
	}
}
