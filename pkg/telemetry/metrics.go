package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for gpustatsd. It implements the
// store's Metrics interface so insertion outcomes, drops and table sizes
// are observable without coupling the store to Prometheus.
type Metrics struct {
	config MetricsConfig

	// Store metrics
	insertsTotal       *prometheus.CounterVec
	insertsRejected    *prometheus.CounterVec
	dumpsTotal         *prometheus.CounterVec
	pullsTotal         prometheus.Counter
	pulledRecordsTotal prometheus.Counter
	globalRecords      prometheus.Gauge
	appRecords         prometheus.Gauge
	loadingTime        *prometheus.HistogramVec

	// Ingest API metrics
	httpRequests *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		// Return a no-op metrics instance
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.LoadingTimeBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		insertsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inserts_total",
				Help:      "Total number of accepted driver loading events",
			},
			[]string{"family", "loaded"},
		),
		insertsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "inserts_rejected_total",
				Help:      "Total number of dropped driver loading events",
			},
			[]string{"reason"},
		),
		dumpsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dumps_total",
				Help:      "Total number of dumped report sections",
			},
			[]string{"section"},
		),
		pullsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pulls_total",
				Help:      "Total number of global stats pulls",
			},
		),
		pulledRecordsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "pulled_records_total",
				Help:      "Total number of global records returned by pulls",
			},
		),
		globalRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "global_records",
				Help:      "Current number of records in the global table",
			},
		),
		appRecords: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "app_records",
				Help:      "Current number of records in the app table",
			},
		),
		loadingTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "driver_loading_time_milliseconds",
				Help:      "Reported driver loading times in milliseconds",
				Buckets:   buckets,
			},
			[]string{"family"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP API requests",
			},
			[]string{"path", "status"},
		),
	}

	registry.MustRegister(
		m.insertsTotal,
		m.insertsRejected,
		m.dumpsTotal,
		m.pullsTotal,
		m.pulledRecordsTotal,
		m.globalRecords,
		m.appRecords,
		m.loadingTime,
		m.httpRequests,
	)

	return m, nil
}

// RecordInsert records an accepted driver loading event.
func (m *Metrics) RecordInsert(family string, isDriverLoaded bool, loadingTime int64) {
	if m.insertsTotal == nil {
		return
	}
	loaded := "true"
	if !isDriverLoaded {
		loaded = "false"
	}
	m.insertsTotal.WithLabelValues(family, loaded).Inc()
	m.loadingTime.WithLabelValues(family).Observe(float64(loadingTime))
}

// RecordRejected records a dropped driver loading event.
func (m *Metrics) RecordRejected(reason string) {
	if m.insertsRejected == nil {
		return
	}
	m.insertsRejected.WithLabelValues(reason).Inc()
}

// RecordDump records a dumped report section.
func (m *Metrics) RecordDump(section string) {
	if m.dumpsTotal == nil {
		return
	}
	m.dumpsTotal.WithLabelValues(section).Inc()
}

// RecordPull records a pull of the global table.
func (m *Metrics) RecordPull(records int) {
	if m.pullsTotal == nil {
		return
	}
	m.pullsTotal.Inc()
	m.pulledRecordsTotal.Add(float64(records))
}

// SetTableSizes reports the current table sizes.
func (m *Metrics) SetTableSizes(global, app int) {
	if m.globalRecords == nil {
		return
	}
	m.globalRecords.Set(float64(global))
	m.appRecords.Set(float64(app))
}

// RecordHTTPRequest records a served API request.
func (m *Metrics) RecordHTTPRequest(path, status string) {
	if m.httpRequests == nil {
		return
	}
	m.httpRequests.WithLabelValues(path, status).Inc()
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}
