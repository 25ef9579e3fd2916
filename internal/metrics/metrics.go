package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dyagram"

// Metrics holds the Prometheus collectors for discovery runs and the status API.
type Metrics struct {
	registry             *prometheus.Registry
	httpRequests         *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	discoveryRunsTotal   prometheus.Counter
	discoveryRunDuration prometheus.Histogram
	deviceDiscoveries    *prometheus.CounterVec
	deviceDuration       prometheus.Histogram
	stateChanges         *prometheus.CounterVec
}

// New creates a fresh registry with every collector registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests served by the status API",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests served by the status API",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		discoveryRunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discovery_runs_total",
			Help:      "Total number of site discovery runs",
		}),
		discoveryRunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discovery_run_duration_seconds",
			Help:      "Duration of site discovery runs from queueing to snapshot",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200},
		}),
		deviceDiscoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "device_discoveries_total",
			Help:      "Devices resolved, by the discovery path that produced them and outcome",
		}, []string{"path", "outcome"}),
		deviceDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "device_discovery_duration_seconds",
			Help:      "Time spent resolving a single device",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 90, 180},
		}),
		stateChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "state_changes_total",
			Help:      "Baseline comparisons, by result (bootstrap, unchanged, changed)",
		}, []string{"result"}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpRequestDuration,
		m.discoveryRunsTotal,
		m.discoveryRunDuration,
		m.deviceDiscoveries,
		m.deviceDuration,
		m.stateChanges,
	)
	return m
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

func (m *Metrics) IncDiscoveryRun() {
	if m == nil {
		return
	}
	m.discoveryRunsTotal.Inc()
}

func (m *Metrics) ObserveDiscoveryRunDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.discoveryRunDuration.Observe(duration.Seconds())
}

// ObserveDevice records one resolved device.
func (m *Metrics) ObserveDevice(path, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.deviceDiscoveries.WithLabelValues(path, outcome).Inc()
	m.deviceDuration.Observe(duration.Seconds())
}

// IncStateChange counts a baseline comparison result.
func (m *Metrics) IncStateChange(result string) {
	if m == nil {
		return
	}
	m.stateChanges.WithLabelValues(result).Inc()
}

// Registry exposes the underlying registry for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
