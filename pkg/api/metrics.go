package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/ssargent/freyjawire/pkg/transcode"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the API and the transcoding
// pipeline. It implements transcode.Observer.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP request metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight *prometheus.GaugeVec

	// Pipeline metrics
	readsTotal        *prometheus.CounterVec
	corruptTotal      *prometheus.CounterVec
	decompressedBytes *prometheus.CounterVec
	writesTotal       *prometheus.CounterVec
	storedBytes       *prometheus.CounterVec

	// Store and container metrics
	storeErrorsTotal  *prometheus.CounterVec
	lockTimeoutsTotal *prometheus.CounterVec

	// API key authentication metrics
	authRequestsTotal *prometheus.CounterVec

	// Health check metrics
	healthChecksTotal *prometheus.CounterVec
}

var _ transcode.Observer = (*Metrics)(nil)

// NewMetrics creates all Prometheus metrics on a fresh registry, so several
// servers can live in one process.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.NewRegistry())
}

// NewMetricsWithRegistry registers all metrics on reg
func NewMetricsWithRegistry(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		registry: reg,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freyjawire_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),

		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "freyjawire_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),

		httpRequestsInFlight: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "freyjawire_http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
			[]string{"method", "endpoint"},
		),

		readsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freyjawire_transcode_reads_total",
				Help: "Reads by container and result kind",
			},
			[]string{"container", "kind"},
		),

		corruptTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freyjawire_transcode_corrupt_total",
				Help: "Values rejected as corrupt",
			},
			[]string{"container"},
		),

		decompressedBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freyjawire_decompressed_bytes_total",
				Help: "Bytes produced by decompression",
			},
			[]string{"container", "codec"},
		),

		writesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freyjawire_transcode_writes_total",
				Help: "Values written through the pipeline",
			},
			[]string{"container"},
		),

		storedBytes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freyjawire_stored_bytes_total",
				Help: "Bytes reserved in the store, framing included",
			},
			[]string{"container"},
		),

		storeErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freyjawire_store_errors_total",
				Help: "Store failures by translated code",
			},
			[]string{"code"},
		),

		lockTimeoutsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freyjawire_container_lock_timeouts_total",
				Help: "Requests that gave up waiting for a busy container",
			},
			[]string{"container"},
		),

		authRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freyjawire_auth_requests_total",
				Help: "Total number of authentication requests",
			},
			[]string{"status"},
		),

		healthChecksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "freyjawire_health_checks_total",
				Help: "Total number of health checks",
			},
			[]string{"status"},
		),
	}

	return m
}

// Registry returns the registry the metrics live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	statusCodeStr := strconv.Itoa(statusCode)

	m.httpRequestsTotal.WithLabelValues(method, endpoint, statusCodeStr).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// RecordStoreError records a failed store call by its translated code
func (m *Metrics) RecordStoreError(code int) {
	m.storeErrorsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// RecordLockTimeout records a request that timed out on a container gate
func (m *Metrics) RecordLockTimeout(container string) {
	m.lockTimeoutsTotal.WithLabelValues(container).Inc()
}

// RecordAuthRequest records an authentication request
func (m *Metrics) RecordAuthRequest(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.authRequestsTotal.WithLabelValues(status).Inc()
}

// RecordHealthCheck records a health check
func (m *Metrics) RecordHealthCheck(success bool) {
	status := statusSuccess
	if !success {
		status = statusError
	}
	m.healthChecksTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveRead(container string, kind transcode.Kind) {
	m.readsTotal.WithLabelValues(container, kind.String()).Inc()
}

func (m *Metrics) ObserveCorrupt(container string) {
	m.corruptTotal.WithLabelValues(container).Inc()
}

func (m *Metrics) ObserveDecompress(container string, codecID uint8, size int) {
	m.decompressedBytes.WithLabelValues(container, strconv.Itoa(int(codecID))).Add(float64(size))
}

func (m *Metrics) ObserveWrite(container string, size int) {
	m.writesTotal.WithLabelValues(container).Inc()
	m.storedBytes.WithLabelValues(container).Add(float64(size))
}

// InstrumentHandler instruments an HTTP handler with metrics
func (m *Metrics) InstrumentHandler(method, endpoint string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		gauge := m.httpRequestsInFlight.WithLabelValues(method, endpoint)
		gauge.Inc()
		defer gauge.Dec()

		// Capture the status code
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(rw, r)

		m.RecordHTTPRequest(method, endpoint, rw.statusCode, time.Since(start))
	}
}

// InstrumentAuthMiddleware instruments the authentication middleware
func (m *Metrics) InstrumentAuthMiddleware(next func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hasAPIKey := r.Header.Get("X-API-Key") != ""

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next(h).ServeHTTP(rw, r)

			if hasAPIKey {
				m.RecordAuthRequest(rw.statusCode != http.StatusUnauthorized)
			}
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
