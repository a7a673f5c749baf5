package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	// HTTP client metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	loginsTotal        *prometheus.CounterVec
	strategyMutations  *prometheus.CounterVec
	uploadsTotal       *prometheus.CounterVec
	uploadBytes        prometheus.Counter
	backtestsTotal     *prometheus.CounterVec
	backtestDuration   prometheus.Histogram
	strategiesInMemory prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "stratdesk_http_requests_total",
				Help: "Total number of HTTP requests sent to the strategy backend",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "stratdesk_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "stratdesk_http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.loginsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratdesk_logins_total",
			Help: "Total number of login attempts",
		},
		[]string{"status"},
	)
	r.strategyMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratdesk_strategy_mutations_total",
			Help: "Total number of strategy create/update/delete calls",
		},
		[]string{"op", "status"},
	)
	r.uploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratdesk_uploads_total",
			Help: "Total number of dataset uploads",
		},
		[]string{"status"},
	)
	r.uploadBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "stratdesk_upload_bytes_total",
			Help: "Total dataset bytes uploaded",
		},
	)
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stratdesk_backtests_total",
			Help: "Total number of backtests",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stratdesk_backtest_duration_seconds",
			Help:    "Backtest round trip duration in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300},
		},
	)
	r.strategiesInMemory = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "stratdesk_strategies_loaded",
			Help: "Number of strategies held by the local strategy store",
		},
	)

	reg.MustRegister(r.loginsTotal)
	reg.MustRegister(r.strategyMutations)
	reg.MustRegister(r.uploadsTotal)
	reg.MustRegister(r.uploadBytes)
	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.strategiesInMemory)

	return r
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	statusStr := statusToString(status)
	route := Route(path)
	r.httpRequestsTotal.WithLabelValues(method, route, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, route).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	r.httpRequestsInFlight.Dec()
}

// RecordLogin records a login attempt.
func (r *Registry) RecordLogin(err error) {
	r.loginsTotal.WithLabelValues(outcome(err)).Inc()
}

// RecordStrategyMutation records a create, update or delete call.
func (r *Registry) RecordStrategyMutation(op string, err error) {
	r.strategyMutations.WithLabelValues(op, outcome(err)).Inc()
}

// RecordUpload records a dataset upload.
func (r *Registry) RecordUpload(size int64, err error) {
	r.uploadsTotal.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		r.uploadBytes.Add(float64(size))
	}
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(err error, duration float64) {
	r.backtestsTotal.WithLabelValues(outcome(err)).Inc()
	r.backtestDuration.Observe(duration)
}

// SetStrategiesLoaded sets the size of the local strategy list.
func (r *Registry) SetStrategiesLoaded(n int) {
	r.strategiesInMemory.Set(float64(n))
}

// WriteTextfile writes the registry in text exposition format, for the
// node_exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}

// Route collapses numeric path segments so per-strategy URLs share one label:
// /strategies/42 -> /strategies/{id}
func Route(path string) string {
	parts := strings.Split(path, "/")
	for i, p := range parts {
		if p != "" && isDigits(p) {
			parts[i] = "{id}"
		}
	}
	return strings.Join(parts, "/")
}

func isDigits(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	case status == 0:
		return "network_error"
	default:
		return "1xx"
	}
}
