package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics on a private registry
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Analysis metrics
	AnalysesTotal    *prometheus.CounterVec
	AnalysisDuration *prometheus.HistogramVec
	Observations     *prometheus.CounterVec
	ScriptErrors     prometheus.Counter
	Fetches          *prometheus.CounterVec

	// System metrics
	Uptime    prometheus.GaugeFunc
	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON API
type Snapshot struct {
	TotalRequests      int64            `json:"total_requests"`
	TotalErrors        int64            `json:"total_errors"`
	TotalDuration      float64          `json:"-"`
	Analyses           int64            `json:"analyses"`
	FailedAnalyses     int64            `json:"failed_analyses"`
	ObservationsBySink map[string]int64 `json:"observations_by_sink"`
	UptimeSeconds      float64          `json:"uptime_seconds"`
	AverageLatencyMs   float64          `json:"average_latency_ms"`
}

// NewMetrics creates a metrics collector with its own registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),
		snapshot:  Snapshot{ObservationsBySink: map[string]int64{}},

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sinkwatch_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sinkwatch_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sinkwatch_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sinkwatch_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Analysis metrics
		AnalysesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sinkwatch_analyses_total",
				Help: "Total number of analyses by input kind and outcome",
			},
			[]string{"kind", "status"},
		),
		AnalysisDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sinkwatch_analysis_duration_seconds",
				Help:    "Analysis duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"kind"},
		),
		Observations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sinkwatch_observations_total",
				Help: "Total number of intercepted sink calls",
			},
			[]string{"sink"},
		),
		ScriptErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sinkwatch_script_errors_total",
				Help: "Total number of uncaught script errors",
			},
		),
		Fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sinkwatch_fetches_total",
				Help: "Total number of page fetches by outcome",
			},
			[]string{"status"},
		),
	}

	m.Uptime = factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "sinkwatch_uptime_seconds",
			Help: "Process uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Registry returns the registry the metrics are registered on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.TotalDuration += duration.Seconds()
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordAnalysis records one finished analysis
func (m *Metrics) RecordAnalysis(kind, status string, duration time.Duration) {
	m.AnalysesTotal.WithLabelValues(kind, status).Inc()
	m.AnalysisDuration.WithLabelValues(kind).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.Analyses++
	if status != "success" {
		m.snapshot.FailedAnalyses++
	}
	m.mu.Unlock()
}

// RecordObservation counts one intercepted call into sink
func (m *Metrics) RecordObservation(sink string) {
	m.Observations.WithLabelValues(sink).Inc()

	m.mu.Lock()
	m.snapshot.ObservationsBySink[sink]++
	m.mu.Unlock()
}

// RecordScriptErrors counts uncaught script errors
func (m *Metrics) RecordScriptErrors(n int) {
	if n > 0 {
		m.ScriptErrors.Add(float64(n))
	}
}

// RecordFetch counts one page fetch
func (m *Metrics) RecordFetch(status string) {
	m.Fetches.WithLabelValues(status).Inc()
}

// Snapshot returns the current values for the JSON API
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := m.snapshot
	s.ObservationsBySink = make(map[string]int64, len(m.snapshot.ObservationsBySink))
	for k, v := range m.snapshot.ObservationsBySink {
		s.ObservationsBySink[k] = v
	}
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	if s.TotalRequests > 0 {
		s.AverageLatencyMs = s.TotalDuration / float64(s.TotalRequests) * 1000
	}
	return s
}
