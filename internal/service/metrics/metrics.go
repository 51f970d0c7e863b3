// Package metrics holds the Prometheus collectors of the scanner.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Skip reasons reported by the sampler.
const (
	SkipFrame    = "frame_skip"
	SkipThrottle = "throttle"
	SkipInFlight = "in_flight"
	SkipNotReady = "not_ready"
)

// Metrics groups every collector on its own registry. All methods accept a nil
// receiver so components can run without metrics.
type Metrics struct {
	registry *prometheus.Registry

	samplerTicks    prometheus.Counter
	samplerSkipped  *prometheus.CounterVec
	decodeAttempts  *prometheus.CounterVec
	decodeErrors    *prometheus.CounterVec
	decodeDuration  *prometheus.HistogramVec
	announced       *prometheus.CounterVec
	duplicates      prometheus.Counter
	captureOutcomes *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	viewers         prometheus.Gauge
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		samplerTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "scanner_sampler_ticks_total",
			Help: "Ticks seen by the continuous sampler",
		}),
		samplerSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_sampler_skipped_total",
			Help: "Ticks that did not start a decode, by gate",
		}, []string{"reason"}),
		decodeAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_decode_attempts_total",
			Help: "Decode attempts, by driver",
		}, []string{"driver"}),
		decodeErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_decode_errors_total",
			Help: "Failed decode attempts (not counting empty frames), by driver",
		}, []string{"driver"}),
		decodeDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scanner_decode_duration_seconds",
			Help:    "Decode latency, by driver",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"driver"}),
		announced: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_barcodes_announced_total",
			Help: "Barcodes that opened a fresh deduplication window, by format",
		}, []string{"format"}),
		duplicates: factory.NewCounter(prometheus.CounterOpts{
			Name: "scanner_barcodes_duplicate_total",
			Help: "Detections absorbed by a live deduplication window",
		}),
		captureOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_capture_outcomes_total",
			Help: "Single-shot capture outcomes, by final state",
		}, []string{"state"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "scanner_http_requests_total",
			Help: "HTTP requests, by route and status",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scanner_http_request_duration_seconds",
			Help:    "HTTP request latency, by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		viewers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "scanner_viewers",
			Help: "Connected WebSocket viewers",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) SamplerTick() {
	if m == nil {
		return
	}
	m.samplerTicks.Inc()
}

func (m *Metrics) SamplerSkipped(reason string) {
	if m == nil {
		return
	}
	m.samplerSkipped.WithLabelValues(reason).Inc()
}

// ObserveDecode records one decode attempt. failed must be false for a clean
// "no barcode" outcome.
func (m *Metrics) ObserveDecode(driver string, took time.Duration, failed bool) {
	if m == nil {
		return
	}
	m.decodeAttempts.WithLabelValues(driver).Inc()
	m.decodeDuration.WithLabelValues(driver).Observe(took.Seconds())
	if failed {
		m.decodeErrors.WithLabelValues(driver).Inc()
	}
}

func (m *Metrics) Announced(format string) {
	if m == nil {
		return
	}
	m.announced.WithLabelValues(format).Inc()
}

func (m *Metrics) Duplicate() {
	if m == nil {
		return
	}
	m.duplicates.Inc()
}

func (m *Metrics) CaptureOutcome(state string) {
	if m == nil {
		return
	}
	m.captureOutcomes.WithLabelValues(state).Inc()
}

func (m *Metrics) ObserveRequest(method, route string, status int, took time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(took.Seconds())
}

func (m *Metrics) SetViewers(n int) {
	if m == nil {
		return
	}
	m.viewers.Set(float64(n))
}

func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
