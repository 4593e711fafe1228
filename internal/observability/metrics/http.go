package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	routingTotal        *prometheus.CounterVec
	routingFallbacks    *prometheus.CounterVec
	fallbackConfidence  *prometheus.HistogramVec
	backendHealthStatus *prometheus.GaugeVec
	cloudCallDuration   *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docuscan",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docuscan",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docuscan",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	routingTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docuscan",
			Subsystem: "routing",
			Name:      "decisions_total",
			Help:      "Total routed analyses by final extraction mode.",
		},
		[]string{"service", "mode"},
	)
	routingFallbacks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docuscan",
			Subsystem: "routing",
			Name:      "fallbacks_total",
			Help:      "Total analyses answered locally, by reason.",
		},
		[]string{"service", "reason"},
	)
	fallbackConfidence := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docuscan",
			Subsystem: "routing",
			Name:      "fallback_confidence",
			Help:      "Local result confidence when the cloud backend was unavailable.",
			Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1},
		},
		[]string{"service"},
	)
	backendHealthStatus := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "docuscan",
			Subsystem: "routing",
			Name:      "backend_health",
			Help:      "Cloud backend health as seen by the router (1 for the current status).",
		},
		[]string{"service", "status"},
	)
	cloudCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docuscan",
			Subsystem: "cloud",
			Name:      "call_duration_seconds",
			Help:      "Cloud analysis call duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		routingTotal,
		routingFallbacks,
		fallbackConfidence,
		backendHealthStatus,
		cloudCallDuration,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		routingTotal:        routingTotal,
		routingFallbacks:    routingFallbacks,
		fallbackConfidence:  fallbackConfidence,
		backendHealthStatus: backendHealthStatus,
		cloudCallDuration:   cloudCallDuration,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/documents/"):
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

// RecordRouting tallies a finished analysis by its final extraction mode.
// A non-empty reason means the cloud was bypassed or abandoned.
func (m *HTTPServerMetrics) RecordRouting(service, mode, reason string) {
	if mode == "" {
		mode = "unknown"
	}
	m.routingTotal.WithLabelValues(service, mode).Inc()
	if reason != "" {
		m.routingFallbacks.WithLabelValues(service, reason).Inc()
	}
}

func (m *HTTPServerMetrics) ObserveFallbackConfidence(service string, confidence float64) {
	m.fallbackConfidence.WithLabelValues(service).Observe(confidence)
}

// SetBackendHealth pins the gauge to 1 for the current status and 0 for the
// others so dashboards can render it as a state timeline.
func (m *HTTPServerMetrics) SetBackendHealth(service, current string, all []string) {
	for _, status := range all {
		value := 0.0
		if status == current {
			value = 1.0
		}
		m.backendHealthStatus.WithLabelValues(service, status).Set(value)
	}
}

func (m *HTTPServerMetrics) ObserveCloudCall(service string, duration time.Duration, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.cloudCallDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}
