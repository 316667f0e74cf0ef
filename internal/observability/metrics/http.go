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

	decisionTotal        *prometheus.CounterVec
	retrievalHitTotal    *prometheus.CounterVec
	retrievalEmptyTotal  *prometheus.CounterVec
	retrievedFragments   *prometheus.HistogramVec
	retrievalDuration    *prometheus.HistogramVec
	llmTokensTotal       *prometheus.CounterVec
	agentSpendTotal      *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ac",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ac",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ac",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	decisionTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ac",
			Subsystem: "governance",
			Name:      "decisions_total",
			Help:      "Total chat turn decisions by outcome and reason.",
		},
		[]string{"service", "decision", "reason"},
	)
	retrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ac",
			Subsystem: "retrieval",
			Name:      "hit_total",
			Help:      "Total retrievals with at least one evidence fragment above the floor.",
		},
		[]string{"service"},
	)
	retrievalEmptyTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ac",
			Subsystem: "retrieval",
			Name:      "no_context_total",
			Help:      "Total retrievals that produced no evidence.",
		},
		[]string{"service"},
	)
	retrievedFragments := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ac",
			Subsystem: "retrieval",
			Name:      "fragments",
			Help:      "Distribution of evidence fragments per retrieval.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	retrievalDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ac",
			Subsystem: "retrieval",
			Name:      "duration_seconds",
			Help:      "Retrieval duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ac",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage reported by the completion provider.",
		},
		[]string{"service", "model"},
	)
	agentSpendTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ac",
			Subsystem: "governance",
			Name:      "spend_total",
			Help:      "Estimated spend recorded against agent budgets.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		decisionTotal,
		retrievalHitTotal,
		retrievalEmptyTotal,
		retrievedFragments,
		retrievalDuration,
		llmTokensTotal,
		agentSpendTotal,
	)

	return &HTTPServerMetrics{
		registry:            registry,
		requestTotal:        requestTotal,
		requestDuration:     requestDuration,
		requestInFlight:     requestInFlight,
		decisionTotal:       decisionTotal,
		retrievalHitTotal:   retrievalHitTotal,
		retrievalEmptyTotal: retrievalEmptyTotal,
		retrievedFragments:  retrievedFragments,
		retrievalDuration:   retrievalDuration,
		llmTokensTotal:      llmTokensTotal,
		agentSpendTotal:     agentSpendTotal,
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

func (m *HTTPServerMetrics) RecordDecision(service, decision, reason string) {
	if reason == "" {
		reason = "none"
	}
	m.decisionTotal.WithLabelValues(service, decision, reason).Inc()
}

func (m *HTTPServerMetrics) RecordRetrieval(service string, fragmentCount int, duration time.Duration) {
	m.retrievedFragments.WithLabelValues(service).Observe(float64(fragmentCount))
	m.retrievalDuration.WithLabelValues(service).Observe(duration.Seconds())

	if fragmentCount > 0 {
		m.retrievalHitTotal.WithLabelValues(service).Inc()
		return
	}
	m.retrievalEmptyTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, model string, tokens int) {
	if tokens <= 0 {
		return
	}
	if model == "" {
		model = "unknown"
	}
	m.llmTokensTotal.WithLabelValues(service, model).Add(float64(tokens))
}

func (m *HTTPServerMetrics) RecordSpend(service string, amount float64) {
	if amount <= 0 {
		return
	}
	m.agentSpendTotal.WithLabelValues(service).Add(amount)
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
