package telemetry

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Aman-CERP/grantlens/internal/evaluate"
)

const namespace = "grantlens"

// Metrics holds the Prometheus collectors of one process.
type Metrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	searchTotal    *prometheus.CounterVec
	searchDuration prometheus.Histogram
	searchResults  prometheus.Histogram

	llmCallsTotal   *prometheus.CounterVec
	llmCallDuration *prometheus.HistogramVec

	evaluationRuns     *prometheus.CounterVec
	evaluationScore    *prometheus.GaugeVec
	annotationDegraded prometheus.Counter

	corpusReloads *prometheus.CounterVec
}

// NewMetrics creates collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)
	searchTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "requests_total",
			Help:      "Total searches by outcome.",
		},
		[]string{"outcome"},
	)
	searchDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "duration_seconds",
			Help:      "Search duration including annotation, in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	searchResults := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "search",
			Name:      "results",
			Help:      "Distribution of results returned per search.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		},
	)
	llmCallsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "calls_total",
			Help:      "Total language model calls by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)
	llmCallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "call_duration_seconds",
			Help:      "Language model call duration in seconds, retries included.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)
	evaluationRuns := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "runs_total",
			Help:      "Total completed evaluation runs.",
		},
		[]string{"key"},
	)
	evaluationScore := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "score",
			Help:      "Latest evaluation score per query and metric.",
		},
		[]string{"key", "metric"},
	)
	annotationDegraded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "evaluation",
			Name:      "annotations_degraded_total",
			Help:      "Total evaluation annotations with a failed model call.",
		},
	)

	corpusReloads := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "corpus",
			Name:      "reloads_total",
			Help:      "Total corpus reloads triggered by file changes.",
		},
		[]string{"outcome"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		searchTotal,
		searchDuration,
		searchResults,
		llmCallsTotal,
		llmCallDuration,
		evaluationRuns,
		evaluationScore,
		annotationDegraded,
		corpusReloads,
	)

	return &Metrics{
		registry:           registry,
		requestTotal:       requestTotal,
		requestDuration:    requestDuration,
		requestInFlight:    requestInFlight,
		searchTotal:        searchTotal,
		searchDuration:     searchDuration,
		searchResults:      searchResults,
		llmCallsTotal:      llmCallsTotal,
		llmCallDuration:    llmCallDuration,
		evaluationRuns:     evaluationRuns,
		evaluationScore:    evaluationScore,
		annotationDegraded: annotationDegraded,
		corpusReloads:      corpusReloads,
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the metrics in Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts and times HTTP requests.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

// RecordSearch observes one search.
func (m *Metrics) RecordSearch(outcome string, results int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.searchTotal.WithLabelValues(outcome).Inc()
	m.searchDuration.Observe(duration.Seconds())
	if outcome == "success" {
		m.searchResults.Observe(float64(results))
	}
}

// RecordReload counts one corpus reload attempt.
func (m *Metrics) RecordReload(err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.corpusReloads.WithLabelValues(outcome).Inc()
}

// ObserveLLMCall implements llm.CallObserver.
func (m *Metrics) ObserveLLMCall(operation, outcome string, duration time.Duration) {
	m.llmCallsTotal.WithLabelValues(operation, outcome).Inc()
	m.llmCallDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordReport implements evaluate.ReportSink by publishing the latest scores.
func (m *Metrics) RecordReport(_ context.Context, r *evaluate.Report) error {
	m.evaluationRuns.WithLabelValues(r.Key).Inc()
	m.evaluationScore.WithLabelValues(r.Key, "precision").Set(r.Metrics.Precision)
	m.evaluationScore.WithLabelValues(r.Key, "mrr").Set(r.Metrics.MRR)
	m.evaluationScore.WithLabelValues(r.Key, "ndcg").Set(r.Metrics.NDCG)
	m.evaluationScore.WithLabelValues(r.Key, "agreement").Set(r.Metrics.Agreement)
	if r.Degraded > 0 {
		m.annotationDegraded.Add(float64(r.Degraded))
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
