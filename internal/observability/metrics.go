package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/consolidator/internal/model"
)

const namespace = "consolidator"

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	confidenceScores  *prometheus.HistogramVec
	confidenceTotal   *prometheus.CounterVec
	chunkOutcomes     *prometheus.CounterVec
	ingestDuration    prometheus.Histogram
	embeddingRequests *prometheus.CounterVec
	embeddingLatency  *prometheus.HistogramVec
	cacheLookups      *prometheus.CounterVec
	breakerState      *prometheus.GaugeVec
}

// NewMetrics creates a registry with Go runtime collectors and the engine metrics
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		confidenceScores: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "confidence_final_score",
			Help:      "Distribution of final confidence scores.",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		}, []string{"strategy"}),
		confidenceTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "confidence_calculations_total",
			Help:      "Confidence calculations by label and degradation.",
		}, []string{"label", "degraded"}),
		chunkOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_chunks_total",
			Help:      "Ingested chunks by outcome.",
		}, []string{"action", "strategy"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ingest_document_duration_seconds",
			Help:      "Wall time of one document ingestion.",
			Buckets:   prometheus.DefBuckets,
		}),
		embeddingRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_requests_total",
			Help:      "Embedding provider calls by result.",
		}, []string{"provider", "result"}),
		embeddingLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_request_duration_seconds",
			Help:      "Embedding provider call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
		}, []string{"provider"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_lookups_total",
			Help:      "Embedding cache lookups by result (hit, miss).",
		}, []string{"result"}),
		breakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "breaker_state",
			Help:      "Circuit breaker state: 0 closed, 1 half-open, 2 open.",
		}, []string{"name"}),
	}

	reg.MustRegister(
		m.confidenceScores,
		m.confidenceTotal,
		m.chunkOutcomes,
		m.ingestDuration,
		m.embeddingRequests,
		m.embeddingLatency,
		m.cacheLookups,
		m.breakerState,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveConfidence records one confidence result
func (m *Metrics) ObserveConfidence(r model.ConfidenceResult) {
	if m == nil {
		return
	}
	degraded := "false"
	if r.IsDegraded() {
		degraded = "true"
	}
	m.confidenceScores.WithLabelValues(r.Strategy).Observe(r.FinalScore)
	m.confidenceTotal.WithLabelValues(string(r.Label), degraded).Inc()
}

// ObserveIngestion records the per-chunk outcomes and duration of a report
func (m *Metrics) ObserveIngestion(r model.IngestionReport) {
	if m == nil {
		return
	}
	strategy := string(r.Strategy)
	for action, n := range map[model.Action]int{
		model.ActionInserted:  r.Inserted,
		model.ActionSkipped:   r.Skipped,
		model.ActionUpdated:   r.Updated,
		model.ActionPreserved: r.Preserved,
		model.ActionFailed:    r.Failed,
	} {
		if n > 0 {
			m.chunkOutcomes.WithLabelValues(string(action), strategy).Add(float64(n))
		}
	}
	m.ingestDuration.Observe(r.Duration.Seconds())
}

// ObserveEmbedding records one provider call
func (m *Metrics) ObserveEmbedding(provider string, d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.embeddingRequests.WithLabelValues(provider, result).Inc()
	m.embeddingLatency.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveCacheLookup records an embedding cache hit or miss
func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheLookups.WithLabelValues("hit").Inc()
		return
	}
	m.cacheLookups.WithLabelValues("miss").Inc()
}

// SetBreakerState records a breaker transition. Unknown states are ignored.
func (m *Metrics) SetBreakerState(name, state string) {
	if m == nil {
		return
	}
	var v float64
	switch state {
	case "closed":
		v = 0
	case "half-open":
		v = 1
	case "open":
		v = 2
	default:
		return
	}
	m.breakerState.WithLabelValues(name).Set(v)
}
