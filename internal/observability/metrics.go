package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so independent instances (tests, CLI
// commands) never collide. Every method is safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests   *prometheus.CounterVec
	apiDuration   *prometheus.HistogramVec
	apiInflight   prometheus.Gauge
	searches      *prometheus.CounterVec
	fallbacks     *prometheus.CounterVec
	external      *prometheus.HistogramVec
	ingested      *prometheus.CounterVec
	relationships *prometheus.GaugeVec
	cacheLookups  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		apiRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outfitmatch", Name: "http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		apiDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "outfitmatch", Name: "http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"method", "route"}),
		apiInflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "outfitmatch", Name: "http_inflight_requests",
			Help: "HTTP requests currently being served.",
		}),
		searches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outfitmatch", Name: "search_results_total",
			Help: "Searches by the tier that produced the answer.",
		}, []string{"tier"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outfitmatch", Name: "fallbacks_total",
			Help: "Fallback values applied, by kind.",
		}, []string{"kind"}),
		external: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "outfitmatch", Name: "external_call_duration_seconds",
			Help:    "Latency of calls to models, LLMs and the graph store.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"service", "op", "status"}),
		ingested: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outfitmatch", Name: "ingested_entities_total",
			Help: "Entities processed by ingestion, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		relationships: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "outfitmatch", Name: "relationships",
			Help: "Relationship counts after the last recommendation build.",
		}, []string{"type"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "outfitmatch", Name: "cache_lookups_total",
			Help: "Query cache lookups by namespace and result.",
		}, []string{"namespace", "result"}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiDuration.WithLabelValues(method, route).Observe(dur.Seconds())
}

func (m *Metrics) ApiInflightInc() {
	if m != nil {
		m.apiInflight.Inc()
	}
}

func (m *Metrics) ApiInflightDec() {
	if m != nil {
		m.apiInflight.Dec()
	}
}

func (m *Metrics) IncSearch(tier string) {
	if m != nil {
		m.searches.WithLabelValues(tier).Inc()
	}
}

func (m *Metrics) IncFallback(kind string) {
	if m != nil {
		m.fallbacks.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) ObserveExternal(service, op, status string, dur time.Duration) {
	if m != nil {
		m.external.WithLabelValues(service, op, status).Observe(dur.Seconds())
	}
}

func (m *Metrics) IncIngested(kind, outcome string) {
	if m != nil {
		m.ingested.WithLabelValues(kind, outcome).Inc()
	}
}

func (m *Metrics) SetRelationships(relType string, n int64) {
	if m != nil {
		m.relationships.WithLabelValues(relType).Set(float64(n))
	}
}

func (m *Metrics) IncCache(namespace, result string) {
	if m != nil {
		m.cacheLookups.WithLabelValues(namespace, result).Inc()
	}
}
