package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "poolquote"

// Metrics owns its registry so several engines can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	cacheRequests *prometheus.CounterVec
	rpcDuration   *prometheus.HistogramVec
	rpcErrors     *prometheus.CounterVec
	quotes        *prometheus.CounterVec
	quoteDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by record kind and result.",
		}, []string{"kind", "result"}),
		rpcDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_call_duration_seconds",
			Help:      "Contract call latency including retries.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}, []string{"method"}),
		rpcErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_call_errors_total",
			Help:      "Contract calls that failed after retries.",
		}, []string{"method"}),
		quotes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_total",
			Help:      "Quote requests by outcome.",
		}, []string{"outcome"}),
		quoteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_duration_seconds",
			Help:      "End to end quote latency.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(m.cacheRequests, m.rpcDuration, m.rpcErrors, m.quotes, m.quoteDuration)
	return m
}

// CacheLookup records a hit or miss for kind (quote, pool_state, token_meta).
func (m *Metrics) CacheLookup(kind string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheRequests.WithLabelValues(kind, result).Inc()
}

// ObserveRPC matches chain.ObserveFunc.
func (m *Metrics) ObserveRPC(method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.rpcDuration.WithLabelValues(method).Observe(elapsed.Seconds())
	if err != nil {
		m.rpcErrors.WithLabelValues(method).Inc()
	}
}

// ObserveQuote labels the outcome by the error kind.
func (m *Metrics) ObserveQuote(elapsed time.Duration, outcome string) {
	if m == nil {
		return
	}
	m.quotes.WithLabelValues(outcome).Inc()
	m.quoteDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Outcome maps an error to a low cardinality label using the sentinels given.
func Outcome(err error, sentinels map[string]error) string {
	if err == nil {
		return "ok"
	}
	for label, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return label
		}
	}
	return "error"
}
