package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	turnLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "convrag_turn_latency_ms",
		Help:    "End to end latency of a conversation turn in milliseconds",
		Buckets: []float64{50, 100, 250, 500, 1000, 2000, 4000, 8000, 15000, 30000},
	}, []string{"route", "success"})

	retrievalResults = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "convrag_retrieval_results",
		Help:    "Number of ranked results returned by the retrieval engine",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20},
	})

	filterRelaxed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "convrag_filter_relaxed_total",
		Help: "Filtered searches retried without filters after returning nothing",
	})

	rerankLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "convrag_rerank_latency_ms",
		Help:    "Latency of rerank calls in milliseconds",
		Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3200},
	})

	rerankFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "convrag_rerank_failures_total",
		Help: "Rerank calls that failed and degraded to vector order",
	})

	fallbacks = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "convrag_fallback_total",
		Help: "Local recoveries by stage (router/generation/store)",
	}, []string{"stage"})
)

func ensureRegistered() {
	once.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}

// ObserveTurn records the latency of a finished turn.
func ObserveTurn(route string, success bool, start time.Time) {
	ensureRegistered()
	ok := "true"
	if !success {
		ok = "false"
	}
	turnLatency.WithLabelValues(route, ok).Observe(float64(time.Since(start).Milliseconds()))
}

// ObserveRetrieval records the result size of one retrieval call.
func ObserveRetrieval(results int) {
	ensureRegistered()
	retrievalResults.Observe(float64(results))
}

func IncFilterRelaxed() {
	ensureRegistered()
	filterRelaxed.Inc()
}

// ObserveRerank records a rerank call; failed calls also bump the failure counter.
func ObserveRerank(start time.Time, err error) {
	ensureRegistered()
	rerankLatency.Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		rerankFailures.Inc()
	}
}

// IncFallback counts a degraded stage.
func IncFallback(stage string) {
	ensureRegistered()
	fallbacks.WithLabelValues(stage).Inc()
}

// Collectors exposes all collectors for registration with a custom registry.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		turnLatency, retrievalResults, filterRelaxed, rerankLatency, rerankFailures, fallbacks,
	}
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	ensureRegistered()
	return promhttp.Handler()
}
