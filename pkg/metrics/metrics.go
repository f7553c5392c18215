package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	GateRejections  *prometheus.CounterVec
	LLMRequests     *prometheus.CounterVec
	QueryDuration   *prometheus.HistogramVec
	ConnectionTests *prometheus.CounterVec
}

var (
	once   sync.Once
	global *Metrics
)

// Global returns the process-wide metrics, registering them on first use.
func Global() *Metrics {
	once.Do(func() {
		global = &Metrics{
			GateRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "wenshu",
				Name:      "gate_rejections_total",
				Help:      "Total statements rejected by the read-only gate",
			}, []string{"surface"}),
			LLMRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "wenshu",
				Name:      "llm_requests_total",
				Help:      "Total LLM gateway requests by provider and outcome",
			}, []string{"provider", "outcome"}),
			QueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "wenshu",
				Name:      "query_duration_seconds",
				Help:      "Read-only query execution time against target databases",
				Buckets:   prometheus.DefBuckets,
			}, []string{"engine"}),
			ConnectionTests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "wenshu",
				Name:      "connection_tests_total",
				Help:      "Total datasource connection tests by engine and outcome",
			}, []string{"engine", "outcome"}),
		}
		prometheus.MustRegister(global.GateRejections, global.LLMRequests, global.QueryDuration, global.ConnectionTests)
	})
	return global
}

// Outcome returns the label value for a success flag.
func Outcome(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}
