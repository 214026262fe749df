// Package metrics holds the Prometheus collectors shared by the planning pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "scribe"

var (
	// ClassifyLatency observes router latency by backend.
	ClassifyLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "classify_latency_seconds",
		Help:      "Latency of query classification by backend",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
	}, []string{"backend"})

	// ClassifyTotal counts classifications by backend and outcome: success, error.
	ClassifyTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "classify_total",
		Help:      "Classifications by backend and outcome: success, error",
	}, []string{"backend", "outcome"})

	// JSONRepairs counts LLM responses by repair outcome: clean, repaired, failed.
	JSONRepairs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "router",
		Name:      "json_repair_total",
		Help:      "LLM responses by repair outcome: clean, repaired, failed",
	}, []string{"outcome"})

	// FallbackTools counts tools added to a plan because entities were found there.
	FallbackTools = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "planner",
		Name:      "fallback_tools_total",
		Help:      "Tools added to plans by entity fallback",
	}, []string{"tool"})

	// PlanLatency observes end-to-end planning latency.
	PlanLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "planner",
		Name:      "plan_latency_seconds",
		Help:      "Latency of building a query plan",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0},
	})

	// RulesCacheLookups counts rules-corpus cache lookups by result: hit, miss.
	RulesCacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "rules_cache_lookups_total",
		Help:      "Rules corpus cache lookups by result: hit, miss",
	}, []string{"result"})

	// SourceUnavailable counts knowledge domains that failed to answer.
	SourceUnavailable = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "resolver",
		Name:      "source_unavailable_total",
		Help:      "Knowledge domains skipped because their provider was missing or failed",
	}, []string{"tool"})

	// GazetteerEntries reports the size of the active lexicon.
	GazetteerEntries = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gazetteer",
		Name:      "entries",
		Help:      "Number of names in the active gazetteer snapshot",
	})
)
