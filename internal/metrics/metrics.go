package metrics

import (
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

var (
	Hostname        = "undefined"
	MetricNamespace = "engage"
	MetricComponent = "engineapi"

	MetricPrometheusLabels = stdprometheus.Labels{"component": MetricComponent, "hostname": Hostname}
)

// InitMetricLabels must be called before RegisterAll to get proper constant labels
func InitMetricLabels(hostname string) {
	Hostname = hostname
	MetricPrometheusLabels = stdprometheus.Labels{"component": MetricComponent, "hostname": Hostname}
}

var (
	// EvaluationsTotal counts condition evaluator calls, partitioned by outcome (match / no_match / error)
	EvaluationsTotal = stdprometheus.NewCounterVec(stdprometheus.CounterOpts{
		Namespace: MetricNamespace,
		Name:      "evaluations_total",
		Help:      "Total number of condition evaluator calls",
	}, []string{"outcome"})

	// EvaluationCacheHitsTotal counts evaluations served from the batch similarity cache
	EvaluationCacheHitsTotal = stdprometheus.NewCounter(stdprometheus.CounterOpts{
		Namespace: MetricNamespace,
		Name:      "evaluation_cache_hits_total",
		Help:      "Total number of evaluations served from the similarity cache",
	})

	// CommitsTotal counts interactions committed to a rule
	CommitsTotal = stdprometheus.NewCounter(stdprometheus.CounterOpts{
		Namespace: MetricNamespace,
		Name:      "interaction_commits_total",
		Help:      "Total number of interactions committed to a winning rule",
	})

	// ActionsTotal counts executed actions, partitioned by kind and result
	ActionsTotal = stdprometheus.NewCounterVec(stdprometheus.CounterOpts{
		Namespace: MetricNamespace,
		Name:      "actions_total",
		Help:      "Total number of executed rule actions",
	}, []string{"kind", "result"})

	// BreakerState exposes the current circuit breaker state per rule (0=closed, 1=open, 2=half-open)
	BreakerState = stdprometheus.NewGaugeVec(stdprometheus.GaugeOpts{
		Namespace: MetricNamespace,
		Name:      "rule_breaker_state",
		Help:      "Current circuit breaker state per rule (0=closed, 1=open, 2=half-open)",
	}, []string{"rule_id"})
)

// RegisterAll registers every scheduler metric on the default prometheus registry
func RegisterAll() {
	stdprometheus.MustRegister(
		EvaluationsTotal,
		EvaluationCacheHitsTotal,
		CommitsTotal,
		ActionsTotal,
		BreakerState,
	)
}
