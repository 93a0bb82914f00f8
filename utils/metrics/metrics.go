package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personaflow_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "personaflow_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	CompletionLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "personaflow_completion_latency_seconds",
			Help:    "Completion call latency in seconds",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
		[]string{"model"},
	)

	CompletionFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personaflow_completion_failures_total",
			Help: "Completion calls that failed or timed out",
		},
		[]string{"model"},
	)

	StepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personaflow_steps_total",
			Help: "Pipeline steps executed, by phase and outcome",
		},
		[]string{"phase", "outcome"},
	)

	RunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personaflow_runs_total",
			Help: "Pipeline executions, by outcome",
		},
		[]string{"outcome"},
	)

	// FallbackTotal counts structured replies that had to be replaced by a fixed fallback
	FallbackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "personaflow_fallback_total",
			Help: "Structured replies replaced by the fixed fallback object",
		},
		[]string{"kind"},
	)

	RunsPruned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "personaflow_runs_pruned_total",
			Help: "Runs removed by the retention sweeper",
		},
	)
)
