// Package metrics provides the Prometheus-backed implementation of the
// pipeline's metrics collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/stagedoor/marquee/internal/ports"
)

// Compile-time verification that PrometheusMetrics implements MetricsCollector.
var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// scoreBuckets covers the 0-100 scale used by assigned scores and oracle
// disagreement magnitudes.
var scoreBuckets = prometheus.LinearBuckets(0, 10, 11)

// PrometheusMetrics implements the MetricsCollector interface using
// Prometheus. It provides real-time monitoring of oracle traffic, batch
// throughput, and score distributions.
type PrometheusMetrics struct {
	oracleRequests *prometheus.CounterVec
	oracleLatency  *prometheus.HistogramVec
	operations     *prometheus.CounterVec
	opLatency      *prometheus.HistogramVec
	scoreSpread    *prometheus.HistogramVec
}

// NewPrometheusMetrics creates a PrometheusMetrics instance and registers
// all metrics with the given registerer. A nil registerer falls back to the
// global default registry.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		oracleRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marquee_oracle_requests_total",
				Help: "Total oracle requests by provider, model, and outcome.",
			},
			[]string{"provider", "model", "status"},
		),
		oracleLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marquee_oracle_latency_seconds",
				Help:    "Oracle round-trip latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider", "model", "status"},
		),
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marquee_pipeline_operations_total",
				Help: "Total pipeline operations by name and outcome.",
			},
			[]string{"operation", "status"},
		),
		opLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marquee_operation_duration_seconds",
				Help:    "Execution time of pipeline operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		scoreSpread: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marquee_score_distribution",
				Help:    "Distribution of assigned scores and oracle disagreement magnitudes.",
				Buckets: scoreBuckets,
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records the execution time of a named operation.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, _ map[string]string) {
	pm.opLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter increments the counter matching the metric name. Oracle
// request counts route to the provider-labeled series; everything else
// lands in the general operations counter.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "oracle_requests_total":
		pm.oracleRequests.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "unknown"),
		).Add(value)
	default:
		pm.operations.WithLabelValues(metric, labelOr(labels, "status", "success")).Add(value)
	}
}

// RecordHistogram records a value in the histogram matching the metric
// name. Score-scaled metrics use 0-100 buckets; oracle latency uses the
// default duration buckets.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "oracle_latency_seconds":
		pm.oracleLatency.WithLabelValues(
			labelOr(labels, "provider", "unknown"),
			labelOr(labels, "model", "unknown"),
			labelOr(labels, "status", "unknown"),
		).Observe(value)
	case "assigned_score", "oracle_disagreement":
		pm.scoreSpread.WithLabelValues(metric).Observe(value)
	default:
		pm.opLatency.WithLabelValues(metric).Observe(value)
	}
}

func labelOr(labels map[string]string, key, fallback string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return fallback
}
