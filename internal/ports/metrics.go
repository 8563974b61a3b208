package ports

import "time"

// MetricsCollector abstracts the metrics backend so pipeline components can
// record operational data without binding to Prometheus directly.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a distribution, such as oracle
	// disagreement magnitudes or assigned scores.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
