package oracle

import (
	"context"
	"strings"
	"time"

	"github.com/stagedoor/marquee/internal/ports"
)

// metricsOracle implements request metrics collection. This provides
// observability into request patterns, latency, and error rates for
// operational monitoring.
type metricsOracle struct {
	next      CoreOracle
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that collects request metrics,
// enabling monitoring of oracle usage and performance across providers.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreOracle) CoreOracle {
		return &metricsOracle{
			next:      next,
			collector: collector,
		}
	}
}

// DoRequest executes the request while recording latency and outcome.
func (m *metricsOracle) DoRequest(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	response, err := m.next.DoRequest(ctx, prompt)

	labels := map[string]string{
		"provider": m.extractProvider(),
		"model":    m.next.GetModel(),
		"status":   "success",
	}
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			labels["status"] = "timeout"
		} else {
			labels["status"] = "error"
		}
	}

	if m.collector != nil {
		m.collector.RecordHistogram("oracle_latency_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("oracle_requests_total", 1, labels)
	}

	return response, err
}

func (m *metricsOracle) extractProvider() string {
	model := m.next.GetModel()
	if strings.Contains(model, "gpt") {
		return "openai"
	} else if strings.Contains(model, "claude") {
		return "anthropic"
	} else if strings.Contains(model, "gemini") {
		return "google"
	}
	return "unknown"
}

// GetModel returns the model name from the wrapped implementation.
func (m *metricsOracle) GetModel() string { return m.next.GetModel() }
