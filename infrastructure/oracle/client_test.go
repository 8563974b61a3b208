package oracle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCore is a scriptable CoreOracle for exercising the client and
// middleware without network access.
type fakeCore struct {
	mu       sync.Mutex
	response string
	err      error
	model    string
	prompts  []string
}

func (f *fakeCore) DoRequest(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	return f.response, f.err
}

func (f *fakeCore) GetModel() string { return f.model }

func newTestClient(core CoreOracle) *Client {
	return &Client{name: "oracle-test", core: core}
}

func TestExtractScore(t *testing.T) {
	tests := []struct {
		name     string
		response string
		want     int
		wantErr  bool
	}{
		{
			name:     "bare object",
			response: `{"score": 85}`,
			want:     85,
		},
		{
			name:     "zero is a valid judgment",
			response: `{"score": 0}`,
			want:     0,
		},
		{
			name:     "markdown json fence",
			response: "```json\n{\"score\": 42}\n```",
			want:     42,
		},
		{
			name:     "generic fence",
			response: "```\n{\"score\": 71}\n```",
			want:     71,
		},
		{
			name:     "surrounding prose",
			response: `Here is my rating: {"score": 90} based on the review.`,
			want:     90,
		},
		{
			name:     "braces inside strings do not break extraction",
			response: `{"note": "see {draft}", "score": 55}`,
			want:     55,
		},
		{
			name:     "no json at all",
			response: "I would rate this review an 85.",
			wantErr:  true,
		},
		{
			name:     "missing score field",
			response: `{"rating": 85}`,
			wantErr:  true,
		},
		{
			name:     "non-integer score",
			response: `{"score": "high"}`,
			wantErr:  true,
		},
		{
			name:     "empty response",
			response: "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractScore(tt.response)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrMalformedReply)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClient_Score(t *testing.T) {
	core := &fakeCore{response: `{"score": 77}`, model: "test-model"}
	client := newTestClient(core)

	got, err := client.Score(context.Background(), "A luminous production.")
	require.NoError(t, err)
	assert.Equal(t, 77, got)

	require.Len(t, core.prompts, 1)
	assert.Contains(t, core.prompts[0], "A luminous production.")
	assert.Contains(t, core.prompts[0], `{"score": N}`)
}

func TestClient_Score_OutOfRange(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"above scale", `{"score": 101}`},
		{"below scale", `{"score": -1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(&fakeCore{response: tt.response})
			_, err := client.Score(context.Background(), "text")
			assert.ErrorIs(t, err, ErrScoreOutOfRange)
		})
	}
}

func TestClient_Score_ProviderError(t *testing.T) {
	providerErr := errors.New("upstream unavailable")
	client := newTestClient(&fakeCore{err: providerErr})

	_, err := client.Score(context.Background(), "text")
	require.Error(t, err)
	assert.ErrorIs(t, err, providerErr)
	assert.Contains(t, err.Error(), "oracle-test")
}

func TestNewClient_Validation(t *testing.T) {
	tests := []struct {
		name         string
		providerType string
		config       ClientConfig
		wantErr      string
	}{
		{
			name:         "missing name",
			providerType: "openai",
			config:       ClientConfig{APIKey: "k"},
			wantErr:      "name is required",
		},
		{
			name:         "missing api key",
			providerType: "openai",
			config:       ClientConfig{Name: "oracle-b"},
			wantErr:      "API key",
		},
		{
			name:         "unknown provider",
			providerType: "carrier-pigeon",
			config:       ClientConfig{Name: "oracle-x", APIKey: "k"},
			wantErr:      "unknown provider",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.providerType, tt.config)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewClient_MiddlewareOrder(t *testing.T) {
	var order []string
	tag := func(name string) Middleware {
		return func(next CoreOracle) CoreOracle {
			return &tagOracle{next: next, name: name, order: &order}
		}
	}

	RegisterProviderFactory("static", func(ClientConfig) (CoreOracle, error) {
		return &fakeCore{response: `{"score": 50}`, model: "static"}, nil
	})

	client, err := NewClient("static", ClientConfig{
		Name:       "oracle-static",
		APIKey:     "unused",
		Middleware: []Middleware{tag("outer"), tag("inner")},
	})
	require.NoError(t, err)

	_, err = client.Score(context.Background(), "text")
	require.NoError(t, err)

	// The first configured middleware must be the outermost wrapper.
	assert.Equal(t, []string{"outer", "inner"}, order)
}

type tagOracle struct {
	next  CoreOracle
	name  string
	order *[]string
}

func (o *tagOracle) DoRequest(ctx context.Context, prompt string) (string, error) {
	*o.order = append(*o.order, o.name)
	return o.next.DoRequest(ctx, prompt)
}

func (o *tagOracle) GetModel() string { return o.next.GetModel() }

func TestRateLimitMiddleware_CancelledContext(t *testing.T) {
	// A drained bucket forces Wait to block, so cancellation must surface.
	limited := RateLimitMiddleware(1, 1)(&fakeCore{response: `{"score": 50}`})

	ctx, cancel := context.WithCancel(context.Background())
	_, err := limited.DoRequest(ctx, "first")
	require.NoError(t, err)

	cancel()
	_, err = limited.DoRequest(ctx, "second")
	assert.Error(t, err)
}

type recordingCollector struct {
	mu         sync.Mutex
	counters   map[string]float64
	histograms map[string]int
	labels     map[string]string
}

func newRecordingCollector() *recordingCollector {
	return &recordingCollector{
		counters:   make(map[string]float64),
		histograms: make(map[string]int),
	}
}

func (c *recordingCollector) RecordLatency(string, time.Duration, map[string]string) {}

func (c *recordingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters[metric] += value
	c.labels = labels
}

func (c *recordingCollector) RecordHistogram(metric string, _ float64, _ map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histograms[metric]++
}

func TestMetricsMiddleware(t *testing.T) {
	collector := newRecordingCollector()

	t.Run("success labels", func(t *testing.T) {
		wrapped := MetricsMiddleware(collector)(&fakeCore{response: "ok", model: "claude-test"})
		_, err := wrapped.DoRequest(context.Background(), "prompt")
		require.NoError(t, err)

		assert.Equal(t, 1.0, collector.counters["oracle_requests_total"])
		assert.Equal(t, 1, collector.histograms["oracle_latency_seconds"])
		assert.Equal(t, "success", collector.labels["status"])
		assert.Equal(t, "anthropic", collector.labels["provider"])
	})

	t.Run("error labels", func(t *testing.T) {
		wrapped := MetricsMiddleware(collector)(&fakeCore{err: errors.New("boom"), model: "gpt-test"})
		_, err := wrapped.DoRequest(context.Background(), "prompt")
		require.Error(t, err)

		assert.Equal(t, "error", collector.labels["status"])
		assert.Equal(t, "openai", collector.labels["provider"])
	})
}

func TestTracingMiddleware_PassThrough(t *testing.T) {
	// Without a configured tracer provider spans are no-ops; the middleware
	// must still forward the request and its result untouched.
	wrapped := TracingMiddleware()(&fakeCore{response: `{"score": 64}`, model: "gemini-test"})

	got, err := wrapped.DoRequest(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"score": 64}`, got)
	assert.Equal(t, "gemini-test", wrapped.GetModel())
}
