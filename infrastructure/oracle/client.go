// Package oracle provides automated review raters backed by hosted LLM
// providers, exposed behind a common interface with pluggable middleware.
//
// The package abstracts multiple providers (Anthropic, OpenAI, Google)
// behind the CoreOracle interface while adding cross-cutting concerns
// through a middleware pattern, so the ensemble can switch or reorder
// oracles without changing client code.
//
// Architecture:
//   - Client adapts a provider-specific CoreOracle to ports.ScoreOracle
//   - Provider implementations registered through a factory map
//   - Pluggable middleware for rate limiting, metrics, and tracing
//   - Strict JSON score extraction shared across providers
//
// Retry and fallback between oracles belong to the ensemble scorer, not
// to this package; middleware here never re-issues a failed request.
//
// Basic usage:
//
//	o, err := oracle.NewClient("anthropic", oracle.ClientConfig{
//	    Name:   "oracle-a",
//	    APIKey: os.Getenv("ANTHROPIC_API_KEY"),
//	    Middleware: []oracle.Middleware{
//	        oracle.RateLimitMiddleware(10, 20),
//	        oracle.MetricsMiddleware(collector),
//	    },
//	})
//	score, err := o.Score(ctx, reviewText)
package oracle

import (
	"context"
	"fmt"
	"time"

	"github.com/stagedoor/marquee/internal/domain"
	"github.com/stagedoor/marquee/internal/ports"
)

// CoreOracle defines the minimal interface a provider must implement.
// It abstracts a single round trip to the underlying model, allowing the
// middleware system to wrap any conforming implementation.
type CoreOracle interface {
	// DoRequest sends a prompt to the provider and returns the raw
	// response text.
	DoRequest(ctx context.Context, prompt string) (string, error)

	// GetModel returns the currently configured model name.
	GetModel() string
}

// Middleware wraps a CoreOracle to add cross-cutting functionality.
// This pattern allows composition of rate limiting, metrics collection,
// and tracing without modifying provider logic.
type Middleware func(CoreOracle) CoreOracle

// ClientConfig holds all configuration for creating an oracle client.
type ClientConfig struct {
	// Name identifies this oracle in errors, flags, and metrics.
	// Required; the ensemble refers to oracles by this name.
	Name string

	// APIKey authenticates requests to the provider.
	APIKey string

	// Model overrides the provider's default model.
	Model string

	// BaseURL overrides the default API endpoint for the provider.
	// Leave empty to use the provider's default endpoint.
	BaseURL string

	// Timeout bounds individual requests. Zero means no timeout.
	Timeout time.Duration

	// Middleware is applied in the order specified, the first entry
	// outermost.
	Middleware []Middleware
}

// Client adapts a CoreOracle to ports.ScoreOracle. It owns the prompt
// construction and the strict-JSON score extraction; providers only move
// text across the wire.
type Client struct {
	name string
	core CoreOracle
}

var _ ports.ScoreOracle = (*Client)(nil)

// NewClient creates an oracle client for the given provider type.
// It assembles the middleware chain and validates configuration before
// returning a ready-to-use client.
func NewClient(providerType string, config ClientConfig) (*Client, error) {
	if config.Name == "" {
		return nil, fmt.Errorf("oracle name is required")
	}
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	factory, ok := providerFactories[providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider: %s", providerType)
	}

	core, err := factory(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	// Apply middleware in reverse order so the first middleware is the outermost.
	for i := len(config.Middleware) - 1; i >= 0; i-- {
		core = config.Middleware[i](core)
	}

	return &Client{name: config.Name, core: core}, nil
}

// Name identifies the oracle in errors, flags, and metrics.
func (c *Client) Name() string { return c.name }

// Score rates the given review text on the 0-100 scale. The provider is
// asked for a strict JSON reply; anything that does not yield an in-range
// integer is an error. A score of exactly 0 is a valid judgment.
func (c *Client) Score(ctx context.Context, text string) (int, error) {
	response, err := c.core.DoRequest(ctx, buildScorePrompt(text))
	if err != nil {
		return 0, fmt.Errorf("oracle %s: %w", c.name, err)
	}

	score, err := extractScore(response)
	if err != nil {
		return 0, fmt.Errorf("oracle %s: %w", c.name, err)
	}
	if score < domain.MinScore || score > domain.MaxScore {
		return 0, fmt.Errorf("oracle %s returned %d: %w", c.name, score, ErrScoreOutOfRange)
	}
	return score, nil
}

// ProviderFactory creates a CoreOracle implementation from configuration.
type ProviderFactory func(ClientConfig) (CoreOracle, error)

// Provider factory registry for extensibility.
// This allows registration of custom providers at runtime
// while maintaining type safety and initialization validation.
var providerFactories = map[string]ProviderFactory{}

// RegisterProviderFactory allows registration of custom provider
// factories, enabling extension without modifying this package.
func RegisterProviderFactory(providerType string, factory ProviderFactory) {
	providerFactories[providerType] = factory
}
