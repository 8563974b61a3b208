package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	// AnthropicDefaultModel is the default Anthropic model.
	AnthropicDefaultModel = "claude-3-5-sonnet-20241022"

	// scoreMaxTokens bounds the reply; a score object needs very few.
	scoreMaxTokens = 64
)

func init() {
	RegisterProviderFactory("anthropic", newAnthropicProvider)
}

// anthropicProvider implements the CoreOracle interface for Anthropic's
// Claude API. It handles Anthropic-specific request formatting and response
// parsing while conforming to the common interface for middleware
// compatibility.
type anthropicProvider struct {
	client anthropic.Client
	model  string
}

// newAnthropicProvider creates a new Anthropic provider instance and
// validates that required configuration is present.
func newAnthropicProvider(config ClientConfig) (CoreOracle, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = AnthropicDefaultModel
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(config.BaseURL))
	}
	if config.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(config.Timeout))
	}

	return &anthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  model,
	}, nil
}

// DoRequest sends the prompt to Anthropic's Claude API and returns the
// concatenated text blocks of the reply.
func (p *anthropicProvider) DoRequest(ctx context.Context, prompt string) (string, error) {
	// Zero temperature keeps run-to-run variance as low as the model allows.
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   scoreMaxTokens,
		Temperature: anthropic.Float(0),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	message, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return "", p.wrapError(err)
	}

	var responseText strings.Builder
	for _, block := range message.Content {
		switch content := block.AsAny().(type) {
		case anthropic.TextBlock:
			responseText.WriteString(content.Text)
		}
	}

	response := responseText.String()
	if response == "" {
		return "", fmt.Errorf("anthropic: %w", ErrEmptyResponse)
	}
	return response, nil
}

// wrapError wraps Anthropic SDK errors with more specific context.
func (p *anthropicProvider) wrapError(err error) error {
	var anthropicErr *anthropic.Error
	if errors.As(err, &anthropicErr) {
		switch anthropicErr.StatusCode {
		case 401:
			return fmt.Errorf("anthropic authentication failed: check API key (%d): %w", anthropicErr.StatusCode, err)
		case 429:
			return fmt.Errorf("anthropic rate limit exceeded: %w", err)
		case 400:
			return fmt.Errorf("anthropic bad request: check parameters (%d): %w", anthropicErr.StatusCode, err)
		case 500, 502, 503, 504:
			return fmt.Errorf("anthropic server error (%d): %w", anthropicErr.StatusCode, err)
		default:
			return fmt.Errorf("anthropic API error (%d): %w", anthropicErr.StatusCode, err)
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("anthropic request timeout: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("anthropic request canceled: %w", err)
	}

	return fmt.Errorf("anthropic request failed: %w", err)
}

// GetModel returns the currently configured Anthropic model name.
func (p *anthropicProvider) GetModel() string { return p.model }
