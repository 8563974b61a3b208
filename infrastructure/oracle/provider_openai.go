package oracle

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIDefaultModel is the default OpenAI model.
const OpenAIDefaultModel = "gpt-4o-mini"

func init() {
	RegisterProviderFactory("openai", newOpenAIProvider)
}

// openAIProvider implements the CoreOracle interface for OpenAI's chat
// completion API.
type openAIProvider struct {
	client *openai.Client
	model  string
}

// newOpenAIProvider creates a new OpenAI provider instance and validates
// required settings like API key presence.
func newOpenAIProvider(config ClientConfig) (CoreOracle, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = OpenAIDefaultModel
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if config.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: config.Timeout}
	}

	return &openAIProvider{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}, nil
}

// DoRequest sends the prompt to the OpenAI API and returns the first
// choice's content.
func (p *openAIProvider) DoRequest(ctx context.Context, prompt string) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       p.model,
		Temperature: 0,
		MaxTokens:   scoreMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}

	resp, err := p.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return "", p.wrapError(err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}

	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", fmt.Errorf("openai: %w", ErrEmptyResponse)
	}
	return content, nil
}

// wrapError classifies and wraps errors from the OpenAI API.
func (p *openAIProvider) wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("openai request timeout: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("openai request canceled: %w", err)
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case 401:
			return fmt.Errorf("openai authentication failed: check API key: %w", err)
		case 429:
			return fmt.Errorf("openai rate limit exceeded: %w", err)
		case 500, 502, 503, 504:
			return fmt.Errorf("openai server error (%d): %w", apiErr.HTTPStatusCode, err)
		default:
			return fmt.Errorf("openai API error (%d): %w", apiErr.HTTPStatusCode, err)
		}
	}

	return fmt.Errorf("openai request failed: %w", err)
}

// GetModel returns the currently configured OpenAI model name.
func (p *openAIProvider) GetModel() string { return p.model }
