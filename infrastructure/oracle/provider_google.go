package oracle

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/genai"
)

// GoogleDefaultModel is the default model for the Google provider.
const GoogleDefaultModel = "gemini-2.0-flash-exp"

func init() {
	RegisterProviderFactory("google", newGoogleProvider)
}

// googleProvider implements the CoreOracle interface for Google's Gemini
// API. It handles Google-specific authentication, request formatting, and
// error handling while conforming to the common interface for middleware
// compatibility.
type googleProvider struct {
	client *genai.Client
	model  string
}

// newGoogleProvider creates a new Google Gemini provider instance,
// authenticating with the configured API key.
func newGoogleProvider(config ClientConfig) (CoreOracle, error) {
	if config.APIKey == "" {
		return nil, ErrEmptyAPIKey
	}

	model := config.Model
	if model == "" {
		model = GoogleDefaultModel
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google client: %w", err)
	}

	return &googleProvider{client: client, model: model}, nil
}

// DoRequest sends the prompt to the Google Gemini API and returns the
// generated text.
func (p *googleProvider) DoRequest(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(0)),
		MaxOutputTokens: scoreMaxTokens,
	}

	resp, err := p.client.Models.GenerateContent(ctx, p.model, contents, config)
	if err != nil {
		return "", p.wrapError(err)
	}

	content := resp.Text()
	if content == "" {
		return "", fmt.Errorf("google: %w", ErrEmptyResponse)
	}
	return content, nil
}

// wrapError provides structured error handling for Google API responses.
func (p *googleProvider) wrapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("google request timeout: %w", err)
	}
	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("google request canceled: %w", err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if containsContentPolicyError(apiErr) {
			return fmt.Errorf("google request blocked by safety filters (%d): %w", apiErr.Code, err)
		}
		switch apiErr.Code {
		case 401, 403:
			return fmt.Errorf("google authentication failed: check API key (%d): %w", apiErr.Code, err)
		case 429:
			return fmt.Errorf("google rate limit exceeded: %w", err)
		case 500, 502, 503, 504:
			return fmt.Errorf("google server error (%d): %w", apiErr.Code, err)
		default:
			return fmt.Errorf("google API error (%d): %w", apiErr.Code, err)
		}
	}

	return fmt.Errorf("google request failed: %w", err)
}

// containsContentPolicyError checks if a Google API error is related to
// content policy violations.
func containsContentPolicyError(apiErr *googleapi.Error) bool {
	if apiErr.Message != "" {
		lower := strings.ToLower(apiErr.Message)
		if strings.Contains(lower, "safety") ||
			strings.Contains(lower, "policy") ||
			strings.Contains(lower, "blocked") {
			return true
		}
	}

	for _, e := range apiErr.Errors {
		if e.Reason == "SAFETY" || e.Reason == "BLOCKED" {
			return true
		}
	}
	return false
}

// GetModel returns the currently configured Google model name.
func (p *googleProvider) GetModel() string { return p.model }
