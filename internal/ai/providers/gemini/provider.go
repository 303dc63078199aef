// Package gemini generates text through the Google Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/url"
	"os"
	"strings"

	"google.golang.org/genai"

	"driftline/pkg/drift"
)

const defaultModel = "gemini-2.0-flash"

// ProviderConfig configures one Gemini-backed provider instance.
type ProviderConfig struct {
	// APIKey is the credential used to authenticate requests. Zero falls
	// back to the GEMINI_API_KEY, then GOOGLE_API_KEY environment variables.
	APIKey string
	// Model is the model used for generation. Zero selects the default.
	Model string
	// BaseURL optionally overrides the Gemini endpoint.
	BaseURL string
}

// Provider talks to the Gemini generate-content API.
type Provider struct {
	models modelsClient
	model  string
	apiKey string
}

type modelsClient interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// New builds one Gemini API provider instance.
//
// Without an API key the client is never constructed; the provider reports
// unavailable and the reader runs fine with AI features off.
func New(cfg ProviderConfig) (*Provider, error) {
	normalized, err := normalizeProviderConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("new gemini provider: %w", err)
	}

	provider := &Provider{model: normalized.Model, apiKey: normalized.APIKey}
	if normalized.APIKey == "" {
		return provider, nil
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  normalized.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: normalized.BaseURL,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("new gemini client: %w", err)
	}
	if client == nil || client.Models == nil {
		return nil, fmt.Errorf("new gemini client: models client is nil")
	}
	provider.models = client.Models

	return provider, nil
}

// Name returns the registry key of this provider.
func (p *Provider) Name() string {
	return "gemini"
}

// Available reports whether an API key is configured.
func (p *Provider) Available(_ context.Context) bool {
	return p.apiKey != "" && p.models != nil
}

// Generate sends one generate-content request and returns the response text.
func (p *Provider) Generate(ctx context.Context, req drift.GenerateRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if !p.Available(ctx) {
		return "", &drift.TaskError{
			Op:       "gemini generate",
			Kind:     drift.FailureKindPermanent,
			Provider: p.Name(),
			Cause:    fmt.Errorf("%w: missing api key", drift.ErrProviderUnavailable),
		}
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.model
	}
	config := &genai.GenerateContentConfig{}
	if req.MaxOutputTokens > 0 {
		if req.MaxOutputTokens > math.MaxInt32 {
			return "", fmt.Errorf("gemini generate: max output tokens exceeds int32 range")
		}
		config.MaxOutputTokens = int32(req.MaxOutputTokens)
	}

	resp, err := p.models.GenerateContent(ctx, model, genai.Text(req.Prompt), config)
	if err != nil {
		return "", p.classify(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", &drift.TaskError{
			Op:       "gemini generate",
			Kind:     drift.FailureKindPermanent,
			Provider: p.Name(),
			Cause:    errors.New("response carries no text"),
		}
	}

	return text, nil
}

func (p *Provider) classify(err error) error {
	taskErr := &drift.TaskError{
		Op:       "gemini generate",
		Provider: p.Name(),
		Cause:    err,
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		taskErr.Kind = drift.ClassifyStatus(apiErr.Code)
		taskErr.Code = apiErr.Code

		return taskErr
	}

	taskErr.Kind = drift.ClassifyTransport(err)

	return taskErr
}

func normalizeProviderConfig(cfg ProviderConfig) (ProviderConfig, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	}
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}

	cfg.BaseURL = strings.TrimSpace(cfg.BaseURL)
	if cfg.BaseURL != "" {
		parsed, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return ProviderConfig{}, fmt.Errorf("parse base_url: %w", err)
		}
		if parsed.Scheme == "" || parsed.Host == "" {
			return ProviderConfig{}, fmt.Errorf("parse base_url: must include scheme and host")
		}
	}

	return cfg, nil
}

var _ drift.Provider = (*Provider)(nil)
