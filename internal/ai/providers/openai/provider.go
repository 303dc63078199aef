// Package openai generates text through the OpenAI Responses API.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"driftline/pkg/drift"
)

const (
	defaultModel = "gpt-4o"

	// defaultMaxTokens bounds completions when the request sets no cap.
	defaultMaxTokens = 1024
)

// ProviderConfig configures one OpenAI-backed provider instance.
type ProviderConfig struct {
	// APIKey is the credential used to authenticate requests. Zero falls
	// back to the OPENAI_API_KEY environment variable.
	APIKey string
	// Model is the model used for generation. Zero selects the default.
	Model string
	// BaseURL optionally overrides the OpenAI endpoint.
	BaseURL string
}

// Provider talks to the OpenAI Responses API.
//
// SDK-internal retries are disabled; the task coordinator owns retry policy.
type Provider struct {
	responses responsesClient
	model     string
	apiKey    string
}

type responsesClient interface {
	New(ctx context.Context, body responses.ResponseNewParams, opts ...option.RequestOption) (*responses.Response, error)
}

// New builds one OpenAI API provider instance.
//
// A missing API key is not a construction error: the provider reports
// unavailable instead, so the reader runs fine with AI features off.
func New(cfg ProviderConfig) (*Provider, error) {
	normalized, err := normalizeProviderConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("new openai provider: %w", err)
	}

	options := make([]option.RequestOption, 0, 3)
	options = append(options, option.WithAPIKey(normalized.APIKey), option.WithMaxRetries(0))
	if normalized.BaseURL != "" {
		options = append(options, option.WithBaseURL(normalized.BaseURL))
	}

	client := openai.NewClient(options...)

	return &Provider{
		responses: client.Responses,
		model:     normalized.Model,
		apiKey:    normalized.APIKey,
	}, nil
}

// Name returns the registry key of this provider.
func (p *Provider) Name() string {
	return "openai"
}

// Available reports whether an API key is configured.
func (p *Provider) Available(_ context.Context) bool {
	return p.apiKey != ""
}

// Generate sends one Responses request and returns its output text.
func (p *Provider) Generate(ctx context.Context, req drift.GenerateRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("openai generate: %w", err)
	}
	if !p.Available(ctx) {
		return "", &drift.TaskError{
			Op:       "openai generate",
			Kind:     drift.FailureKindPermanent,
			Provider: p.Name(),
			Cause:    fmt.Errorf("%w: missing api key", drift.ErrProviderUnavailable),
		}
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.model
	}
	maxTokens := int64(req.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	resp, err := p.responses.New(ctx, responses.ResponseNewParams{
		Model: model,
		Input: responses.ResponseNewParamsInputUnion{
			OfString: openai.String(req.Prompt),
		},
		MaxOutputTokens: openai.Int(maxTokens),
	})
	if err != nil {
		return "", p.classify(err)
	}

	text := strings.TrimSpace(resp.OutputText())
	if text == "" {
		return "", &drift.TaskError{
			Op:       "openai generate",
			Kind:     drift.FailureKindPermanent,
			Provider: p.Name(),
			Cause:    errors.New("response carries no output text"),
		}
	}

	return text, nil
}

func (p *Provider) classify(err error) error {
	taskErr := &drift.TaskError{
		Op:       "openai generate",
		Provider: p.Name(),
		Cause:    err,
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		taskErr.Kind = drift.ClassifyStatus(apiErr.StatusCode)
		taskErr.Code = apiErr.StatusCode
		if taskErr.Kind == drift.FailureKindRateLimited && apiErr.Response != nil {
			taskErr.RetryAfter = retryAfterHeader(apiErr.Response.Header)
		}

		return taskErr
	}

	taskErr.Kind = drift.ClassifyTransport(err)

	return taskErr
}

func retryAfterHeader(header http.Header) time.Duration {
	seconds, err := strconv.Atoi(header.Get("Retry-After"))
	if err != nil || seconds <= 0 {
		return 0
	}

	return time.Duration(seconds) * time.Second
}

func normalizeProviderConfig(cfg ProviderConfig) (ProviderConfig, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	if cfg.APIKey == "" {
		cfg.APIKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
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
