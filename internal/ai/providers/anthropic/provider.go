// Package anthropic generates text through the Anthropic Messages API.
package anthropic

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

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"driftline/pkg/drift"
)

const (
	defaultModel = "claude-sonnet-4-5-20250929"

	// defaultMaxTokens applies when the request sets no cap; the Messages API
	// requires one.
	defaultMaxTokens = 4096
)

// ProviderConfig configures one Anthropic-backed provider instance.
type ProviderConfig struct {
	// APIKey is the credential used to authenticate requests. Zero falls
	// back to the ANTHROPIC_API_KEY environment variable.
	APIKey string
	// Model is the model used for generation. Zero selects the default.
	Model string
	// BaseURL optionally overrides the Anthropic endpoint.
	BaseURL string
}

// Provider talks to the Anthropic Messages API.
//
// SDK-internal retries are disabled; the task coordinator owns retry policy.
type Provider struct {
	messages messagesClient
	model    string
	apiKey   string
}

type messagesClient interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// New builds one Anthropic API provider instance.
//
// A missing API key is not a construction error: the provider reports
// unavailable instead, so the reader runs fine with AI features off.
func New(cfg ProviderConfig) (*Provider, error) {
	normalized, err := normalizeProviderConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("new anthropic provider: %w", err)
	}

	options := make([]option.RequestOption, 0, 3)
	options = append(options, option.WithAPIKey(normalized.APIKey), option.WithMaxRetries(0))
	if normalized.BaseURL != "" {
		options = append(options, option.WithBaseURL(normalized.BaseURL))
	}

	client := anthropic.NewClient(options...)

	return &Provider{
		messages: client.Messages,
		model:    normalized.Model,
		apiKey:   normalized.APIKey,
	}, nil
}

// Name returns the registry key of this provider.
func (p *Provider) Name() string {
	return "anthropic"
}

// Available reports whether an API key is configured.
func (p *Provider) Available(_ context.Context) bool {
	return p.apiKey != ""
}

// Generate sends one Messages request and returns the concatenated text blocks.
func (p *Provider) Generate(ctx context.Context, req drift.GenerateRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("anthropic generate: %w", err)
	}
	if !p.Available(ctx) {
		return "", &drift.TaskError{
			Op:       "anthropic generate",
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

	message, err := p.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		return "", p.classify(err)
	}

	var text strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	trimmed := strings.TrimSpace(text.String())
	if trimmed == "" {
		return "", &drift.TaskError{
			Op:       "anthropic generate",
			Kind:     drift.FailureKindPermanent,
			Provider: p.Name(),
			Cause:    errors.New("response carries no text blocks"),
		}
	}

	return trimmed, nil
}

func (p *Provider) classify(err error) error {
	taskErr := &drift.TaskError{
		Op:       "anthropic generate",
		Provider: p.Name(),
		Cause:    err,
	}

	var apiErr *anthropic.Error
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
		cfg.APIKey = strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY"))
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
