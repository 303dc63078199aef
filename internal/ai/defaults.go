package ai

import (
	"driftline/internal/ai/providers/anthropic"
	"driftline/internal/ai/providers/claudecli"
	"driftline/internal/ai/providers/gemini"
	"driftline/internal/ai/providers/openai"
	"driftline/pkg/drift"
)

// DefaultRegistry wires the built-in provider factories.
func DefaultRegistry() (*Registry, error) {
	return NewRegistry(map[string]Factory{
		ProviderClaudeCLI: func(cfg ProviderConfig) (drift.Provider, error) {
			return claudecli.New(claudecli.ProviderConfig{
				Model: cfg.Model,
			})
		},
		ProviderAnthropic: func(cfg ProviderConfig) (drift.Provider, error) {
			return anthropic.New(anthropic.ProviderConfig{
				APIKey:  cfg.APIKey,
				Model:   cfg.Model,
				BaseURL: cfg.BaseURL,
			})
		},
		ProviderOpenAI: func(cfg ProviderConfig) (drift.Provider, error) {
			return openai.New(openai.ProviderConfig{
				APIKey:  cfg.APIKey,
				Model:   cfg.Model,
				BaseURL: cfg.BaseURL,
			})
		},
		ProviderGemini: func(cfg ProviderConfig) (drift.Provider, error) {
			return gemini.New(gemini.ProviderConfig{
				APIKey:  cfg.APIKey,
				Model:   cfg.Model,
				BaseURL: cfg.BaseURL,
			})
		},
	})
}
