package ai

import (
	"fmt"
	"sort"
	"strings"

	"driftline/pkg/drift"
)

// Canonical provider names accepted in configuration.
const (
	ProviderClaudeCLI = "claudecli"
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
)

// ProviderConfig carries the provider selection knobs from configuration.
type ProviderConfig struct {
	// Name selects the provider factory.
	Name string
	// APIKey authenticates API-backed providers. The claudecli provider
	// ignores it; the CLI carries its own credentials.
	APIKey string
	// Model optionally overrides the provider's default model.
	Model string
	// BaseURL optionally overrides the provider endpoint.
	BaseURL string
}

// Factory builds one provider instance from configuration.
type Factory func(cfg ProviderConfig) (drift.Provider, error)

// Registry resolves provider factories by stable configuration name.
//
// The factory map is copied on construction and remains immutable afterward,
// so Build is concurrency-safe.
type Registry struct {
	factories map[string]Factory
}

// NewRegistry constructs one immutable provider factory registry.
func NewRegistry(factories map[string]Factory) (*Registry, error) {
	if len(factories) == 0 {
		return nil, fmt.Errorf("new provider registry: empty factories")
	}

	cloned := make(map[string]Factory, len(factories))
	for name, factory := range factories {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			return nil, fmt.Errorf("new provider registry: empty provider name")
		}
		if factory == nil {
			return nil, fmt.Errorf("new provider registry: factory %s is nil", trimmed)
		}
		if _, exists := cloned[trimmed]; exists {
			return nil, fmt.Errorf("new provider registry: duplicate provider name %s", trimmed)
		}
		cloned[trimmed] = factory
	}

	return &Registry{factories: cloned}, nil
}

// Known reports whether a factory is registered under the name.
func (r *Registry) Known(name string) bool {
	if r == nil {
		return false
	}
	_, exists := r.factories[strings.TrimSpace(name)]

	return exists
}

// Names returns the registered provider names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// Build resolves the factory named by cfg and constructs the provider.
func (r *Registry) Build(cfg ProviderConfig) (drift.Provider, error) {
	if r == nil {
		return nil, fmt.Errorf("build provider: nil registry")
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		return nil, fmt.Errorf("build provider: %w: empty name", drift.ErrUnknownProvider)
	}

	factory, exists := r.factories[name]
	if !exists {
		return nil, fmt.Errorf("build provider %s: %w", name, drift.ErrUnknownProvider)
	}

	provider, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("build provider %s: %w", name, err)
	}
	if provider == nil {
		return nil, fmt.Errorf("build provider %s: factory returned nil provider", name)
	}

	return provider, nil
}
