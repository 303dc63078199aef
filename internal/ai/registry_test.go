package ai

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"driftline/pkg/drift"
)

type registryProviderStub struct {
	name string
}

func (p *registryProviderStub) Name() string                   { return p.name }
func (p *registryProviderStub) Available(context.Context) bool { return true }
func (p *registryProviderStub) Generate(context.Context, drift.GenerateRequest) (string, error) {
	return "", nil
}

func stubFactory(name string) Factory {
	return func(ProviderConfig) (drift.Provider, error) {
		return &registryProviderStub{name: name}, nil
	}
}

func TestNewRegistryValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		factories        map[string]Factory
		wantErrSubstring string
	}{
		{
			name:             "empty factories",
			factories:        nil,
			wantErrSubstring: "empty factories",
		},
		{
			name:             "blank provider name",
			factories:        map[string]Factory{"  ": stubFactory("x")},
			wantErrSubstring: "empty provider name",
		},
		{
			name:             "nil factory",
			factories:        map[string]Factory{"x": nil},
			wantErrSubstring: "factory x is nil",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := NewRegistry(testCase.factories)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), testCase.wantErrSubstring) {
				t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstring)
			}
		})
	}
}

func TestRegistryBuildResolvesFactory(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(map[string]Factory{
		"one": stubFactory("one"),
		"two": stubFactory("two"),
	})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	provider, err := registry.Build(ProviderConfig{Name: "two"})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if provider.Name() != "two" {
		t.Errorf("provider = %q, want two", provider.Name())
	}

	if !registry.Known("one") || registry.Known("missing") {
		t.Error("Known misreports registered names")
	}
	if got := registry.Names(); !reflect.DeepEqual(got, []string{"one", "two"}) {
		t.Errorf("Names = %v, want sorted [one two]", got)
	}
}

func TestRegistryBuildUnknownProvider(t *testing.T) {
	t.Parallel()

	registry, err := NewRegistry(map[string]Factory{"one": stubFactory("one")})
	if err != nil {
		t.Fatalf("NewRegistry failed: %v", err)
	}

	for _, name := range []string{"ollama", ""} {
		if _, err := registry.Build(ProviderConfig{Name: name}); !errors.Is(err, drift.ErrUnknownProvider) {
			t.Errorf("Build(%q) error = %v, want ErrUnknownProvider", name, err)
		}
	}
}

func TestDefaultRegistryCarriesBuiltins(t *testing.T) {
	t.Parallel()

	registry, err := DefaultRegistry()
	if err != nil {
		t.Fatalf("DefaultRegistry failed: %v", err)
	}

	want := []string{ProviderAnthropic, ProviderClaudeCLI, ProviderGemini, ProviderOpenAI}
	if got := registry.Names(); !reflect.DeepEqual(got, want) {
		t.Errorf("Names = %v, want %v", got, want)
	}

	provider, err := registry.Build(ProviderConfig{Name: ProviderClaudeCLI, Model: "haiku"})
	if err != nil {
		t.Fatalf("Build claudecli failed: %v", err)
	}
	if provider.Name() != ProviderClaudeCLI {
		t.Errorf("provider name = %q, want %q", provider.Name(), ProviderClaudeCLI)
	}
}
