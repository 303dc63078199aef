package drift

import (
	"context"
	"fmt"
	"strings"
)

// GenerateRequest is one prompt sent to an AI provider.
type GenerateRequest struct {
	// Prompt is the full prompt text.
	Prompt string
	// Model optionally overrides the provider's configured model.
	Model string
	// MaxOutputTokens optionally caps the generated length.
	MaxOutputTokens int
}

// Validate checks that the request can be sent.
func (r GenerateRequest) Validate() error {
	if strings.TrimSpace(r.Prompt) == "" {
		return fmt.Errorf("validate generate request: empty prompt")
	}
	if r.MaxOutputTokens < 0 {
		return fmt.Errorf("validate generate request: negative max output tokens")
	}

	return nil
}

// Provider is one AI backend capable of turning a prompt into text.
//
// Generate failures must surface as *TaskError so the coordinator can apply
// its retry policy structurally. Implementations must honor ctx cancellation;
// the coordinator relies on it for cooperative timeout abort.
type Provider interface {
	// Name returns the registry key of this provider.
	Name() string
	// Available reports whether the provider can currently serve requests,
	// e.g. credentials are configured or the backing binary is installed.
	Available(ctx context.Context) bool
	// Generate produces completion text for the request.
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}
