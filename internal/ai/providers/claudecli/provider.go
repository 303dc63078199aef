// Package claudecli generates text by invoking the locally installed claude
// CLI. It needs no API key; the CLI carries its own credentials.
package claudecli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"driftline/pkg/drift"
)

const (
	defaultModel = "haiku"

	// stderrSnippetLimit caps how much CLI stderr ends up in error text.
	stderrSnippetLimit = 200

	// pipeWaitDelay bounds how long Run waits for grandchildren that keep the
	// output pipes open after the CLI itself was killed on context expiry.
	pipeWaitDelay = time.Second
)

// ProviderConfig configures one claude CLI provider instance.
type ProviderConfig struct {
	// Model is the model alias passed to the CLI. Zero defaults to haiku.
	Model string
	// Binary optionally overrides the executable name looked up on PATH.
	Binary string
}

// Provider shells out to the claude CLI for each generation request.
type Provider struct {
	model  string
	binary string

	lookOnce sync.Once
	lookErr  error
}

// New builds one claude CLI provider instance.
func New(cfg ProviderConfig) (*Provider, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = defaultModel
	}
	binary := strings.TrimSpace(cfg.Binary)
	if binary == "" {
		binary = "claude"
	}

	return &Provider{model: model, binary: binary}, nil
}

// Name returns the registry key of this provider.
func (p *Provider) Name() string {
	return "claudecli"
}

// Available reports whether the CLI binary is on PATH.
//
// The lookup runs once per provider instance; PATH does not change under a
// running process.
func (p *Provider) Available(_ context.Context) bool {
	p.lookOnce.Do(func() {
		_, p.lookErr = exec.LookPath(p.binary)
	})

	return p.lookErr == nil
}

// Generate runs one CLI invocation and returns its trimmed stdout.
func (p *Provider) Generate(ctx context.Context, req drift.GenerateRequest) (string, error) {
	if err := req.Validate(); err != nil {
		return "", fmt.Errorf("claudecli generate: %w", err)
	}
	if !p.Available(ctx) {
		return "", &drift.TaskError{
			Op:       "claudecli generate",
			Kind:     drift.FailureKindPermanent,
			Provider: p.Name(),
			Cause:    fmt.Errorf("%w: %s not found on PATH", drift.ErrProviderUnavailable, p.binary),
		}
	}

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = p.model
	}

	cmd := exec.CommandContext(ctx, p.binary, "-p", req.Prompt, "--model", model)
	cmd.WaitDelay = pipeWaitDelay
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &drift.TaskError{
				Op:       "claudecli generate",
				Kind:     drift.ClassifyError(ctxErr),
				Provider: p.Name(),
				Cause:    ctxErr,
			}
		}

		return "", &drift.TaskError{
			Op:       "claudecli generate",
			Kind:     drift.FailureKindPermanent,
			Provider: p.Name(),
			Cause:    fmt.Errorf("run %s: %w: %s", p.binary, err, stderrSnippet(stderr.String())),
		}
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", &drift.TaskError{
			Op:       "claudecli generate",
			Kind:     drift.FailureKindPermanent,
			Provider: p.Name(),
			Cause:    fmt.Errorf("empty output from %s", p.binary),
		}
	}

	return text, nil
}

func stderrSnippet(raw string) string {
	snippet := strings.TrimSpace(raw)
	if snippet == "" {
		return "<no stderr>"
	}
	if line, _, found := strings.Cut(snippet, "\n"); found {
		snippet = line
	}
	if len(snippet) > stderrSnippetLimit {
		snippet = snippet[:stderrSnippetLimit]
	}

	return snippet
}

var _ drift.Provider = (*Provider)(nil)
