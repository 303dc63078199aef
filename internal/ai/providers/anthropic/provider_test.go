package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"driftline/pkg/drift"
)

type messagesClientStub struct {
	message *anthropic.Message
	err     error

	gotParams anthropic.MessageNewParams
	calls     int
}

func (s *messagesClientStub) New(
	_ context.Context,
	body anthropic.MessageNewParams,
	_ ...option.RequestOption,
) (*anthropic.Message, error) {
	s.calls++
	s.gotParams = body
	if s.err != nil {
		return nil, s.err
	}

	return s.message, nil
}

func mustUnmarshalMessage(t *testing.T, raw string) *anthropic.Message {
	t.Helper()

	var message anthropic.Message
	if err := json.Unmarshal([]byte(raw), &message); err != nil {
		t.Fatalf("unmarshal message: %v", err)
	}

	return &message
}

func textMessage(t *testing.T, text string) *anthropic.Message {
	t.Helper()

	raw, err := json.Marshal(map[string]any{
		"content": []map[string]any{{"type": "text", "text": text}},
	})
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}

	return mustUnmarshalMessage(t, string(raw))
}

func apiError(t *testing.T, status int, header http.Header) *anthropic.Error {
	t.Helper()

	request := httptest.NewRequest(http.MethodPost, "https://api.anthropic.com/v1/messages", nil)

	return &anthropic.Error{
		StatusCode: status,
		Request:    request,
		Response:   &http.Response{StatusCode: status, Header: header},
	}
}

func TestNewProviderConfigValidation(t *testing.T) {
	tests := []struct {
		name             string
		cfg              ProviderConfig
		wantErrSubstring string
	}{
		{
			name: "valid config",
			cfg:  ProviderConfig{APIKey: "sk-ant-test", BaseURL: "https://api.anthropic.com"},
		},
		{
			name:             "invalid base url",
			cfg:              ProviderConfig{APIKey: "sk-ant-test", BaseURL: "not a url"},
			wantErrSubstring: "parse base_url",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			provider, err := New(testCase.cfg)
			if testCase.wantErrSubstring != "" {
				if err == nil {
					t.Fatal("expected error")
				}
				if !strings.Contains(err.Error(), testCase.wantErrSubstring) {
					t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstring)
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if !provider.Available(context.Background()) {
				t.Error("provider with api key reports unavailable")
			}
			if provider.model != "claude-sonnet-4-5-20250929" {
				t.Errorf("model = %q, want default", provider.model)
			}
		})
	}
}

func TestNewFallsBackToEnvironmentKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	provider, err := New(ProviderConfig{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !provider.Available(context.Background()) {
		t.Error("provider with env key reports unavailable")
	}
}

func TestGenerateReturnsTextBlocks(t *testing.T) {
	t.Parallel()

	stub := &messagesClientStub{message: textMessage(t, "  the insight  ")}
	provider := &Provider{messages: stub, model: "claude-sonnet-4-5-20250929", apiKey: "sk"}

	text, err := provider.Generate(context.Background(), drift.GenerateRequest{Prompt: "analyze"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "the insight" {
		t.Errorf("text = %q, want trimmed block text", text)
	}
	if got := string(stub.gotParams.Model); got != "claude-sonnet-4-5-20250929" {
		t.Errorf("model = %q, want configured default", got)
	}
	if stub.gotParams.MaxTokens != defaultMaxTokens {
		t.Errorf("max tokens = %d, want %d", stub.gotParams.MaxTokens, defaultMaxTokens)
	}
}

func TestGenerateHonorsRequestOverrides(t *testing.T) {
	t.Parallel()

	stub := &messagesClientStub{message: textMessage(t, "ok")}
	provider := &Provider{messages: stub, model: "claude-sonnet-4-5-20250929", apiKey: "sk"}

	_, err := provider.Generate(context.Background(), drift.GenerateRequest{
		Prompt:          "p",
		Model:           "claude-haiku-4-5",
		MaxOutputTokens: 256,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if got := string(stub.gotParams.Model); got != "claude-haiku-4-5" {
		t.Errorf("model = %q, want request override", got)
	}
	if stub.gotParams.MaxTokens != 256 {
		t.Errorf("max tokens = %d, want 256", stub.gotParams.MaxTokens)
	}
}

func TestGenerateClassifiesAPIErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		err            error
		wantKind       drift.FailureKind
		wantCode       int
		wantRetryAfter time.Duration
	}{
		{
			name: "rate limited with retry after",
			err: apiError(t, http.StatusTooManyRequests,
				http.Header{"Retry-After": []string{"7"}}),
			wantKind:       drift.FailureKindRateLimited,
			wantCode:       http.StatusTooManyRequests,
			wantRetryAfter: 7 * time.Second,
		},
		{
			name:     "server error is transient",
			err:      apiError(t, http.StatusServiceUnavailable, http.Header{}),
			wantKind: drift.FailureKindTransient,
			wantCode: http.StatusServiceUnavailable,
		},
		{
			name:     "auth error is permanent",
			err:      apiError(t, http.StatusUnauthorized, http.Header{}),
			wantKind: drift.FailureKindPermanent,
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "context deadline is timeout",
			err:      context.DeadlineExceeded,
			wantKind: drift.FailureKindTimeout,
		},
		{
			name:     "opaque transport error stays unknown",
			err:      errors.New("unexpected response shape"),
			wantKind: drift.FailureKindUnknown,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			stub := &messagesClientStub{err: testCase.err}
			provider := &Provider{messages: stub, model: "m", apiKey: "sk"}

			_, err := provider.Generate(context.Background(), drift.GenerateRequest{Prompt: "p"})
			taskErr, ok := drift.AsTaskError(err)
			if !ok {
				t.Fatal("error is not a task error")
			}
			if taskErr.Kind != testCase.wantKind {
				t.Errorf("kind = %s, want %s", taskErr.Kind, testCase.wantKind)
			}
			if taskErr.Code != testCase.wantCode {
				t.Errorf("code = %d, want %d", taskErr.Code, testCase.wantCode)
			}
			if taskErr.RetryAfter != testCase.wantRetryAfter {
				t.Errorf("retry after = %s, want %s", taskErr.RetryAfter, testCase.wantRetryAfter)
			}
			if taskErr.Provider != "anthropic" {
				t.Errorf("provider = %q, want anthropic", taskErr.Provider)
			}
		})
	}
}

func TestGenerateWithoutKeyIsUnavailable(t *testing.T) {
	t.Parallel()

	provider := &Provider{messages: &messagesClientStub{}, model: "m"}

	_, err := provider.Generate(context.Background(), drift.GenerateRequest{Prompt: "p"})
	if !errors.Is(err, drift.ErrProviderUnavailable) {
		t.Fatalf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestGenerateRejectsEmptyTextResponse(t *testing.T) {
	t.Parallel()

	stub := &messagesClientStub{message: mustUnmarshalMessage(t, `{"content":[]}`)}
	provider := &Provider{messages: stub, model: "m", apiKey: "sk"}

	_, err := provider.Generate(context.Background(), drift.GenerateRequest{Prompt: "p"})
	taskErr, ok := drift.AsTaskError(err)
	if !ok || taskErr.Kind != drift.FailureKindPermanent {
		t.Fatalf("error = %v, want permanent task error", err)
	}
}
