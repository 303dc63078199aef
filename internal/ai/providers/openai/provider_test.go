package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/responses"

	"driftline/pkg/drift"
)

type responsesClientStub struct {
	response *responses.Response
	err      error

	gotParams responses.ResponseNewParams
}

func (s *responsesClientStub) New(
	_ context.Context,
	body responses.ResponseNewParams,
	_ ...option.RequestOption,
) (*responses.Response, error) {
	s.gotParams = body
	if s.err != nil {
		return nil, s.err
	}

	return s.response, nil
}

func mustUnmarshalResponse(t *testing.T, raw string) *responses.Response {
	t.Helper()

	var resp responses.Response
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}

	return &resp
}

func textResponse(t *testing.T, text string) *responses.Response {
	t.Helper()

	raw, err := json.Marshal(map[string]any{
		"output": []map[string]any{
			{
				"type": "message",
				"content": []map[string]any{
					{"type": "output_text", "text": text},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	return mustUnmarshalResponse(t, string(raw))
}

func apiError(t *testing.T, status int, header http.Header) *openai.Error {
	t.Helper()

	request := httptest.NewRequest(http.MethodPost, "https://api.openai.com/v1/responses", nil)

	return &openai.Error{
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
			cfg:  ProviderConfig{APIKey: "sk-test", BaseURL: "https://api.openai.com/v1"},
		},
		{
			name:             "invalid base url",
			cfg:              ProviderConfig{APIKey: "sk-test", BaseURL: "not a url"},
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
			if provider.model != "gpt-4o" {
				t.Errorf("model = %q, want default", provider.model)
			}
		})
	}
}

func TestNewFallsBackToEnvironmentKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	provider, err := New(ProviderConfig{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !provider.Available(context.Background()) {
		t.Error("provider with env key reports unavailable")
	}
}

func TestGenerateReturnsOutputText(t *testing.T) {
	t.Parallel()

	stub := &responsesClientStub{response: textResponse(t, "  the digest  ")}
	provider := &Provider{responses: stub, model: "gpt-4o", apiKey: "sk"}

	text, err := provider.Generate(context.Background(), drift.GenerateRequest{Prompt: "summarize"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "the digest" {
		t.Errorf("text = %q, want trimmed output text", text)
	}
	if stub.gotParams.Model != "gpt-4o" {
		t.Errorf("model = %q, want configured default", stub.gotParams.Model)
	}
	if !stub.gotParams.MaxOutputTokens.Valid() || stub.gotParams.MaxOutputTokens.Value != defaultMaxTokens {
		t.Errorf("max output tokens = %+v, want %d", stub.gotParams.MaxOutputTokens, defaultMaxTokens)
	}
	if !stub.gotParams.Input.OfString.Valid() || stub.gotParams.Input.OfString.Value != "summarize" {
		t.Errorf("input = %+v, want prompt string", stub.gotParams.Input.OfString)
	}
}

func TestGenerateHonorsRequestOverrides(t *testing.T) {
	t.Parallel()

	stub := &responsesClientStub{response: textResponse(t, "ok")}
	provider := &Provider{responses: stub, model: "gpt-4o", apiKey: "sk"}

	_, err := provider.Generate(context.Background(), drift.GenerateRequest{
		Prompt:          "p",
		Model:           "gpt-4o-mini",
		MaxOutputTokens: 128,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if stub.gotParams.Model != "gpt-4o-mini" {
		t.Errorf("model = %q, want request override", stub.gotParams.Model)
	}
	if stub.gotParams.MaxOutputTokens.Value != 128 {
		t.Errorf("max output tokens = %d, want 128", stub.gotParams.MaxOutputTokens.Value)
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
				http.Header{"Retry-After": []string{"5"}}),
			wantKind:       drift.FailureKindRateLimited,
			wantCode:       http.StatusTooManyRequests,
			wantRetryAfter: 5 * time.Second,
		},
		{
			name:     "server error is transient",
			err:      apiError(t, http.StatusBadGateway, http.Header{}),
			wantKind: drift.FailureKindTransient,
			wantCode: http.StatusBadGateway,
		},
		{
			name:     "invalid request is permanent",
			err:      apiError(t, http.StatusBadRequest, http.Header{}),
			wantKind: drift.FailureKindPermanent,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "context canceled keeps canceled kind",
			err:      context.Canceled,
			wantKind: drift.FailureKindCanceled,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			stub := &responsesClientStub{err: testCase.err}
			provider := &Provider{responses: stub, model: "m", apiKey: "sk"}

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
		})
	}
}

func TestGenerateWithoutKeyIsUnavailable(t *testing.T) {
	t.Parallel()

	provider := &Provider{responses: &responsesClientStub{}, model: "m"}

	_, err := provider.Generate(context.Background(), drift.GenerateRequest{Prompt: "p"})
	if !errors.Is(err, drift.ErrProviderUnavailable) {
		t.Fatalf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestGenerateRejectsEmptyOutput(t *testing.T) {
	t.Parallel()

	stub := &responsesClientStub{response: mustUnmarshalResponse(t, `{"output":[]}`)}
	provider := &Provider{responses: stub, model: "m", apiKey: "sk"}

	_, err := provider.Generate(context.Background(), drift.GenerateRequest{Prompt: "p"})
	taskErr, ok := drift.AsTaskError(err)
	if !ok || taskErr.Kind != drift.FailureKindPermanent {
		t.Fatalf("error = %v, want permanent task error", err)
	}
}
