package gemini

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"google.golang.org/genai"

	"driftline/pkg/drift"
)

type modelsClientStub struct {
	response *genai.GenerateContentResponse
	err      error

	gotModel    string
	gotContents []*genai.Content
	gotConfig   *genai.GenerateContentConfig
}

func (s *modelsClientStub) GenerateContent(
	_ context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	s.gotModel = model
	s.gotContents = contents
	s.gotConfig = config
	if s.err != nil {
		return nil, s.err
	}

	return s.response, nil
}

func textResponse(parts []*genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: parts,
				},
			},
		},
	}
}

func TestNewWithoutKeyIsUnavailable(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "")

	provider, err := New(ProviderConfig{})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if provider.Available(context.Background()) {
		t.Error("provider without key reports available")
	}
	if provider.model != "gemini-2.0-flash" {
		t.Errorf("model = %q, want default", provider.model)
	}

	_, err = provider.Generate(context.Background(), drift.GenerateRequest{Prompt: "p"})
	if !errors.Is(err, drift.ErrProviderUnavailable) {
		t.Fatalf("error = %v, want ErrProviderUnavailable", err)
	}
}

func TestNewRejectsInvalidBaseURL(t *testing.T) {
	t.Parallel()

	_, err := New(ProviderConfig{APIKey: "key", BaseURL: "not a url"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse base_url") {
		t.Fatalf("error = %v, want parse base_url", err)
	}
}

func TestGenerateReturnsCandidateText(t *testing.T) {
	t.Parallel()

	stub := &modelsClientStub{response: textResponse([]*genai.Part{{Text: "  the analysis  "}})}
	provider := &Provider{models: stub, model: "gemini-2.0-flash", apiKey: "key"}

	text, err := provider.Generate(context.Background(), drift.GenerateRequest{Prompt: "analyze"})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if text != "the analysis" {
		t.Errorf("text = %q, want trimmed candidate text", text)
	}
	if stub.gotModel != "gemini-2.0-flash" {
		t.Errorf("model = %q, want configured default", stub.gotModel)
	}
	if len(stub.gotContents) != 1 || len(stub.gotContents[0].Parts) != 1 ||
		stub.gotContents[0].Parts[0].Text != "analyze" {
		t.Errorf("contents = %+v, want single user prompt", stub.gotContents)
	}
}

func TestGenerateHonorsRequestOverrides(t *testing.T) {
	t.Parallel()

	stub := &modelsClientStub{response: textResponse([]*genai.Part{{Text: "ok"}})}
	provider := &Provider{models: stub, model: "gemini-2.0-flash", apiKey: "key"}

	_, err := provider.Generate(context.Background(), drift.GenerateRequest{
		Prompt:          "p",
		Model:           "gemini-2.5-pro",
		MaxOutputTokens: 512,
	})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if stub.gotModel != "gemini-2.5-pro" {
		t.Errorf("model = %q, want request override", stub.gotModel)
	}
	if stub.gotConfig == nil || stub.gotConfig.MaxOutputTokens != 512 {
		t.Errorf("config = %+v, want max output tokens 512", stub.gotConfig)
	}
}

func TestGenerateClassifiesAPIErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		wantKind drift.FailureKind
		wantCode int
	}{
		{
			name:     "rate limited",
			err:      genai.APIError{Code: http.StatusTooManyRequests, Message: "quota exceeded"},
			wantKind: drift.FailureKindRateLimited,
			wantCode: http.StatusTooManyRequests,
		},
		{
			name:     "server error is transient",
			err:      genai.APIError{Code: http.StatusInternalServerError, Message: "internal"},
			wantKind: drift.FailureKindTransient,
			wantCode: http.StatusInternalServerError,
		},
		{
			name:     "bad request is permanent",
			err:      genai.APIError{Code: http.StatusBadRequest, Message: "invalid argument"},
			wantKind: drift.FailureKindPermanent,
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "context deadline is timeout",
			err:      context.DeadlineExceeded,
			wantKind: drift.FailureKindTimeout,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			stub := &modelsClientStub{err: testCase.err}
			provider := &Provider{models: stub, model: "m", apiKey: "key"}

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
			if taskErr.Provider != "gemini" {
				t.Errorf("provider = %q, want gemini", taskErr.Provider)
			}
		})
	}
}

func TestGenerateRejectsEmptyResponse(t *testing.T) {
	t.Parallel()

	stub := &modelsClientStub{response: &genai.GenerateContentResponse{}}
	provider := &Provider{models: stub, model: "m", apiKey: "key"}

	_, err := provider.Generate(context.Background(), drift.GenerateRequest{Prompt: "p"})
	taskErr, ok := drift.AsTaskError(err)
	if !ok || taskErr.Kind != drift.FailureKindPermanent {
		t.Fatalf("error = %v, want permanent task error", err)
	}
}
